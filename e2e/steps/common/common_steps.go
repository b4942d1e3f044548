package common

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	ResponseContains(text string) bool
	ResponseCookie(name string) (*http.Cookie, bool)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background steps
	ctx.Step(`^shopcore is running$`, steps.shopcoreIsRunning)

	// Generic request steps
	ctx.Step(`^I POST to "([^"]*)" with empty body$`, steps.postWithEmptyBody)
	ctx.Step(`^I GET "([^"]*)" without authorization$`, steps.getWithoutAuth)

	// Response assertion steps
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response body should be:$`, steps.responseBodyShouldBe)
	ctx.Step(`^the "([^"]*)" cookie should be cleared$`, steps.cookieShouldBeCleared)
	ctx.Step(`^the "([^"]*)" cookie should be HttpOnly$`, steps.cookieShouldBeHTTPOnly)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) shopcoreIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/live", nil); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, http.StatusOK)
}

func (s *commonSteps) postWithEmptyBody(ctx context.Context, path string) error {
	return s.tc.POST(path, map[string]any{}, nil)
}

func (s *commonSteps) getWithoutAuth(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	actualStatus := s.tc.GetLastResponseStatus()
	if actualStatus != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, actualStatus, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, text string) error {
	if !s.tc.ResponseContains(text) {
		return fmt.Errorf("response does not contain: %s\nResponse: %s", text, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, text string) error {
	if s.tc.ResponseContains(text) {
		return fmt.Errorf("response unexpectedly contains: %s\nResponse: %s", text, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	actualValue, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

// responseBodyShouldBe compares JSON documents, ignoring key order and
// whitespace.
func (s *commonSteps) responseBodyShouldBe(ctx context.Context, doc *godog.DocString) error {
	var expected, actual any
	if err := json.Unmarshal([]byte(strings.TrimSpace(doc.Content)), &expected); err != nil {
		return fmt.Errorf("expected body is not JSON: %w", err)
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &actual); err != nil {
		return fmt.Errorf("response is not JSON: %w\nResponse: %s", err, string(s.tc.GetLastResponseBody()))
	}
	if !reflect.DeepEqual(expected, actual) {
		return fmt.Errorf("expected body %s but got %s", strings.TrimSpace(doc.Content), string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) cookieShouldBeCleared(ctx context.Context, name string) error {
	c, ok := s.tc.ResponseCookie(name)
	if !ok {
		return fmt.Errorf("response did not set cookie %s", name)
	}
	if c.MaxAge >= 0 || c.Value != "" {
		return fmt.Errorf("cookie %s not cleared: value=%q max-age=%d", name, c.Value, c.MaxAge)
	}
	return nil
}

func (s *commonSteps) cookieShouldBeHTTPOnly(ctx context.Context, name string) error {
	c, ok := s.tc.ResponseCookie(name)
	if !ok {
		return fmt.Errorf("response did not set cookie %s", name)
	}
	if !c.HttpOnly {
		return fmt.Errorf("cookie %s is not HttpOnly", name)
	}
	return nil
}
