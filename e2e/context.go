package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ResetInbox looks up the last reset notice sent to an email. It is only
// available when the suite runs the server in-process.
type ResetInbox func(email string) (principalID, token string, ok bool)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	Inbox            ResetInbox
	LastResponse     *http.Response
	LastResponseBody []byte

	AccessToken          string
	RefreshToken         string
	PreviousRefreshToken string
}

// NewTestContext creates a new test context
func NewTestContext(baseURL string, inbox ResetInbox) *TestContext {
	return &TestContext{
		BaseURL: baseURL,
		Inbox:   inbox,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, tc.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

// ResponseCookie returns the value of a cookie set by the last response.
func (tc *TestContext) ResponseCookie(name string) (*http.Cookie, bool) {
	if tc.LastResponse == nil {
		return nil, false
	}
	for _, c := range tc.LastResponse.Cookies() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Getter methods for step package interfaces

func (tc *TestContext) GetAccessToken() string {
	return tc.AccessToken
}

func (tc *TestContext) SetAccessToken(token string) {
	tc.AccessToken = token
}

func (tc *TestContext) GetRefreshToken() string {
	return tc.RefreshToken
}

// SetRefreshToken keeps the replaced token so reuse can be attempted.
func (tc *TestContext) SetRefreshToken(token string) {
	tc.PreviousRefreshToken = tc.RefreshToken
	tc.RefreshToken = token
}

func (tc *TestContext) GetPreviousRefreshToken() string {
	return tc.PreviousRefreshToken
}

func (tc *TestContext) LastResetToken(email string) (principalID, token string, ok bool) {
	if tc.Inbox == nil {
		return "", "", false
	}
	return tc.Inbox(email)
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}
