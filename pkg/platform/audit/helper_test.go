package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shopcore/pkg/requestcontext"
)

type recordingEmitter struct {
	events    []Event
	shouldErr bool
}

func (m *recordingEmitter) Emit(_ context.Context, event Event) error {
	if m.shouldErr {
		return errors.New("emit failed")
	}
	m.events = append(m.events, event)
	return nil
}

type LoggerSuite struct {
	suite.Suite
	emitter *recordingEmitter
	logger  *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.emitter = &recordingEmitter{}
	s.logger = NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), s.emitter)
}

func (s *LoggerSuite) TestEnrichesFromContext() {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-12345")
	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "curl/8.0")

	s.logger.Log(ctx, Event{Action: string(EventAuthFailed), Reason: "tenant_mismatch"})

	s.Require().Len(s.emitter.events, 1)
	got := s.emitter.events[0]
	s.Equal("req-12345", got.RequestID)
	s.Equal("203.0.113.7", got.ClientIP)
	s.Equal(now, got.Timestamp)
	s.Equal("tenant_mismatch", got.Reason)
}

func (s *LoggerSuite) TestEmitErrorIsSwallowed() {
	s.emitter.shouldErr = true
	s.NotPanics(func() {
		s.logger.Log(context.Background(), Event{Action: string(EventLoggedOut)})
	})
	s.Empty(s.emitter.events)
}

func (s *LoggerSuite) TestNilCollaborators() {
	s.NotPanics(func() {
		NewLogger(nil, nil).Log(context.Background(), Event{Action: "x"})
		var l *Logger
		l.Log(context.Background(), Event{Action: "x"})
	})

	emitter := &recordingEmitter{}
	NewLogger(nil, emitter).Log(context.Background(), Event{Action: "x"})
	s.Len(emitter.events, 1)
}
