// internal/common/errors/handler.go
package errors

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"planscape-scenarios/internal/models"
)

// Logger is the subset of logger.Logger the reporter needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// NotificationSink presents dismissible notifications to the user.
type NotificationSink interface {
	Show(n models.Notification)
	Dismiss()
}

// Reporter surfaces workflow errors: it normalizes them, logs them, and shows
// a dismissible notification carrying the user-facing message.
type Reporter struct {
	logger Logger
	sink   NotificationSink
}

func NewReporter(logger Logger, sink NotificationSink) *Reporter {
	if sink == nil {
		sink = &MemorySink{}
	}
	return &Reporter{logger: logger, sink: sink}
}

// Report handles any error surfaced to the user.
func (r *Reporter) Report(err error, fields map[string]interface{}) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := Normalize(err)

	logFields := map[string]interface{}{
		"errorCode":    stdErr.Code,
		"errorMessage": stdErr.Message,
		"errorDetails": stdErr.Details,
		"retryable":    stdErr.Retryable,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	if r.logger != nil {
		r.logger.Error("workflow error", logFields)
	}

	r.sink.Show(models.Notification{
		ID:        uuid.NewString(),
		Severity:  models.SeverityError,
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Action:    "Dismiss",
		CreatedAt: time.Now().UTC(),
	})
	return stdErr
}

// Dismiss clears the current notification.
func (r *Reporter) Dismiss() {
	r.sink.Dismiss()
}

// MemorySink keeps the currently visible notification; only one is shown at a time.
type MemorySink struct {
	mu      sync.Mutex
	current *models.Notification
	history []models.Notification
}

func (s *MemorySink) Show(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &n
	s.history = append(s.history, n)
}

func (s *MemorySink) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Current returns the visible notification, if any.
func (s *MemorySink) Current() (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Notification{}, false
	}
	return *s.current, true
}

// History returns every notification shown so far.
func (s *MemorySink) History() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.history...)
}
