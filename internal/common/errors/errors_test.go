package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []map[string]interface{}
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fields)
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	plain := stderrors.New("boom")
	n := Normalize(plain)
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.False(t, n.Retryable)
	assert.ErrorIs(t, n, plain)

	wrapped := fmt.Errorf("submit: %w", NewScenarioCreateFailedError("Name already used", false, nil))
	n = Normalize(wrapped)
	assert.Equal(t, ErrCodeScenarioCreateFailed, n.Code)
	assert.Equal(t, "Name already used", n.Message)
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		code      ErrorCode
	}{
		{"fetch failed", NewScenarioFetchFailedError("7", stderrors.New("eof")), true, ErrCodeScenarioFetchFailed},
		{"not found", NewScenarioNotFoundError("7"), false, ErrCodeScenarioNotFound},
		{"create rejected", NewScenarioCreateFailedError("", false, nil), false, ErrCodeScenarioCreateFailed},
		{"catalog", NewCatalogUnavailableError("conditions", stderrors.New("503")), true, ErrCodeCatalogUnavailable},
		{"plain", stderrors.New("x"), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			if tt.code != "" {
				assert.True(t, HasCode(fmt.Errorf("ctx: %w", tt.err), tt.code))
			}
		})
	}
}

func TestScenarioCreateFailedDefaultMessage(t *testing.T) {
	err := NewScenarioCreateFailedError("", true, stderrors.New("dial tcp: refused"))
	assert.Equal(t, "Scenario could not be created", err.Message)
	assert.Equal(t, "dial tcp: refused", err.Details)
}

func TestReporter_ShowsDismissibleNotification(t *testing.T) {
	log := &recordingLogger{}
	sink := &MemorySink{}
	r := NewReporter(log, sink)

	got := r.Report(NewScenarioCreateFailedError("Scenario name must be unique", false, nil),
		map[string]interface{}{"planId": "12"})
	require.NotNil(t, got)

	n, ok := sink.Current()
	require.True(t, ok)
	assert.Equal(t, "Scenario name must be unique", n.Message)
	assert.Equal(t, string(ErrCodeScenarioCreateFailed), n.Code)
	assert.Equal(t, "Dismiss", n.Action)
	assert.NotEmpty(t, n.ID)

	require.Len(t, log.entries, 1)
	assert.Equal(t, "12", log.entries[0]["planId"])

	r.Dismiss()
	_, ok = sink.Current()
	assert.False(t, ok)
	assert.Len(t, sink.History(), 1)
}

func TestReporter_NilError(t *testing.T) {
	sink := &MemorySink{}
	r := NewReporter(nil, sink)
	assert.Nil(t, r.Report(nil, nil))
	assert.Empty(t, sink.History())
}
