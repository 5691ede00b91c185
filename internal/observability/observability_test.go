package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf)
	logger.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	logger.Warn("account_locked", map[string]any{"username": "alice", "level": "spoofed"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "account_locked", entries[0]["message"])
	assert.Equal(t, "alice", entries[0]["username"])
	assert.Equal(t, "2026-01-02T03:04:05Z", entries[0]["timestamp"])
}

func TestLoggerFromContext(t *testing.T) {
	logger := NewLoggerTo(&bytes.Buffer{})
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, LoggerFrom(ctx))
	assert.NotNil(t, LoggerFrom(context.Background()))
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf)

	handler := RequestLoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, logger, LoggerFrom(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/stats/1", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "http_request", entries[0]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[0]["status"])
	assert.Equal(t, "/api/stats/1", entries[0]["path"])
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf)

	handler := RecoverMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "boom")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "panic_recovered", entries[0]["message"])
}
