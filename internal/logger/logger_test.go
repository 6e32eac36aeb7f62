package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level        string
		debugEnabled bool
		warnEnabled  bool
	}{
		{level: "debug", debugEnabled: true, warnEnabled: true},
		{level: "info", debugEnabled: false, warnEnabled: true},
		{level: "warn", debugEnabled: false, warnEnabled: true},
		{level: "error", debugEnabled: false, warnEnabled: false},
		{level: "nonsense", debugEnabled: false, warnEnabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()

			log := New(tt.level, "text")
			ctx := context.Background()
			assert.Equal(t, tt.debugEnabled, log.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.warnEnabled, log.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestNewFormats(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, New("info", "json"))
	assert.NotNil(t, New("info", "text"))
	assert.NotNil(t, New("info", ""))
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	var called bool
	handler := RequestLogger(New("error", "text"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
