package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "json", slog.LevelInfo, "forum")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	l.WithContext(ctx).WithAccountID("acc-1").WithError(errors.New("boom")).Info("post failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "post failed", entry["msg"])
	assert.Equal(t, "forum", entry["component"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "acc-1", entry["account_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestHTTPRequestLogLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "json", slog.LevelInfo, "http")
	l.HTTPRequestLog("GET", "/api/forum/rooms", 503, 12*time.Millisecond, "127.0.0.1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, float64(503), entry["status"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
