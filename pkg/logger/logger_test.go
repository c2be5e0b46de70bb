package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "[empty]"},
		{"a", "*"},
		{"ab", "**"},
		{"alice", "a***e"},
		{"bob", "b*b"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizedUsername(tt.input))
		})
	}
}

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedEmail("user@example.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("username=alice&password=x"))
	assert.True(t, SanitizeQueryString("TOKEN=abc"))
	assert.False(t, SanitizeQueryString("skip=0&limit=10"))
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLogger_LogAuthAttempt(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:  EventLoginBlocked,
		Endpoint:   "/login",
		Username:   "alice",
		IPAddress:  "10.0.0.1",
		RetryAfter: 1799,
	})

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "audit", entry["msg"])
	assert.Equal(t, "login_blocked", entry["event_type"])
	assert.Equal(t, "a***e", entry["username"])
	assert.Equal(t, "10.0.0.1", entry["ip_address"])
	assert.Equal(t, float64(1799), entry["retry_after_seconds"])
	assert.Equal(t, "2024-01-02T03:04:05Z", entry["timestamp"])
}

func TestAuditLogger_LogAuthAttempt_SuccessIsInfo(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(context.Background(), AuditEvent{EventType: EventLogin, Success: true, UserID: "u-1"})

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.NotContains(t, entry, "retry_after_seconds")
}

func TestAuditLogger_LogAccountAction(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAccountAction(context.Background(), EventSignup, "u-1", "", map[string]string{"username": "a***e"})

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "account", entry["audit_type"])
	assert.Equal(t, "signup", entry["event_type"])
	assert.NotContains(t, entry, "ip_address")
}
