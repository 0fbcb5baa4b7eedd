package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginLimiterWindow(t *testing.T) {
	l := NewLoginLimiter(2, time.Minute)
	defer l.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "other IPs have their own window")
	assert.Equal(t, 61, l.RetryAfter("1.2.3.4"))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("1.2.3.4"), "window elapsed")
}

func TestLoginLimiterReset(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))
	l.Reset("ip")
	assert.True(t, l.Allow("ip"))
	assert.Equal(t, 0, l.RetryAfter("unknown"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "10.0.0.2:1234", "9.9.9.9"},
		{"real ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "10.0.0.2:1234", "8.8.8.8"},
		{"remote addr", nil, "10.0.0.2:1234", "10.0.0.2"},
		{"remote without port", nil, "10.0.0.2", "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/auth/login", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRetryMessage(t *testing.T) {
	assert.Equal(t, "2 minute(s)", RetryMessage(120))
	assert.Equal(t, "45 second(s)", RetryMessage(45))
}
