// Package ratelimit throttles repeated login attempts per client IP.
//
// Each IP gets a fixed window: the first attempt opens it, every further
// attempt inside the window increments the counter, and once the window has
// elapsed the counter starts over. A successful login clears the IP.
//
// The package imports nothing from the project so both handlers and
// middleware can depend on it.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// LoginLimiter counts login attempts per IP.
//
//	limiter := ratelimit.NewLoginLimiter(10, 2*time.Minute)
//	if !limiter.Allow(ip) { ... 429 ... }
//	limiter.Reset(ip) // after a successful login
type LoginLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxAttempts int
	period      time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewLoginLimiter starts a limiter and its background sweeper. Call Stop when
// the limiter is no longer needed.
func NewLoginLimiter(maxAttempts int, period time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		windows:     make(map[string]*window),
		maxAttempts: maxAttempts,
		period:      period,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records an attempt for ip and reports whether it is within budget.
func (l *LoginLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.start) > l.period {
		l.windows[ip] = &window{count: 1, start: now}
		return true
	}

	w.count++
	return w.count <= l.maxAttempts
}

// Reset forgets every attempt recorded for ip.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, ip)
}

// RetryAfter returns how many whole seconds remain in ip's window, rounded up.
// It is meant for the Retry-After header.
func (l *LoginLimiter) RetryAfter(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[ip]
	if !ok {
		return 0
	}
	remaining := l.period - l.now().Sub(w.start)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Stop ends the sweeper goroutine. Safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *LoginLimiter) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *LoginLimiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, w := range l.windows {
		if now.Sub(w.start) > l.period {
			delete(l.windows, ip)
		}
	}
}

// ClientIP returns the caller's address. Proxy headers win over RemoteAddr
// because the server normally sits behind a reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RetryMessage renders a wait time for humans: "2 minute(s)", "45 second(s)".
func RetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
