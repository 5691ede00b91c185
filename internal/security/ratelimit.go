package security

import (
	"net/http"
	"strconv"
	"time"

	"clan-manager/internal/apperr"
	"clan-manager/internal/clientip"
	"clan-manager/internal/httpx"
	"clan-manager/internal/observability"
)

type Policy struct {
	Name   string
	Max    int
	Window time.Duration
	// SkipSuccessful counts only requests answered with a status >= 400. Every
	// request still holds a slot while it is being handled.
	SkipSuccessful bool
	Message        string
}

// RateLimiter caps requests per client address inside a fixed window.
type RateLimiter struct {
	policy Policy
	store  CounterStore
	now    func() time.Time
}

func NewRateLimiter(store CounterStore, policy Policy) *RateLimiter {
	if policy.Max <= 0 {
		policy.Max = 100
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}
	if policy.Message == "" {
		policy.Message = "too many requests, please try again later"
	}

	return &RateLimiter{
		policy: policy,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

func (l *RateLimiter) Policy() Policy {
	return l.policy
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)
		key := "rl:" + l.policy.Name + ":" + ip
		now := l.now()
		logger := observability.LoggerFrom(r.Context())

		counter, err := l.store.Hit(r.Context(), key, l.policy.Window, now)
		if err != nil {
			logger.Error("rate_limit_store_failed", map[string]any{"policy": l.policy.Name, "error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}
		if counter.Hits > l.policy.Max {
			l.reject(w, r, ip, counter, now)
			return
		}

		l.setHeaders(w, counter.Hits, counter, now)
		if !l.policy.SkipSuccessful {
			next.ServeHTTP(w, r)
			return
		}

		// successful requests give their slot back
		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status < http.StatusBadRequest {
			if err := l.store.Release(r.Context(), key, counter.WindowStart); err != nil {
				logger.Error("rate_limit_store_failed", map[string]any{"policy": l.policy.Name, "error": err.Error()})
			}
		}
	})
}

func (l *RateLimiter) reject(w http.ResponseWriter, r *http.Request, ip string, counter Counter, now time.Time) {
	retryAfter := counter.ResetAt(l.policy.Window).Sub(now)
	observability.LoggerFrom(r.Context()).Warn("rate_limited", map[string]any{
		"policy": l.policy.Name,
		"ip":     ip,
		"path":   r.URL.Path,
	})

	l.setHeaders(w, l.policy.Max, counter, now)
	httpx.WriteError(w, r, apperr.RateLimited(l.policy.Message, retryAfter))
}

func (l *RateLimiter) setHeaders(w http.ResponseWriter, used int, counter Counter, now time.Time) {
	remaining := l.policy.Max - used
	if remaining < 0 {
		remaining = 0
	}

	reset := l.policy.Window
	if !counter.WindowStart.IsZero() {
		reset = counter.ResetAt(l.policy.Window).Sub(now)
	}

	header := w.Header()
	header.Set("RateLimit-Limit", strconv.Itoa(l.policy.Max))
	header.Set("RateLimit-Remaining", strconv.Itoa(remaining))
	header.Set("RateLimit-Reset", httpx.RetryAfterSeconds(reset))
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
