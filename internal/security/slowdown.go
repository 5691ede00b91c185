package security

import (
	"context"
	"net/http"
	"time"

	"clan-manager/internal/clientip"
	"clan-manager/internal/observability"
)

type SpeedPolicy struct {
	After    int
	Step     time.Duration
	MaxDelay time.Duration
	Window   time.Duration
}

// SpeedLimiter delays rather than rejects: every request past After in the
// window waits Step longer than the previous one, up to MaxDelay.
type SpeedLimiter struct {
	policy SpeedPolicy
	store  CounterStore
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSpeedLimiter(store CounterStore, policy SpeedPolicy) *SpeedLimiter {
	if policy.After <= 0 {
		policy.After = 500
	}
	if policy.Step <= 0 {
		policy.Step = 100 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 5 * time.Second
	}
	if policy.Window <= 0 {
		policy.Window = 15 * time.Minute
	}

	return &SpeedLimiter{
		policy: policy,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepContext,
	}
}

func (l *SpeedLimiter) WithClock(now func() time.Time) *SpeedLimiter {
	l.now = now
	return l
}

func (l *SpeedLimiter) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *SpeedLimiter {
	l.sleep = sleep
	return l
}

// Delay is the wait imposed on the n-th request of a window.
func (l *SpeedLimiter) Delay(n int) time.Duration {
	if n <= l.policy.After {
		return 0
	}
	delay := time.Duration(n-l.policy.After) * l.policy.Step
	if delay > l.policy.MaxDelay {
		return l.policy.MaxDelay
	}
	return delay
}

func (l *SpeedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)
		counter, err := l.store.Hit(r.Context(), "slow:"+ip, l.policy.Window, l.now())
		if err != nil {
			observability.LoggerFrom(r.Context()).Error("speed_limit_store_failed", map[string]any{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		if delay := l.Delay(counter.Hits); delay > 0 {
			if err := l.sleep(r.Context(), delay); err != nil {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
