package security

import (
	"context"
	"time"
)

// Attempt is one login attempt reserved against a username.
type Attempt struct {
	Number int
	// Locked means the threshold was reached before this attempt; it must be
	// refused without checking the password.
	Locked     bool
	RetryAfter time.Duration
	// Final is the last attempt allowed in the window. Failing it locks the
	// account.
	Final bool
}

// LoginTracker counts login attempts per username. Every attempt is counted
// before the password is checked and a successful login clears the count, so
// once maxAttempts have failed inside the window the account stays locked
// until the window that opened with the first attempt closes.
type LoginTracker struct {
	store       CounterStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

func NewLoginTracker(store CounterStore, maxAttempts int, window time.Duration) *LoginTracker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	return &LoginTracker{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *LoginTracker) WithClock(now func() time.Time) *LoginTracker {
	t.now = now
	return t
}

// Reserve counts one attempt atomically. Concurrent callers get distinct
// numbers, so no more than maxAttempts of them are let through per window.
func (t *LoginTracker) Reserve(ctx context.Context, username string) (Attempt, error) {
	now := t.now()
	counter, err := t.store.Hit(ctx, loginKey(username), t.window, now)
	if err != nil {
		return Attempt{}, err
	}

	attempt := Attempt{Number: counter.Hits, Final: counter.Hits == t.maxAttempts}
	if counter.Hits > t.maxAttempts {
		attempt.Locked = true
		attempt.RetryAfter = counter.ResetAt(t.window).Sub(now)
	}
	return attempt, nil
}

func (t *LoginTracker) Clear(ctx context.Context, username string) error {
	return t.store.Reset(ctx, loginKey(username))
}

func loginKey(username string) string {
	return "login:" + username
}
