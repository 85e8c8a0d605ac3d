// Package poll implements bounded polling for remote resources that are
// created asynchronously. A caller triggers creation elsewhere, then uses a
// Waiter to block until the resource becomes visible, a permanent error is
// reported, the attempt budget runs out, or the context is cancelled.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome is the result of a single existence check.
type Outcome int

const (
	// NotReady means the resource is not visible yet and polling should continue.
	NotReady Outcome = iota
	// Ready means the resource is visible and the wait is over.
	Ready
)

// CheckFunc performs one existence check for the resource identified by
// handle. Returning a non-nil error marks the condition as permanent: the
// waiter propagates it immediately and never retries.
type CheckFunc func(ctx context.Context, handle string) (Outcome, error)

// SleepFunc suspends execution for d or until ctx is done, whichever comes
// first. Implementations return ctx.Err() when interrupted.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Tracker receives progress notifications during a wait. Implementations
// must tolerate being called with attempt numbers starting at 1.
type Tracker interface {
	Attempt(handle string, attempt, maxAttempts int)
}

const (
	// DefaultMaxAttempts bounds the number of existence checks per wait.
	DefaultMaxAttempts = 10
	// DefaultDelay is the pause between consecutive checks.
	DefaultDelay = 2 * time.Second
)

// TimeoutError reports that the attempt budget was exhausted with the
// resource still not visible.
type TimeoutError struct {
	Handle   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %d attempts", e.Handle, e.Attempts)
}

// CancelledError reports that the caller aborted the wait early.
type CancelledError struct {
	Handle string
	Err    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("wait for %s cancelled: %v", e.Handle, e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// Waiter polls an existence check with a fixed delay and a hard attempt
// bound. The zero value is not usable; construct with New.
type Waiter struct {
	maxAttempts int
	delay       time.Duration
	sleep       SleepFunc
	tracker     Tracker
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithSleep replaces the sleep implementation. Tests use this to make waits
// deterministic.
func WithSleep(sleep SleepFunc) Option {
	return func(w *Waiter) {
		w.sleep = sleep
	}
}

// WithTracker attaches a progress tracker notified before every check.
func WithTracker(t Tracker) Option {
	return func(w *Waiter) {
		w.tracker = t
	}
}

// New creates a Waiter with the given attempt bound and inter-attempt delay.
// maxAttempts must be positive; delay must be non-negative. A zero delay is a
// legal busy poll.
func New(maxAttempts int, delay time.Duration, opts ...Option) (*Waiter, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	if delay < 0 {
		return nil, fmt.Errorf("delay must be non-negative, got %s", delay)
	}

	w := &Waiter{
		maxAttempts: maxAttempts,
		delay:       delay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Wait invokes check up to the attempt bound, returning nil on the first
// Ready outcome. A check error is permanent and propagates immediately.
// NotReady sleeps the configured delay and retries; no sleep follows the
// final attempt. Exhausting the budget returns a TimeoutError naming the
// handle and attempt count. Context cancellation, observed before each check
// and during sleeps, returns a CancelledError.
func (w *Waiter) Wait(ctx context.Context, handle string, check CheckFunc) error {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CancelledError{Handle: handle, Err: err}
		}

		if w.tracker != nil {
			w.tracker.Attempt(handle, attempt, w.maxAttempts)
		}

		outcome, err := check(ctx, handle)
		if err != nil {
			return err
		}
		if outcome == Ready {
			return nil
		}

		// Sleep between attempts only; the last attempt ends the wait.
		if attempt < w.maxAttempts {
			if err := w.sleep(ctx, w.delay); err != nil {
				return &CancelledError{Handle: handle, Err: err}
			}
		}
	}

	return &TimeoutError{Handle: handle, Attempts: w.maxAttempts}
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
