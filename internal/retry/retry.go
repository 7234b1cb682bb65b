// Package retry wraps operations with bounded, exponentially backed-off
// retries.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy bounds how an operation is retried. The zero value runs the
// operation once.
type Policy struct {
	// Tries is the total number of attempts, including the first.
	Tries int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Backoff multiplies the delay after every failed attempt.
	Backoff float64
	// Retryable selects which errors are retried. Nil retries every error.
	Retryable func(error) bool
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three attempts waiting 2s then 4s.
func DefaultPolicy() Policy {
	return Policy{Tries: 3, Delay: 2 * time.Second, Backoff: 2}
}

// Delays returns the waits a fully failing operation goes through.
func (p Policy) Delays() []time.Duration {
	var out []time.Duration
	d := p.Delay
	for i := 1; i < p.tries(); i++ {
		out = append(out, d)
		d = time.Duration(float64(d) * p.backoff())
	}
	return out
}

func (p Policy) tries() int {
	if p.Tries < 1 {
		return 1
	}
	return p.Tries
}

func (p Policy) backoff() float64 {
	if p.Backoff <= 0 {
		return 1
	}
	return p.Backoff
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wrap returns op guarded by p. name identifies the operation in the warning
// logged before each wait. Errors outside the retryable set are returned at
// once; after the last attempt its error is returned unchanged. If ctx ends
// during a wait, ctx.Err() is returned.
func Wrap[T any](name string, p Policy, logger *slog.Logger, op func(context.Context) (T, error)) func(context.Context) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) (T, error) {
		tries := p.tries()
		delay := p.Delay
		for attempt := 1; ; attempt++ {
			v, err := op(ctx)
			if err == nil {
				return v, nil
			}
			if attempt >= tries || !p.retryable(err) {
				return v, err
			}
			logger.Warn("operation failed, retrying",
				"op", name,
				"error", err,
				"tries_left", tries-attempt,
				"next_delay", delay,
			)
			if serr := p.sleep(ctx, delay); serr != nil {
				var zero T
				return zero, serr
			}
			delay = time.Duration(float64(delay) * p.backoff())
		}
	}
}

// Do runs op under p and returns its final error.
func Do(ctx context.Context, name string, p Policy, logger *slog.Logger, op func(context.Context) error) error {
	_, err := Wrap(name, p, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})(ctx)
	return err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as never retryable, whatever the policy says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries a Permanent mark.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// On returns a Retryable predicate that matches any of targets.
func On(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}
