package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Kind classifies an external-call failure for retry decisions.
type Kind int

const (
	// Transient covers timeouts, connection resets and 5xx responses.
	Transient Kind = iota
	// RateLimited covers 429/quota signals; retried after the carried delay
	// or immediately once the key rotator supplies a fresh credential.
	RateLimited
	// Permanent covers validation, auth and malformed-input failures.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case Permanent:
		return "permanent"
	}
	return "unknown"
}

// ErrExhausted is returned when every attempt of a call has been consumed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Error tags an underlying failure with its classification. RetryAfter is
// only meaningful for RateLimited errors and may be zero.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsTransient wraps err as a Transient failure.
func AsTransient(err error) error { return &Error{Kind: Transient, Err: err} }

// AsPermanent wraps err as a Permanent failure.
func AsPermanent(err error) error { return &Error{Kind: Permanent, Err: err} }

// AsRateLimited wraps err as a RateLimited failure carrying the suggested wait.
func AsRateLimited(err error, after time.Duration) error {
	return &Error{Kind: RateLimited, RetryAfter: after, Err: err}
}

// Classify returns the Kind for err. Tagged errors keep their kind; untagged
// errors fall back to message heuristics so raw collaborator failures still
// land in a sensible bucket.
func Classify(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "quota", "rate limit", "ratelimit", "too many requests", "429", "resource exhausted"):
		return RateLimited
	case containsAny(msg, "invalid key", "unauthorized", "not authorized", "forbidden", "401", "403", "bad request", "400"):
		return Permanent
	case containsAny(msg, "timeout", "timed out", "connection", "network", "temporarily", "500", "502", "503", "504", "server error"):
		return Transient
	}
	return Transient
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// retryAfter extracts the carried wait hint, zero when absent.
func retryAfter(err error) time.Duration {
	var re *Error
	if errors.As(err, &re) {
		return re.RetryAfter
	}
	return 0
}

// Policy drives repeated attempts of one external call. Attempts sharing a
// policy run share the same logical fingerprint upstream, so a late success
// still lands in the right cache slot.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the backoff used across the stages: 1s base doubling
// per attempt, capped at a minute.
func DefaultPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Second, MaxDelay: time.Minute}
}

// Execute runs fn until it succeeds, fails permanently, or the attempt budget
// is consumed. Sleeps honor ctx cancellation.
func (p Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		switch Classify(lastErr) {
		case Permanent:
			return lastErr
		case RateLimited:
			if attempt == attempts-1 {
				break
			}
			wait := retryAfter(lastErr)
			if wait <= 0 {
				wait = p.backoff(attempt)
			}
			if wait > p.maxDelay() {
				wait = p.maxDelay()
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		default: // Transient
			if attempt == attempts-1 {
				break
			}
			if err := sleep(ctx, p.backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// backoff returns the delay before the next attempt: base doubling per
// attempt with up to 25% jitter, capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(attempt)
	if max := p.maxDelay(); d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return time.Minute
	}
	return p.MaxDelay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
