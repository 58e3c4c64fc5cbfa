// Package retry wraps provider calls with bounded, rate-limit aware
// exponential backoff. Only errors classified as rate limited or unavailable
// are retried; everything else fails on the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/observability"
)

var (
	// ErrRateLimited marks HTTP 429 / quota-exhausted responses.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrUnavailable marks network failures and 5xx responses.
	ErrUnavailable = errors.New("provider unavailable")
)

// Error classifies a provider failure. After carries the server's retry hint
// when one was sent.
type Error struct {
	Kind  error
	After time.Duration
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the classification and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RateLimited wraps err as a rate-limit failure with an optional hint.
func RateLimited(err error, after time.Duration) error {
	return &Error{Kind: ErrRateLimited, After: after, Err: err}
}

// Unavailable wraps err as a transient provider failure.
func Unavailable(err error) error {
	return &Error{Kind: ErrUnavailable, Err: err}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// FromHTTP classifies a response status. status 0 means the request never got
// a response (transport error). Non-retryable statuses keep err as is.
func FromHTTP(status int, retryAfter string, err error) error {
	if err == nil && status >= 400 {
		err = fmt.Errorf("http %d", status)
	}
	switch {
	case status == 0 && err != nil:
		return Unavailable(err)
	case status == http.StatusTooManyRequests:
		return RateLimited(err, ParseRetryAfter(retryAfter, time.Now()))
	case status == http.StatusRequestTimeout || status >= 500:
		return Unavailable(err)
	default:
		return err
	}
}

// ParseRetryAfter reads a Retry-After header (seconds or HTTP date).
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy waits 10s, 20s, 40s between four attempts. Provider quotas
// reset per minute, so shorter waits only burn attempts.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, InitialDelay: 10 * time.Second, MaxDelay: 60 * time.Second, Multiplier: 2}
}

// PolicyFrom builds a Policy from configuration.
func PolicyFrom(c config.RetryConfig) Policy {
	return Policy{MaxAttempts: c.MaxAttempts, InitialDelay: c.InitialDelay, MaxDelay: c.MaxDelay, Multiplier: c.Multiplier}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}

// Do runs fn until it succeeds, fails permanently, the attempt budget is
// spent or ctx is done. op names the call in logs and metrics. The error of
// the last attempt is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var lastErr error
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		var re *Error
		if errors.As(err, &re) && re.After > 0 {
			wait := re.After
			if p.MaxDelay > 0 && wait > p.MaxDelay {
				wait = p.MaxDelay
			}
			return v, &backoff.RetryAfterError{Duration: wait}
		}
		return v, err
	}
	notify := func(_ error, wait time.Duration) {
		reason := "unavailable"
		if errors.Is(lastErr, ErrRateLimited) {
			reason = "rate_limited"
		}
		observability.ProviderRetries.WithLabelValues(op, reason).Inc()
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("wait", wait).
			Err(lastErr).
			Msg("provider call failed, retrying")
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, ctx.Err()
	}
	if lastErr != nil {
		return v, lastErr
	}
	return v, err
}
