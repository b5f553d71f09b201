// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/llm"
)

// Policy configures bounded exponential-backoff retry.
type Policy struct {
	// MaxRetries is how many additional attempts follow a failed
	// first attempt: 3 means up to 4 calls total. If zero, a default
	// of 3 is used; negative disables retry entirely.
	MaxRetries int

	// InitialBackoff is the delay before the first retry. Each
	// subsequent delay is scaled by Multiplier. If zero, a default
	// of 1 second is used.
	InitialBackoff time.Duration

	// Multiplier scales the backoff after each retry. If zero, a
	// default of 2 is used.
	Multiplier float64

	// Retryable reports whether an error is worth retrying. Errors
	// it rejects propagate immediately with no further attempts. If
	// nil, [llm.IsRateLimited] is used.
	Retryable func(error) bool

	// OnRetry runs once per retry, before the backoff delay. attempt
	// is the retry ordinal starting at 1. Used to record retries on
	// run metrics.
	OnRetry func(attempt int, err error)

	// Clock supplies the backoff timer. If nil, the real clock is
	// used.
	Clock clock.Clock

	// Logger receives a warning per retry. If nil, logs are
	// discarded.
	Logger *slog.Logger
}

// defaults for zero-valued Policy fields.
const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = time.Second
	defaultMultiplier     = 2.0
)

// withDefaults returns a copy of the policy with zero values filled
// in.
func (policy Policy) withDefaults() Policy {
	if policy.MaxRetries == 0 {
		policy.MaxRetries = defaultMaxRetries
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = defaultInitialBackoff
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = defaultMultiplier
	}
	if policy.Retryable == nil {
		policy.Retryable = llm.IsRateLimited
	}
	if policy.Clock == nil {
		policy.Clock = clock.Real()
	}
	if policy.Logger == nil {
		policy.Logger = slog.New(slog.DiscardHandler)
	}
	return policy
}

// Do invokes call until it succeeds, fails with a non-retryable
// error, or exhausts the policy's retries. Exhaustion propagates the
// last error unchanged. Cancelling ctx during a backoff delay returns
// ctx.Err(); the context is also passed through to every attempt.
func Do[T any](ctx context.Context, policy Policy, operation string, call func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var zero T
	var lastError error
	backoff := policy.InitialBackoff

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastError = err

		if !policy.Retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxRetries {
			break
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}
		policy.Logger.Warn("retrying after transient failure",
			"operation", operation,
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-policy.Clock.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * policy.Multiplier)
	}

	return zero, lastError
}
