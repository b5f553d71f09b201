// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/llm"
	"github.com/parley-foundation/parley/lib/testutil"
)

// immediateClock satisfies clock.Clock with timers that fire at once,
// recording each requested delay. Keeps retry tests synchronous.
type immediateClock struct {
	delays []time.Duration
	events *[]string
}

func (c *immediateClock) Now() time.Time { return time.Unix(0, 0) }

func (c *immediateClock) After(d time.Duration) <-chan time.Time {
	c.delays = append(c.delays, d)
	if c.events != nil {
		*c.events = append(*c.events, "sleep")
	}
	fired := make(chan time.Time, 1)
	fired <- time.Unix(0, 0)
	return fired
}

func rateLimitError() error {
	return &llm.ProviderError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := Do(context.Background(), Policy{Clock: &immediateClock{}}, "test",
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExactlyMaxRetriesPlusOneAttempts(t *testing.T) {
	t.Parallel()

	failure := rateLimitError()
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 3, Clock: &immediateClock{}}, "test",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, failure
		})
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	// The last error propagates unchanged.
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want the original failure", err)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	failure := &llm.ProviderError{StatusCode: 400, Type: "invalid_request_error", Message: "bad"}
	calls := 0
	_, err := Do(context.Background(), Policy{Clock: &immediateClock{}}, "test",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, failure
		})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want the original failure", err)
	}
}

func TestDo_RecoversMidSequence(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := Do(context.Background(), Policy{Clock: &immediateClock{}}, "test",
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", rateLimitError()
			}
			return "recovered", nil
		})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %q, want recovered", result)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_BackoffGrowsExponentially(t *testing.T) {
	t.Parallel()

	fake := &immediateClock{}
	Do(context.Background(), Policy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		Multiplier:     2,
		Clock:          fake,
	}, "test", func(ctx context.Context) (int, error) {
		return 0, rateLimitError()
	})

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(fake.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", fake.delays, want)
	}
	for index, delay := range want {
		if fake.delays[index] != delay {
			t.Errorf("delay %d = %v, want %v", index, fake.delays[index], delay)
		}
	}
}

func TestDo_OnRetryFiresBeforeDelay(t *testing.T) {
	t.Parallel()

	var events []string
	fake := &immediateClock{events: &events}
	Do(context.Background(), Policy{
		MaxRetries: 2,
		Clock:      fake,
		OnRetry: func(attempt int, err error) {
			events = append(events, fmt.Sprintf("retry-%d", attempt))
		},
	}, "test", func(ctx context.Context) (int, error) {
		events = append(events, "call")
		return 0, rateLimitError()
	})

	want := []string{"call", "retry-1", "sleep", "call", "retry-2", "sleep", "call"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for index, event := range want {
		if events[index] != event {
			t.Errorf("event %d = %q, want %q", index, events[index], event)
		}
	}
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, Policy{Clock: fake}, "test",
			func(ctx context.Context) (int, error) {
				return 0, rateLimitError()
			})
		done <- err
	}()

	// The first attempt fails and Do parks in its backoff delay.
	fake.WaitForTimers(1)
	cancel()

	err := testutil.RequireReceive(t, done, 5*time.Second, "Do should return after cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDo_NegativeMaxRetriesDisablesRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	Do(context.Background(), Policy{MaxRetries: -1, Clock: &immediateClock{}}, "test",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, rateLimitError()
		})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
