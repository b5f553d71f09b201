// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package runstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/parley-foundation/parley/lib/agent"
	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/runstore"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 500_000_000, time.UTC)

// sampleMetrics builds a finished run record starting at the given
// time.
func sampleMetrics(runID, agentName string, started time.Time) agent.RunMetrics {
	return agent.RunMetrics{
		RunID:           runID,
		Agent:           agentName,
		Model:           "claude-sonnet-4-5",
		Iterations:      3,
		InputTokens:     1200,
		OutputTokens:    340,
		RetryCount:      1,
		ToolInvocations: 2,
		ToolErrors:      1,
		Finished:        true,
		WasStreamed:     true,
		StartedAt:       started,
		CompletedAt:     started.Add(8 * time.Second),
	}
}

func openTestStore(t *testing.T, storeClock clock.Clock) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(runstore.Config{
		Path:  filepath.Join(t.TempDir(), "runs.db"),
		Clock: storeClock,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestRecordAndFetchRun(t *testing.T) {
	t.Parallel()
	store := openTestStore(t, nil)
	ctx := context.Background()

	want := sampleMetrics("run-1", "researcher", baseTime)
	if err := store.RecordRun(ctx, want); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := store.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Agent != want.Agent || got.Model != want.Model {
		t.Errorf("identity = %s/%s, want %s/%s", got.Agent, got.Model, want.Agent, want.Model)
	}
	if got.Iterations != want.Iterations {
		t.Errorf("Iterations = %d, want %d", got.Iterations, want.Iterations)
	}
	if got.InputTokens != want.InputTokens || got.OutputTokens != want.OutputTokens {
		t.Errorf("tokens = %d/%d, want %d/%d",
			got.InputTokens, got.OutputTokens, want.InputTokens, want.OutputTokens)
	}
	if got.RetryCount != want.RetryCount {
		t.Errorf("RetryCount = %d, want %d", got.RetryCount, want.RetryCount)
	}
	if got.ToolInvocations != want.ToolInvocations || got.ToolErrors != want.ToolErrors {
		t.Errorf("tools = %d/%d, want %d/%d",
			got.ToolInvocations, got.ToolErrors, want.ToolInvocations, want.ToolErrors)
	}
	if !got.Finished || !got.WasStreamed {
		t.Errorf("flags = finished %v streamed %v, want both true", got.Finished, got.WasStreamed)
	}

	// Timestamps round-trip through the CBOR blob at full precision.
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, want.StartedAt)
	}
	if !got.CompletedAt.Equal(want.CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, want.CompletedAt)
	}
	if got.Duration() != 8*time.Second {
		t.Errorf("Duration = %v, want 8s", got.Duration())
	}
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()
	store := openTestStore(t, nil)

	_, err := store.Run(context.Background(), "no-such-run")
	if !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("Run error = %v, want ErrNotFound", err)
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	t.Parallel()
	store := openTestStore(t, nil)
	ctx := context.Background()

	// Insert out of chronological order so ordering must come from
	// the started_at column, not insertion order.
	for _, offset := range []time.Duration{time.Hour, 3 * time.Hour, 2 * time.Hour} {
		metrics := sampleMetrics("run-"+offset.String(), "researcher", baseTime.Add(offset))
		if err := store.RecordRun(ctx, metrics); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := store.RecentRuns(ctx, runstore.Filter{})
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Errorf("runs[%d] started %v after runs[%d] %v",
				i, runs[i].StartedAt, i-1, runs[i-1].StartedAt)
		}
	}

	limited, err := store.RecentRuns(ctx, runstore.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("RecentRuns limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d runs with Limit 2, want 2", len(limited))
	}
	if !limited[0].StartedAt.Equal(baseTime.Add(3 * time.Hour)) {
		t.Errorf("newest run started %v, want %v", limited[0].StartedAt, baseTime.Add(3*time.Hour))
	}
}

func TestRecentRunsFilters(t *testing.T) {
	t.Parallel()
	store := openTestStore(t, nil)
	ctx := context.Background()

	first := sampleMetrics("run-1", "researcher", baseTime)
	second := sampleMetrics("run-2", "planner", baseTime.Add(time.Hour))
	third := sampleMetrics("run-3", "researcher", baseTime.Add(2*time.Hour))
	third.Finished = false
	for _, metrics := range []agent.RunMetrics{first, second, third} {
		if err := store.RecordRun(ctx, metrics); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	t.Run("by agent", func(t *testing.T) {
		runs, err := store.RecentRuns(ctx, runstore.Filter{Agent: "planner"})
		if err != nil {
			t.Fatalf("RecentRuns: %v", err)
		}
		if len(runs) != 1 || runs[0].RunID != "run-2" {
			t.Errorf("got %+v, want just run-2", runs)
		}
	})

	t.Run("finished only", func(t *testing.T) {
		runs, err := store.RecentRuns(ctx, runstore.Filter{FinishedOnly: true})
		if err != nil {
			t.Fatalf("RecentRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("got %d finished runs, want 2", len(runs))
		}
		for _, run := range runs {
			if !run.Finished {
				t.Errorf("run %s not finished", run.RunID)
			}
		}
	})

	t.Run("since", func(t *testing.T) {
		runs, err := store.RecentRuns(ctx, runstore.Filter{Since: baseTime.Add(30 * time.Minute)})
		if err != nil {
			t.Fatalf("RecentRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("got %d runs since cutoff, want 2", len(runs))
		}
	})
}

func TestRecordRunReplacesExisting(t *testing.T) {
	t.Parallel()
	store := openTestStore(t, nil)
	ctx := context.Background()

	metrics := sampleMetrics("run-1", "researcher", baseTime)
	if err := store.RecordRun(ctx, metrics); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	metrics.Iterations = 9
	if err := store.RecordRun(ctx, metrics); err != nil {
		t.Fatalf("RecordRun again: %v", err)
	}

	runs, err := store.RecentRuns(ctx, runstore.Filter{})
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d rows after re-record, want 1", len(runs))
	}
	if runs[0].Iterations != 9 {
		t.Errorf("Iterations = %d, want 9", runs[0].Iterations)
	}
}

func TestTotalsAggregatesPerAgent(t *testing.T) {
	t.Parallel()
	store := openTestStore(t, nil)
	ctx := context.Background()

	first := sampleMetrics("run-1", "researcher", baseTime)
	second := sampleMetrics("run-2", "researcher", baseTime.Add(time.Hour))
	second.Finished = false
	second.InputTokens = 800
	third := sampleMetrics("run-3", "planner", baseTime.Add(2*time.Hour))
	for _, metrics := range []agent.RunMetrics{first, second, third} {
		if err := store.RecordRun(ctx, metrics); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d agents, want 2", len(totals))
	}

	// Busiest agent first.
	researcher := totals[0]
	if researcher.Agent != "researcher" {
		t.Fatalf("totals[0].Agent = %q, want researcher", researcher.Agent)
	}
	if researcher.Runs != 2 || researcher.Finished != 1 {
		t.Errorf("researcher runs/finished = %d/%d, want 2/1", researcher.Runs, researcher.Finished)
	}
	if researcher.InputTokens != 2000 {
		t.Errorf("researcher InputTokens = %d, want 2000", researcher.InputTokens)
	}
	if researcher.ToolInvocations != 4 || researcher.ToolErrors != 2 {
		t.Errorf("researcher tools = %d/%d, want 4/2",
			researcher.ToolInvocations, researcher.ToolErrors)
	}

	planner := totals[1]
	if planner.Agent != "planner" || planner.Runs != 1 {
		t.Errorf("totals[1] = %+v, want planner with 1 run", planner)
	}
}

func TestPruneDeletesOldRuns(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(baseTime)
	store := openTestStore(t, fake)
	ctx := context.Background()

	old := sampleMetrics("run-old", "researcher", baseTime.Add(-72*time.Hour))
	recent := sampleMetrics("run-recent", "researcher", baseTime.Add(-time.Hour))
	for _, metrics := range []agent.RunMetrics{old, recent} {
		if err := store.RecordRun(ctx, metrics); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	deleted, err := store.Prune(ctx, 48*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	runs, err := store.RecentRuns(ctx, runstore.Filter{})
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-recent" {
		t.Errorf("remaining runs = %+v, want just run-recent", runs)
	}

	// A second prune with nothing expired deletes nothing.
	deleted, err = store.Prune(ctx, 48*time.Hour)
	if err != nil {
		t.Fatalf("second Prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second prune deleted = %d, want 0", deleted)
	}
}
