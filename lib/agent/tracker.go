// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"time"
)

// RunMetrics is the telemetry record for one completed run.
type RunMetrics struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Agent is the agent descriptor name.
	Agent string `json:"agent"`

	// Model is the model the run used.
	Model string `json:"model"`

	// Iterations is how many model requests the run made.
	Iterations int `json:"iterations"`

	// InputTokens and OutputTokens sum reported usage across all
	// iterations.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// RetryCount is how many transient failures were retried.
	RetryCount int `json:"retry_count"`

	// ToolInvocations counts executed tool calls; ToolErrors counts
	// the subset that produced error results.
	ToolInvocations int `json:"tool_invocations"`
	ToolErrors      int `json:"tool_errors"`

	// Finished is true when the run ended with a terminal answer
	// rather than hitting the iteration limit or a fatal error.
	Finished bool `json:"finished"`

	// WasStreamed is true when at least one iteration streamed.
	WasStreamed bool `json:"was_streamed"`

	// StartedAt and CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration is the wall-clock run time.
func (metrics RunMetrics) Duration() time.Duration {
	return metrics.CompletedAt.Sub(metrics.StartedAt)
}

// MetricsSink receives finalized run metrics. Sink failures are
// logged and never fail the run.
type MetricsSink interface {
	RecordRun(ctx context.Context, metrics RunMetrics) error
}

// RunTracker accumulates metrics over one run. It is owned by the
// run goroutine and is not safe for concurrent use.
type RunTracker struct {
	metrics RunMetrics
}

// NewRunTracker starts tracking a run.
func NewRunTracker(runID, agent, model string, startedAt time.Time) *RunTracker {
	return &RunTracker{metrics: RunMetrics{
		RunID:     runID,
		Agent:     agent,
		Model:     model,
		StartedAt: startedAt,
	}}
}

// RecordIteration counts one model request.
func (tracker *RunTracker) RecordIteration() {
	tracker.metrics.Iterations++
}

// RecordUsage adds one response's token usage.
func (tracker *RunTracker) RecordUsage(inputTokens, outputTokens int) {
	tracker.metrics.InputTokens += inputTokens
	tracker.metrics.OutputTokens += outputTokens
}

// RecordRetry counts one retried transient failure.
func (tracker *RunTracker) RecordRetry() {
	tracker.metrics.RetryCount++
}

// RecordToolInvocation counts one tool handler execution.
func (tracker *RunTracker) RecordToolInvocation() {
	tracker.metrics.ToolInvocations++
}

// RecordToolError counts one failed tool execution.
func (tracker *RunTracker) RecordToolError() {
	tracker.metrics.ToolErrors++
}

// RecordStreamed marks that at least one iteration streamed. The
// mark survives a later fallback to non-streaming.
func (tracker *RunTracker) RecordStreamed() {
	tracker.metrics.WasStreamed = true
}

// Finalize stamps the outcome and returns the completed record.
// Call it exactly once, at the end of the run.
func (tracker *RunTracker) Finalize(finished bool, completedAt time.Time) RunMetrics {
	tracker.metrics.Finished = finished
	tracker.metrics.CompletedAt = completedAt
	return tracker.metrics
}

// Snapshot returns the metrics accumulated so far.
func (tracker *RunTracker) Snapshot() RunMetrics {
	return tracker.metrics
}
