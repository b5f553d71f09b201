// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/llm"
)

// EventType classifies renderer events.
type EventType string

const (
	// EventStreamStart opens a streaming model response.
	EventStreamStart EventType = "stream_start"

	// EventThinkingStart opens a reasoning block.
	EventThinkingStart EventType = "thinking_start"

	// EventThinkingChunk carries accumulated reasoning text.
	EventThinkingChunk EventType = "thinking_chunk"

	// EventThinkingComplete closes a reasoning block.
	EventThinkingComplete EventType = "thinking_complete"

	// EventTextStart opens the response text.
	EventTextStart EventType = "text_start"

	// EventTextChunk carries a text delta plus the accumulated text.
	EventTextChunk EventType = "text_chunk"

	// EventToolCall announces a tool call seen mid-stream.
	EventToolCall EventType = "tool_call"

	// EventToolExecutionStart fires before a tool handler runs.
	EventToolExecutionStart EventType = "tool_execution_start"

	// EventToolExecutionComplete fires after a tool handler returns.
	EventToolExecutionComplete EventType = "tool_execution_complete"

	// EventError reports a failure. Recoverable errors are followed
	// by a fallback; unrecoverable ones end the run.
	EventError EventType = "error"

	// EventComplete closes a run. Fires exactly once per run, on
	// success and on iteration exhaustion, but not on a fatal error.
	EventComplete EventType = "complete"
)

// Event is one notification from the engine to a renderer. Each event
// has a timestamp, a type, and type-specific data in the matching
// pointer field. Events serialize as JSONL for session logs.
type Event struct {
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies the event.
	Type EventType `json:"type"`

	// StreamStart is set for EventStreamStart events.
	StreamStart *StreamStartEvent `json:"stream_start,omitempty"`

	// ThinkingChunk is set for EventThinkingChunk events.
	ThinkingChunk *ThinkingChunkEvent `json:"thinking_chunk,omitempty"`

	// TextChunk is set for EventTextChunk events.
	TextChunk *TextChunkEvent `json:"text_chunk,omitempty"`

	// ToolCall is set for EventToolCall events.
	ToolCall *ToolCallEvent `json:"tool_call,omitempty"`

	// ToolExecutionStart is set for EventToolExecutionStart events.
	ToolExecutionStart *ToolExecutionStartEvent `json:"tool_execution_start,omitempty"`

	// ToolExecutionComplete is set for EventToolExecutionComplete
	// events.
	ToolExecutionComplete *ToolExecutionCompleteEvent `json:"tool_execution_complete,omitempty"`

	// Error is set for EventError events.
	Error *ErrorEvent `json:"error,omitempty"`

	// Complete is set for EventComplete events.
	Complete *CompleteEvent `json:"complete,omitempty"`
}

// StreamStartEvent records the start of a streaming response.
type StreamStartEvent struct {
	// Provider is the provider name the run resolved.
	Provider string `json:"provider"`

	// Model is the model identifier being streamed from.
	Model string `json:"model"`
}

// ThinkingChunkEvent carries reasoning text. Content is the full
// reasoning text accumulated so far, not a delta, so a consumer can
// recover from dropped or reordered chunks by keeping the content of
// the highest sequence seen.
type ThinkingChunkEvent struct {
	Content  string `json:"content"`
	Sequence int    `json:"sequence"`
}

// TextChunkEvent carries response text. Accumulated is the full text
// to date; Delta is just this chunk's addition. Sequence numbers are
// per-kind and start at 1.
type TextChunkEvent struct {
	Delta       string `json:"delta"`
	Accumulated string `json:"accumulated"`
	Sequence    int    `json:"sequence"`
}

// ToolCallEvent announces one tool call seen mid-stream.
type ToolCallEvent struct {
	ToolCall llm.ToolCall `json:"tool_call"`
}

// ToolExecutionStartEvent records a tool handler about to run.
type ToolExecutionStartEvent struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`

	// Arguments is the raw serialized arguments string, included so
	// renderers can show what the tool was asked to do.
	Arguments string `json:"arguments,omitempty"`

	// LongRunning signals renderers to show progress affordances.
	LongRunning bool `json:"long_running,omitempty"`
}

// ToolExecutionCompleteEvent records a finished tool execution. The
// Result is the tool message content — for failed executions that is
// the "Error: ..." text the model sees.
type ToolExecutionCompleteEvent struct {
	ToolCallID     string `json:"tool_call_id"`
	Result         string `json:"result"`
	DurationMillis int64  `json:"duration_ms"`
}

// ErrorEvent records a failure.
type ErrorEvent struct {
	// Message describes the failure.
	Message string `json:"error"`

	// Recoverable is true when the engine continues the run (e.g., a
	// streaming failure about to fall back to non-streaming).
	Recoverable bool `json:"recoverable"`
}

// CompleteEvent closes a run.
type CompleteEvent struct {
	// Response is the final answer text.
	Response string `json:"response"`

	// TotalDurationMillis is the wall-clock run duration.
	TotalDurationMillis int64 `json:"total_duration_ms"`

	// Metrics is the finalized run telemetry.
	Metrics *RunMetrics `json:"metrics,omitempty"`
}

// Renderer receives engine events. Implementations render to a
// terminal, write session logs, or discard. Calls are fire-and-forget
// from the engine's perspective — a renderer must never affect
// control flow, and should return quickly since stream consumption
// waits on it.
type Renderer interface {
	HandleEvent(event Event)
}

// NopRenderer discards all events.
type NopRenderer struct{}

// HandleEvent drops the event.
func (NopRenderer) HandleEvent(Event) {}

// emit forwards an event to the renderer with the timestamp filled
// in.
func emit(renderer Renderer, c clock.Clock, event Event) {
	if renderer == nil {
		return
	}
	event.Timestamp = c.Now()
	renderer.HandleEvent(event)
}

// TextAssembler reconstructs streamed text from chunk events whose
// delivery order is not guaranteed. Every chunk carries the full
// accumulated text plus a sequence number; the assembler keeps the
// text of the highest sequence seen, so late or reordered chunks
// never regress the result.
type TextAssembler struct {
	highestSequence int
	text            string
}

// Apply folds in one chunk. Chunks with a sequence at or below the
// highest already applied are discarded.
func (assembler *TextAssembler) Apply(sequence int, accumulated string) {
	if sequence <= assembler.highestSequence {
		return
	}
	assembler.highestSequence = sequence
	assembler.text = accumulated
}

// Text returns the assembled text so far.
func (assembler *TextAssembler) Text() string {
	return assembler.text
}
