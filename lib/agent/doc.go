// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent drives conversational agent runs: a bounded loop of
// model calls and tool invocations that ends with a terminal answer.
//
// [Engine] is the orchestrator. Each [Engine.Run] executes one
// conversation turn. Per iteration it trims the history to the
// model's context budget, calls the model through the retry policy,
// appends the assistant response, and either finishes (no tool calls)
// or executes the requested tools sequentially and loops. Renderer
// events flow to an injected [Renderer] handle throughout; per-run
// metrics accumulate on a [RunTracker] and flush once to an optional
// [MetricsSink] when the run ends.
//
// Streaming is cooperative: when a run streams, a coordinator
// goroutine consumes the provider's event stream and forwards
// sequence-numbered chunks to the renderer while the engine waits for
// the final response or a timeout. Any streaming failure — creation,
// mid-stream, or timeout — cancels the stream and falls back to a
// non-streaming completion for that iteration. The caller sees an
// identical result, modulo latency.
//
// Failure policy: tool handler errors and malformed tool arguments
// become error results the model can read and recover from. Only
// genuinely unrecoverable conditions fail a run — an unknown
// provider, a non-retryable provider error, a rate limit that
// survives every retry, or a tool call naming a tool that does not
// exist.
package agent
