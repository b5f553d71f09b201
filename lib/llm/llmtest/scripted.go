// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llmtest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/parley-foundation/parley/lib/llm"
)

// Step describes one provider call in a script.
type Step struct {
	// Response is delivered as the call's result. Stream calls replay
	// it as synthesized events (message start, one text delta, one
	// event per tool call, message done).
	Response *llm.Response

	// Err fails the call. Complete returns (nil, Err). Stream fails
	// creation when FailAfter is zero; with FailAfter > 0 the stream
	// yields that many events first and then Err surfaces from Next.
	Err error

	// Events, when non-nil, are streamed verbatim instead of events
	// synthesized from Response. Response still supplies the
	// accumulated model, usage, and stop reason. Complete calls
	// ignore Events.
	Events []llm.StreamEvent

	// FailAfter bounds how many events a failing stream yields before
	// Err. Only meaningful alongside Err.
	FailAfter int

	// Hang blocks the call until its context is canceled. Complete
	// returns ctx.Err(); a Stream call returns a stream whose Next
	// blocks the same way.
	Hang bool
}

// ScriptedProvider implements [llm.Provider] by replaying a script of
// [Step] values. Steps are consumed one per call across Complete and
// Stream; after the script is exhausted, the last step repeats.
//
// Safe for concurrent use.
type ScriptedProvider struct {
	mutex    sync.Mutex
	steps    []Step
	index    int
	requests []llm.Request

	completeCalls int
	streamCalls   int
}

// NewScripted creates a provider that replays the given steps.
func NewScripted(steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{steps: steps}
}

// Complete replays the next step as a non-streaming completion.
func (provider *ScriptedProvider) Complete(ctx context.Context, request llm.Request) (*llm.Response, error) {
	provider.mutex.Lock()
	provider.completeCalls++
	provider.requests = append(provider.requests, request)
	step, err := provider.nextStepLocked()
	provider.mutex.Unlock()
	if err != nil {
		return nil, err
	}

	if step.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Response == nil {
		return nil, fmt.Errorf("llmtest: step has no response for Complete")
	}
	response := *step.Response
	return &response, nil
}

// Stream replays the next step as a streaming completion.
func (provider *ScriptedProvider) Stream(ctx context.Context, request llm.Request) (*llm.EventStream, error) {
	provider.mutex.Lock()
	provider.streamCalls++
	provider.requests = append(provider.requests, request)
	step, err := provider.nextStepLocked()
	provider.mutex.Unlock()
	if err != nil {
		return nil, err
	}

	if step.Hang {
		stream := llm.NewEventStream(func() (llm.StreamEvent, error) {
			<-ctx.Done()
			return llm.StreamEvent{}, ctx.Err()
		}, nil)
		return stream, nil
	}
	if step.Err != nil && step.FailAfter == 0 {
		return nil, step.Err
	}

	events := step.Events
	if events == nil && step.Response != nil {
		events = synthesizeEvents(step.Response)
	}
	limit := len(events)
	if step.Err != nil && step.FailAfter < limit {
		limit = step.FailAfter
	}

	index := 0
	stream := llm.NewEventStream(func() (llm.StreamEvent, error) {
		if index >= limit {
			if step.Err != nil {
				return llm.StreamEvent{}, step.Err
			}
			return llm.StreamEvent{}, io.EOF
		}
		event := events[index]
		index++
		return event, nil
	}, nil)

	if step.Response != nil {
		stream.SetModel(step.Response.Model)
		stream.SetUsage(step.Response.Usage)
		stream.SetStopReason(step.Response.StopReason)
	}
	return stream, nil
}

// Requests returns a copy of every request seen so far, in call order.
func (provider *ScriptedProvider) Requests() []llm.Request {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	requests := make([]llm.Request, len(provider.requests))
	copy(requests, provider.requests)
	return requests
}

// CompleteCalls returns how many times Complete was called.
func (provider *ScriptedProvider) CompleteCalls() int {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return provider.completeCalls
}

// StreamCalls returns how many times Stream was called.
func (provider *ScriptedProvider) StreamCalls() int {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return provider.streamCalls
}

// nextStepLocked consumes the next scripted step. After the script is
// exhausted the last step repeats.
func (provider *ScriptedProvider) nextStepLocked() (Step, error) {
	if len(provider.steps) == 0 {
		return Step{}, fmt.Errorf("llmtest: scripted provider has no steps")
	}
	if provider.index < len(provider.steps) {
		step := provider.steps[provider.index]
		provider.index++
		return step, nil
	}
	return provider.steps[len(provider.steps)-1], nil
}

// synthesizeEvents builds the event sequence that reproduces a
// complete response over a stream.
func synthesizeEvents(response *llm.Response) []llm.StreamEvent {
	events := []llm.StreamEvent{{Type: llm.EventMessageStart, Model: response.Model}}
	if response.Content != "" {
		events = append(events,
			llm.StreamEvent{Type: llm.EventTextStart},
			llm.StreamEvent{Type: llm.EventTextDelta, Delta: response.Content},
		)
	}
	for index := range response.ToolCalls {
		call := response.ToolCalls[index]
		events = append(events, llm.StreamEvent{Type: llm.EventToolCall, ToolCall: &call})
	}
	return append(events, llm.StreamEvent{Type: llm.EventMessageDone})
}

// TextResponse builds a terminal text response for scripts.
func TextResponse(content string) *llm.Response {
	return &llm.Response{
		Content:    content,
		Model:      "scripted-model",
		StopReason: llm.StopEndTurn,
	}
}

// ToolCallResponse builds a response that requests the given tool
// calls alongside optional preamble text.
func ToolCallResponse(content string, calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{
		Content:    content,
		ToolCalls:  calls,
		Model:      "scripted-model",
		StopReason: llm.StopToolUse,
	}
}

// Call builds a tool call for scripts.
func Call(id, name, arguments string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Function: llm.FunctionCall{Name: name, Arguments: arguments},
	}
}
