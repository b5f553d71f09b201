// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"io"
	"strings"
	"sync"
)

// EventType discriminates provider stream events.
type EventType string

const (
	// EventMessageStart opens a streamed response. Carries the model.
	EventMessageStart EventType = "message_start"

	// EventThinkingStart opens a reasoning block.
	EventThinkingStart EventType = "thinking_start"

	// EventThinkingDelta carries a fragment of reasoning text.
	EventThinkingDelta EventType = "thinking_delta"

	// EventThinkingDone closes a reasoning block.
	EventThinkingDone EventType = "thinking_done"

	// EventTextStart opens the response text.
	EventTextStart EventType = "text_start"

	// EventTextDelta carries a fragment of response text.
	EventTextDelta EventType = "text_delta"

	// EventToolCall announces one fully assembled tool call. Providers
	// that stream tool call arguments as partial JSON emit this only
	// after assembly completes.
	EventToolCall EventType = "tool_call"

	// EventMessageDone closes the streamed response. StopReason and
	// Usage are set on the accumulated Response by this point.
	EventMessageDone EventType = "message_done"
)

// StreamEvent is one event from a provider response stream. The Type
// field says which of the other fields are meaningful.
type StreamEvent struct {
	Type EventType

	// Model is set on EventMessageStart.
	Model string

	// Delta is the text fragment on EventTextDelta and
	// EventThinkingDelta.
	Delta string

	// ToolCall is set on EventToolCall.
	ToolCall *ToolCall
}

// nextFunc is the iteration function for an EventStream. Returns
// io.EOF when the stream is complete.
type nextFunc func() (StreamEvent, error)

// EventStream reads streaming events from an LLM response. It yields
// [StreamEvent] values via [EventStream.Next] while accumulating the
// complete [Response] internally: text deltas are concatenated, tool
// calls collected, model/usage/stop reason recorded. After Next
// returns [io.EOF], call [EventStream.Response] for the result.
//
// Next is not safe for concurrent use; the accumulated response is
// guarded so Response may be called from another goroutine.
type EventStream struct {
	next   nextFunc
	closer io.Closer

	mutex    sync.Mutex
	response Response
	text     strings.Builder
	done     bool
}

// NewEventStream creates an EventStream from a provider-specific
// iteration function and an optional io.Closer for the underlying
// resource (typically an HTTP response body).
//
// The next function must return (event, nil) for each event and
// (zero, io.EOF) when the stream is complete. The EventStream handles
// accumulation of the complete Response from the events.
func NewEventStream(next func() (StreamEvent, error), closer io.Closer) *EventStream {
	return &EventStream{
		next:   next,
		closer: closer,
	}
}

// Next returns the next event from the stream. Returns io.EOF when
// the stream is complete. After io.EOF, call [EventStream.Response]
// to get the accumulated result.
//
// The caller should process events in a loop:
//
//	for {
//	    event, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // process event
//	}
//	response := stream.Response()
func (stream *EventStream) Next() (StreamEvent, error) {
	if stream.done {
		return StreamEvent{}, io.EOF
	}

	event, err := stream.next()
	if err != nil {
		if err == io.EOF {
			stream.done = true
		}
		return event, err
	}

	stream.accumulate(event)
	return event, nil
}

// Response returns the accumulated complete response. Only valid
// after [EventStream.Next] has returned [io.EOF]. Calling Response
// before the stream is complete returns whatever has been accumulated
// so far.
func (stream *EventStream) Response() Response {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	response := stream.response
	response.Content = stream.text.String()
	return response
}

// Close releases the underlying resources. Must be called when done
// with the stream, even if iteration ended early due to an error or
// cancellation.
func (stream *EventStream) Close() error {
	if stream.closer != nil {
		return stream.closer.Close()
	}
	return nil
}

// accumulate updates the internal Response from a stream event.
func (stream *EventStream) accumulate(event StreamEvent) {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()

	switch event.Type {
	case EventMessageStart:
		stream.response.Model = event.Model
	case EventTextDelta:
		stream.text.WriteString(event.Delta)
	case EventToolCall:
		if event.ToolCall != nil {
			stream.response.ToolCalls = append(stream.response.ToolCalls, *event.ToolCall)
		}
	}
}

// SetStopReason sets the stop reason on the accumulated response.
// Called by provider implementations during stream parsing.
func (stream *EventStream) SetStopReason(reason StopReason) {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	stream.response.StopReason = reason
}

// SetUsage sets the usage statistics on the accumulated response.
// Called by provider implementations during stream parsing.
func (stream *EventStream) SetUsage(usage Usage) {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	stream.response.Usage = usage
}

// SetModel sets the model name on the accumulated response. Providers
// that do not emit EventMessageStart call this directly.
func (stream *EventStream) SetModel(model string) {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	stream.response.Model = model
}
