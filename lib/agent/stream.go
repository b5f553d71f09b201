// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/llm"
	"github.com/parley-foundation/parley/lib/retry"
)

// streamCoordinator owns one streaming model request: it establishes
// the stream, forks a consumer goroutine that forwards events to the
// renderer, and races the consumer against the stream timeout. On
// any failure it cancels the in-flight stream and returns an error;
// the engine then falls back to a non-streaming completion for the
// iteration.
type streamCoordinator struct {
	provider     llm.Provider
	providerName string
	renderer     Renderer
	retryPolicy  retry.Policy
	timeout      time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// streamOutcome is the consumer goroutine's final word: either the
// aggregated response or the error that ended consumption.
type streamOutcome struct {
	response *llm.Response
	err      error
}

// run performs one streaming request and returns the aggregated
// response. The returned error is never partial: when run fails, no
// event derived from this attempt remains pending and the stream is
// closed, so the caller can retry non-streaming without appending
// anything first.
func (coordinator *streamCoordinator) run(ctx context.Context, request llm.Request) (*llm.Response, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := retry.Do(streamCtx, coordinator.retryPolicy, "stream create",
		func(ctx context.Context) (*llm.EventStream, error) {
			return coordinator.provider.Stream(ctx, request)
		})
	if err != nil {
		return nil, fmt.Errorf("agent: creating stream: %w", err)
	}

	emit(coordinator.renderer, coordinator.clock, Event{
		Type: EventStreamStart,
		StreamStart: &StreamStartEvent{
			Provider: coordinator.providerName,
			Model:    request.Model,
		},
	})

	// Capacity 1 so the consumer can always deliver its outcome and
	// exit, even when this side has already given up.
	outcomes := make(chan streamOutcome, 1)
	go coordinator.consume(stream, outcomes)

	select {
	case outcome := <-outcomes:
		if outcome.err != nil {
			return nil, fmt.Errorf("agent: consuming stream: %w", outcome.err)
		}
		return outcome.response, nil
	case <-coordinator.clock.After(coordinator.timeout):
		cancel()
		<-outcomes
		return nil, fmt.Errorf("agent: stream timed out after %s", coordinator.timeout)
	case <-ctx.Done():
		cancel()
		<-outcomes
		return nil, ctx.Err()
	}
}

// consume drains the stream, translating provider events into
// renderer events. Chunk events carry per-kind sequence numbers
// starting at 1 plus the accumulated text so far, so renderers can
// tolerate reordering by keeping the highest sequence seen.
func (coordinator *streamCoordinator) consume(stream *llm.EventStream, outcomes chan<- streamOutcome) {
	defer stream.Close()

	var thinking strings.Builder
	var text strings.Builder
	thinkingSequence := 0
	textSequence := 0

	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			response := stream.Response()
			outcomes <- streamOutcome{response: &response}
			return
		}
		if err != nil {
			outcomes <- streamOutcome{err: err}
			return
		}

		switch event.Type {
		case llm.EventThinkingStart:
			emit(coordinator.renderer, coordinator.clock, Event{Type: EventThinkingStart})
		case llm.EventThinkingDelta:
			thinkingSequence++
			thinking.WriteString(event.Delta)
			emit(coordinator.renderer, coordinator.clock, Event{
				Type: EventThinkingChunk,
				ThinkingChunk: &ThinkingChunkEvent{
					Content:  thinking.String(),
					Sequence: thinkingSequence,
				},
			})
		case llm.EventThinkingDone:
			emit(coordinator.renderer, coordinator.clock, Event{Type: EventThinkingComplete})
		case llm.EventTextStart:
			emit(coordinator.renderer, coordinator.clock, Event{Type: EventTextStart})
		case llm.EventTextDelta:
			textSequence++
			text.WriteString(event.Delta)
			emit(coordinator.renderer, coordinator.clock, Event{
				Type: EventTextChunk,
				TextChunk: &TextChunkEvent{
					Delta:       event.Delta,
					Accumulated: text.String(),
					Sequence:    textSequence,
				},
			})
		case llm.EventToolCall:
			if event.ToolCall != nil {
				emit(coordinator.renderer, coordinator.clock, Event{
					Type:     EventToolCall,
					ToolCall: &ToolCallEvent{ToolCall: *event.ToolCall},
				})
			}
		case llm.EventMessageStart, llm.EventMessageDone:
			// Accumulated by the stream itself; nothing to render.
		}
	}
}
