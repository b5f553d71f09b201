// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/llm"
	"github.com/parley-foundation/parley/lib/tool"
)

// ToolResult is the outcome of one tool execution, surfaced to the
// caller alongside the tool messages fed back to the model.
type ToolResult struct {
	// ToolCallID links the result to the assistant tool call.
	ToolCallID string `json:"tool_call_id"`

	// Name is the tool that ran.
	Name string `json:"name"`

	// Content is the result text the model sees. Failed executions
	// carry an "Error: ..." description here.
	Content string `json:"content"`

	// IsError is true when the execution failed.
	IsError bool `json:"is_error,omitempty"`
}

// toolExecutor runs the tool calls of one iteration sequentially and
// reports lifecycle events to the renderer.
type toolExecutor struct {
	registry *tool.Registry
	renderer Renderer
	tracker  *RunTracker
	clock    clock.Clock
	logger   *slog.Logger
}

// executeCalls runs each call in order and returns the tool messages
// to append to the conversation plus the results for the caller.
// Handler failures and malformed arguments become error results the
// model can react to; only a call to a tool the registry does not
// hold is fatal and aborts the iteration.
func (executor *toolExecutor) executeCalls(ctx context.Context, calls []llm.ToolCall) ([]llm.ChatMessage, []ToolResult, error) {
	messages := make([]llm.ChatMessage, 0, len(calls))
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		handler, err := executor.registry.Get(call.Function.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("agent: executing tool call %s: %w", call.ID, err)
		}
		definition, err := executor.registry.Definition(call.Function.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("agent: executing tool call %s: %w", call.ID, err)
		}

		emit(executor.renderer, executor.clock, Event{
			Type: EventToolExecutionStart,
			ToolExecutionStart: &ToolExecutionStartEvent{
				ToolName:    call.Function.Name,
				ToolCallID:  call.ID,
				Arguments:   call.Function.Arguments,
				LongRunning: definition.LongRunning,
			},
		})
		executor.logger.Debug("executing tool",
			"tool", call.Function.Name,
			"tool_call_id", call.ID)

		startedAt := executor.clock.Now()
		content, isError := executor.runCall(ctx, handler, call)
		durationMillis := executor.clock.Now().Sub(startedAt).Milliseconds()

		executor.tracker.RecordToolInvocation()
		if isError {
			executor.tracker.RecordToolError()
			executor.logger.Warn("tool execution failed",
				"tool", call.Function.Name,
				"tool_call_id", call.ID,
				"result", content)
		}

		emit(executor.renderer, executor.clock, Event{
			Type: EventToolExecutionComplete,
			ToolExecutionComplete: &ToolExecutionCompleteEvent{
				ToolCallID:     call.ID,
				Result:         content,
				DurationMillis: durationMillis,
			},
		})

		messages = append(messages, llm.ToolResultMessage(call.ID, call.Function.Name, content))
		results = append(results, ToolResult{
			ToolCallID: call.ID,
			Name:       call.Function.Name,
			Content:    content,
			IsError:    isError,
		})
	}
	return messages, results, nil
}

// runCall parses the arguments, invokes the handler, and serializes
// the returned value. Every failure path produces an "Error: ..."
// result string so the model can correct itself on the next
// iteration.
func (executor *toolExecutor) runCall(ctx context.Context, handler tool.Handler, call llm.ToolCall) (content string, isError bool) {
	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: parsing tool arguments: %v", err), true
		}
	}

	value, err := handler(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}

	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		return typed, false
	default:
		serialized, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("Error: serializing tool result: %v", err), true
		}
		return string(serialized), false
	}
}
