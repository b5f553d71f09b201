// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider is the interface for LLM API backends. Implementations
// translate between the common types in this package and each
// vendor's wire format.
type Provider interface {
	// Complete sends a request and blocks until the full response
	// is available. Use this when streaming is not needed.
	Complete(ctx context.Context, request Request) (*Response, error)

	// Stream sends a request and returns an [EventStream] that yields
	// events as they arrive. The caller must call [EventStream.Close]
	// when done, even if iteration ended early.
	Stream(ctx context.Context, request Request) (*EventStream, error)
}

// Request is a provider-agnostic chat completion request.
type Request struct {
	// Model is the model identifier (e.g., "gpt-4o",
	// "claude-sonnet-4-5-20250929").
	Model string

	// Messages is the conversation to complete, in chronological
	// order. The system prompt, when present, is Messages[0].
	Messages []ChatMessage

	// Tools is the tool catalog offered to the model for this request.
	Tools []ToolDefinition

	// MaxTokens caps the output tokens for this response. Zero lets
	// the provider apply its own default.
	MaxTokens int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64

	// ReasoningEffort requests a reasoning level from models that
	// support one ("low", "medium", "high"). Empty omits the field.
	ReasoningEffort string
}

// ToolDefinition describes one tool offered to the model.
type ToolDefinition struct {
	// Name is the identifier the model uses to call the tool.
	Name string `json:"name"`

	// Description tells the model what the tool does and when to use it.
	Description string `json:"description,omitempty"`

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Response is a complete chat completion.
type Response struct {
	// Content is the assistant's text output. May be empty when the
	// response only requests tool calls.
	Content string

	// ToolCalls holds the tool invocations the model requested, in
	// the order it produced them. Nil for plain text responses.
	ToolCalls []ToolCall

	// Model is the model that produced the response, as reported by
	// the provider.
	Model string

	// StopReason is why generation ended.
	StopReason StopReason

	// Usage reports token consumption for the call.
	Usage Usage
}

// Message converts the response into the assistant ChatMessage to
// append to the conversation history.
func (response *Response) Message() ChatMessage {
	return ChatMessage{
		Role:      RoleAssistant,
		Content:   response.Content,
		ToolCalls: response.ToolCalls,
	}
}

// Usage reports token consumption for one completion call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// StopReason is why the model stopped generating.
type StopReason string

const (
	// StopEndTurn is a natural completion.
	StopEndTurn StopReason = "end_turn"

	// StopToolUse means the model stopped to request tool calls.
	StopToolUse StopReason = "tool_use"

	// StopMaxTokens means the output token cap was reached.
	StopMaxTokens StopReason = "max_tokens"
)

// ProviderError is returned when an LLM API responds with an error.
type ProviderError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Type is the provider-specific error type string
	// (e.g., "invalid_request_error", "rate_limit_error").
	Type string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited returns true if the error is a rate limit response (HTTP 429).
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == 429
}

// IsOverloaded returns true if the error is a server overload response
// (HTTP 529, or 503 from OpenAI-compatible backends).
func (err *ProviderError) IsOverloaded() bool {
	return err.StatusCode == 529 || err.StatusCode == 503
}

// IsRateLimited reports whether err is a rate-limit-class provider
// error: an explicit rate limit or a capacity overload. Both clear
// with time, which makes them the retryable class — every other
// provider error propagates immediately.
func IsRateLimited(err error) bool {
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		return false
	}
	return providerErr.IsRateLimited() || providerErr.IsOverloaded()
}
