// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	t.Parallel()

	system := SystemMessage("You are helpful.")
	if system.Role != RoleSystem || system.Content != "You are helpful." {
		t.Errorf("SystemMessage = %+v", system)
	}

	user := UserMessage("Hello")
	if user.Role != RoleUser || user.Content != "Hello" {
		t.Errorf("UserMessage = %+v", user)
	}

	assistant := AssistantMessage("Hi there")
	if assistant.Role != RoleAssistant || assistant.Content != "Hi there" {
		t.Errorf("AssistantMessage = %+v", assistant)
	}

	result := ToolResultMessage("call_1", "read_file", "contents")
	if result.Role != RoleTool {
		t.Errorf("role = %q, want %q", result.Role, RoleTool)
	}
	if result.ToolCallID != "call_1" {
		t.Errorf("tool_call_id = %q, want call_1", result.ToolCallID)
	}
	if result.Name != "read_file" {
		t.Errorf("name = %q, want read_file", result.Name)
	}
	if result.Content != "contents" {
		t.Errorf("content = %q, want contents", result.Content)
	}
}

func TestResponseMessage(t *testing.T) {
	t.Parallel()

	response := &Response{
		Content: "Let me check that file.",
		ToolCalls: []ToolCall{
			{
				ID:       "call_1",
				Function: FunctionCall{Name: "read_file", Arguments: `{"path":"go.mod"}`},
			},
		},
		StopReason: StopToolUse,
	}

	message := response.Message()
	if message.Role != RoleAssistant {
		t.Errorf("role = %q, want %q", message.Role, RoleAssistant)
	}
	if message.Content != "Let me check that file." {
		t.Errorf("content = %q", message.Content)
	}
	if length := len(message.ToolCalls); length != 1 {
		t.Fatalf("tool calls length = %d, want 1", length)
	}
	if message.ToolCalls[0].ID != "call_1" {
		t.Errorf("tool call id = %q, want call_1", message.ToolCalls[0].ID)
	}
}

func TestProviderErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{
			name:        "rate limited",
			err:         &ProviderError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"},
			rateLimited: true,
		},
		{
			name:        "overloaded",
			err:         &ProviderError{StatusCode: 529, Type: "overloaded_error", Message: "busy"},
			rateLimited: true,
		},
		{
			name:        "unavailable",
			err:         &ProviderError{StatusCode: 503, Type: "service_unavailable", Message: "down"},
			rateLimited: true,
		},
		{
			name:        "bad request",
			err:         &ProviderError{StatusCode: 400, Type: "invalid_request_error", Message: "bad"},
			rateLimited: false,
		},
		{
			name:        "wrapped rate limit",
			err:         fmt.Errorf("calling model: %w", &ProviderError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}),
			rateLimited: true,
		},
		{
			name:        "unrelated error",
			err:         fmt.Errorf("connection refused"),
			rateLimited: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimited(test.err); got != test.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", got, test.rateLimited)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ProviderError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
	want := "llm: HTTP 429: rate_limit_error: slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
