// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem is the system prompt. At most one per conversation,
	// conventionally at index 0.
	RoleSystem Role = "system"

	// RoleUser is input from the human (or the calling application).
	// A user message starts a new conversational turn.
	RoleUser Role = "user"

	// RoleAssistant is model output: text, tool call requests, or both.
	RoleAssistant Role = "assistant"

	// RoleTool is the result of one tool call, keyed to the assistant
	// message that requested it via ToolCallID.
	RoleTool Role = "tool"
)

// ChatMessage is one entry in a conversation history.
//
// Messages are immutable once appended to a history: changing content
// means appending or substituting a new message, never editing one in
// place. The context window manager relies on this when it reuses
// per-message token costs across trims.
type ChatMessage struct {
	// Role identifies the author.
	Role Role `json:"role"`

	// Content is the message text. For an assistant message that only
	// requests tool calls it may be empty; for a tool message it is
	// the serialized tool result.
	Content string `json:"content"`

	// Name is the tool name on tool-role messages. Empty otherwise.
	Name string `json:"name,omitempty"`

	// ToolCallID links a tool-role message to the assistant tool call
	// it answers. Empty on other roles.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls holds the tool invocations requested by an assistant
	// message. Nil on other roles and on plain text responses.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is one tool invocation requested by an assistant message.
// The ID is unique within that message and is echoed back by exactly
// one later tool-role message in a well-formed history.
type ToolCall struct {
	ID       string       `json:"id"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its arguments as a serialized
// JSON document. Arguments stay serialized here because the model can
// produce malformed JSON — parsing is the executor's job, and a parse
// failure becomes a tool-result error rather than a dropped message.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message with text content
// and no tool calls.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// ToolResultMessage returns a tool-role message answering the tool call
// with the given ID.
func ToolResultMessage(toolCallID, toolName, content string) ChatMessage {
	return ChatMessage{
		Role:       RoleTool,
		Content:    content,
		Name:       toolName,
		ToolCallID: toolCallID,
	}
}
