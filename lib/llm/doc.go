// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a provider-agnostic interface for Large Language
// Model chat APIs with streaming and tool-call support.
//
// The primary abstraction is [Provider], which supports both blocking
// completion and streaming responses. Provider implementations translate
// between the common types in this package and each vendor's wire
// format; this repository deliberately ships no vendor adapters — those
// are supplied by embedders. The llmtest subpackage provides a scripted
// in-memory provider for tests and offline runs.
//
// Conversations use the flat chat-message shape: every [ChatMessage]
// has a role and a content string, assistant messages may carry
// [ToolCall] requests, and tool-role messages carry the paired result
// keyed by ToolCallID.
//
// The [EventStream] type wraps a streaming response, yielding
// [StreamEvent] values as they arrive while accumulating the complete
// [Response] internally. [Registry] gives named access to configured
// providers so an agent descriptor can select one by name.
package llm
