// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package context

// contextWindows maps model identifiers to context window sizes in
// tokens, from provider documentation as of early 2026. Best-effort:
// unknown models fall back to defaultContextWindow, and an agent
// definition can always override the window explicitly.
var contextWindows = map[string]int{
	// Anthropic Claude.
	"claude-opus-4-1-20250805":   200_000,
	"claude-sonnet-4-5-20250929": 200_000,
	"claude-haiku-4-5-20251001":  200_000,
	"claude-3-5-sonnet-20241022": 200_000,
	"claude-3-5-haiku-20241022":  200_000,

	// OpenAI.
	"gpt-4o":      128_000,
	"gpt-4o-mini": 128_000,
	"gpt-4-turbo": 128_000,
	"gpt-4":       8_192,
	"o1":          200_000,
	"o1-mini":     128_000,
	"o3":          200_000,
	"o3-mini":     200_000,

	// DeepSeek.
	"deepseek-chat":     64_000,
	"deepseek-reasoner": 64_000,

	// Google Gemini.
	"gemini-2.0-flash": 1_048_576,
	"gemini-2.0-pro":   1_048_576,
	"gemini-1.5-pro":   2_097_152,

	// Mistral.
	"mistral-large-latest": 128_000,
	"mistral-small-latest": 32_000,

	// Meta Llama.
	"llama-3.1-405b": 128_000,
	"llama-3.1-70b":  128_000,
	"llama-3.1-8b":   128_000,
}

// defaultContextWindow is used for models not in the table. 128k is a
// middle ground: large enough for modern models, small enough not to
// wildly overestimate older ones. Agents running models outside the
// table should set an explicit window in their definition.
const defaultContextWindow = 128_000

// ContextWindowForModel returns the context window size in tokens for
// the given model identifier, or defaultContextWindow (128k) when the
// model is unknown.
func ContextWindowForModel(model string) int {
	if window, found := contextWindows[model]; found {
		return window
	}
	return defaultContextWindow
}
