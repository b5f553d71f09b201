// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"encoding/json"

	"github.com/parley-foundation/parley/lib/llm"
)

// charactersPerToken is the assumed character-to-token ratio. 4 is
// conservative for English text with code — BPE tokenizers typically
// average 3.5-4.5 characters per token. Conservative means we
// overestimate token counts, which trims slightly early rather than
// risking a context overflow error from the provider.
const charactersPerToken = 4

// messageFramingTokens is the fixed per-message cost for the role
// marker and protocol framing.
const messageFramingTokens = 4

// toolResultOverheadTokens is the fixed extra cost of a tool-role
// message: the tool_call_id and result framing the provider wraps
// around the content.
const toolResultOverheadTokens = 8

// TokenEstimator estimates the token cost of a single message without
// calling a tokenizer. [Window] memoizes the result per message, so
// implementations must be deterministic for a given message value.
type TokenEstimator interface {
	// EstimateMessage returns the estimated token count for one
	// message, including per-message framing overhead.
	EstimateMessage(message llm.ChatMessage) int
}

// HeuristicEstimator estimates token counts from character counts.
// Content costs one token per four characters, rounded up. Assistant
// messages with tool calls additionally pay for the serialized calls;
// tool-role messages pay a small fixed overhead for their result
// framing.
type HeuristicEstimator struct{}

// EstimateMessage returns the estimated token count for one message.
func (HeuristicEstimator) EstimateMessage(message llm.ChatMessage) int {
	tokens := ceilDivide(len(message.Content), charactersPerToken)

	switch {
	case message.Role == llm.RoleAssistant && len(message.ToolCalls) > 0:
		serialized, err := json.Marshal(message.ToolCalls)
		if err == nil {
			tokens += ceilDivide(len(serialized), charactersPerToken)
		}
	case message.Role == llm.RoleTool:
		tokens += toolResultOverheadTokens
	}

	return tokens + messageFramingTokens
}

// ceilDivide returns numerator/denominator rounded up.
func ceilDivide(numerator, denominator int) int {
	return (numerator + denominator - 1) / denominator
}
