// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"github.com/parley-foundation/parley/lib/llm"
)

// Budget configures the token limits for a Window.
type Budget struct {
	// ContextWindow is the model's total context window in tokens
	// (e.g., 200000 for Claude Sonnet, 128000 for GPT-4o).
	ContextWindow int

	// MaxOutputTokens is the maximum output tokens reserved for each
	// model response. Subtracted from the context window to determine
	// the input token budget.
	MaxOutputTokens int

	// OverheadTokens estimates the fixed per-request overhead: system
	// prompt, tool definitions, and protocol framing. Subtracted from
	// the context window alongside MaxOutputTokens. If zero, a
	// default of 4096 is used (conservative for agents with ~20 tools
	// and a medium system prompt).
	OverheadTokens int
}

// defaultOverheadTokens is used when Budget.OverheadTokens is zero.
const defaultOverheadTokens = 4096

// MessageTokenBudget returns the number of tokens available for
// conversation messages after subtracting output reservation and
// overhead.
func (budget Budget) MessageTokenBudget() int {
	overhead := budget.OverheadTokens
	if overhead == 0 {
		overhead = defaultOverheadTokens
	}
	available := budget.ContextWindow - budget.MaxOutputTokens - overhead
	if available < 0 {
		return 0
	}
	return available
}

// TrimResult describes one trim call that removed messages. Surfaced
// to logging only.
type TrimResult struct {
	// OriginalCount is the message count before trimming.
	OriginalCount int

	// TrimmedCount is the message count after trimming.
	TrimmedCount int

	// MessagesRemoved is OriginalCount - TrimmedCount.
	MessagesRemoved int

	// EstimatedTokens is the estimated token cost of the trimmed
	// history.
	EstimatedTokens int
}

// Window keeps a conversation history inside a token budget by
// dropping the oldest messages first. Three guarantees hold on every
// history it returns: the system message (when present) survives as
// the first message, the most recent turns survive verbatim
// regardless of budget, and no tool result survives without the
// assistant message that produced its tool call.
//
// A Window belongs to a single run. It memoizes per-message token
// costs across Trim calls under the run's append-only contract: the
// engine appends to the history between trims and never mutates a
// message in place, so costs for the shared prefix stay valid and
// only new messages are estimated.
//
// Not safe for concurrent use.
type Window struct {
	estimator      TokenEstimator
	budget         int
	protectedTurns int

	// knownCosts[i] is the estimated cost of message i of the history
	// most recently seen by Trim. Invalidated wholesale when the
	// caller hands in a shorter history.
	knownCosts []int
}

// NewWindow creates a Window with the given message token budget
// (typically [Budget.MessageTokenBudget]). protectedTurns is how many
// of the most recent turns survive trimming verbatim; values below 1
// mean 1. A nil estimator means [HeuristicEstimator].
func NewWindow(tokenBudget int, protectedTurns int, estimator TokenEstimator) *Window {
	if protectedTurns < 1 {
		protectedTurns = 1
	}
	if estimator == nil {
		estimator = HeuristicEstimator{}
	}
	return &Window{
		estimator:      estimator,
		budget:         tokenBudget,
		protectedTurns: protectedTurns,
	}
}

// Trim returns a history that fits the window's token budget, plus a
// TrimResult describing what was removed. When the history already
// fits — or when nothing outside the system message and the protected
// zone could be removed — the input slice is returned unchanged with
// a nil TrimResult.
//
// Removal order: message 0 is kept unconditionally when it is the
// system message; the most recent protected turns are kept verbatim;
// the remaining budget is filled walking backward from just before
// the protected zone, stopping at the first message that does not
// fit. A surviving tool result whose originating assistant message
// was dropped is dropped with it. The result is always in the
// original chronological order.
func (window *Window) Trim(history []llm.ChatMessage) ([]llm.ChatMessage, *TrimResult) {
	costs := window.refreshCosts(history)

	total := 0
	for _, cost := range costs {
		total += cost
	}
	if total <= window.budget || len(history) == 0 {
		return history, nil
	}

	keep := make([]bool, len(history))
	budgetUsed := 0

	start := 0
	if history[0].Role == llm.RoleSystem {
		keep[0] = true
		budgetUsed += costs[0]
		start = 1
	}

	// Protected zone: kept whole regardless of budget.
	protectedStart := window.protectedZoneStart(history, start)
	for i := protectedStart; i < len(history); i++ {
		keep[i] = true
		budgetUsed += costs[i]
	}

	// Fill the remaining budget walking backward from just before the
	// protected zone. The first message that does not fit ends the
	// scan — nothing older is kept.
	for i := protectedStart - 1; i >= start; i-- {
		if budgetUsed+costs[i] > window.budget {
			break
		}
		keep[i] = true
		budgetUsed += costs[i]
	}

	// Drop orphaned tool results: a kept tool message outside the
	// protected zone whose assistant tool call was trimmed away.
	for i := start; i < protectedStart; i++ {
		if !keep[i] || history[i].Role != llm.RoleTool {
			continue
		}
		if !toolCallKept(history, keep, history[i].ToolCallID) {
			keep[i] = false
			budgetUsed -= costs[i]
		}
	}

	result := make([]llm.ChatMessage, 0, len(history))
	keptCosts := make([]int, 0, len(history))
	for i := range history {
		if keep[i] {
			result = append(result, history[i])
			keptCosts = append(keptCosts, costs[i])
		}
	}

	if len(result) == len(history) {
		// Over budget but nothing was removable: the protected zone
		// covers the whole history. Protection wins over budget.
		return history, nil
	}

	window.knownCosts = keptCosts
	return result, &TrimResult{
		OriginalCount:   len(history),
		TrimmedCount:    len(result),
		MessagesRemoved: len(history) - len(result),
		EstimatedTokens: budgetUsed,
	}
}

// protectedZoneStart returns the index where the protected zone
// begins: the user message opening the protectedTurns-th turn from
// the end. A history with fewer turns than that is protected in its
// entirety (past the system message).
func (window *Window) protectedZoneStart(history []llm.ChatMessage, start int) int {
	turns := 0
	for i := len(history) - 1; i >= start; i-- {
		if history[i].Role == llm.RoleUser {
			turns++
			if turns == window.protectedTurns {
				return i
			}
		}
	}
	return start
}

// refreshCosts returns per-message costs for history, reusing values
// memoized on previous calls. Costs for the shared prefix stay valid
// under the engine's append-only contract; a shorter history means
// the caller replaced the slice, which invalidates the memo
// wholesale.
func (window *Window) refreshCosts(history []llm.ChatMessage) []int {
	if len(history) < len(window.knownCosts) {
		window.knownCosts = window.knownCosts[:0]
	}
	for i := len(window.knownCosts); i < len(history); i++ {
		window.knownCosts = append(window.knownCosts, window.estimator.EstimateMessage(history[i]))
	}
	return window.knownCosts
}

// toolCallKept reports whether the kept set retains the assistant
// message carrying the tool call with the given id.
func toolCallKept(history []llm.ChatMessage, keep []bool, toolCallID string) bool {
	for i := range history {
		if !keep[i] || history[i].Role != llm.RoleAssistant {
			continue
		}
		for _, call := range history[i].ToolCalls {
			if call.ID == toolCallID {
				return true
			}
		}
	}
	return false
}
