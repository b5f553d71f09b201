// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package context keeps conversation history inside a token budget.
//
// The central type is [Window]. Before each model call the engine
// passes the full history through [Window.Trim], which returns a
// history that fits the budget plus a [TrimResult] describing what
// was removed (nil when nothing was). Trimming preserves three
// structural guarantees: the system message always survives as the
// first message, the most recent turns survive verbatim regardless of
// budget, and no tool result survives without the assistant message
// that produced its tool call.
//
// A turn is one user message plus every following message up to the
// next user message. Protecting whole turns rather than a flat
// message count means a turn with many tool calls is never sliced in
// half, which is what the tool-pairing guarantee requires.
//
// Token counts come from the [TokenEstimator] interface.
// [HeuristicEstimator] approximates a BPE tokenizer from character
// counts without pulling in a tokenizer dependency; the window
// memoizes per-message costs so repeated trims over a growing history
// only estimate the new messages.
package context
