// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry wraps fallible calls with bounded exponential backoff.
//
// [Do] invokes a call up to MaxRetries+1 times, sleeping between
// attempts with exponentially growing delays. Only errors the
// policy's Retryable predicate accepts are retried; everything else
// propagates immediately. By default only rate-limit-class provider
// errors are retryable, which is the right filter for model calls:
// invalid requests and auth failures never heal on their own, while
// 429s and overloads usually do.
//
// The backoff delay runs on an injected [clock.Clock], so tests
// advance a fake clock instead of sleeping. Cancellation of the
// caller's context interrupts the delay.
package retry
