// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package llmtest provides a scripted [llm.Provider] for tests.
//
// [ScriptedProvider] replays a fixed sequence of [Step] values, one
// per Complete or Stream call. A step can deliver a complete
// response, fail with an error, stream an explicit event sequence,
// fail mid-stream after a bounded number of events, or hang until the
// call's context is canceled. Each call's [llm.Request] is recorded
// for assertion.
//
// Engine, retry, and streaming tests use these scripts instead of a
// live provider so failure injection (rate limits, stream
// interruption, stalls) is deterministic.
package llmtest
