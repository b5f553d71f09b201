// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionlog persists agent run events as JSONL session
// logs.
//
// A [Writer] implements the engine's renderer interface: every event
// a run emits is appended to the log as one compact JSON line, with
// optional zstd or lz4 compression on disk. The writer keeps a
// running BLAKE3 digest of the uncompressed stream plus aggregate
// counters, surfaced through [Writer.Summary]. [ReadFile] loads a
// log back into events for replay and inspection.
package sessionlog
