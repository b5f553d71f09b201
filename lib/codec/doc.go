// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Parley's standard CBOR encoding configuration.
//
// Parley uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: provider wire formats, renderer
//     events, session logs, agent definition files, and CLI output.
//   - CBOR for internal storage: the run store's record blobs, where
//     byte-identical encoding of identical data matters.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Parley package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes. The one departure from the core profile is time encoding:
// timestamps serialize as RFC 3339 text with nanosecond precision
// instead of epoch seconds, so decoded run records reproduce their
// original timing exactly.
//
// For buffer-oriented operations (database blobs):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// Types stored as CBOR in Parley are the same types that serve JSON
// surfaces (agent.RunMetrics appears in both the run store and the
// complete event of a session log), so they carry `json` struct tags
// only. fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
// tags are absent, so a single `json` tag controls field naming and
// omitempty for both formats. Never use both `cbor` and `json` tags on
// the same field.
package codec
