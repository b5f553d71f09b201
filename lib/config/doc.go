// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the parley
// command.
//
// Configuration is loaded from a single file specified by either the
// PARLEY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Runtime, Retry, Session,
//     Metrics, and Logging sections
//   - [Default] -- returns a Config with working defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
