// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package runstore persists agent run metrics to SQLite.
//
// The store implements [agent.MetricsSink], so it plugs into the
// engine directly: every completed or aborted run lands as one row in
// the runs table. Headline counters (iterations, token usage, tool
// invocations) are stored as queryable columns; the full
// agent.RunMetrics record is stored alongside them as a
// deterministically encoded CBOR blob, so reads reproduce exactly what
// the tracker measured.
//
// Queries cover the operational questions a run history answers:
// recent runs with optional agent/model filters ([Store.RecentRuns]),
// a single run by ID ([Store.Run]), and per-agent aggregates
// ([Store.Totals]). [Store.Prune] deletes runs older than a retention
// period and is safe to call from a background ticker.
package runstore
