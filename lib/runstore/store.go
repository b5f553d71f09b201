// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package runstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/parley-foundation/parley/lib/agent"
	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/codec"
	"github.com/parley-foundation/parley/lib/sqlitepool"
)

// ErrNotFound is returned by Run when no run with the given ID exists.
var ErrNotFound = errors.New("runstore: run not found")

// schema creates the runs table. Counter columns exist for filtering
// and aggregation; the record blob is the full agent.RunMetrics in
// deterministic CBOR and is the source for everything a read returns.
const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id           TEXT PRIMARY KEY,
		agent            TEXT NOT NULL,
		model            TEXT NOT NULL,
		iterations       INTEGER NOT NULL,
		input_tokens     INTEGER NOT NULL,
		output_tokens    INTEGER NOT NULL,
		retry_count      INTEGER NOT NULL,
		tool_invocations INTEGER NOT NULL,
		tool_errors      INTEGER NOT NULL,
		finished         INTEGER NOT NULL,
		was_streamed     INTEGER NOT NULL,
		started_at       INTEGER NOT NULL,
		completed_at     INTEGER NOT NULL,
		record           BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_agent ON runs(agent, started_at);
`

// Config holds the parameters for opening a run store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. Use ":memory:" with PoolSize 1 for
	// an in-memory store.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Clock provides the current time for retention decisions. If
	// nil, the real clock is used.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is a SQLite-backed run history. It implements
// agent.MetricsSink, so it can be handed to the engine via
// Config.Metrics.
//
// Write path: the engine calls RecordRun once per run, after
// finalizing the tracker. Recording the same run ID twice replaces
// the earlier row, so a retried sink write is idempotent.
//
// Read path: RecentRuns and Run decode the stored blob, so callers
// get back exactly the record the tracker produced, including
// timestamps at full precision. Totals aggregates over the counter
// columns without touching blobs.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

var _ agent.MetricsSink = (*Store)(nil)

// Open creates a run store backed by SQLite. The database file and
// schema are created if they do not exist.
func Open(cfg Config) (*Store, error) {
	storeClock := cfg.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("runstore: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  storeClock,
		logger: logger,
	}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// RecordRun inserts a finalized run record. Implements
// agent.MetricsSink.
func (s *Store) RecordRun(ctx context.Context, metrics agent.RunMetrics) error {
	record, err := codec.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("runstore: encoding run record: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("runstore: record run: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT OR REPLACE INTO runs
		(run_id, agent, model, iterations, input_tokens, output_tokens,
		 retry_count, tool_invocations, tool_errors, finished,
		 was_streamed, started_at, completed_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				metrics.RunID,
				metrics.Agent,
				metrics.Model,
				metrics.Iterations,
				metrics.InputTokens,
				metrics.OutputTokens,
				metrics.RetryCount,
				metrics.ToolInvocations,
				metrics.ToolErrors,
				boolColumn(metrics.Finished),
				boolColumn(metrics.WasStreamed),
				metrics.StartedAt.UnixNano(),
				metrics.CompletedAt.UnixNano(),
				record,
			},
		})
	if err != nil {
		return fmt.Errorf("runstore: inserting run %s: %w", metrics.RunID, err)
	}
	return nil
}

// Filter specifies the criteria for RecentRuns. All fields are
// optional; zero-valued fields are not applied as filters.
type Filter struct {
	Agent        string    // Exact match on agent name.
	Model        string    // Exact match on model identifier.
	FinishedOnly bool      // Only runs that reached a terminal answer.
	Since        time.Time // Earliest start time.
	Limit        int       // Maximum runs to return (default 50).
}

// RecentRuns returns run records matching the filter, newest first.
func (s *Store) RecentRuns(ctx context.Context, filter Filter) ([]agent.RunMetrics, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("runstore: recent runs: %w", err)
	}
	defer s.pool.Put(conn)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []any

	if filter.Agent != "" {
		conditions = append(conditions, "agent = ?")
		args = append(args, filter.Agent)
	}
	if filter.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.FinishedOnly {
		conditions = append(conditions, "finished = 1")
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := "SELECT record FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	var runs []agent.RunMetrics
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			metrics, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			runs = append(runs, metrics)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("runstore: querying runs: %w", err)
	}
	return runs, nil
}

// Run returns the record for a single run ID. Returns an error
// wrapping ErrNotFound when the run does not exist.
func (s *Store) Run(ctx context.Context, runID string) (agent.RunMetrics, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return agent.RunMetrics{}, fmt.Errorf("runstore: run %s: %w", runID, err)
	}
	defer s.pool.Put(conn)

	var metrics agent.RunMetrics
	found := false
	err = sqlitex.Execute(conn, "SELECT record FROM runs WHERE run_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				decoded, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				metrics = decoded
				found = true
				return nil
			},
		})
	if err != nil {
		return agent.RunMetrics{}, fmt.Errorf("runstore: querying run %s: %w", runID, err)
	}
	if !found {
		return agent.RunMetrics{}, fmt.Errorf("runstore: run %s: %w", runID, ErrNotFound)
	}
	return metrics, nil
}

// AgentTotals is the aggregate across all recorded runs of one agent.
type AgentTotals struct {
	Agent           string `json:"agent"`
	Runs            int64  `json:"runs"`
	Finished        int64  `json:"finished"`
	InputTokens     int64  `json:"input_tokens"`
	OutputTokens    int64  `json:"output_tokens"`
	ToolInvocations int64  `json:"tool_invocations"`
	ToolErrors      int64  `json:"tool_errors"`
}

// Totals returns per-agent aggregates, busiest agent first. Agents
// with equal run counts sort alphabetically.
func (s *Store) Totals(ctx context.Context) ([]AgentTotals, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("runstore: totals: %w", err)
	}
	defer s.pool.Put(conn)

	var totals []AgentTotals
	err = sqlitex.Execute(conn, `SELECT agent, COUNT(*),
			SUM(finished), SUM(input_tokens), SUM(output_tokens),
			SUM(tool_invocations), SUM(tool_errors)
		FROM runs
		GROUP BY agent
		ORDER BY COUNT(*) DESC, agent ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				totals = append(totals, AgentTotals{
					Agent:           stmt.ColumnText(0),
					Runs:            stmt.ColumnInt64(1),
					Finished:        stmt.ColumnInt64(2),
					InputTokens:     stmt.ColumnInt64(3),
					OutputTokens:    stmt.ColumnInt64(4),
					ToolInvocations: stmt.ColumnInt64(5),
					ToolErrors:      stmt.ColumnInt64(6),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("runstore: aggregating runs: %w", err)
	}
	return totals, nil
}

// Prune deletes runs that started more than retention ago. Returns
// the number of deleted rows. Safe to call from a background ticker.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("runstore: prune: %w", err)
	}
	defer s.pool.Put(conn)

	cutoff := s.clock.Now().Add(-retention)
	err = sqlitex.Execute(conn, "DELETE FROM runs WHERE started_at < ?",
		&sqlitex.ExecOptions{
			Args: []any{cutoff.UnixNano()},
		})
	if err != nil {
		return 0, fmt.Errorf("runstore: pruning runs: %w", err)
	}

	deleted := conn.Changes()
	if deleted > 0 {
		s.logger.Info("pruned run history",
			"deleted", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted, nil
}

// scanRecord decodes the record blob from the current result row.
func scanRecord(stmt *sqlite.Stmt) (agent.RunMetrics, error) {
	blob := make([]byte, stmt.ColumnLen(0))
	stmt.ColumnBytes(0, blob)

	var metrics agent.RunMetrics
	if err := codec.Unmarshal(blob, &metrics); err != nil {
		return agent.RunMetrics{}, fmt.Errorf("decoding run record: %w", err)
	}
	return metrics, nil
}

// boolColumn converts a bool to its SQLite integer representation.
func boolColumn(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
