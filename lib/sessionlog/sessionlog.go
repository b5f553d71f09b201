// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/parley-foundation/parley/lib/agent"
)

// Options configure a session log writer.
type Options struct {
	// Compression selects the on-disk encoding. Defaults to none.
	Compression Compression

	// Logger receives warnings about dropped events. If nil, logs
	// are discarded. Write failures never propagate to the engine —
	// the renderer contract is fire-and-forget.
	Logger *slog.Logger
}

// Writer appends agent run events to a session log file, one JSON
// object per line. It implements [agent.Renderer] and is safe for
// concurrent use: streamed chunk events arrive from the stream
// coordinator's goroutine while lifecycle events arrive from the
// run's.
type Writer struct {
	mutex      sync.Mutex
	path       string
	file       *os.File
	compressor flushWriter
	encoder    *json.Encoder
	digest     *blake3.Hasher
	logger     *slog.Logger
	closed     bool

	startTime      time.Time
	eventCount     int64
	textChunks     int64
	thinkingChunks int64
	toolExecutions int64
	errorCount     int64
	runCount       int64
	inputTokens    int64
	outputTokens   int64
	droppedWrites  int64
}

// Create creates (or truncates) a session log at path.
func Create(path string, options Options) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: creating %q: %w", path, err)
	}
	compressor, err := newCompressor(file, options.Compression)
	if err != nil {
		file.Close()
		return nil, err
	}

	var sink io.Writer = file
	if compressor != nil {
		sink = compressor
	}
	// The digest covers the uncompressed JSONL stream, so it stays
	// comparable across compression settings.
	digest := blake3.New()
	encoder := json.NewEncoder(io.MultiWriter(sink, digest))
	encoder.SetEscapeHTML(false)

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		path:       path,
		file:       file,
		compressor: compressor,
		encoder:    encoder,
		digest:     digest,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// Path returns the log file's path.
func (writer *Writer) Path() string {
	return writer.path
}

// HandleEvent appends one event to the log. Failures are counted and
// logged, never surfaced — a broken session log must not affect the
// run producing it.
func (writer *Writer) HandleEvent(event agent.Event) {
	if err := writer.write(event); err != nil {
		writer.logger.Warn("dropping session log event",
			"type", event.Type,
			"error", err)
	}
}

func (writer *Writer) write(event agent.Event) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		writer.droppedWrites++
		return fmt.Errorf("sessionlog: writer is closed")
	}
	if err := writer.encoder.Encode(event); err != nil {
		writer.droppedWrites++
		return fmt.Errorf("sessionlog: encoding event: %w", err)
	}

	// Make the event durable before returning: flush the compression
	// stream, or sync the file when writing plain JSONL. Session logs
	// are low-throughput, so the cost is acceptable and a crashed
	// process loses at most the event being written.
	if writer.compressor != nil {
		if err := writer.compressor.Flush(); err != nil {
			writer.droppedWrites++
			return fmt.Errorf("sessionlog: flushing: %w", err)
		}
	} else if err := writer.file.Sync(); err != nil {
		writer.droppedWrites++
		return fmt.Errorf("sessionlog: syncing: %w", err)
	}

	writer.eventCount++
	switch event.Type {
	case agent.EventTextChunk:
		writer.textChunks++
	case agent.EventThinkingChunk:
		writer.thinkingChunks++
	case agent.EventToolExecutionStart:
		writer.toolExecutions++
	case agent.EventError:
		writer.errorCount++
	case agent.EventComplete:
		writer.runCount++
		if event.Complete != nil && event.Complete.Metrics != nil {
			writer.inputTokens += int64(event.Complete.Metrics.InputTokens)
			writer.outputTokens += int64(event.Complete.Metrics.OutputTokens)
		}
	}
	return nil
}

// Close flushes and closes the log. Idempotent.
func (writer *Writer) Close() error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.closed {
		return nil
	}
	writer.closed = true

	if writer.compressor != nil {
		if err := writer.compressor.Close(); err != nil {
			writer.file.Close()
			return fmt.Errorf("sessionlog: closing compression stream: %w", err)
		}
	}
	if err := writer.file.Close(); err != nil {
		return fmt.Errorf("sessionlog: closing %q: %w", writer.path, err)
	}
	return nil
}

// Summary aggregates everything written so far.
type Summary struct {
	// EventCount is the number of events persisted.
	EventCount int64 `json:"event_count"`

	// TextChunks and ThinkingChunks count streamed chunk events.
	TextChunks     int64 `json:"text_chunks"`
	ThinkingChunks int64 `json:"thinking_chunks"`

	// ToolExecutions counts tool execution start events.
	ToolExecutions int64 `json:"tool_executions"`

	// ErrorCount counts error events, recoverable included.
	ErrorCount int64 `json:"error_count"`

	// RunCount counts completed runs.
	RunCount int64 `json:"run_count"`

	// InputTokens and OutputTokens sum the usage reported by
	// complete events.
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`

	// DroppedWrites counts events that failed to persist.
	DroppedWrites int64 `json:"dropped_writes"`

	// Digest is the hex BLAKE3 digest of the uncompressed JSONL
	// stream written so far.
	Digest string `json:"digest"`

	// Duration is how long the log has been open.
	Duration time.Duration `json:"duration"`
}

// Summary returns the aggregate counters for the log.
func (writer *Writer) Summary() Summary {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return Summary{
		EventCount:     writer.eventCount,
		TextChunks:     writer.textChunks,
		ThinkingChunks: writer.thinkingChunks,
		ToolExecutions: writer.toolExecutions,
		ErrorCount:     writer.errorCount,
		RunCount:       writer.runCount,
		InputTokens:    writer.inputTokens,
		OutputTokens:   writer.outputTokens,
		DroppedWrites:  writer.droppedWrites,
		Digest:         hex.EncodeToString(writer.digest.Sum(nil)),
		Duration:       time.Since(writer.startTime),
	}
}

// ReadFile loads a session log written with the given compression and
// returns its events in order.
func ReadFile(path string, compression Compression) ([]agent.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: opening %q: %w", path, err)
	}
	defer file.Close()

	source, err := newDecompressor(file, compression)
	if err != nil {
		return nil, err
	}

	var events []agent.Event
	decoder := json.NewDecoder(source)
	for {
		var event agent.Event
		if err := decoder.Decode(&event); err == io.EOF {
			return events, nil
		} else if err != nil {
			return nil, fmt.Errorf("sessionlog: decoding event %d of %q: %w", len(events), path, err)
		}
		events = append(events, event)
	}
}
