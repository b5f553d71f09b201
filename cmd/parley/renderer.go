// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/parley-foundation/parley/lib/agent"
)

// consoleRenderer renders events for a human: response text to stdout
// as it streams, tool and error notices to stderr. For non-streamed
// runs the final answer prints on completion instead.
type consoleRenderer struct {
	mutex sync.Mutex
	out   io.Writer
	diag  io.Writer

	midLine   bool
	sawText   bool
	toolNames map[string]string
}

func newConsoleRenderer(out, diag io.Writer) *consoleRenderer {
	return &consoleRenderer{
		out:       out,
		diag:      diag,
		toolNames: make(map[string]string),
	}
}

func (renderer *consoleRenderer) HandleEvent(event agent.Event) {
	renderer.mutex.Lock()
	defer renderer.mutex.Unlock()

	switch event.Type {
	case agent.EventTextChunk:
		if event.TextChunk == nil {
			return
		}
		fmt.Fprint(renderer.out, event.TextChunk.Delta)
		renderer.midLine = !strings.HasSuffix(event.TextChunk.Delta, "\n")
		renderer.sawText = true

	case agent.EventToolExecutionStart:
		start := event.ToolExecutionStart
		if start == nil {
			return
		}
		renderer.toolNames[start.ToolCallID] = start.ToolName
		renderer.breakLine()
		suffix := ""
		if start.LongRunning {
			suffix = " (long-running)"
		}
		fmt.Fprintf(renderer.diag, "[tool] %s %s%s\n", start.ToolName, start.Arguments, suffix)

	case agent.EventToolExecutionComplete:
		done := event.ToolExecutionComplete
		if done == nil {
			return
		}
		name := renderer.toolNames[done.ToolCallID]
		if name == "" {
			name = done.ToolCallID
		}
		delete(renderer.toolNames, done.ToolCallID)
		fmt.Fprintf(renderer.diag, "[tool] %s returned in %dms: %s\n",
			name, done.DurationMillis, preview(done.Result))

	case agent.EventError:
		if event.Error == nil {
			return
		}
		renderer.breakLine()
		suffix := ""
		if event.Error.Recoverable {
			suffix = " (recovering)"
		}
		fmt.Fprintf(renderer.diag, "[error] %s%s\n", event.Error.Message, suffix)

	case agent.EventComplete:
		renderer.breakLine()
		if !renderer.sawText && event.Complete != nil && event.Complete.Response != "" {
			fmt.Fprintln(renderer.out, event.Complete.Response)
		}
		renderer.sawText = false
	}
}

// breakLine terminates a partially printed text line before a notice
// interrupts it.
func (renderer *consoleRenderer) breakLine() {
	if renderer.midLine {
		fmt.Fprintln(renderer.out)
		renderer.midLine = false
	}
}

// preview renders a tool result as a single bounded console line.
func preview(result string) string {
	if index := strings.IndexByte(result, '\n'); index >= 0 {
		result = result[:index] + " ..."
	}
	const limit = 96
	runes := []rune(result)
	if len(runes) > limit {
		result = string(runes[:limit]) + "..."
	}
	return result
}

// jsonlRenderer writes each event as one JSON line, the same encoding
// session logs use, so downstream tooling can consume a run from
// stdout directly.
type jsonlRenderer struct {
	mutex   sync.Mutex
	encoder *json.Encoder
	logger  *slog.Logger
}

func newJSONLRenderer(out io.Writer, logger *slog.Logger) *jsonlRenderer {
	return &jsonlRenderer{
		encoder: json.NewEncoder(out),
		logger:  logger,
	}
}

func (renderer *jsonlRenderer) HandleEvent(event agent.Event) {
	renderer.mutex.Lock()
	defer renderer.mutex.Unlock()
	if err := renderer.encoder.Encode(event); err != nil {
		renderer.logger.Warn("writing event failed", "type", event.Type, "error", err)
	}
}

// multiRenderer forwards each event to every underlying renderer.
type multiRenderer []agent.Renderer

func (renderers multiRenderer) HandleEvent(event agent.Event) {
	for _, renderer := range renderers {
		renderer.HandleEvent(event)
	}
}
