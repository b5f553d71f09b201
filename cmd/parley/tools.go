// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/tool"
)

// registerBuiltinTools installs the demo tools. The catalog is
// deliberately small: enough to demonstrate tool round-trips,
// argument validation, and long-running execution without touching
// the network.
func registerBuiltinTools(registry *tool.Registry, clk clock.Clock) error {
	tools := []struct {
		definition tool.Definition
		handler    tool.Handler
	}{
		{
			definition: tool.Definition{
				Name:        "current_time",
				Description: "Returns the current time. Use when the user asks about the time or date.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"format": {
							"type": "string",
							"enum": ["rfc3339", "kitchen", "date"],
							"description": "Output format. Defaults to rfc3339."
						}
					}
				}`),
			},
			handler: currentTimeHandler(clk),
		},
		{
			definition: tool.Definition{
				Name:        "echo",
				Description: "Returns the given text, optionally repeated. Useful for testing the tool loop.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"text": {
							"type": "string",
							"description": "Text to echo back."
						},
						"repeat": {
							"type": "integer",
							"minimum": 1,
							"maximum": 10,
							"description": "How many times to repeat the text. Defaults to 1."
						}
					},
					"required": ["text"]
				}`),
			},
			handler: echoHandler,
		},
		{
			definition: tool.Definition{
				Name:        "sleep",
				Description: "Waits for the given number of seconds, then returns. Demonstrates long-running tool execution.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"seconds": {
							"type": "number",
							"exclusiveMinimum": 0,
							"maximum": 30,
							"description": "How long to wait."
						}
					},
					"required": ["seconds"]
				}`),
				LongRunning: true,
			},
			handler: sleepHandler(clk),
		},
	}

	for _, entry := range tools {
		if err := registry.Register(entry.definition, entry.handler); err != nil {
			return err
		}
	}
	return nil
}

func currentTimeHandler(clk clock.Clock) tool.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		format := time.RFC3339
		switch name, _ := args["format"].(string); name {
		case "", "rfc3339":
		case "kitchen":
			format = time.Kitchen
		case "date":
			format = time.DateOnly
		default:
			return nil, fmt.Errorf("unknown format %q (want rfc3339, kitchen, or date)", name)
		}
		return clk.Now().Format(format), nil
	}
}

func echoHandler(ctx context.Context, args map[string]any) (any, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("echo requires a non-empty text argument")
	}

	// JSON numbers decode as float64.
	repeat := 1
	if value, present := args["repeat"]; present {
		number, ok := value.(float64)
		if !ok || number != math.Trunc(number) || number < 1 || number > 10 {
			return nil, fmt.Errorf("repeat must be an integer between 1 and 10")
		}
		repeat = int(number)
	}

	lines := make([]string, repeat)
	for index := range lines {
		lines[index] = text
	}
	return strings.Join(lines, "\n"), nil
}

func sleepHandler(clk clock.Clock) tool.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		seconds, ok := args["seconds"].(float64)
		if !ok || seconds <= 0 || seconds > 30 {
			return nil, fmt.Errorf("seconds must be between 0 and 30")
		}
		duration := time.Duration(seconds * float64(time.Second))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(duration):
		}
		return fmt.Sprintf("slept %s", duration), nil
	}
}
