// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentdef provides parsing for agent definition files.
// Definitions are authored on disk as JSONC (JSON extended with
// comments and trailing commas) and describe everything an agent
// needs to run: provider, model, system prompt, tool allow-list, and
// run behavior.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Definition
//  2. Merge runtime defaults for fields the file leaves unset
//     (provider, model, streaming)
//  3. Definition.Descriptor: wire form → agent.Descriptor
//  4. Descriptor.Validate before the first run
package agentdef

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/parley-foundation/parley/lib/agent"
)

// Definition is the wire form of an agent definition file. Fields
// mirror [agent.Descriptor] except where noted: Stream is a pointer
// so an unset value can fall back to the runtime default, and
// StreamTimeout is a duration string.
type Definition struct {
	Name            string   `json:"name"`
	Provider        string   `json:"provider"`
	Model           string   `json:"model"`
	SystemPrompt    string   `json:"system_prompt"`
	Tools           []string `json:"tools"`
	MaxTokens       int      `json:"max_tokens"`
	Temperature     *float64 `json:"temperature"`
	ReasoningEffort string   `json:"reasoning_effort"`
	Stream          *bool    `json:"stream"`
	StreamTimeout   string   `json:"stream_timeout"`
	ContextWindow   int      `json:"context_window"`
	ProtectedTurns  int      `json:"protected_turns"`
	MaxIterations   int      `json:"max_iterations"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Definition.
func Parse(data []byte) (*Definition, error) {
	stripped := jsonc.ToJSON(data)

	var definition Definition
	if err := json.Unmarshal(stripped, &definition); err != nil {
		return nil, fmt.Errorf("parsing agent definition: %w", err)
	}

	return &definition, nil
}

// ReadFile reads a JSONC agent definition from disk and parses it.
// When the file does not set a name, the file's base name (without
// extension) is used.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if definition.Name == "" {
		definition.Name = nameFromPath(path)
	}

	return definition, nil
}

// Descriptor converts the wire form into an agent.Descriptor. An
// unset Stream maps to false; callers that support a runtime default
// should check Definition.Stream for nil before overriding. The
// descriptor is not validated here — merge defaults first, then call
// Descriptor.Validate.
func (d *Definition) Descriptor() (agent.Descriptor, error) {
	descriptor := agent.Descriptor{
		Name:            d.Name,
		Provider:        d.Provider,
		Model:           d.Model,
		SystemPrompt:    d.SystemPrompt,
		Tools:           d.Tools,
		MaxTokens:       d.MaxTokens,
		Temperature:     d.Temperature,
		ReasoningEffort: d.ReasoningEffort,
		ContextWindow:   d.ContextWindow,
		ProtectedTurns:  d.ProtectedTurns,
		MaxIterations:   d.MaxIterations,
	}

	if d.Stream != nil {
		descriptor.Stream = *d.Stream
	}

	if d.StreamTimeout != "" {
		timeout, err := time.ParseDuration(d.StreamTimeout)
		if err != nil {
			return agent.Descriptor{}, fmt.Errorf("agent definition %s: stream_timeout: %w", d.Name, err)
		}
		descriptor.StreamTimeout = timeout
	}

	return descriptor, nil
}

// nameFromPath extracts an agent name from a file path by stripping
// the directory prefix and the file extension.
func nameFromPath(path string) string {
	base := filepath.Base(path)
	extension := filepath.Ext(base)
	return strings.TrimSuffix(base, extension)
}
