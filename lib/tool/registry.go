// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound reports a lookup for a tool the registry does not hold.
var ErrNotFound = errors.New("tool not found")

// Definition describes one tool to the model.
type Definition struct {
	// Name identifies the tool in model tool calls.
	Name string `json:"name"`

	// Description tells the model what the tool does and when to use
	// it.
	Description string `json:"description"`

	// Parameters is the JSON Schema for the tool's arguments,
	// serialized as JSON.
	Parameters json.RawMessage `json:"parameters,omitempty"`

	// LongRunning marks tools whose executions take long enough that
	// renderers should show progress affordances.
	LongRunning bool `json:"long_running,omitempty"`
}

// Handler executes one tool call. args is the parsed arguments
// object. The returned value becomes the tool result content: strings
// are used verbatim, anything else is serialized as JSON. A returned
// error becomes an error result message for the model — it does not
// abort the run.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry holds the tools available to agents. Safe for concurrent
// use; registration typically happens once at startup.
type Registry struct {
	mutex sync.RWMutex
	tools map[string]registration
}

type registration struct {
	definition Definition
	handler    Handler
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registration),
	}
}

// Register adds a tool. The name must be non-empty and not already
// registered, and the handler must be non-nil.
func (registry *Registry) Register(definition Definition, handler Handler) error {
	if definition.Name == "" {
		return fmt.Errorf("tool: registering tool with empty name")
	}
	if handler == nil {
		return fmt.Errorf("tool: registering %q with nil handler", definition.Name)
	}

	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if _, exists := registry.tools[definition.Name]; exists {
		return fmt.Errorf("tool: %q already registered", definition.Name)
	}
	registry.tools[definition.Name] = registration{
		definition: definition,
		handler:    handler,
	}
	return nil
}

// Get returns the handler for name. A miss wraps [ErrNotFound].
func (registry *Registry) Get(name string) (Handler, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	entry, found := registry.tools[name]
	if !found {
		return nil, fmt.Errorf("tool: %q: %w", name, ErrNotFound)
	}
	return entry.handler, nil
}

// Definition returns the definition for name. A miss wraps
// [ErrNotFound].
func (registry *Registry) Definition(name string) (Definition, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	entry, found := registry.tools[name]
	if !found {
		return Definition{}, fmt.Errorf("tool: %q: %w", name, ErrNotFound)
	}
	return entry.definition, nil
}

// Definitions returns every registered definition sorted by name.
// The engine sends these with each model request.
func (registry *Registry) Definitions() []Definition {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	definitions := make([]Definition, 0, len(registry.tools))
	for _, entry := range registry.tools {
		definitions = append(definitions, entry.definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Name < definitions[j].Name
	})
	return definitions
}

// Names returns the registered tool names in sorted order.
func (registry *Registry) Names() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	names := make([]string, 0, len(registry.tools))
	for name := range registry.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
