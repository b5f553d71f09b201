// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider names to Provider implementations. The
// engine resolves an agent's provider name against a Registry at run
// start; a name with no registered provider aborts the run.
//
// Safe for concurrent use.
type Registry struct {
	mutex     sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under the given name, replacing any
// previous registration for that name.
func (registry *Registry) Register(name string, provider Provider) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.providers[name] = provider
}

// Provider returns the provider registered under name.
func (registry *Registry) Provider(name string) (Provider, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	provider, found := registry.providers[name]
	if !found {
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
	return provider, nil
}

// Names returns the registered provider names in sorted order.
func (registry *Registry) Names() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
