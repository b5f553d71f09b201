// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parley-foundation/parley/lib/config"
)

func writeAgentFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDescriptorBuiltin(t *testing.T) {
	t.Parallel()
	descriptor, err := loadDescriptor("", config.Default())
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if descriptor.Name != "parley" {
		t.Errorf("name = %q, want parley", descriptor.Name)
	}
	if descriptor.Provider != providerScripted {
		t.Errorf("provider = %q, want %q", descriptor.Provider, providerScripted)
	}
	if descriptor.Model != defaultModel {
		t.Errorf("model = %q, want %q", descriptor.Model, defaultModel)
	}
	if !descriptor.Stream {
		t.Error("built-in descriptor should stream by default")
	}
	if err := descriptor.Validate(); err != nil {
		t.Errorf("built-in descriptor invalid: %v", err)
	}
}

func TestLoadDescriptorMergesConfigFallbacks(t *testing.T) {
	t.Parallel()
	path := writeAgentFile(t, `{
		// Minimal definition: everything else comes from config.
		"name": "researcher",
		"system_prompt": "You research things.",
		"tools": ["echo"],
	}`)

	configuration := config.Default()
	configuration.Runtime.Model = "claude-sonnet-4-5"
	configuration.Runtime.Stream = false
	configuration.Runtime.ProtectedTurns = 3

	descriptor, err := loadDescriptor(path, configuration)
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if descriptor.Name != "researcher" {
		t.Errorf("name = %q, want researcher", descriptor.Name)
	}
	if descriptor.Provider != providerScripted {
		t.Errorf("provider = %q, want the config fallback", descriptor.Provider)
	}
	if descriptor.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q, want the config fallback", descriptor.Model)
	}
	if descriptor.Stream {
		t.Error("stream should follow config when the file omits it")
	}
	if descriptor.ProtectedTurns != 3 {
		t.Errorf("protected turns = %d, want the config fallback", descriptor.ProtectedTurns)
	}
	if len(descriptor.Tools) != 1 || descriptor.Tools[0] != "echo" {
		t.Errorf("tools = %v, want the file's allow-list", descriptor.Tools)
	}
}

func TestLoadDescriptorFileWinsOverConfig(t *testing.T) {
	t.Parallel()
	path := writeAgentFile(t, `{
		"name": "planner",
		"provider": "scripted",
		"model": "planner-model",
		"stream": true,
		"protected_turns": 2,
	}`)

	configuration := config.Default()
	configuration.Runtime.Model = "other-model"
	configuration.Runtime.Stream = false
	configuration.Runtime.ProtectedTurns = 5

	descriptor, err := loadDescriptor(path, configuration)
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if descriptor.Model != "planner-model" {
		t.Errorf("model = %q, want the file's value", descriptor.Model)
	}
	if !descriptor.Stream {
		t.Error("stream should follow the file when it sets one")
	}
	if descriptor.ProtectedTurns != 2 {
		t.Errorf("protected turns = %d, want the file's value", descriptor.ProtectedTurns)
	}
}

func TestLoadDescriptorScriptedModelFallback(t *testing.T) {
	t.Parallel()
	path := writeAgentFile(t, `{"name": "minimal"}`)

	// No model anywhere: the scripted provider gets the demo model
	// name rather than a validation failure.
	descriptor, err := loadDescriptor(path, config.Default())
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if descriptor.Model != defaultModel {
		t.Errorf("model = %q, want %q", descriptor.Model, defaultModel)
	}
}

func TestLoadDescriptorRejectsInvalid(t *testing.T) {
	t.Parallel()
	path := writeAgentFile(t, `{
		"name": "broken",
		"model": "m",
		"reasoning_effort": "extreme",
	}`)
	if _, err := loadDescriptor(path, config.Default()); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestLoadConfigurationPrecedence(t *testing.T) {
	directory := t.TempDir()
	envPath := filepath.Join(directory, "env.yaml")
	flagPath := filepath.Join(directory, "flag.yaml")
	if err := os.WriteFile(envPath, []byte("agent: env.jsonc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(flagPath, []byte("agent: flag.jsonc\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PARLEY_CONFIG", envPath)

	fromFlag, err := loadConfiguration(flagPath)
	if err != nil {
		t.Fatalf("loadConfiguration with explicit path: %v", err)
	}
	if fromFlag.Agent != "flag.jsonc" {
		t.Errorf("explicit path should win over PARLEY_CONFIG, got agent %q", fromFlag.Agent)
	}

	fromEnv, err := loadConfiguration("")
	if err != nil {
		t.Fatalf("loadConfiguration from env: %v", err)
	}
	if fromEnv.Agent != "env.jsonc" {
		t.Errorf("PARLEY_CONFIG not honored, got agent %q", fromEnv.Agent)
	}

	t.Setenv("PARLEY_CONFIG", "")
	defaults, err := loadConfiguration("")
	if err != nil {
		t.Fatalf("loadConfiguration defaults: %v", err)
	}
	if defaults.Runtime.Provider != providerScripted {
		t.Errorf("default provider = %q, want %q", defaults.Runtime.Provider, providerScripted)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for name, want := range cases {
		if got := parseLogLevel(name); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
