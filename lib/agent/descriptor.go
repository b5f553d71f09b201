// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
	"time"
)

// Descriptor identifies an agent: which provider and model it talks
// to, which tools it may call, and how its runs behave. Descriptors
// are value objects — typically parsed from an agent definition file
// and passed to [Engine.Run] unchanged.
type Descriptor struct {
	// Name identifies the agent in logs and telemetry.
	Name string

	// Provider names the registered LLM provider to call.
	Provider string

	// Model is the provider's model identifier.
	Model string

	// SystemPrompt seeds new conversations as the system message.
	// Ignored when the supplied history already starts with one.
	SystemPrompt string

	// Tools is the allow-list of tool names this agent may call.
	// Empty means every registered tool.
	Tools []string

	// MaxTokens caps output tokens per model response. Zero means
	// 4096.
	MaxTokens int

	// Temperature overrides the provider's default sampling
	// temperature when non-nil.
	Temperature *float64

	// ReasoningEffort requests a reasoning level from models that
	// support it: "low", "medium", or "high". Empty omits the field
	// from requests.
	ReasoningEffort string

	// Stream makes runs stream by default. Run options can force
	// either direction per call.
	Stream bool

	// StreamTimeout bounds one streaming attempt. Zero means the
	// engine default of 5 minutes.
	StreamTimeout time.Duration

	// ContextWindow overrides the model's context window in tokens.
	// Zero means lookup by model name.
	ContextWindow int

	// ProtectedTurns is how many of the most recent conversation
	// turns survive history trimming verbatim. Zero means 1.
	ProtectedTurns int

	// MaxIterations bounds the model-call/tool-execution loop for
	// this agent. Zero means the engine default. Run options take
	// precedence over both.
	MaxIterations int
}

// Validate reports every problem with the descriptor.
func (descriptor Descriptor) Validate() error {
	var problems []error
	if descriptor.Name == "" {
		problems = append(problems, errors.New("agent name is required"))
	}
	if descriptor.Provider == "" {
		problems = append(problems, errors.New("provider is required"))
	}
	if descriptor.Model == "" {
		problems = append(problems, errors.New("model is required"))
	}
	if descriptor.MaxTokens < 0 {
		problems = append(problems, fmt.Errorf("max tokens must not be negative, got %d", descriptor.MaxTokens))
	}
	if descriptor.ContextWindow < 0 {
		problems = append(problems, fmt.Errorf("context window must not be negative, got %d", descriptor.ContextWindow))
	}
	if descriptor.ProtectedTurns < 0 {
		problems = append(problems, fmt.Errorf("protected turns must not be negative, got %d", descriptor.ProtectedTurns))
	}
	if descriptor.MaxIterations < 0 {
		problems = append(problems, fmt.Errorf("max iterations must not be negative, got %d", descriptor.MaxIterations))
	}
	switch descriptor.ReasoningEffort {
	case "", "low", "medium", "high":
	default:
		problems = append(problems, fmt.Errorf("reasoning effort must be low, medium, or high, got %q", descriptor.ReasoningEffort))
	}
	if descriptor.Temperature != nil {
		if *descriptor.Temperature < 0 || *descriptor.Temperature > 2 {
			problems = append(problems, fmt.Errorf("temperature must be between 0 and 2, got %g", *descriptor.Temperature))
		}
	}
	if descriptor.StreamTimeout < 0 {
		problems = append(problems, fmt.Errorf("stream timeout must not be negative, got %s", descriptor.StreamTimeout))
	}
	return errors.Join(problems...)
}
