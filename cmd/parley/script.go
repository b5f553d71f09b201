// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/parley-foundation/parley/lib/llm"
	llmcontext "github.com/parley-foundation/parley/lib/llm/context"
)

// providerScripted is the provider name the binary registers. Agent
// definitions that name other providers fail at run start with an
// unknown-provider error.
const providerScripted = "scripted"

// defaultModel is the model name used when neither the agent
// definition nor the config supplies one. Cosmetic: the scripted
// provider serves any model name it is asked for.
const defaultModel = "parley-demo-1"

// scriptFile is the yaml form of a provider script.
type scriptFile struct {
	Steps []scriptStep `yaml:"steps"`
}

// scriptStep is one scripted model response. A step with tool calls
// replays as a tool-use response; the run loop executes the calls and
// comes back for the next step.
type scriptStep struct {
	// Text is the response text.
	Text string `yaml:"text"`

	// Thinking, when set, streams as a reasoning block before the
	// text. Non-streaming calls ignore it.
	Thinking string `yaml:"thinking"`

	// ToolCalls are tools the step asks the runtime to execute.
	ToolCalls []scriptToolCall `yaml:"tool_calls"`
}

// scriptToolCall names one tool invocation in a script. Arguments is
// the JSON arguments object as a string; empty means "{}".
type scriptToolCall struct {
	Tool      string `yaml:"tool"`
	Arguments string `yaml:"arguments"`
}

// loadScript reads a provider script. An empty path returns the
// built-in demo script.
func loadScript(path string) ([]scriptStep, error) {
	if path == "" {
		return demoScript(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("script %s has no steps", path)
	}
	return file.Steps, nil
}

// demoScript exercises a tool round-trip followed by a streamed
// answer, so a bare `parley "hi"` demonstrates the whole loop.
func demoScript() []scriptStep {
	return []scriptStep{
		{
			Thinking: "The user wants a demonstration. I should check the clock first.",
			Text:     "Let me check the current time.",
			ToolCalls: []scriptToolCall{
				{Tool: "current_time", Arguments: `{"format": "kitchen"}`},
			},
		},
		{
			Text: "There we go. Everything you just saw ran offline against a " +
				"scripted provider. Supply your own script file and agent " +
				"definition to change the conversation.",
		},
	}
}

// scriptProvider implements [llm.Provider] by replaying scripted
// steps, which keeps the binary fully offline. Steps are consumed one
// per model call; after the script is exhausted the last step repeats,
// so interactive sessions keep answering.
//
// Streaming calls chunk the step text into word-sized deltas rather
// than delivering it in one piece, which makes console rendering look
// like a live stream. Usage numbers come from the heuristic token
// estimator, so run metrics carry plausible totals.
type scriptProvider struct {
	mutex  sync.Mutex
	steps  []scriptStep
	index  int
	callID int
}

func newScriptProvider(steps []scriptStep) *scriptProvider {
	return &scriptProvider{steps: steps}
}

// Complete replays the next step as a non-streaming completion.
func (provider *scriptProvider) Complete(ctx context.Context, request llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, response := provider.next(request)
	return response, nil
}

// Stream replays the next step as a sequence of stream events.
func (provider *scriptProvider) Stream(ctx context.Context, request llm.Request) (*llm.EventStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, response := provider.next(request)
	events := streamEvents(step, response)

	index := 0
	stream := llm.NewEventStream(func() (llm.StreamEvent, error) {
		if err := ctx.Err(); err != nil {
			return llm.StreamEvent{}, err
		}
		if index >= len(events) {
			return llm.StreamEvent{}, io.EOF
		}
		event := events[index]
		index++
		return event, nil
	}, nil)
	stream.SetUsage(response.Usage)
	stream.SetStopReason(response.StopReason)
	return stream, nil
}

// next consumes one step and assembles its response. Tool call IDs
// are unique across the provider's lifetime so multi-turn transcripts
// stay unambiguous.
func (provider *scriptProvider) next(request llm.Request) (scriptStep, *llm.Response) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	step := provider.steps[provider.index]
	if provider.index < len(provider.steps)-1 {
		provider.index++
	}

	model := request.Model
	if model == "" {
		model = defaultModel
	}
	response := &llm.Response{
		Content:    step.Text,
		Model:      model,
		StopReason: llm.StopEndTurn,
	}
	for _, call := range step.ToolCalls {
		provider.callID++
		arguments := call.Arguments
		if arguments == "" {
			arguments = "{}"
		}
		response.ToolCalls = append(response.ToolCalls, llm.ToolCall{
			ID:       fmt.Sprintf("call-%d", provider.callID),
			Function: llm.FunctionCall{Name: call.Tool, Arguments: arguments},
		})
	}
	if len(response.ToolCalls) > 0 {
		response.StopReason = llm.StopToolUse
	}
	response.Usage = scriptUsage(request, response)
	return step, response
}

// scriptUsage estimates token usage for a scripted call with the same
// heuristic the context window manager uses.
func scriptUsage(request llm.Request, response *llm.Response) llm.Usage {
	estimator := llmcontext.HeuristicEstimator{}
	input := 0
	for _, message := range request.Messages {
		input += estimator.EstimateMessage(message)
	}
	output := estimator.EstimateMessage(response.Message())
	return llm.Usage{
		InputTokens:  int64(input),
		OutputTokens: int64(output),
	}
}

// streamEvents expands a scripted response into the event sequence a
// live provider would emit.
func streamEvents(step scriptStep, response *llm.Response) []llm.StreamEvent {
	events := []llm.StreamEvent{{Type: llm.EventMessageStart, Model: response.Model}}
	if step.Thinking != "" {
		events = append(events, llm.StreamEvent{Type: llm.EventThinkingStart})
		for _, delta := range chunkText(step.Thinking) {
			events = append(events, llm.StreamEvent{Type: llm.EventThinkingDelta, Delta: delta})
		}
		events = append(events, llm.StreamEvent{Type: llm.EventThinkingDone})
	}
	if response.Content != "" {
		events = append(events, llm.StreamEvent{Type: llm.EventTextStart})
		for _, delta := range chunkText(response.Content) {
			events = append(events, llm.StreamEvent{Type: llm.EventTextDelta, Delta: delta})
		}
	}
	for index := range response.ToolCalls {
		call := response.ToolCalls[index]
		events = append(events, llm.StreamEvent{Type: llm.EventToolCall, ToolCall: &call})
	}
	return append(events, llm.StreamEvent{Type: llm.EventMessageDone})
}

// chunkText splits text at word boundaries, keeping separators, so
// concatenating the chunks reproduces the input exactly.
func chunkText(text string) []string {
	parts := strings.SplitAfter(text, " ")
	chunks := parts[:0]
	for _, part := range parts {
		if part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks
}
