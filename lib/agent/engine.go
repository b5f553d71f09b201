// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/llm"
	llmcontext "github.com/parley-foundation/parley/lib/llm/context"
	"github.com/parley-foundation/parley/lib/retry"
	"github.com/parley-foundation/parley/lib/tool"
)

const (
	// defaultMaxIterations bounds the model-call/tool-execution loop
	// when neither the engine config, the descriptor, nor the run
	// options set a limit.
	defaultMaxIterations = 25

	// defaultStreamTimeout bounds one streaming attempt when neither
	// the engine config nor the descriptor sets one.
	defaultStreamTimeout = 5 * time.Minute

	// defaultMaxOutputTokens caps a response when the descriptor does
	// not.
	defaultMaxOutputTokens = 4096

	// fallbackUserMessage is sent when the outbound message list is
	// somehow empty, rather than sending an empty request.
	fallbackUserMessage = "Continue."
)

// Config configures an [Engine].
type Config struct {
	// Providers resolves descriptor provider names. Required.
	Providers *llm.Registry

	// Tools holds the tools agents may call. Required; may be empty.
	Tools *tool.Registry

	// Renderer receives run events. If nil, events are discarded.
	// Run options can override it per run.
	Renderer Renderer

	// Metrics receives finalized run metrics. If nil, metrics are
	// discarded. Sink errors are logged, never returned.
	Metrics MetricsSink

	// Retry shapes model-call retry behavior. The zero value applies
	// the package defaults (3 retries, 1s initial backoff, doubling,
	// rate-limit errors only).
	Retry retry.Policy

	// StreamTimeout bounds one streaming attempt for agents without
	// their own. If zero, 5 minutes.
	StreamTimeout time.Duration

	// MaxIterations bounds the run loop for agents without their
	// own. If zero, 25.
	MaxIterations int

	// Clock supplies time. If nil, the real clock is used.
	Clock clock.Clock

	// Logger receives run logs. If nil, logs are discarded.
	Logger *slog.Logger
}

// Engine executes agent runs: the iterate loop of model calls and
// tool executions described in the package documentation. One Engine
// serves any number of concurrent runs; each run owns its own
// history and tracker.
type Engine struct {
	providers     *llm.Registry
	tools         *tool.Registry
	renderer      Renderer
	metrics       MetricsSink
	retryPolicy   retry.Policy
	streamTimeout time.Duration
	maxIterations int
	clock         clock.Clock
	logger        *slog.Logger
}

// New creates an Engine from the config.
func New(config Config) (*Engine, error) {
	if config.Providers == nil {
		return nil, fmt.Errorf("agent: Config.Providers is required")
	}
	if config.Tools == nil {
		return nil, fmt.Errorf("agent: Config.Tools is required")
	}
	renderer := config.Renderer
	if renderer == nil {
		renderer = NopRenderer{}
	}
	streamTimeout := config.StreamTimeout
	if streamTimeout <= 0 {
		streamTimeout = defaultStreamTimeout
	}
	maxIterations := config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	engineClock := config.Clock
	if engineClock == nil {
		engineClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		providers:     config.Providers,
		tools:         config.Tools,
		renderer:      renderer,
		metrics:       config.Metrics,
		retryPolicy:   config.Retry,
		streamTimeout: streamTimeout,
		maxIterations: maxIterations,
		clock:         engineClock,
		logger:        logger,
	}, nil
}

// RunOptions parameterize one run.
type RunOptions struct {
	// Agent selects the provider, model, tools, and behavior.
	Agent Descriptor

	// UserInput is the new user message for this turn.
	UserInput string

	// ConversationID and UserID label logs and telemetry. Optional.
	ConversationID string
	UserID         string

	// MaxIterations overrides the descriptor's and engine's limits
	// when positive.
	MaxIterations int

	// ConversationHistory is the prior conversation, as returned in
	// [RunResponse.Messages] by the previous run. Nil starts fresh.
	ConversationHistory []llm.ChatMessage

	// ForceStream and ForceNoStream override the descriptor's
	// streaming preference. ForceNoStream wins when both are set.
	ForceStream   bool
	ForceNoStream bool

	// Renderer overrides the engine's renderer for this run.
	Renderer Renderer
}

// RunResponse is the outcome of one run.
type RunResponse struct {
	// Content is the terminal answer text. Empty when the run hit
	// its iteration limit on a tool-call response.
	Content string `json:"content"`

	// ToolCalls are all tool calls the model made across the run.
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`

	// ToolResults are the outcomes of those calls, in execution
	// order.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	// Messages is the updated conversation history, including any
	// trimming the run performed. Pass it back as
	// [RunOptions.ConversationHistory] to continue the conversation.
	Messages []llm.ChatMessage `json:"messages"`

	// WasStreamed is true when the run resolved to streaming mode,
	// even if a failed stream fell back to non-streaming.
	WasStreamed bool `json:"was_streamed"`
}

// Run executes one agent turn: it assembles the conversation, then
// loops model calls and tool executions until the model produces an
// answer without tool calls or the iteration limit is reached.
//
// Run fails only on an invalid descriptor, an unknown provider, a
// non-retryable model error, a retry-exhausted rate limit with no
// streaming fallback left, or a call to an unregistered tool. Tool
// handler failures and stream timeouts are absorbed into the
// conversation instead.
func (engine *Engine) Run(ctx context.Context, options RunOptions) (*RunResponse, error) {
	descriptor := options.Agent
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("agent: invalid descriptor: %w", err)
	}

	runID := uuid.NewString()
	logger := engine.logger.With(
		"run_id", runID,
		"agent", descriptor.Name,
		"model", descriptor.Model)
	if options.ConversationID != "" {
		logger = logger.With("conversation_id", options.ConversationID)
	}
	if options.UserID != "" {
		logger = logger.With("user_id", options.UserID)
	}

	provider, err := engine.providers.Provider(descriptor.Provider)
	if err != nil {
		return nil, fmt.Errorf("agent: resolving provider: %w", err)
	}

	renderer := options.Renderer
	if renderer == nil {
		renderer = engine.renderer
	}

	tracker := NewRunTracker(runID, descriptor.Name, descriptor.Model, engine.clock.Now())

	streaming := descriptor.Stream
	if options.ForceStream {
		streaming = true
	}
	if options.ForceNoStream {
		streaming = false
	}
	if streaming {
		tracker.RecordStreamed()
	}

	maxIterations := engine.maxIterations
	if descriptor.MaxIterations > 0 {
		maxIterations = descriptor.MaxIterations
	}
	if options.MaxIterations > 0 {
		maxIterations = options.MaxIterations
	}

	streamTimeout := engine.streamTimeout
	if descriptor.StreamTimeout > 0 {
		streamTimeout = descriptor.StreamTimeout
	}

	definitions := engine.toolCatalog(descriptor, logger)
	history := assembleHistory(descriptor, options)
	window := engine.newWindow(descriptor)

	policy := engine.retryPolicy
	policy.Clock = engine.clock
	policy.Logger = logger
	configuredOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		tracker.RecordRetry()
		if configuredOnRetry != nil {
			configuredOnRetry(attempt, err)
		}
	}

	executor := &toolExecutor{
		registry: engine.tools,
		renderer: renderer,
		tracker:  tracker,
		clock:    engine.clock,
		logger:   logger,
	}

	logger.Info("run started",
		"streaming", streaming,
		"max_iterations", maxIterations,
		"tools", len(definitions))

	var lastResponse *llm.Response
	var allToolCalls []llm.ToolCall
	var allToolResults []ToolResult
	finished := false

	for iteration := 1; iteration <= maxIterations; iteration++ {
		logger.Debug("run state", "state", "building_request", "iteration", iteration)

		trimmed, trimResult := window.Trim(history)
		if trimResult != nil {
			history = trimmed
			logger.Info("trimmed conversation history",
				"removed", trimResult.MessagesRemoved,
				"kept", trimResult.TrimmedCount,
				"estimated_tokens", trimResult.EstimatedTokens)
		}
		if len(history) == 0 {
			history = []llm.ChatMessage{llm.UserMessage(fallbackUserMessage)}
		}

		request := llm.Request{
			Model:           descriptor.Model,
			Messages:        history,
			Tools:           definitions,
			MaxTokens:       resolveMaxTokens(descriptor),
			Temperature:     descriptor.Temperature,
			ReasoningEffort: descriptor.ReasoningEffort,
		}

		logger.Debug("run state", "state", "awaiting_model", "iteration", iteration)
		tracker.RecordIteration()

		var response *llm.Response
		if streaming {
			response, err = engine.completeStreaming(ctx, provider, descriptor.Provider, request, policy, renderer, streamTimeout, logger)
		} else {
			response, err = retry.Do(ctx, policy, "chat completion",
				func(ctx context.Context) (*llm.Response, error) {
					return provider.Complete(ctx, request)
				})
		}
		if err != nil {
			return nil, engine.abort(ctx, renderer, tracker, logger, iteration,
				fmt.Errorf("agent: model call failed: %w", err))
		}

		tracker.RecordUsage(int(response.Usage.InputTokens), int(response.Usage.OutputTokens))
		history = append(history, response.Message())
		lastResponse = response

		if len(response.ToolCalls) > 0 {
			logger.Debug("run state", "state", "executing_tools",
				"iteration", iteration,
				"tool_calls", len(response.ToolCalls))
			allToolCalls = append(allToolCalls, response.ToolCalls...)

			toolMessages, results, err := executor.executeCalls(ctx, response.ToolCalls)
			if err != nil {
				return nil, engine.abort(ctx, renderer, tracker, logger, iteration, err)
			}
			history = append(history, toolMessages...)
			allToolResults = append(allToolResults, results...)
			continue
		}

		finished = true
		logger.Debug("run state", "state", "finished", "iteration", iteration)
		break
	}

	content := ""
	if lastResponse != nil {
		content = lastResponse.Content
	}
	if !finished {
		logger.Warn("iteration limit reached without a terminal answer",
			"max_iterations", maxIterations,
			"finished", false)
	} else if content == "" {
		logger.Warn("terminal answer has empty content")
	}

	metrics := tracker.Finalize(finished, engine.clock.Now())
	emit(renderer, engine.clock, Event{
		Type: EventComplete,
		Complete: &CompleteEvent{
			Response:            content,
			TotalDurationMillis: metrics.Duration().Milliseconds(),
			Metrics:             &metrics,
		},
	})
	engine.recordMetrics(ctx, metrics, logger)

	logger.Info("run complete",
		"finished", finished,
		"iterations", metrics.Iterations,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"tool_invocations", metrics.ToolInvocations)

	return &RunResponse{
		Content:     content,
		ToolCalls:   allToolCalls,
		ToolResults: allToolResults,
		Messages:    history,
		WasStreamed: metrics.WasStreamed,
	}, nil
}

// completeStreaming performs one streaming model call, falling back
// to a non-streaming completion when the stream fails or times out.
// The fallback is invisible to the caller aside from a recoverable
// error event.
func (engine *Engine) completeStreaming(ctx context.Context, provider llm.Provider, providerName string, request llm.Request, policy retry.Policy, renderer Renderer, timeout time.Duration, logger *slog.Logger) (*llm.Response, error) {
	coordinator := &streamCoordinator{
		provider:     provider,
		providerName: providerName,
		renderer:     renderer,
		retryPolicy:  policy,
		timeout:      timeout,
		clock:        engine.clock,
		logger:       logger,
	}
	response, err := coordinator.run(ctx, request)
	if err == nil {
		return response, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Warn("streaming failed, falling back to non-streaming", "error", err)
	emit(renderer, engine.clock, Event{
		Type:  EventError,
		Error: &ErrorEvent{Message: err.Error(), Recoverable: true},
	})
	return retry.Do(ctx, policy, "chat completion",
		func(ctx context.Context) (*llm.Response, error) {
			return provider.Complete(ctx, request)
		})
}

// abort finalizes a fatally failed run: it emits an unrecoverable
// error event, records metrics, and returns the error for Run to
// propagate.
func (engine *Engine) abort(ctx context.Context, renderer Renderer, tracker *RunTracker, logger *slog.Logger, iteration int, err error) error {
	logger.Error("run aborted",
		"state", "aborted",
		"iteration", iteration,
		"error", err)
	emit(renderer, engine.clock, Event{
		Type:  EventError,
		Error: &ErrorEvent{Message: err.Error(), Recoverable: false},
	})
	metrics := tracker.Finalize(false, engine.clock.Now())
	engine.recordMetrics(ctx, metrics, logger)
	return err
}

// toolCatalog resolves the descriptor's tool allow-list against the
// registry. Unknown names are logged and skipped rather than failing
// the run. An empty allow-list offers every registered tool.
func (engine *Engine) toolCatalog(descriptor Descriptor, logger *slog.Logger) []llm.ToolDefinition {
	var definitions []tool.Definition
	if len(descriptor.Tools) == 0 {
		definitions = engine.tools.Definitions()
	} else {
		for _, name := range descriptor.Tools {
			definition, err := engine.tools.Definition(name)
			if err != nil {
				logger.Warn("agent lists unknown tool", "tool", name)
				continue
			}
			definitions = append(definitions, definition)
		}
	}

	catalog := make([]llm.ToolDefinition, 0, len(definitions))
	for _, definition := range definitions {
		catalog = append(catalog, llm.ToolDefinition{
			Name:        definition.Name,
			Description: definition.Description,
			Parameters:  definition.Parameters,
		})
	}
	return catalog
}

// assembleHistory builds the run's working history: the system
// message, the prior conversation, and the new user message. The
// returned slice is freshly allocated so the run can append without
// aliasing the caller's history.
func assembleHistory(descriptor Descriptor, options RunOptions) []llm.ChatMessage {
	incoming := options.ConversationHistory
	history := make([]llm.ChatMessage, 0, len(incoming)+2)
	if descriptor.SystemPrompt != "" && (len(incoming) == 0 || incoming[0].Role != llm.RoleSystem) {
		history = append(history, llm.SystemMessage(descriptor.SystemPrompt))
	}
	history = append(history, incoming...)
	history = append(history, llm.UserMessage(options.UserInput))
	return history
}

// newWindow builds the run's context window manager from the
// descriptor's budget settings.
func (engine *Engine) newWindow(descriptor Descriptor) *llmcontext.Window {
	contextWindow := descriptor.ContextWindow
	if contextWindow == 0 {
		contextWindow = llmcontext.ContextWindowForModel(descriptor.Model)
	}
	budget := llmcontext.Budget{
		ContextWindow:   contextWindow,
		MaxOutputTokens: resolveMaxTokens(descriptor),
	}
	protectedTurns := descriptor.ProtectedTurns
	if protectedTurns == 0 {
		protectedTurns = 1
	}
	return llmcontext.NewWindow(budget.MessageTokenBudget(), protectedTurns, nil)
}

// recordMetrics delivers finalized metrics to the sink. Sink
// failures are logged, never propagated.
func (engine *Engine) recordMetrics(ctx context.Context, metrics RunMetrics, logger *slog.Logger) {
	if engine.metrics == nil {
		return
	}
	if err := engine.metrics.RecordRun(ctx, metrics); err != nil {
		logger.Warn("recording run metrics failed", "error", err)
	}
}

// resolveMaxTokens applies the output token default.
func resolveMaxTokens(descriptor Descriptor) int {
	if descriptor.MaxTokens > 0 {
		return descriptor.MaxTokens
	}
	return defaultMaxOutputTokens
}
