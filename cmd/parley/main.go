// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley runs a conversational agent from the command line: it loads
// an agent definition, wires the scripted provider and the built-in
// tools into an execution engine, and runs one prompt or an
// interactive session.
//
// The binary is fully offline. Model responses come from a scripted
// provider that replays a yaml script file (or a built-in demo
// script), which still exercises the whole runtime: streaming with
// non-streaming fallback, tool execution, history trimming, retries,
// session logs, and run metrics.
//
// Configuration is read from the file named by PARLEY_CONFIG or
// --config; flags override individual settings per invocation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/parley-foundation/parley/lib/agent"
	"github.com/parley-foundation/parley/lib/agentdef"
	"github.com/parley-foundation/parley/lib/clock"
	"github.com/parley-foundation/parley/lib/config"
	"github.com/parley-foundation/parley/lib/llm"
	"github.com/parley-foundation/parley/lib/runstore"
	"github.com/parley-foundation/parley/lib/sessionlog"
	"github.com/parley-foundation/parley/lib/tool"
	"github.com/parley-foundation/parley/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		agentPath     string
		scriptPath    string
		interactive   bool
		forceStream   bool
		forceNoStream bool
		maxIterations int
		sessionLog    string
		metricsDB     string
		outputMode    string
		logLevel      string
	)

	flagSet := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to parley.yaml (default: $PARLEY_CONFIG)")
	flagSet.StringVar(&agentPath, "agent", "", "agent definition file (jsonc)")
	flagSet.StringVar(&scriptPath, "script", "", "provider script file (yaml)")
	flagSet.BoolVarP(&interactive, "interactive", "i", false, "read prompts from stdin, carrying conversation history between turns")
	flagSet.BoolVar(&forceStream, "stream", false, "force streaming mode")
	flagSet.BoolVar(&forceNoStream, "no-stream", false, "force non-streaming mode (wins over --stream)")
	flagSet.IntVar(&maxIterations, "max-iterations", 0, "override the per-run iteration limit")
	flagSet.StringVar(&sessionLog, "session-log", "", "write a JSONL session log to this path")
	flagSet.StringVar(&metricsDB, "metrics-db", "", "record run metrics to this SQLite database")
	flagSet.StringVar(&outputMode, "output", "text", "output mode: text or jsonl")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, or error")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing so it works without a
	// valid config.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("parley")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	configuration, err := loadConfiguration(configPath)
	if err != nil {
		return err
	}
	if agentPath == "" {
		agentPath = configuration.Agent
	}
	if scriptPath == "" {
		scriptPath = configuration.Script
	}
	if sessionLog != "" {
		configuration.Session.Log = sessionLog
	}
	if metricsDB != "" {
		configuration.Metrics.Database = metricsDB
	}
	if logLevel != "" {
		configuration.Logging.Level = logLevel
	}
	if err := configuration.Validate(); err != nil {
		return err
	}
	if err := configuration.EnsureDirs(); err != nil {
		return err
	}
	if outputMode != "text" && outputMode != "jsonl" {
		return fmt.Errorf("unknown --output mode %q (want text or jsonl)", outputMode)
	}

	logger := newLogger(configuration.Logging)

	descriptor, err := loadDescriptor(agentPath, configuration)
	if err != nil {
		return err
	}

	steps, err := loadScript(scriptPath)
	if err != nil {
		return err
	}
	providers := llm.NewRegistry()
	providers.Register(providerScripted, newScriptProvider(steps))

	runtimeClock := clock.Real()
	tools := tool.NewRegistry()
	if err := registerBuiltinTools(tools, runtimeClock); err != nil {
		return err
	}

	var renderer agent.Renderer
	switch outputMode {
	case "jsonl":
		renderer = newJSONLRenderer(os.Stdout, logger)
	default:
		renderer = newConsoleRenderer(os.Stdout, os.Stderr)
	}

	if configuration.Session.Log != "" {
		compression, err := configuration.Session.CompressionMode()
		if err != nil {
			return err
		}
		writer, err := sessionlog.Create(configuration.Session.Log, sessionlog.Options{
			Compression: compression,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		defer func() {
			summary := writer.Summary()
			if err := writer.Close(); err != nil {
				logger.Warn("closing session log failed", "error", err)
				return
			}
			logger.Info("session log written",
				"path", writer.Path(),
				"events", summary.EventCount,
				"runs", summary.RunCount,
				"digest", summary.Digest)
		}()
		renderer = multiRenderer{renderer, writer}
	}

	retryPolicy, err := configuration.Retry.Policy()
	if err != nil {
		return err
	}
	streamTimeout, err := configuration.Runtime.StreamTimeoutDuration()
	if err != nil {
		return err
	}

	engineConfig := agent.Config{
		Providers:     providers,
		Tools:         tools,
		Renderer:      renderer,
		Retry:         retryPolicy,
		StreamTimeout: streamTimeout,
		MaxIterations: configuration.Runtime.MaxIterations,
		Clock:         runtimeClock,
		Logger:        logger,
	}
	if configuration.Metrics.Database != "" {
		store, err := runstore.Open(runstore.Config{
			Path:   configuration.Metrics.Database,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		engineConfig.Metrics = store
	}

	engine, err := agent.New(engineConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := agent.RunOptions{
		Agent:          descriptor,
		ConversationID: uuid.NewString(),
		MaxIterations:  maxIterations,
		ForceStream:    forceStream,
		ForceNoStream:  forceNoStream,
	}

	prompt := strings.TrimSpace(strings.Join(flagSet.Args(), " "))
	if interactive {
		return runInteractive(ctx, engine, options, prompt)
	}
	if prompt == "" {
		return fmt.Errorf("no prompt given (pass one as arguments, or use --interactive)")
	}
	options.UserInput = prompt
	_, err = engine.Run(ctx, options)
	return err
}

// loadConfiguration resolves the config: an explicit --config path
// wins, then PARLEY_CONFIG, then built-in defaults. Defaults alone
// are a working setup (scripted provider, bundled demo script, no
// persistence).
func loadConfiguration(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv("PARLEY_CONFIG") != "":
		return config.Load()
	default:
		return config.Default(), nil
	}
}

// loadDescriptor builds the run's agent descriptor. With no agent
// file, a built-in descriptor over the config's runtime settings is
// used. File values win over config for the fields the file sets.
func loadDescriptor(path string, configuration *config.Config) (agent.Descriptor, error) {
	runtime := configuration.Runtime
	if path == "" {
		descriptor := agent.Descriptor{
			Name:     "parley",
			Provider: runtime.Provider,
			Model:    runtime.Model,
			SystemPrompt: "You are Parley, a helpful assistant. Use the " +
				"available tools when they help you answer.",
			Stream:         runtime.Stream,
			ContextWindow:  runtime.ContextWindow,
			ProtectedTurns: runtime.ProtectedTurns,
		}
		if descriptor.Model == "" {
			descriptor.Model = defaultModel
		}
		return descriptor, nil
	}

	definition, err := agentdef.ReadFile(path)
	if err != nil {
		return agent.Descriptor{}, err
	}
	descriptor, err := definition.Descriptor()
	if err != nil {
		return agent.Descriptor{}, err
	}
	if descriptor.Provider == "" {
		descriptor.Provider = runtime.Provider
	}
	if descriptor.Model == "" {
		descriptor.Model = runtime.Model
	}
	if descriptor.Model == "" && descriptor.Provider == providerScripted {
		descriptor.Model = defaultModel
	}
	if definition.Stream == nil {
		descriptor.Stream = runtime.Stream
	}
	if descriptor.ContextWindow == 0 {
		descriptor.ContextWindow = runtime.ContextWindow
	}
	if descriptor.ProtectedTurns == 0 {
		descriptor.ProtectedTurns = runtime.ProtectedTurns
	}
	if err := descriptor.Validate(); err != nil {
		return agent.Descriptor{}, fmt.Errorf("agent definition %s: %w", path, err)
	}
	return descriptor, nil
}

// runInteractive reads prompts from stdin, one per line, carrying the
// conversation history across turns. A non-empty initial prompt runs
// as the first turn. Failed runs leave the history unchanged, so the
// next line retries against the same conversation.
func runInteractive(ctx context.Context, engine *agent.Engine, options agent.RunOptions, initial string) error {
	fmt.Fprintln(os.Stderr, `parley interactive session (ctrl-d, "exit", or "quit" to leave)`)

	var history []llm.ChatMessage
	turn := func(input string) {
		options.UserInput = input
		options.ConversationHistory = history
		response, err := engine.Run(ctx, options)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		history = response.Messages
	}

	if initial != "" {
		turn(initial)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		turn(input)
	}
	return scanner.Err()
}

// newLogger builds the CLI logger. Format "auto" picks a colored
// terminal handler when stderr is a TTY and JSON otherwise, so piped
// logs stay machine-readable.
func newLogger(logging config.LoggingConfig) *slog.Logger {
	level := parseLogLevel(logging.Level)
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var handler slog.Handler
	switch {
	case logging.Format == "json" || (logging.Format == "auto" && !isTerminal):
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case logging.Format == "text":
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    true,
		})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal,
		})
	}
	return slog.New(handler)
}

// parseLogLevel maps a config level name to a slog level. Config
// validation has already constrained the value; anything else falls
// back to info.
func parseLogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Parley agent runtime — offline conversational runs against a scripted provider.

Parley runs a conversational agent from the command line. Model
responses come from a scripted provider that replays a yaml script
file, so everything works offline: streaming, tool execution, history
trimming, retries, session logs, and run metrics.

Configuration is read from the file named by PARLEY_CONFIG, or from
--config. Without either, built-in defaults apply: the scripted
provider, the bundled demo script, and no persistence.

Usage:
  parley [flags] [prompt...]

Examples:
  # One-shot prompt against the built-in demo agent and script
  parley "what time is it?"

  # Interactive session with a custom agent definition and script
  parley --agent agents/researcher.jsonc --script demo.yaml --interactive

  # Machine-readable event stream plus session log and run metrics
  parley --output jsonl --session-log run.jsonl --metrics-db runs.db "go"

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
