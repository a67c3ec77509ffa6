// Quill is a personal productivity agent.
//
// It drives an LLM tool-orchestration loop over todos, notes and
// durable reminders, exposes an HTTP API, and delivers reminder
// notifications to Slack and optionally MQTT. Configuration is loaded
// from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	quill serve              Start the API server
//	quill ask <question>     Ask a single question (for testing)
//	quill version            Print version and build information
//	quill -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quillhq/quill/internal/agent"
	"github.com/quillhq/quill/internal/api"
	"github.com/quillhq/quill/internal/buildinfo"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/events"
	"github.com/quillhq/quill/internal/llm"
	"github.com/quillhq/quill/internal/memory"
	"github.com/quillhq/quill/internal/notify"
	"github.com/quillhq/quill/internal/productivity"
	"github.com/quillhq/quill/internal/reminder"
	"github.com/quillhq/quill/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the quill command. All OS-level
// dependencies are injected as parameters. Arguments are parsed by hand:
// the flag package relies on package-level globals, which makes it
// impossible to call run() concurrently from tests, and our argument
// surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: quill ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Quill - Personal Productivity Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: quill [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./quill.yaml, ~/.config/quill/config.yaml, /etc/quill/config.yaml")
	return nil
}

// runAsk handles the "quill ask <question>" subcommand. It boots the
// full tool set against the configured data directory, processes one
// question in a throwaway session, and prints the reply.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")

	app, err := buildApp(ctx, logger, cfg, nil)
	if err != nil {
		return err
	}
	defer app.close()

	resp, err := app.loop.Run(ctx, "cli-"+time.Now().Format("20060102150405"), question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, resp.Response)
	return nil
}

// runServe handles the "quill serve" subcommand. It is the primary
// operating mode: loads config, opens databases, recovers pending
// reminder timers, starts the HTTP server, and blocks until a shutdown
// signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Quill", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port, "model", cfg.LLM.Model)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := events.New()

	app, err := buildApp(ctx, logger, cfg, bus)
	if err != nil {
		return err
	}
	defer app.close()

	// Re-arm timers for reminders that survived the restart.
	armed, err := app.reminders.Recover()
	if err != nil {
		return fmt.Errorf("recover reminders: %w", err)
	}
	logger.Info("reminders recovered", "armed", armed)
	defer app.reminders.Stop()

	server := api.NewServer(logger, app.loop, app.memory, app.registry, app.reminders, bus, app.llm)

	// Blocks until ctx is cancelled or the listener fails.
	if err := server.Start(ctx, cfg.Listen); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Quill stopped")
	return nil
}

// app bundles the wired application components shared by serve and ask.
type app struct {
	llm       llm.Client
	memory    *memory.Store
	registry  *tools.Registry
	loop      *agent.Loop
	reminders *reminder.Service
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp opens the stores, constructs the notifiers, registers every
// tool, and wires the orchestration loop. bus may be nil (ask mode).
func buildApp(ctx context.Context, logger *slog.Logger, cfg *config.Config, bus *events.Bus) (*app, error) {
	a := &app{}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	dbPath := cfg.DatabasePath()

	mem, err := memory.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open memory database %s: %w", dbPath, err)
	}
	a.memory = mem
	a.closers = append(a.closers, func() { _ = mem.Close() })

	prodStore, err := productivity.NewStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open productivity database %s: %w", dbPath, err)
	}
	a.closers = append(a.closers, func() { _ = prodStore.Close() })

	remStore, err := reminder.NewStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open reminder database %s: %w", dbPath, err)
	}
	a.closers = append(a.closers, func() { _ = remStore.Close() })

	a.llm = llm.NewGroqClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLMTimeout(), logger)

	// Notification channels. Slack is always constructed (it degrades to
	// log-only when unconfigured); MQTT only when a broker is set.
	slack := notify.NewSlack(cfg.Slack.WebhookURL, logger)
	channels := notify.Multi{slack}
	if cfg.MQTT.Broker != "" {
		mq := notify.NewMQTT(cfg.MQTT, logger)
		if err := mq.Start(ctx); err != nil {
			return nil, fmt.Errorf("start mqtt notifier: %w", err)
		}
		a.closers = append(a.closers, func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = mq.Stop(stopCtx)
		})
		channels = append(channels, mq)
		logger.Info("mqtt notifications enabled", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
	}

	a.reminders = reminder.NewService(remStore, channels, bus, logger)

	a.registry = tools.NewRegistry()
	deps := productivity.Deps{Store: prodStore, LLM: a.llm, Logger: logger}
	productivity.RegisterTodoTools(a.registry, deps)
	productivity.RegisterNoteTools(a.registry, deps)
	reminder.RegisterTools(a.registry, a.reminders)
	productivity.RegisterSummaryTools(a.registry, deps, a.reminders, slack)

	a.loop = agent.NewLoop(logger, mem, a.llm, a.registry, bus, cfg.Agent)

	return a, nil
}

// newLogger creates a structured text logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file, falling
// back to defaults when no file exists and none was requested
// explicitly.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
