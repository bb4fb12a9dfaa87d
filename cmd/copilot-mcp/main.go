// Command copilot-mcp serves the 1C.ai code assistant as MCP tools over
// stdio. Logs go to stderr; stdout carries the JSON-RPC stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/naparnik-ai/copilot/config"
	"github.com/naparnik-ai/copilot/mcp"
	"github.com/naparnik-ai/copilot/obs"
	"github.com/naparnik-ai/copilot/providers/onecai"
)

const version = "0.1.0"

func main() {
	configPath := pflag.String("config", "", "path to an optional YAML config file")
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("copilot-mcp " + version)
		return
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("load .env", slog.String("error", err.Error()))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !cfg.HasToken() {
		logger.Warn("ONEC_AI_TOKEN is not set; tool calls will fail until it is provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownObs := initObservability(ctx, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObs(shutdownCtx); err != nil {
			logger.Warn("observability shutdown", slog.String("error", err.Error()))
		}
	}()

	server := mcp.NewServer(gatewayFactory(cfg, logger),
		mcp.WithLogger(logger),
		mcp.WithVersion(version),
	)

	logger.Info("serving MCP on stdio",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_sessions", cfg.MaxSessions),
		slog.Duration("session_ttl", cfg.SessionTTL))

	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// gatewayFactory defers gateway construction to the first tool call so a
// missing token surfaces per call instead of preventing startup.
func gatewayFactory(cfg config.Config, logger *slog.Logger) mcp.GatewayFactory {
	return func() (mcp.Gateway, error) {
		return onecai.New(
			onecai.WithToken(cfg.Token),
			onecai.WithBaseURL(cfg.BaseURL),
			onecai.WithTimeout(cfg.Timeout),
			onecai.WithUILanguage(cfg.UILanguage),
			onecai.WithProgrammingLanguage(cfg.ProgrammingLanguage),
			onecai.WithScriptLanguage(cfg.ScriptLanguage),
			onecai.WithSessionLimits(cfg.MaxSessions, cfg.SessionTTL),
			onecai.WithLogger(logger),
		)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// initObservability wires tracing and metrics from the environment. A
// failure here degrades to a no-op rather than refusing to serve.
func initObservability(ctx context.Context, logger *slog.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }

	opts := obs.DefaultOptions()
	opts.ServiceName = "copilot-mcp"
	opts.Version = version

	switch strings.ToLower(os.Getenv("ONEC_AI_OBS_EXPORTER")) {
	case "otlp":
		opts.Exporter = obs.ExporterOTLP
		opts.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		opts.Insecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	case "stdout":
		opts.Exporter = obs.ExporterStdout
	case "", "none":
		return noop
	default:
		logger.Warn("unknown ONEC_AI_OBS_EXPORTER value; observability disabled")
		return noop
	}

	if ratio := os.Getenv("ONEC_AI_OBS_SAMPLE_RATIO"); ratio != "" {
		if parsed, err := strconv.ParseFloat(ratio, 64); err == nil {
			opts.SampleRatio = parsed
		}
	}
	opts.DisableMetrics = os.Getenv("ONEC_AI_OBS_DISABLE_METRICS") == "true"

	shutdown, err := obs.Init(ctx, opts)
	if err != nil {
		logger.Warn("init observability", slog.String("error", err.Error()))
		return noop
	}
	return shutdown
}
