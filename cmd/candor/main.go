// Command candor is the main entry point for the Candor analysis server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/submit4201/candor/internal/config"
	"github.com/submit4201/candor/internal/health"
	"github.com/submit4201/candor/internal/llmclient"
	"github.com/submit4201/candor/internal/observe"
	"github.com/submit4201/candor/internal/registry"
	"github.com/submit4201/candor/internal/runner"
	"github.com/submit4201/candor/internal/server"
	"github.com/submit4201/candor/internal/services"
	genaiprovider "github.com/submit4201/candor/pkg/provider/llm/genai"
	"github.com/submit4201/candor/pkg/store/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	flag.Parse()

	// .env is a dev convenience; a missing file is not an error.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "candor: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("candor starting",
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"model_analysis", cfg.LLM.ModelAnalysis,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "candor",
		ServiceVersion: services.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── LLM provider and client ───────────────────────────────────────────────
	provider, err := genaiprovider.New(ctx, cfg.LLM.APIKey)
	if err != nil {
		slog.Error("failed to create gemini provider", "err", err)
		return 1
	}
	client := llmclient.New(provider, cfg.LLM, llmclient.WithMetrics(metrics))

	// ── Pipeline ──────────────────────────────────────────────────────────────
	deps := services.Deps{LLM: client, Log: logger}
	pipeline := runner.New(registry.Default(), deps,
		runner.WithMetrics(metrics),
		runner.WithDeadline(cfg.Server.RequestDeadline()),
	)

	// ── Persistence (optional) ────────────────────────────────────────────────
	serverOpts := []server.Option{
		server.WithMetrics(metrics),
		server.WithLogger(logger),
	}
	if dsn := cfg.Store.PostgresDSN; dsn != "" {
		db, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to open postgres store", "err", err)
			return 1
		}
		defer db.Close()
		serverOpts = append(serverOpts,
			server.WithStores(db, db),
			server.WithHealthCheckers(health.Checker{Name: "database", Check: db.Ping}),
		)
		slog.Info("postgres store connected")
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(pipeline, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready", "addr", cfg.Server.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
