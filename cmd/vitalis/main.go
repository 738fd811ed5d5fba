package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	vhttp "github.com/vitalis-ai/vitalis/internal/adapter/http"
	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	vnats "github.com/vitalis-ai/vitalis/internal/adapter/nats"
	otelx "github.com/vitalis-ai/vitalis/internal/adapter/otel"
	"github.com/vitalis-ai/vitalis/internal/adapter/postgres"
	"github.com/vitalis-ai/vitalis/internal/adapter/profileseed"
	"github.com/vitalis-ai/vitalis/internal/adapter/ristretto"
	"github.com/vitalis-ai/vitalis/internal/adapter/tools"
	"github.com/vitalis-ai/vitalis/internal/adapter/ws"
	"github.com/vitalis-ai/vitalis/internal/config"
	"github.com/vitalis-ai/vitalis/internal/logger"
	"github.com/vitalis-ai/vitalis/internal/port/tool"
	"github.com/vitalis-ai/vitalis/internal/resilience"
	"github.com/vitalis-ai/vitalis/internal/service"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"llm_model", cfg.LLM.Model,
		"candidates", cfg.Generation.CandidateCount,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otlpEndpoint := ""
	if cfg.Telemetry.Enabled {
		otlpEndpoint = cfg.Telemetry.Endpoint
	}
	shutdownOtel, err := otelx.Init(ctx, otlpEndpoint, cfg.Logging.Service, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := otelx.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)
	events := postgres.NewEventStore(pool)

	// Demo user profiles
	if err := profileseed.SeedStore(ctx, store); err != nil {
		return fmt.Errorf("seed profiles: %w", err)
	}

	// NATS
	queue, err := vnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// In-process cache for agent status reads
	statusCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer statusCache.Close()

	// LLM gateway behind a circuit breaker
	llmClient := llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Timeout)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// Tools
	registry := tool.NewRegistry()
	tools.RegisterAll(registry, log)

	// --- Services ---
	hub := ws.NewHub()
	states := service.NewStateTracker()

	approvals := service.NewApprovalService(store, events, queue, hub, cfg.Approval.Timeout, log)
	runner := service.NewRunner(store, events, queue, hub, registry, llmClient, approvals, cfg.Runtime.MaxSteps, log)
	runner.SetMetrics(metrics)
	generator := service.NewGenerator(llmClient, registry, cfg.LLM.Model, cfg.Generation.CandidateCount, log)
	harness := service.NewHarness(runner, store,
		cfg.Evaluation.ToolWeight, cfg.Evaluation.OutcomeWeight,
		cfg.Evaluation.MaxParallel, cfg.Evaluation.RunTimeout, log)
	reviser := service.NewReviser(store, events, queue, hub, llmClient, states,
		cfg.LLM.Model, cfg.Monitor.RevisionDimFloor, cfg.Generation.MaxVersions, log)
	reviser.SetMetrics(metrics)
	monitor := service.NewMonitor(store, reviser, hub,
		cfg.Monitor.WindowSize, cfg.Monitor.RevisionMeanFloor, cfg.Monitor.RevisionDimFloor,
		cfg.Monitor.Interval, log)
	monitor.SetMetrics(metrics)
	orchestrator := service.NewOrchestrator(store, events, queue, hub, statusCache,
		generator, harness, runner, monitor, states,
		cfg.Generation.DeployFloor, cfg.Cache.TTL, log)
	orchestrator.SetMetrics(metrics)

	if err := orchestrator.RestoreStates(ctx); err != nil {
		return err
	}

	// Background monitoring loop
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	// --- HTTP ---
	handlers := &vhttp.Handlers{
		Orchestrator: orchestrator,
		Approvals:    approvals,
		Store:        store,
		Events:       events,
		LLM:          llmClient,
	}

	r := chi.NewRouter()

	r.Use(vhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(vhttp.RequestID)
	r.Use(vhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otelx.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", healthHandler(llmClient, hub))
	r.Get("/ws", hub.HandleWS)

	vhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Live runs can suspend at the approval gate; no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")
	stopMonitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports process health plus downstream reachability.
func healthHandler(llmClient *llm.Client, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status      string `json:"status"`
		LLM         string `json:"llm"`
		Breaker     string `json:"breaker"`
		Connections int    `json:"ws_connections"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:      "ok",
			LLM:         "ok",
			Breaker:     llmClient.BreakerState(),
			Connections: hub.ConnectionCount(),
		}
		if ok, err := llmClient.Health(r.Context()); err != nil || !ok {
			status.LLM = "unreachable"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
