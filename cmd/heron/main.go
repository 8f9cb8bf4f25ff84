// Heron - Claims routing that deploys in 60 seconds.
// Copyright (c) 2025 opensource.claims
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-claims/heron/internal/api"
	"github.com/opensource-claims/heron/internal/approval"
	"github.com/opensource-claims/heron/internal/bus"
	"github.com/opensource-claims/heron/internal/cache"
	"github.com/opensource-claims/heron/internal/document"
	"github.com/opensource-claims/heron/internal/domain"
	"github.com/opensource-claims/heron/internal/eligibility"
	"github.com/opensource-claims/heron/internal/fraud"
	"github.com/opensource-claims/heron/internal/history"
	"github.com/opensource-claims/heron/internal/oracles"
	"github.com/opensource-claims/heron/internal/repository"
	"github.com/opensource-claims/heron/internal/routing"
	"github.com/opensource-claims/heron/internal/rules"
	"github.com/opensource-claims/heron/internal/similarity"
	"github.com/opensource-claims/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Pattern Rule Engine
	ruleEngine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Built-in fraud patterns plus any rules configured via API
	if err := loadPatternRules(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load pattern rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize Similarity Service
	sim := similarity.NewService(repo, cfg.Processing.DuplicateThreshold)
	slog.Info("similarity service initialized", "threshold", cfg.Processing.DuplicateThreshold)

	// Initialize Oracles
	damageOracle := oracles.NewDamageService()
	fraudOracle := oracles.NewFraudService()
	policyOracle := oracles.NewPolicyService(repo, cacheImpl)
	slog.Info("oracles initialized")

	// Initialize pipeline workers
	documents := document.NewChecker(damageOracle, sim, cfg.Processing, logger)
	validator := eligibility.NewChecker(policyOracle, cfg.Processing, logger)
	investigator := fraud.NewInvestigator(fraudOracle, ruleEngine, history.NewService(repo), cfg.Processing, logger)
	approver := approval.NewMaker(damageOracle, fraudOracle, policyOracle, cfg.Processing, logger)

	// Initialize Routing Engine
	engine := routing.NewEngine(routing.NewRouter(cfg.Processing), documents, validator, investigator, approver, repo, cfg.Processing, logger)
	slog.Info("routing engine initialized", "max_traversal_steps", cfg.Processing.MaxTraversalSteps)

	// Initialize async Worker (Pro tier)
	asyncMode := cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true"
	var asyncWorker *worker.Worker
	if asyncMode {
		asyncWorker = worker.NewWorker(busImpl, repo, engine, cfg.Processing)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("HERON_TENANTS"); envTenants != "" {
			// Could parse comma-separated list here
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, ruleEngine, sim, cfg.Processing, Version, asyncMode)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// GlobalTenantID is used for pattern rules that apply to all tenants.
const GlobalTenantID = "*"

// loadPatternRules loads the built-in fraud patterns plus any database
// rules into the engine. Database rules with the same ID override the
// built-in set.
func loadPatternRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		return err
	}

	dbRules, err := repo.ListPatternRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list pattern rules from database", "error", err)
		return nil // Built-ins still apply; more can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading pattern rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║       Claims Routing Engine               ║")
	fmt.Println("  ║      Every claim, fully traced.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims            - Submit a claim")
	fmt.Println("    GET  /claims            - List claims")
	fmt.Println("    GET  /claims/{id}       - Get claim by ID")
	fmt.Println("    GET  /traversals/{id}   - Get traversal by ID")
	fmt.Println("    POST /policies          - Create a policy")
	fmt.Println("    GET  /policies          - List policies")
	fmt.Println("    GET  /policies/{id}     - Get policy by ID")
	fmt.Println("    POST /images/check      - Check photos for duplicates")
	fmt.Println("    GET  /rules             - List pattern rules")
	fmt.Println("    POST /rules             - Create a pattern rule")
	fmt.Println("    POST /rules/reload      - Hot-reload rules from database")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
