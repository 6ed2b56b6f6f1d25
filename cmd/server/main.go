// Command server wires the dependency graph and runs the HTTP API. Business
// logic lives in the internal services; main stays assembly and lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"glassbank/internal/assessment"
	"glassbank/internal/attribution"
	"glassbank/internal/audit"
	"glassbank/internal/cache"
	"glassbank/internal/chat"
	"glassbank/internal/consent"
	"glassbank/internal/extraction"
	"glassbank/internal/insights"
	"glassbank/internal/perception"
	"glassbank/internal/platform/config"
	"glassbank/internal/platform/httpserver"
	"glassbank/internal/platform/logger"
	"glassbank/internal/platform/metrics"
	platredis "glassbank/internal/platform/redis"
	"glassbank/internal/reasoning"
	"glassbank/internal/savings"
	"glassbank/internal/storage"
	"glassbank/internal/transactions"
	httptransport "glassbank/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()

	// Banking data lives in the in-memory document store; durable audit and
	// cache backends are selected by configuration.
	mem := storage.NewMemory()

	auditStore, closeDB, err := newAuditStore(cfg)
	if err != nil {
		log.Error("audit store init failed", "error", err)
		os.Exit(1)
	}
	if closeDB != nil {
		defer closeDB()
	}
	audits := audit.NewService(auditStore, log, m)

	cacheStore, closeCache, err := newCache(cfg)
	if err != nil {
		log.Error("cache init failed", "error", err)
		os.Exit(1)
	}
	if closeCache != nil {
		defer closeCache()
	}
	invalidator := cache.NewUserInvalidator(cacheStore, log)

	consentSvc := consent.NewService(consent.NewInMemoryStore(), invalidator, log).
		WithScoreCache(cacheStore)

	reasoner := newReasoner(ctx, cfg, log)

	extractors := extraction.NewExtractors(
		mem.Users(), mem.Accounts(), mem.Transactions(),
		mem.SavingsAccounts(), mem.SavingsGoals(), consentSvc,
	)
	registry := extraction.NewRegistry(log, extractors.Sources()...)
	pipeline := attribution.New(registry, reasoner, consentSvc, audits, log, m, cfg.GeminiModel)

	svc := httptransport.Services{
		Consent:    consentSvc,
		Audit:      audits,
		Assessment: assessment.NewService(pipeline, log),
		Chat:       chat.NewService(pipeline, log),
		Insights: insights.NewService(
			mem.Users(), mem.Accounts(), mem.Transactions(),
			mem.SavingsAccounts(), mem.SavingsGoals(),
			pipeline, consentSvc, cacheStore, log, cfg.InsightTTL,
		),
		Perception: perception.NewService(
			perception.NewInMemoryStore(), mem.Transactions(), pipeline, log, cfg.PerceptionTTL,
		),
		Savings:     savings.NewService(mem.Accounts(), mem.SavingsAccounts(), mem.SavingsGoals(), log),
		Recommender: savings.NewRecommender(mem.Users(), mem.Accounts(), mem.SavingsAccounts(), pipeline),
		Transactions: transactions.NewService(
			mem.Accounts(), mem.Transactions(), reasoner, cacheStore, invalidator, log,
		),
	}

	router := httptransport.NewRouter(httptransport.NewHandler(svc, log), log, m)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func newAuditStore(cfg config.Config) (audit.Store, func(), error) {
	if cfg.PostgresURL == "" {
		return audit.NewInMemoryStore(), nil, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return audit.NewPostgresStore(db), func() { _ = db.Close() }, nil
}

func newCache(cfg config.Config) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), nil, nil
	}
	client, err := platredis.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedis(client, "glassbank"), func() { _ = client.Close() }, nil
}

// newReasoner returns the Gemini client when configured, otherwise the null
// client so every AI endpoint degrades to its deterministic fallback.
func newReasoner(ctx context.Context, cfg config.Config, log *slog.Logger) reasoning.Client {
	if cfg.GeminiAPIKey == "" {
		log.Warn("no Gemini API key configured, reasoning disabled")
		return &reasoning.Unavailable{}
	}
	client, err := reasoning.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Error("gemini init failed, reasoning disabled", "error", err)
		return &reasoning.Unavailable{}
	}
	return client
}
