package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/api"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/batch"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/dispatch"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/export"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/generate"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/notify"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/quality"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/queue"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/ratelimit"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/record"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", "error", err)
	}
	defer st.Close()
	if err := st.RunMigrations(ctx); err != nil {
		logger.Fatal("run migrations", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	llm := generate.NewClient(cfg, limiter, logger)
	gate := quality.NewGate(generate.NewRubricScorer(llm), generate.NewRubricFixer(llm), cfg.MaxRevisions, logger)

	recordStores := []record.Store{st}
	if sheet := record.NewSheetClient(cfg.SheetAPIURL, cfg.SheetAPIKey); sheet != nil {
		recordStores = append(recordStores, sheet)
	}
	records := record.NewTee(logger, recordStores...)
	dispatcher := dispatch.New(gate, records, logger)
	generate.RegisterAll(dispatcher, llm)

	observer := notify.NewWebhook(cfg.WebhookURL, logger).Observer()

	archiver, err := export.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init archiver", "error", err)
	}

	registry := batch.NewRegistry(24 * time.Hour)
	coordinator := batch.NewCoordinator(cfg, registry, dispatcher, logger, observer, archiver)
	jobQueue := queue.New(ctx, cfg, dispatcher, logger, observer)
	jobQueue.SetSink(st)

	// Periodically evict finished plans so long-lived processes stay bounded.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := registry.Sweep(now); n > 0 {
					logger.Info("swept finished plans", "evicted", n)
				}
			}
		}
	}()

	server := api.New(cfg, coordinator, jobQueue, st, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("agent listening", "port", cfg.HTTPPort, "concurrency", cfg.QueueConcurrency)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
