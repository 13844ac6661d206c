package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dlnlabs/dln-indexer/internal/analytics"
	"github.com/dlnlabs/dln-indexer/internal/api"
	"github.com/dlnlabs/dln-indexer/internal/chain"
	"github.com/dlnlabs/dln-indexer/internal/checkpoint"
	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/logging"
	"github.com/dlnlabs/dln-indexer/internal/models"
	"github.com/dlnlabs/dln-indexer/internal/orchestrator"
	"github.com/dlnlabs/dln-indexer/internal/pricing"
	"github.com/dlnlabs/dln-indexer/internal/scanner"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("indexer error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logging.Setup(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	slog.Info("starting dln-indexer",
		"version", version,
		"httpPort", cfg.HTTPPort,
		"batchSize", cfg.BatchSize,
		"delayMs", cfg.DelayMs,
		"solanaRPS", cfg.SolanaRPS,
		"stopAfter", cfg.StopAfter,
		"logLevel", cfg.LogLevel,
	)

	// Shared Redis client: checkpoint windows plus the pricing L2 cache.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), config.RedisDialTimeout)
	err = redisClient.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		redisClient.Close()
		return fmt.Errorf("%w: %v", config.ErrRedisUnavailable, err)
	}
	slog.Info("redis connected")

	sink, err := analytics.Open(context.Background(), cfg)
	if err != nil {
		redisClient.Close()
		return fmt.Errorf("failed to open analytics sink: %w", err)
	}

	client := chain.New(cfg.SolanaRPCURL, cfg.SolanaRPS)

	jupiter := pricing.NewJupiterClient(cfg.JupiterAPIKey)
	oracle := pricing.NewOracle(jupiter, client, pricing.NewRedisKV(redisClient))
	resolver := pricing.NewResolver(oracle)

	store := checkpoint.NewCoalescedStore(checkpoint.NewRedisStore(redisClient))

	srcScanner := scanner.New(models.ProgramSrc, config.SrcProgramAddress,
		client, oracle, resolver, sink, store, cfg)
	dstScanner := scanner.New(models.ProgramDst, config.DstProgramAddress,
		client, oracle, resolver, sink, store, cfg)

	orch := orchestrator.New(sink, cfg.StopAfter, srcScanner, dstScanner)

	router := api.NewRouter(sink, store)
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	// Graceful shutdown: the signal cancels the orchestrator context, Run
	// returns once both scanners have exited.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-done
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	go client.Metrics().LogEvery(ctx, config.MetricsLogInterval)

	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	orch.Run(ctx)

	// Scanners are done. Stop the read API, then flush and close the stores:
	// sink first, then the checkpoint store, then the Redis client under both.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	shutdownCancel()

	if err := sink.Close(); err != nil {
		slog.Error("analytics sink close error", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("checkpoint store close error", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}

	slog.Info("indexer stopped")
	return nil
}
