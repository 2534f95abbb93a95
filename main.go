package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focus-pipeline/analytics"
	"focus-pipeline/cache"
	"focus-pipeline/collector"
	"focus-pipeline/config"
	"focus-pipeline/handlers"
	"focus-pipeline/models"
	"focus-pipeline/oracle"
	"focus-pipeline/pipeline"
)

type store interface {
	pipeline.SnapshotStore
	pipeline.OfflineQueue
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		logger.Error("failed to load thresholds", "err", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store
	if cfg.RedisAddr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient, err := cache.NewRedisClient(connectCtx, cfg.RedisAddr, cfg.SnapshotTTL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to Redis", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("connected to Redis", "addr", cfg.RedisAddr)
		st = redisClient
	} else {
		logger.Info("REDIS_ADDR empty, keeping snapshots and offline queue in memory")
		st = cache.NewMemoryStore(cfg.SnapshotTTL)
	}

	source := collector.NewMemorySource()
	coll := collector.NewCollector(source, logger)

	var (
		predictor     pipeline.Predictor
		patternSource analytics.PatternSource
		writer        pipeline.MetricsWriter
	)
	if cfg.OracleBaseURL != "" {
		client := oracle.NewClient(cfg.OracleBaseURL,
			oracle.WithTimeout(cfg.OracleTimeout),
			oracle.WithToken(cfg.OracleToken),
			oracle.WithLogger(logger),
		)
		if err := client.Ping(ctx); err != nil {
			logger.Warn("oracle not reachable, local fallbacks will be used until it is", "url", cfg.OracleBaseURL, "err", err)
		}
		predictor, patternSource, writer = client, client, client
	} else {
		logger.Info("ORACLE_BASE_URL empty, scoring locally")
	}

	history := pipeline.NewLocalHistory(coll, thresholds)
	p := pipeline.New(pipeline.Options{
		Collector:      coll,
		Analyzer:       analytics.NewAnalyzer(patternSource, history, thresholds, logger),
		Thresholds:     thresholds,
		Predictor:      predictor,
		Recorder:       pipeline.NewRecorder(writer, st, logger),
		Store:          st,
		PredictTimeout: cfg.OracleTimeout,
		Location:       loc,
		Logger:         logger,
	})

	sink := func(snap models.Snapshot, visible bool) {
		logger.Info("focus snapshot published",
			"user_id", snap.UserID, "run_id", snap.RunID, "score", snap.Score.Score, "visible", visible)
	}
	session := pipeline.NewSession(p, cfg.UserID, cfg.RefreshInterval, sink, logger)
	if err := session.Start(ctx); err != nil {
		logger.Error("failed to start refresh session", "err", err)
		os.Exit(1)
	}

	h := handlers.NewFocusHandler(handlers.Options{
		Samples:  source,
		Service:  p,
		Syncer:   p.Recorder(),
		Session:  session,
		UserID:   cfg.UserID,
		Location: loc,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Router(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	session.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	p.Wait()

	logger.Info("server exited")
}
