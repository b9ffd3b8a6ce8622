package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/llm"
	"github.com/aether-os/engine/internal/metrics"
	"github.com/aether-os/engine/internal/orchestrator"
	"github.com/aether-os/engine/internal/queue/tasks"
	"github.com/aether-os/engine/internal/repository"
	"github.com/aether-os/engine/internal/vercel"
	"github.com/aether-os/engine/pkg/config"
	"github.com/aether-os/engine/pkg/database"
	"github.com/aether-os/engine/pkg/logger"
)

// metricsAddr serves the worker's step and run counters.
const metricsAddr = ":9091"

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	_ = rdb.Close()

	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, database.Options{MaxOpenConns: cfg.AsynqConcurrency + 5})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	gh, err := github.New(github.Options{ServerToken: cfg.GitHubPAT, BaseURL: cfg.GitHubAPIURL})
	if err != nil {
		log.Fatal("invalid github configuration", zap.Error(err))
	}

	steps := orchestrator.Pipeline(orchestrator.Deps{
		Generator: llm.New(llm.Options{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			PlanModel:      cfg.PlanModel,
			ArchitectModel: cfg.ArchitectModel,
			CodegenModel:   cfg.CodegenModel,
		}),
		Repos:      gh,
		Deployer:   vercel.New(vercel.Options{BaseURL: cfg.VercelAPIURL, Token: cfg.VercelToken}),
		Projects:   repository.NewProjectRepository(db),
		Metadata:   repository.NewMetadataRepository(db),
		ProjectEnv: cfg.ProjectEnv(),
	})

	m := metrics.New()
	runner := orchestrator.NewRunner(repository.NewRunRepository(db), steps, cfg.StepTimeout, orchestrator.WithObserver(m))
	handler := tasks.NewOrchestrationTaskHandler(runner)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency:     cfg.AsynqConcurrency,
			ShutdownTimeout: cfg.ShutdownTimeout,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeOrchestrationRun, handler.HandleRun)

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics listener stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	// In-flight runs get ShutdownTimeout to reach a step boundary.
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
