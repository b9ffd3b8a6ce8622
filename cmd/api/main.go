package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/aether-os/engine/docs"
	"github.com/aether-os/engine/internal/api"
	"github.com/aether-os/engine/internal/api/handlers"
	mw "github.com/aether-os/engine/internal/api/middleware"
	"github.com/aether-os/engine/internal/billing"
	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/llm"
	"github.com/aether-os/engine/internal/metrics"
	"github.com/aether-os/engine/internal/notify"
	"github.com/aether-os/engine/internal/preview"
	"github.com/aether-os/engine/internal/queue/tasks"
	"github.com/aether-os/engine/internal/repository"
	"github.com/aether-os/engine/internal/services"
	"github.com/aether-os/engine/internal/vercel"
	"github.com/aether-os/engine/pkg/config"
	"github.com/aether-os/engine/pkg/database"
	"github.com/aether-os/engine/pkg/logger"
)

// @title           Aether Engine API
// @version         1.0
// @description     Turns a natural-language description into a generated, committed and deployed application.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting aether engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, database.Options{Verbose: cfg.AppEnv == "development"})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get sql handle", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer queue.Close()

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if cfg.AppEnv == "production" {
			log.Fatal("JWT_SECRET is required in production")
		}
		log.Warn("JWT_SECRET not set, using an insecure development secret")
		jwtSecret = []byte("change-me-in-production-please")
	}

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	evolutionRepo := repository.NewEvolutionRepository(db)
	metadataRepo := repository.NewMetadataRepository(db)
	runRepo := repository.NewRunRepository(db)

	// External adapters
	gen := llm.New(llm.Options{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		PlanModel:      cfg.PlanModel,
		ArchitectModel: cfg.ArchitectModel,
		CodegenModel:   cfg.CodegenModel,
	})
	gh, err := github.New(github.Options{ServerToken: cfg.GitHubPAT, BaseURL: cfg.GitHubAPIURL})
	if err != nil {
		log.Fatal("invalid github configuration", zap.Error(err))
	}
	vc := vercel.New(vercel.Options{BaseURL: cfg.VercelAPIURL, Token: cfg.VercelToken})
	checker := preview.NewChecker(cfg.HealthCheckTimeout)
	m := metrics.New()

	// Services
	architectSvc := services.NewArchitectService(gen, metadataRepo, services.SimulationDelays{
		Plan:      cfg.PlanLatency,
		Architect: cfg.SimulatedLatency,
	})
	repoSvc := services.NewRepositoryService(gh)
	deploySvc := services.NewDeploymentService(vc, metadataRepo, cfg.ProjectEnv())
	projectSvc := services.NewProjectService(projectRepo, vc, gh, checker)
	evolutionSvc := services.NewEvolutionService(gh, projectRepo, evolutionRepo, cfg.HealthCheckTimeout)
	billingSvc := services.NewBillingService(
		billing.NewStripeGateway(cfg.StripeSecretKey, nil),
		subscriptionRepo,
		notify.New(rdb),
		m,
		cfg.PublicOrigin,
	)
	runSvc := services.NewRunService(runRepo, tasks.NewDispatcher(queue, runTaskTimeout(cfg.StepTimeout)), cfg.RunStaleAfter)

	limiter := mw.NewRateLimiter(10, 20)
	go limiter.Run(ctx, 5*time.Minute)

	router := api.NewRouter(api.Dependencies{
		HMACSecret:  jwtSecret,
		CORSOrigin:  cfg.PublicOrigin,
		RateLimiter: limiter,
		Metrics:     m,
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		AI:        handlers.NewAIHandler(architectSvc),
		GitHub:    handlers.NewGitHubHandler(repoSvc),
		Deploy:    handlers.NewDeployHandler(deploySvc),
		Projects:  handlers.NewProjectsHandler(projectSvc),
		Evolution: handlers.NewEvolutionHandler(evolutionSvc),
		Billing:   handlers.NewBillingHandler(billingSvc),
		Preview:   handlers.NewPreviewHandler(checker, preview.NewProxy(cfg.HealthCheckTimeout)),
		Runs:      handlers.NewRunsHandler(runSvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Plan and architect calls wait on the LLM for up to a step timeout.
		WriteTimeout: cfg.StepTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}

// runTaskTimeout bounds a whole run: one step timeout per step plus slack
// for persistence between steps.
func runTaskTimeout(step time.Duration) time.Duration {
	return 6 * step
}
