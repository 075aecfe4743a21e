package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/anticipate"
	"github.com/praxislabs/foresight/internal/cache"
	"github.com/praxislabs/foresight/internal/config"
	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/feedback"
	"github.com/praxislabs/foresight/internal/handlers"
	"github.com/praxislabs/foresight/internal/insight"
	"github.com/praxislabs/foresight/internal/learning"
	"github.com/praxislabs/foresight/internal/logger"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/middleware"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/perf"
	"github.com/praxislabs/foresight/internal/queue"
	"github.com/praxislabs/foresight/internal/services/ai"
	"github.com/praxislabs/foresight/internal/suggest"
	"github.com/praxislabs/foresight/internal/telemetry"
	"github.com/praxislabs/foresight/internal/tuner"
	"github.com/praxislabs/foresight/internal/workflow"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for embedding API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("dashboard_url", cfg.DashboardURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "foresight-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	migrateCancel()
	zapLogger.Info("connected_to_database")

	// Connect to Redis for the suggestion cache and rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_parse_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Connect to RabbitMQ for the job queue (required).
	// Retry connection with exponential backoff to handle RabbitMQ startup delays
	const maxRetries = 10
	const initialDelay = 2 * time.Second
	var jobQueue queue.JobQueue
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err = queue.NewRabbitMQQueue(cfg.RabbitMQURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := jobQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			break
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
			zap.Int("max_retries", maxRetries),
			zap.Error(lastErr),
		)
	}

	// Initialize repositories
	feedbackRepo := database.NewFeedbackRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)
	workflowRepo := database.NewWorkflowRepository(db)
	profileRepo := database.NewProfileRepository(db)
	patternWeightRepo := database.NewPatternWeightRepository(db)
	metricRepo := database.NewActionMetricRepository(db)

	// Memory adapters over the repositories and queue
	episodeStore := memory.NewEpisodeStore(episodeRepo)
	profileStore := memory.NewDBProfileStore(profileRepo)
	consolidator := memory.NewQueueConsolidator(jobQueue)

	similarityIndex, err := memory.NewChromemIndex(cfg.ChromemPath, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_similarity_index", zap.Error(err))
	}

	// Tuning, tracking, and feedback collection
	weightStore := tuner.NewWeightStore(patternWeightRepo, cfg.LearningRate, zapLogger)
	engineTuner := tuner.New(weightStore, cfg.SuggestionThreshold, zapLogger)
	tracker := perf.NewTracker(metricRepo, zapLogger)
	collector := feedback.NewCollector(feedbackRepo, episodeStore, consolidator, zapLogger)

	suggestionCache := cache.NewSuggestionCache(redisClient, cfg.SuggestionCacheTTL)

	rules := suggest.DefaultRules()
	if cfg.RulesFile != "" {
		rules, err = suggest.LoadRules(cfg.RulesFile)
		if err != nil {
			zapLogger.Fatal("failed_to_load_context_rules",
				zap.String("path", cfg.RulesFile),
				zap.Error(err))
		}
		zapLogger.Info("loaded_context_rules", zap.String("path", cfg.RulesFile))
	}

	// Prediction and suggestion engines
	modelBuilder := anticipate.NewModelBuilder(episodeStore, profileStore, workflowRepo, cfg.UserModelRebuild, zapLogger)
	predictor := anticipate.NewPredictor(modelBuilder, jobQueue, zapLogger)

	generator := suggest.NewGenerator(suggest.Config{
		Episodes: episodeStore,
		Index:    similarityIndex,
		Profiles: profileStore,
		Patterns: modelBuilder,
		Tuner:    engineTuner,
		Rules:    rules,
		Cache:    suggestionCache,
		Feedback: collector,
		Logger:   zapLogger,
	})

	// Workflow mining and execution
	miner := workflow.NewMiner(episodeStore, zapLogger)
	executor := workflow.NewExecutor(workflowRepo, workflow.StepRunnerFunc(runStep), zapLogger)

	// Learning orchestrator with its drain and scheduled cadences
	orchestrator := learning.NewOrchestrator(learning.Config{
		Tuner:         engineTuner,
		Feedback:      feedbackRepo,
		Metrics:       metricRepo,
		Jobs:          jobQueue,
		Logger:        zapLogger,
		DrainInterval: cfg.DrainInterval,
	})

	insightGenerator := insight.NewGenerator(weightStore, metricRepo, collector, zapLogger)

	// Embedding provider (optional; cluster strategy degrades without it)
	embedder, err := createEmbeddingProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("failed_to_create_embedding_provider_cluster_strategy_degraded", zap.Error(err))
		embedder = nil
	}

	// Initialize handlers
	engineOpts := []handlers.EngineOption{}
	if embedder != nil {
		engineOpts = append(engineOpts, handlers.WithContextEmbedder(embedder))
	}
	engineHandler := handlers.NewEngineHandler(generator, predictor, collector, orchestrator, engineTuner, engineOpts...)
	workflowHandler := handlers.NewWorkflowHandler(executor, miner, workflowRepo)
	insightHandler := handlers.NewInsightHandler(insightGenerator)
	eventHandler := handlers.NewEventHandler(episodeRepo, tracker, similarityIndex, embedder, zapLogger)
	healthChecker := handlers.NewHealthChecker(map[string]handlers.HealthCheckFunc{
		"database": db.HealthCheck,
		"cache":    suggestionCache.HealthCheck,
		"queue":    jobQueue.HealthCheck,
	})

	// Setup router
	r := mux.NewRouter()

	zapLogger.Info("setting_up_middleware")

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("foresight-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.DashboardURL))
	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitMW)

	engineHandler.RegisterRoutes(apiRouter)
	eventHandler.RegisterRoutes(apiRouter)

	workflowRouter := apiRouter.PathPrefix("/workflows").Subrouter()
	workflowHandler.RegisterRoutes(workflowRouter)

	insightRouter := apiRouter.PathPrefix("/insights").Subrouter()
	insightHandler.RegisterRoutes(insightRouter)

	// Catch-all OPTIONS handler for preflight requests; the CORS middleware
	// sets headers before this runs
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Background loops: learning cadences and DLQ garbage collection
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go orchestrator.Start(bgCtx)

	// Run every hour, retain messages for 24 hours
	if dlqPurger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, zapLogger, 1*time.Hour, 24*time.Hour)
		go dlqGC.Start(bgCtx)
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// createEmbeddingProvider creates an embedding provider based on configuration
func createEmbeddingProvider(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.EmbeddingProvider, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	// Create directly when a base URL or debug logging is wanted
	if cfg.AIBaseURL != "" || debugMode {
		return ai.NewOpenAIProviderWithLogger(
			cfg.OpenAIKey,
			cfg.AIBaseURL,
			cfg.EmbeddingModel,
			logger,
			debugMode,
		), nil
	}

	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry)

	return registry.Create("openai", map[string]string{
		"api_key": cfg.OpenAIKey,
		"model":   cfg.EmbeddingModel,
	})
}

// runStep is the server's workflow step runner. Steps represent the user's
// own tooling; the engine records that the step ran and hands its action
// and parameters back so downstream steps can reference prior outputs.
func runStep(ctx context.Context, step models.WorkflowStep, execContext map[string]any) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return map[string]any{
		"action": step.Action,
		"status": "completed",
	}, nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
