package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/anticipate"
	"github.com/praxislabs/foresight/internal/config"
	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/learning"
	"github.com/praxislabs/foresight/internal/logger"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/queue"
	"github.com/praxislabs/foresight/internal/tuner"
	"github.com/praxislabs/foresight/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	feedbackRepo := database.NewFeedbackRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)
	workflowRepo := database.NewWorkflowRepository(db)
	profileRepo := database.NewProfileRepository(db)
	patternWeightRepo := database.NewPatternWeightRepository(db)
	metricRepo := database.NewActionMetricRepository(db)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	weightStore := tuner.NewWeightStore(patternWeightRepo, cfg.LearningRate, zapLogger)
	engineTuner := tuner.New(weightStore, cfg.SuggestionThreshold, zapLogger)

	// The server owns the hourly, daily, and weekly cadences. The worker's
	// orchestrator only batches out-of-band learning events; its drain
	// ticker runs below.
	orchestrator := learning.NewOrchestrator(learning.Config{
		Tuner:         engineTuner,
		Feedback:      feedbackRepo,
		Metrics:       metricRepo,
		Jobs:          jobQueue,
		Logger:        zapLogger,
		DrainInterval: cfg.DrainInterval,
	})

	modelBuilder := anticipate.NewModelBuilder(
		memory.NewEpisodeStore(episodeRepo),
		memory.NewDBProfileStore(profileRepo),
		workflowRepo,
		cfg.UserModelRebuild,
		zapLogger,
	)

	processor := workers.NewJobProcessor(
		orchestrator,
		modelBuilder,
		episodeRepo,
		profileRepo,
		feedbackRepo,
		metricRepo,
		jobQueue,
		zapLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	zapLogger.Info("worker_started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}

				if err := processor.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("failed_to_process_job",
						zap.Error(err),
						zap.String("job_id", msg.GetJob().ID.String()),
						zap.String("job_type", string(msg.GetJob().Type)),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	// Drain batched learning events on the configured cadence
	go func() {
		interval := cfg.DrainInterval
		if interval <= 0 {
			interval = learning.DefaultDrainInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				orchestrator.Drain(ctx)
			}
		}
	}()

	<-sigChan
	zapLogger.Info("shutdown_signal_received")

	cancel()

	zapLogger.Info("worker_stopped")
}
