package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RABBITMQ_URL", "amqp://localhost")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_RequiresRabbitMQURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foresight")
	t.Setenv("RABBITMQ_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when RABBITMQ_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foresight")
	t.Setenv("RABBITMQ_URL", "amqp://localhost")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MaxSuggestions != 5 {
		t.Errorf("MaxSuggestions = %d, want 5", cfg.MaxSuggestions)
	}
	if cfg.SuggestionThreshold != 0.6 {
		t.Errorf("SuggestionThreshold = %v, want 0.6", cfg.SuggestionThreshold)
	}
	if cfg.PredictionWindow != 3 {
		t.Errorf("PredictionWindow = %d, want 3", cfg.PredictionWindow)
	}
	if cfg.PredictionThreshold != 0.7 {
		t.Errorf("PredictionThreshold = %v, want 0.7", cfg.PredictionThreshold)
	}
	if cfg.SuggestionCacheTTL != 60*time.Second {
		t.Errorf("SuggestionCacheTTL = %v, want 60s", cfg.SuggestionCacheTTL)
	}
	if cfg.UserModelRebuild != 5*time.Minute {
		t.Errorf("UserModelRebuild = %v, want 5m", cfg.UserModelRebuild)
	}
	if cfg.LearningRate != 0.1 {
		t.Errorf("LearningRate = %v, want 0.1", cfg.LearningRate)
	}
	if cfg.DrainInterval != 5*time.Second {
		t.Errorf("DrainInterval = %v, want 5s", cfg.DrainInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foresight")
	t.Setenv("RABBITMQ_URL", "amqp://localhost")
	t.Setenv("MAX_SUGGESTIONS", "10")
	t.Setenv("SUGGESTION_THRESHOLD", "0.5")
	t.Setenv("SUGGESTION_CACHE_TTL", "30s")
	t.Setenv("SERVER_DEBUG_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MaxSuggestions != 10 {
		t.Errorf("MaxSuggestions = %d, want 10", cfg.MaxSuggestions)
	}
	if cfg.SuggestionThreshold != 0.5 {
		t.Errorf("SuggestionThreshold = %v, want 0.5", cfg.SuggestionThreshold)
	}
	if cfg.SuggestionCacheTTL != 30*time.Second {
		t.Errorf("SuggestionCacheTTL = %v, want 30s", cfg.SuggestionCacheTTL)
	}
	if !cfg.ServerDebugMode {
		t.Error("ServerDebugMode should be true")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foresight")
	t.Setenv("RABBITMQ_URL", "amqp://localhost")
	t.Setenv("MAX_SUGGESTIONS", "not-a-number")
	t.Setenv("LEARNING_RATE", "also-not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MaxSuggestions != 5 {
		t.Errorf("MaxSuggestions = %d, want default 5", cfg.MaxSuggestions)
	}
	if cfg.LearningRate != 0.1 {
		t.Errorf("LearningRate = %v, want default 0.1", cfg.LearningRate)
	}
}
