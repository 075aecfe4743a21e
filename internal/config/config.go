package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	DashboardURL     string
	OpenAIKey        string
	EmbeddingModel   string
	AIBaseURL        string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	ChromemPath      string
	RateLimit        string

	// Engine tunables. Defaults match the scoring design; override only
	// when re-tuning a deployment.
	MaxSuggestions      int
	SuggestionThreshold float64
	PredictionWindow    int
	PredictionThreshold float64
	SuggestionCacheTTL  time.Duration
	UserModelRebuild    time.Duration
	LearningRate        float64
	DrainInterval       time.Duration
	RulesFile           string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		DashboardURL:     getEnv("DASHBOARD_URL", "http://localhost:3000"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ChromemPath:      getEnv("CHROMEM_PATH", ""),
		RateLimit:        getEnv("RATE_LIMIT", "30-S"),

		MaxSuggestions:      getEnvInt("MAX_SUGGESTIONS", 5),
		SuggestionThreshold: getEnvFloat("SUGGESTION_THRESHOLD", 0.6),
		PredictionWindow:    getEnvInt("PREDICTION_WINDOW", 3),
		PredictionThreshold: getEnvFloat("PREDICTION_THRESHOLD", 0.7),
		SuggestionCacheTTL:  getEnvDuration("SUGGESTION_CACHE_TTL", 60*time.Second),
		UserModelRebuild:    getEnvDuration("USER_MODEL_REBUILD_INTERVAL", 5*time.Minute),
		LearningRate:        getEnvFloat("LEARNING_RATE", 0.1),
		DrainInterval:       getEnvDuration("LEARNING_DRAIN_INTERVAL", 5*time.Second),
		RulesFile:           getEnv("CONTEXT_RULES_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for learning event queueing")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
