package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Redis       RedisConfig
	Inference   InferenceConfig
	Vector      VectorConfig
	Monitor     MonitorConfig
	Trend       TrendConfig
	Aggregate   AggregateConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// RedisConfig holds counter store configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// InferenceConfig holds signal extraction service configuration
type InferenceConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// VectorConfig selects and configures the vector store backend
type VectorConfig struct {
	// Backend is one of "pgvector", "index", "memory".
	Backend        string
	IndexEndpoint  string
	IndexAPIKey    string
	RequestTimeout time.Duration
}

// MonitorConfig holds analysis pipeline configuration
type MonitorConfig struct {
	PeriodLabel    string
	ScanInterval   time.Duration
	EventsTopic    string
	EnrichWorkers  int
	DefaultTopK    int
	UpsertDeadline time.Duration
}

// TrendConfig holds trend tracking configuration
type TrendConfig struct {
	WindowLabel       string
	WindowHours       int
	MaxCandidates     int
	NewTopicThreshold int
	ViralThreshold    float64
	GrowthThreshold   float64
}

// AggregateConfig holds collective signal aggregation configuration
type AggregateConfig struct {
	NegativeEmotions       []string
	ConflictKeywords       []string
	TopTrendingLimit       int
	HeadlineRatioThreshold float64
	ExplosiveGrowthPct     float64
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "mediapulse"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Inference: InferenceConfig{
			BaseURL:        getEnv("INFERENCE_BASE_URL", "http://localhost:9090"),
			RequestTimeout: getEnvAsDuration("INFERENCE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Vector: VectorConfig{
			Backend:        getEnv("VECTOR_BACKEND", "pgvector"),
			IndexEndpoint:  getEnv("VECTOR_INDEX_ENDPOINT", ""),
			IndexAPIKey:    getEnv("VECTOR_INDEX_API_KEY", ""),
			RequestTimeout: getEnvAsDuration("VECTOR_REQUEST_TIMEOUT", 30*time.Second),
		},
		Monitor: MonitorConfig{
			PeriodLabel:    getEnv("MONITOR_PERIOD_LABEL", "24h"),
			ScanInterval:   getEnvAsDuration("MONITOR_SCAN_INTERVAL", 15*time.Minute),
			EventsTopic:    getEnv("MONITOR_EVENTS_TOPIC", "media"),
			EnrichWorkers:  getEnvAsInt("MONITOR_ENRICH_WORKERS", 4),
			DefaultTopK:    getEnvAsInt("MONITOR_DEFAULT_TOP_K", 10),
			UpsertDeadline: getEnvAsDuration("MONITOR_UPSERT_DEADLINE", 10*time.Second),
		},
		Trend: TrendConfig{
			WindowLabel:       getEnv("TREND_WINDOW_LABEL", "24h"),
			WindowHours:       getEnvAsInt("TREND_WINDOW_HOURS", 24),
			MaxCandidates:     getEnvAsInt("TREND_MAX_CANDIDATES", 20),
			NewTopicThreshold: getEnvAsInt("TREND_NEW_TOPIC_THRESHOLD", 5),
			ViralThreshold:    getEnvAsFloat("TREND_VIRAL_THRESHOLD", 0.3),
			GrowthThreshold:   getEnvAsFloat("TREND_GROWTH_THRESHOLD", 50),
		},
		Aggregate: AggregateConfig{
			NegativeEmotions:       getEnvAsSlice("TENSION_NEGATIVE_EMOTIONS", []string{"anger", "fear", "sadness", "disgust"}),
			ConflictKeywords:       getEnvAsSlice("CONFLICT_KEYWORDS", nil),
			TopTrendingLimit:       getEnvAsInt("AGGREGATE_TOP_TRENDING", 10),
			HeadlineRatioThreshold: getEnvAsFloat("AGGREGATE_HEADLINE_RATIO", 0.2),
			ExplosiveGrowthPct:     getEnvAsFloat("AGGREGATE_EXPLOSIVE_GROWTH", 100),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	switch config.Vector.Backend {
	case "pgvector", "memory":
	case "index":
		if config.Vector.IndexEndpoint == "" {
			return fmt.Errorf("VECTOR_INDEX_ENDPOINT must be set when VECTOR_BACKEND=index")
		}
	default:
		return fmt.Errorf("unsupported vector backend: %s", config.Vector.Backend)
	}

	if config.Trend.WindowHours <= 0 {
		return fmt.Errorf("trend window hours must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
