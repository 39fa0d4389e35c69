package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	countstore "mediapulse/internal/adapter/counter"
	"mediapulse/internal/adapter/inference"
	vectorstore "mediapulse/internal/adapter/vector"
	"mediapulse/internal/config"
	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/vector"
	"mediapulse/internal/logger"
	"mediapulse/internal/server"
	"mediapulse/internal/service/analysis"
	"mediapulse/internal/service/monitor"
)

func main() {
	// Load .env if present; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(os.Getenv("LOG_LEVEL"))

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Event bus
	natsConn, err := initNATS(cfg.NATS, log)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	// Window counter store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	counterStore := countstore.NewRedisStore(redisClient)

	// Vector store backend, selected here once; scoring code never
	// branches on it.
	store, cleanup, err := initVectorStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer cleanup()

	// Signal extraction ports
	inferenceClient := inference.NewClient(cfg.Inference.BaseURL, cfg.Inference.RequestTimeout)

	enricher := analysis.NewEnricher(
		inferenceClient,
		inferenceClient,
		inferenceClient,
		inferenceClient,
		log,
	)

	tracker := analysis.NewTracker(counterStore, analysis.TrackerConfig{
		WindowLabel:       cfg.Trend.WindowLabel,
		WindowHours:       cfg.Trend.WindowHours,
		MaxCandidates:     cfg.Trend.MaxCandidates,
		NewTopicThreshold: cfg.Trend.NewTopicThreshold,
		ViralThreshold:    cfg.Trend.ViralThreshold,
		GrowthThreshold:   cfg.Trend.GrowthThreshold,
	}, log)

	aggregator := analysis.NewAggregator(aggregatorConfig(cfg.Aggregate))

	monitorService := monitor.NewService(
		enricher,
		tracker,
		aggregator,
		store,
		inferenceClient,
		natsConn,
		nil, // batches arrive via the ingestion endpoint
		monitor.Config{
			PeriodLabel:    cfg.Monitor.PeriodLabel,
			ScanInterval:   cfg.Monitor.ScanInterval,
			EventsTopic:    cfg.Monitor.EventsTopic,
			EnrichWorkers:  cfg.Monitor.EnrichWorkers,
			DefaultTopK:    cfg.Monitor.DefaultTopK,
			UpsertDeadline: cfg.Monitor.UpsertDeadline,
		},
		log,
	)

	if err := monitorService.Start(ctx); err != nil {
		log.Fatalf("Failed to start monitor service: %v", err)
	}

	httpServer := server.NewServer(cfg.Server, monitorService, natsConn, cfg.Monitor.EventsTopic, log)

	go func() {
		log.Infof("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-shutdown
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := monitorService.Stop(shutdownCtx); err != nil {
		log.Errorf("Monitor service shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}

// initVectorStore constructs the configured backend and returns it with
// its cleanup function.
func initVectorStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (vector.Store, func(), error) {
	switch cfg.Vector.Backend {
	case "pgvector":
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := vectorstore.NewPgStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case "index":
		store := vectorstore.NewIndexClient(cfg.Vector.IndexEndpoint, cfg.Vector.IndexAPIKey, cfg.Vector.RequestTimeout)
		return store, func() {}, nil

	case "memory":
		log.Warn("using in-memory vector store, documents are not persisted")
		return vectorstore.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, log *logrus.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warnf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

// aggregatorConfig maps the env-level aggregation settings onto the
// analysis package config, falling back to defaults for empty lists.
func aggregatorConfig(cfg config.AggregateConfig) analysis.AggregatorConfig {
	out := analysis.DefaultAggregatorConfig()

	if len(cfg.NegativeEmotions) > 0 {
		emotions := make([]feed.Emotion, 0, len(cfg.NegativeEmotions))
		for _, name := range cfg.NegativeEmotions {
			emotions = append(emotions, feed.Emotion(name))
		}
		out.NegativeEmotions = emotions
	}
	if len(cfg.ConflictKeywords) > 0 {
		out.ConflictKeywords = cfg.ConflictKeywords
	}
	if cfg.TopTrendingLimit > 0 {
		out.TopTrendingLimit = cfg.TopTrendingLimit
	}
	if cfg.HeadlineRatioThreshold > 0 {
		out.HeadlineRatioThreshold = cfg.HeadlineRatioThreshold
	}
	if cfg.ExplosiveGrowthPct > 0 {
		out.ExplosiveGrowthPct = cfg.ExplosiveGrowthPct
	}
	return out
}
