package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Mnemo/internal/config"
	"Mnemo/internal/database/kafka"
	"Mnemo/internal/database/milvus"
	"Mnemo/internal/database/mongo"
	"Mnemo/internal/database/redis"
	"Mnemo/internal/discovery/etcd"
	"Mnemo/internal/embedding"
	"Mnemo/internal/llm"
	"Mnemo/internal/memory/api"
	"Mnemo/internal/memory/consumer"
	"Mnemo/internal/memory/extractor"
	"Mnemo/internal/memory/semantic"
	"Mnemo/internal/memory/service"
	"Mnemo/internal/memory/store"
	"Mnemo/internal/validator"
	"Mnemo/pkg/circuitbreaker"
	"Mnemo/pkg/logger"
	"Mnemo/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("memoryd", "", "")
	appLogger.Info("Logger initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the embedding pipeline: provider -> cache -> breaker/timeout
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Initialize LLM client for fact extraction
	llmClient, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Initialize stores according to the configured backend
	var (
		turns       store.TurnStore
		facts       store.FactStore
		goals       store.GoalStore
		kafkaClient *kafka.KafkaClient
		publisher   *consumer.SlicePublisher
	)

	switch cfg.Memory.Backend {
	case "distributed":
		redisClient, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer redisClient.Close()

		milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer milvusClient.Close()
		if err := milvusClient.EnsureCollection(ctx); err != nil {
			appLogger.Fatal(err.Error())
		}

		mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer mongoClient.Disconnect(context.Background())

		kafkaClient, err = kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer kafkaClient.Close()

		turns = store.NewRedisTurnStore(redisClient, cfg.Memory.MaxHistoryTurns, cfg.SessionTTLDuration(), appLogger)
		facts = store.NewMilvusFactStore(milvusClient, appLogger)

		mongoGoals := store.NewMongoGoalStore(
			mongoClient.Database(cfg.Databases.MongoDB.Database), cfg.Databases.MongoDB.Collection)
		if err := mongoGoals.EnsureIndexes(ctx); err != nil {
			appLogger.Fatal(err.Error())
		}
		goals = mongoGoals

		publisher = consumer.NewSlicePublisher(
			cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.Topics[0], appLogger)
		defer publisher.Close()
	case "local":
		turns = store.NewInMemoryTurnStore(cfg.Memory.MaxHistoryTurns, cfg.SessionTTLDuration())
		facts = store.NewInMemoryFactStore()
		goals = store.NewInMemoryGoalStore()
	default:
		appLogger.Fatal("unknown memory backend: " + cfg.Memory.Backend)
	}
	appLogger.Info("Memory stores initialized (backend: " + cfg.Memory.Backend + ")")

	// Assemble the memory core
	index := semantic.NewIndex(facts, embedder, cfg.Memory.DedupThreshold, appLogger)
	factExtractor := extractor.NewDeduped(
		extractor.NewLLMExtractor(llmClient, appLogger), 100000)

	coordinator := service.NewCoordinator(turns, index, goals, embedder, factExtractor, service.Options{
		MaxHistoryTurns: cfg.Memory.MaxHistoryTurns,
		TopK:            cfg.Memory.TopK,
		MinSimilarity:   cfg.Memory.MinSimilarity,
		RetrieveTimeout: cfg.RetrieveTimeoutDuration(),
	}, appLogger)

	numValidator := validator.New(cfg.Validator.Tolerance, cfg.Validator.CorrectionMode, appLogger)
	appLogger.Info("Dependencies injected")

	// Start the extraction consumer in distributed mode
	if kafkaClient != nil {
		kafkaConsumer := consumer.NewKafkaConsumer(kafkaClient, coordinator, appLogger)
		kafkaConsumer.Start(ctx)
		appLogger.Info("Kafka extraction consumer started")
	}

	// Setup Gin router
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	apiHandler := api.NewAPI(coordinator, numValidator, publisher, appLogger)
	api.RegisterRoutes(router, apiHandler, buildRateLimiter(cfg))
	appLogger.Info("Router setup completed")

	server := &http.Server{Addr: cfg.Server.Address, Handler: router}

	// Register with etcd when endpoints are configured
	var stopRegister chan<- struct{}
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		discovery, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer discovery.Close()

		stopRegister, err = discovery.Register(cfg.App.Name, cfg.Server.Address, 10)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		appLogger.Info("Service registered with etcd")
	}

	go func() {
		appLogger.Info("Starting server on " + cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err.Error())
		}
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Shutting down")
	if stopRegister != nil {
		close(stopRegister)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err.Error())
	}
	appLogger.Info("Memory service stopped")
}

// buildEmbedder layers the LRU cache and the circuit breaker over the
// configured provider. The "mock" provider runs without network access and
// exists for local development.
func buildEmbedder(cfg *config.AppConfig) (embedding.Embedding, error) {
	var (
		embedder embedding.Embedding
		err      error
	)
	if cfg.Embedding.Provider == "mock" {
		embedder = embedding.NewMockModel(cfg.Embedding.Dimension)
	} else {
		embedder, err = embedding.NewEmdModel(
			cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.APIKey,
			cfg.Embedding.BaseURL, cfg.Embedding.Dimension)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Embedding.CacheSize > 0 {
		embedder, err = embedding.NewCached(embedder, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, err
		}
	}

	timeout, _ := time.ParseDuration(cfg.Embedding.Timeout)
	if cb := cfg.Middleware.CircuitBreaker; cb.Enabled {
		cbTimeout, _ := time.ParseDuration(cb.Timeout)
		breaker := circuitbreaker.New(cb.FailureThreshold, cb.SuccessThreshold, cbTimeout)
		embedder = embedding.NewGuarded(embedder, breaker, timeout)
	} else if timeout > 0 {
		embedder = embedding.NewGuarded(embedder, nil, timeout)
	}
	return embedder, nil
}

// buildRateLimiter returns nil when rate limiting is disabled.
func buildRateLimiter(cfg *config.AppConfig) ratelimiter.RateLimiter {
	rl := cfg.Middleware.RateLimiter
	if !rl.Enabled {
		return nil
	}
	switch rl.Algorithm {
	case "tokenBucket":
		return ratelimiter.NewTokenBucket(rl.TokenBucket.Rate, rl.TokenBucket.Capacity)
	default:
		window, err := time.ParseDuration(rl.FixedWindow.Window)
		if err != nil {
			window = time.Minute
		}
		return ratelimiter.NewFixedWindowCounter(rl.FixedWindow.Limit, window)
	}
}
