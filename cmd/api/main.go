package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"support-router/internal/config"
	"support-router/internal/db"
	apihttp "support-router/internal/http"
	"support-router/internal/intent"
	"support-router/internal/knowledge"
	"support-router/internal/llm"
	"support-router/internal/repository"
	"support-router/internal/service"
	"support-router/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	index, err := knowledge.LoadFile(cfg.KBPath, cfg.KBAcceptThreshold, logger)
	if err != nil {
		logger.Fatal("knowledge base load", zap.String("path", cfg.KBPath), zap.Error(err))
	}
	logger.Info("knowledge base loaded", zap.Int("entries", index.Len()), zap.Int("agents", len(index.AgentIDs())))

	var (
		convRepo     repository.ConversationRepository
		messageRepo  repository.MessageRepository
		feedbackRepo repository.FeedbackRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		convRepo = repository.NewPgConversationRepository(pool)
		messageRepo = repository.NewPgMessageRepository(pool)
		feedbackRepo = repository.NewPgFeedbackRepository(pool)
	} else {
		logger.Warn("database url not configured, conversations are kept in memory")
		store := repository.NewInMemoryStore()
		convRepo, messageRepo, feedbackRepo = store.Conversations(), store.Messages(), store.Feedback()
	}

	limiter := service.NewMemoryMessageRateLimiter(cfg.RateLimitPerMinute)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process rate limiter", zap.Error(err))
		} else if cfg.RateLimitPerMinute > 0 {
			limiter = service.NewRedisMessageRateLimiter(redisClient, time.Minute, cfg.RateLimitPerMinute)
		}
		cancel()
	}

	var completer llm.Completer
	if client := llm.NewOpenAIClient(llm.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	}, logger); client != nil {
		completer = client
	} else {
		logger.Warn("llm api key not configured, escalations will deflect")
	}

	var classifier intent.Classifier = intent.NewKeywordClassifier(nil, cfg.MaxMessageLength)
	if cfg.IntentMode == "llm" {
		classifier = intent.NewFallbackClassifier(intent.NewLLMClassifier(completer, cfg.MaxMessageLength), classifier, logger)
	}

	escalator := service.NewFallbackEscalator(completer, index.Agent, service.EscalatorOptions{
		ContextMessages: cfg.FallbackContextMessages,
		MaxRetries:      cfg.FallbackMaxRetries,
		AttemptTimeout:  cfg.LLMTimeout,
	}, service.NewZapFailureReporter(logger))
	router := service.NewAgentRouter(classifier, index, escalator, service.RouterOptions{
		ConfidenceFloor:  cfg.RoutingConfidenceFloor,
		CrossAgentSearch: cfg.KBCrossAgentSearch,
	}, logger)
	conversations := service.NewConversationStore(convRepo, messageRepo, logger)
	chatSvc := service.NewChatService(conversations, router, limiter, service.ChatOptions{
		MaxMessageLength: cfg.MaxMessageLength,
		Workers:          cfg.RouteWorkers,
		HistoryLimit:     cfg.FallbackContextMessages + 1,
	}, logger)
	feedbackSvc := service.NewFeedbackService(feedbackRepo)

	if cfg.ClientTokenSecret == "" {
		logger.Warn("client token secret not configured, resume tokens will not survive restarts")
	}
	tokens, err := transport.NewTokenIssuer(cfg.ClientTokenSecret, cfg.ClientTokenTTL)
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	registry := transport.NewRegistry(transport.RegistryOptions{
		MaxConnections: cfg.WSMaxConnections,
		Grace:          cfg.WSSessionGrace,
		Policy:         transport.Policy{BaseDelay: cfg.ReconnectBaseDelay, MaxAttempts: cfg.ReconnectMaxAttempts},
		OnEvict:        chatSvc.Release,
		Logger:         logger,
	})
	endpoint := transport.NewEndpoint(registry, tokens, chatSvc, transport.EndpointOptions{
		HeartbeatInterval: cfg.WSHeartbeatInterval,
		MaxMessageLength:  cfg.MaxMessageLength,
	}, logger)

	engine := apihttp.NewRouter(logger,
		apihttp.NewChatHandler(logger, chatSvc, tokens),
		apihttp.NewFeedbackHandler(logger, feedbackSvc),
		apihttp.NewKnowledgeHandler(index),
		apihttp.NewHealthHandler(index.Len, registry.OpenCount),
		endpoint.Handle,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		registry.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
