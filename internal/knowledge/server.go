// Package knowledge provides the knowledge service server implementation.
package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/finsight-io/finsight/internal/knowledge/biz"
	"github.com/finsight-io/finsight/internal/knowledge/handler"
	"github.com/finsight-io/finsight/internal/knowledge/router"
	"github.com/finsight-io/finsight/internal/knowledge/store"
	"github.com/finsight-io/finsight/pkg/app"
	"github.com/finsight-io/finsight/pkg/component/milvus"
	"github.com/finsight-io/finsight/pkg/embedding"
	"github.com/finsight-io/finsight/pkg/llm"

	// Register LLM providers.
	_ "github.com/finsight-io/finsight/pkg/llm/ollama"
	_ "github.com/finsight-io/finsight/pkg/llm/openai"

	cacheopts "github.com/finsight-io/finsight/pkg/options/cache"
	knowledgeopts "github.com/finsight-io/finsight/pkg/options/knowledge"
	llmopts "github.com/finsight-io/finsight/pkg/options/llm"
	logopts "github.com/finsight-io/finsight/pkg/options/logger"
	milvusopts "github.com/finsight-io/finsight/pkg/options/milvus"
	httpopts "github.com/finsight-io/finsight/pkg/options/server/http"
)

// Name is the name of the application.
const Name = "finsight-knowledge"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	KnowledgeOptions *knowledgeopts.Options
	CacheOptions     *cacheopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the knowledge server.
type Server struct {
	httpServer      *http.Server
	service         biz.Service
	shutdownTimeout time.Duration
	milvusClose     func()
	redisClose      func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting knowledge service...")

	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	logger.Info("Milvus client initialized")

	vectorStore := store.NewMilvusStore(milvusClient)

	redisClient, redisClose := cfg.newRedisClient(ctx)

	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	// The chat provider is optional; without it concept extraction
	// runs pattern-only and enhanced analysis is unavailable.
	var chatProvider llm.ChatProvider
	if cfg.ChatOptions.Provider != "" {
		chatProvider, err = llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
		}
		logger.Infow("Chat provider initialized",
			"provider", cfg.ChatOptions.Provider,
			"model", cfg.ChatOptions.Model,
		)
	}

	ko := cfg.KnowledgeOptions
	embedder := embedding.NewService(embedProvider, embedding.Config{
		TargetDimensions: ko.TargetDimensions,
		TokenBudget:      8000,
		BatchSize:        ko.EmbedBatchSize,
		InterBatchDelay:  ko.InterBatchDelay,
		ItemDelay:        ko.ItemDelay,
	})

	serviceConfig := &biz.ServiceConfig{
		ProcessorConfig: &biz.ProcessorConfig{
			ChunkTokenBudget: ko.ChunkTokenBudget,
			MinSectionLen:    ko.MinSectionLen,
		},
		ExtractorConfig: &biz.ExtractorConfig{
			MinGenerativeLen: ko.MinGenerativeLen,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			Collection:        ko.Collection,
			Dimension:         ko.TargetDimensions,
			UpsertBatchSize:   ko.UpsertBatchSize,
			IndexContentLimit: ko.IndexContentLimit,
			TopK:              ko.TopK,
			MinScore:          ko.MinScore,
		},
		AnalyzerConfig: biz.DefaultAnalyzerConfig(),
		SearchCacheConfig: &biz.SearchCacheConfig{
			Enabled:   cfg.CacheOptions.Enabled && redisClient != nil,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		},
	}

	service, err := biz.NewKnowledgeService(vectorStore, embedProvider, chatProvider, embedder, redisClient, serviceConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize knowledge service: %w", err)
	}

	if err := service.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare chunk collection: %w", err)
	}
	logger.Infow("Knowledge service initialized",
		"collection", ko.Collection,
		"dimensions", ko.TargetDimensions,
		"cache.enabled", serviceConfig.SearchCacheConfig.Enabled,
	)

	engine := newEngine(cfg.HTTPOptions)
	router.Register(engine, handler.NewKnowledgeHandler(service, ko.MaxUploadSize))

	httpServer := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	return &Server{
		httpServer:      httpServer,
		service:         service,
		shutdownTimeout: cfg.ShutdownTimeout,
		milvusClose:     func() { _ = milvusClient.Close(context.Background()) },
		redisClose:      redisClose,
	}, nil
}

// newRedisClient connects to Redis when caching is enabled. Connection
// failures disable the cache instead of failing startup.
func (cfg *Config) newRedisClient(ctx context.Context) (*goredis.Client, func()) {
	if !cfg.CacheOptions.Enabled || cfg.CacheOptions.Redis == nil {
		logger.Info("Search cache is disabled")
		return nil, nil
	}

	ro := cfg.CacheOptions.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:         ro.Addr(),
		Password:     ro.Password,
		DB:           ro.Database,
		MaxRetries:   ro.MaxRetries,
		PoolSize:     ro.PoolSize,
		MinIdleConns: ro.MinIdleConns,
		DialTimeout:  ro.DialTimeout,
		ReadTimeout:  ro.ReadTimeout,
		WriteTimeout: ro.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = client.Close()
		return nil, nil
	}

	logger.Infow("Redis cache initialized",
		"addr", ro.Addr(),
		"ttl", cfg.CacheOptions.TTL,
	)
	return client, func() { _ = client.Close() }
}

func newEngine(opts *httpopts.Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if opts.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		engine.Use(cors.New(corsConfig))
	}

	return engine
}

// Run starts the server and blocks until a termination signal arrives.
func (s *Server) Run(_ context.Context) error {
	defer func() {
		s.service.Close()
		if s.milvusClose != nil {
			s.milvusClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infow("shutting down", "signal", sig.String())
	}

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server exited")
	return nil
}
