package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mathtutor/internal/ai"
	appsvc "mathtutor/internal/app"
	"mathtutor/internal/cache"
	"mathtutor/internal/config"
	"mathtutor/internal/model"
	mysqlClient "mathtutor/internal/platform/mysql"
	rabbitmqClient "mathtutor/internal/platform/rabbitmq"
	redisClient "mathtutor/internal/platform/redis"
	"mathtutor/internal/rag"
	"mathtutor/internal/repository"
	"mathtutor/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	LLMClient     *ai.Client
	Index         *rag.Index
	Retriever     *rag.Retriever
	CorpusService *appsvc.CorpusService
	EvalPublisher *rabbitmqClient.EvalPublisher
	EvalGate      *cache.EvalGate
	EvalWorker    *worker.EvalWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	llmClient := ai.NewClient()
	chatCfg := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}
	embCfg := ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}

	embeddingCache := cache.NewEmbeddingCache(redisCli, time.Duration(cfg.Redis.EmbeddingTTLHours)*time.Hour)
	embedder := rag.NewEmbedder(ai.NewEmbeddingProvider(llmClient, embCfg), embeddingCache, cfg.LLM.MaxRetries)
	index := rag.NewIndex(embedder)
	retriever := rag.NewRetriever(index, embedder, cfg.Corpus.TopK)
	corpusService := appsvc.NewCorpusService(
		cfg.Corpus.Dir,
		cfg.MaxUploadBytes(),
		cfg.Corpus.ChunkSize,
		rag.NewIngestor(),
		index,
	)

	// Startup build. A failure is not fatal: the service runs with the
	// retriever returning its not-loaded sentinel until an admin mutation
	// rebuilds successfully.
	if err := corpusService.Rebuild(ctx); err != nil {
		log.Error().Err(err).Msg("initial corpus build failed")
	}

	evalGate := cache.NewEvalGate(redisCli, time.Duration(cfg.Redis.EvalInflightTTLSeconds)*time.Second)
	evalPublisher := rabbitmqClient.NewEvalPublisher(mqConn, cfg.RabbitMQ.EvalQueue)

	userRepo := repository.NewUserRepository(mysqlDB)
	evalService := appsvc.NewEvalService(llmClient, chatCfg)
	evalWorker := worker.NewEvalWorker(mqConn, userRepo, evalService, evalGate, cfg.RabbitMQ.EvalQueue)
	if err := evalWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start eval worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		LLMClient:     llmClient,
		Index:         index,
		Retriever:     retriever,
		CorpusService: corpusService,
		EvalPublisher: evalPublisher,
		EvalGate:      evalGate,
		EvalWorker:    evalWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) ChatConfig() ai.ChatConfig {
	return ai.ChatConfig{
		BaseURL: a.Config.LLM.BaseURL,
		APIKey:  a.Config.LLM.APIKey,
		Model:   a.Config.LLM.Model,
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.EvalWorker != nil {
		a.EvalWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
