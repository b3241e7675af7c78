package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ashwinyue/next-files/internal/config"
	"github.com/ashwinyue/next-files/internal/repository"
	"github.com/ashwinyue/next-files/internal/service/access"
	"github.com/ashwinyue/next-files/internal/service/audio"
	"github.com/ashwinyue/next-files/internal/service/auth"
	"github.com/ashwinyue/next-files/internal/service/callback"
	"github.com/ashwinyue/next-files/internal/service/convert"
	"github.com/ashwinyue/next-files/internal/service/delivery"
	"github.com/ashwinyue/next-files/internal/service/event"
	"github.com/ashwinyue/next-files/internal/service/file"
	"github.com/ashwinyue/next-files/internal/service/retrieval"
	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	"github.com/cloudwego/eino/components/embedding"
)

// Services 服务集合
type Services struct {
	File      *file.Service
	Auth      *auth.Service
	Access    *access.Evaluator
	Converter *convert.Converter
	Publisher event.Publisher

	Config *config.Config
}

// NewServices 创建所有服务
func NewServices(ctx context.Context, repo *repository.Repositories, cfg *config.Config) (*Services, error) {
	storage, err := file.NewStorageFromConfig(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	converter := convert.New(&cfg.Converter)
	status := converter.Status()
	log.Printf("Converter strategies: docx=%v doc=%v", status.Docx, status.Doc)

	evaluator := access.NewEvaluator(repo.File, repo.Knowledge)
	publisher := newPublisher(cfg)
	processor := retrieval.NewProcessor(repo.File, storage, newIndex(ctx, cfg))

	opts := file.Options{
		Files:      repo.File,
		Storage:    storage,
		Access:     evaluator,
		Negotiator: delivery.NewNegotiator(converter),
		Processor:  processor,
		Evicter:    converter,
		Unindexer:  processor,
		Publisher:  publisher,
	}
	// 未配置时保持接口为 nil
	if transcriber := audio.NewTranscriber(&cfg.Audio, nil); transcriber != nil {
		opts.Transcriber = transcriber
	} else {
		log.Printf("Warning: audio transcription not configured")
	}

	return &Services{
		File:      file.NewService(opts),
		Auth:      auth.NewService(repo.Auth, cfg.Auth.JWTSecret),
		Access:    evaluator,
		Converter: converter,
		Publisher: publisher,
		Config:    cfg,
	}, nil
}

// Close 释放外部连接
func (s *Services) Close() error {
	if p, ok := s.Publisher.(*event.KafkaPublisher); ok {
		return p.Close()
	}
	return nil
}

// newPublisher 配置了 Kafka 时投递事件，否则丢弃
func newPublisher(cfg *config.Config) event.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return event.NopPublisher{}
	}
	return event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

// newIndex 创建向量索引，缺少 embedding 或 ES 配置时返回 nil
func newIndex(ctx context.Context, cfg *config.Config) *retrieval.Index {
	if cfg.Elastic.Host == "" {
		log.Printf("Warning: elasticsearch host not configured, indexing disabled")
		return nil
	}
	callback.SetupGlobalCallbacks(cfg.App.Debug)

	embedder := newEmbedder(ctx, cfg)
	if embedder == nil {
		return nil
	}

	index, err := retrieval.NewES8Index(ctx, &cfg.Elastic, cfg.Embedding.Dimensions, embedder)
	if err != nil {
		log.Printf("Warning: failed to create index: %v", err)
		return nil
	}
	return index
}

// newEmbedder 创建 Embedding 器
func newEmbedder(ctx context.Context, cfg *config.Config) embedding.Embedder {
	embCfg := cfg.Embedding

	switch embCfg.Provider {
	case "alibaba", "qwen", "dashscope", "":
	default:
		log.Printf("Warning: unsupported embedding provider: %s", embCfg.Provider)
		return nil
	}

	if embCfg.APIKey == "" {
		log.Printf("Warning: embedding api_key is empty")
		return nil
	}

	model := embCfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}

	embConfig := &dashscope.EmbeddingConfig{
		APIKey: embCfg.APIKey,
		Model:  model,
	}
	if embCfg.Timeout > 0 {
		embConfig.Timeout = time.Duration(embCfg.Timeout) * time.Second
	}
	if embCfg.Dimensions > 0 {
		embConfig.Dimensions = &embCfg.Dimensions
	}

	embedder, err := dashscope.NewEmbedder(ctx, embConfig)
	if err != nil {
		log.Printf("Warning: failed to create embedder: %v", err)
		return nil
	}
	return embedder
}
