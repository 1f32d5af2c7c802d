// Package bootstrap 根据配置创建后端连接并组装检索引擎，server 和 fatwactl 共用。
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/pipeline"
	"fatwa-rag-go/internal/repository"
	"fatwa-rag-go/internal/service"
	"fatwa-rag-go/pkg/database"
	"fatwa-rag-go/pkg/embedding"
	"fatwa-rag-go/pkg/es"
	"fatwa-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redis/v8"
)

// Backends 持有一个进程内共享的所有连接。
type Backends struct {
	Config    config.Config
	ES        *elasticsearch.Client
	Redis     *redis.Client
	Chunks    repository.ChunkRepository
	Embedders map[model.Language]embedding.Client

	closers []func() error
}

// Options 控制 Open 建立哪些可选连接。
type Options struct {
	// Redis 为 true 时即使分块存储不需要也连接 Redis（对话记忆、Kafka 重试计数）。
	Redis bool
}

// Open 连接 Elasticsearch 与配置的分块存储。出错时已建立的连接会被关闭。
func Open(ctx context.Context, cfg config.Config, opts Options) (b *Backends, err error) {
	b = &Backends{Config: cfg, Embedders: NewEmbedders(cfg)}
	defer func() {
		if err != nil {
			b.Close()
			b = nil
		}
	}()

	b.ES, err = es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return b, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}

	store := cfg.Retrieval.ChunkStore
	if opts.Redis || store == "redis" || store == "tiered" {
		b.Redis, err = database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return b, err
		}
		b.closers = append(b.closers, b.Redis.Close)
	}

	b.Chunks, err = b.openChunkRepository(store)
	if err != nil {
		return b, err
	}
	log.Infof("[Bootstrap] 分块存储: %s", store)
	return b, nil
}

func (b *Backends) openChunkRepository(store string) (repository.ChunkRepository, error) {
	ttl := time.Duration(b.Config.Database.Redis.ChunkTTLHours) * time.Hour
	switch store {
	case "redis":
		return repository.NewRedisChunkStore(b.Redis, ttl), nil
	case "mysql":
		db, err := database.OpenMySQL(b.Config.Database.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			b.closers = append(b.closers, sqlDB.Close)
		}
		return repository.NewMySQLChunkStore(db), nil
	case "bolt":
		db, err := database.OpenBolt(b.Config.Database.Bolt.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		return repository.NewBoltChunkStore(db), nil
	case "elasticsearch":
		return repository.NewESChunkStore(b.ES), nil
	case "tiered":
		db, err := database.OpenMySQL(b.Config.Database.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			b.closers = append(b.closers, sqlDB.Close)
		}
		return repository.NewTieredChunkStore(repository.NewRedisChunkStore(b.Redis, ttl), repository.NewMySQLChunkStore(db)), nil
	}
	return nil, fmt.Errorf("unsupported chunk store %q", store)
}

// Close 逆序关闭所有连接。
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warnf("[Bootstrap] 关闭连接失败: %v", err)
		}
	}
	b.closers = nil
}

// EnsureIndices 确保每个语言的向量索引存在。
func (b *Backends) EnsureIndices(ctx context.Context) error {
	for _, name := range IndexNames(b.Config) {
		if err := es.EnsureIndex(ctx, b.ES, name, b.Config.Embedding.Dimensions); err != nil {
			return err
		}
	}
	return nil
}

// NewEmbedders 为每种语言创建 embedding 客户端，语言可以单独指定模型。
func NewEmbedders(cfg config.Config) map[model.Language]embedding.Client {
	out := make(map[model.Language]embedding.Client, len(model.Languages()))
	for _, lang := range model.Languages() {
		out[lang] = embedding.NewClient(cfg.EmbeddingFor(lang.String()))
	}
	return out
}

// IndexNames 返回所有语言命名空间对应的索引名。
func IndexNames(cfg config.Config) []string {
	names := make([]string, 0, len(model.Languages()))
	for _, lang := range model.Languages() {
		names = append(names, cfg.Retrieval.ForLanguage(lang.String()).IndexName)
	}
	return names
}

// NewRetrievalService 组装 向量检索 → 重组 → 预算 的检索网关。
func (b *Backends) NewRetrievalService() service.RetrievalService {
	rc := b.Config.Retrieval
	return service.NewRetrievalService(
		service.NewVectorIndex(b.Embedders, b.ES, rc),
		service.NewDocumentReassembler(b.Chunks, rc),
		service.NewContextBudgeter(nil, rc.MaxDocuments),
		rc,
	)
}

// NewProcessor 组装导入流水线。objects 为 nil 时只支持本地导入。
func (b *Backends) NewProcessor(objects pipeline.ObjectSource) *pipeline.Processor {
	return pipeline.NewProcessor(
		b.Embedders,
		b.Chunks,
		es.NewIndexer(b.ES),
		objects,
		b.Config.Retrieval,
		b.Config.Ingestion,
		b.Config.Embedding,
	)
}
