package repository

import (
	"context"
	"fmt"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"
)

type tieredChunkStore struct {
	cache   ChunkRepository
	primary ChunkRepository
}

// NewTieredChunkStore 组合缓存层（Redis）和主存储（MySQL）：
// 先读缓存，未命中的 key 一次性从主存储读取并回填缓存。
func NewTieredChunkStore(cache, primary ChunkRepository) ChunkRepository {
	return &tieredChunkStore{cache: cache, primary: primary}
}

func (s *tieredChunkStore) FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error) {
	result, err := s.cache.FetchMany(ctx, namespace, keys)
	if err != nil {
		log.Warnf("[TieredChunkStore] 读取缓存失败, 回退到主存储: %v", err)
	}
	if result == nil {
		result = make(map[model.ChunkKey]model.Chunk, len(keys))
	}

	var misses []model.ChunkKey
	for _, k := range keys {
		if _, ok := result[k]; !ok {
			misses = append(misses, k)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.primary.FetchMany(ctx, namespace, misses)
	for k, c := range fetched {
		result[k] = c
	}
	if err != nil {
		return result, err
	}

	if len(fetched) > 0 {
		backfill := make([]model.Chunk, 0, len(fetched))
		for _, c := range fetched {
			backfill = append(backfill, c)
		}
		if err := s.cache.PutChunks(ctx, namespace, backfill); err != nil {
			log.Warnf("[TieredChunkStore] 回填缓存失败: %v", err)
		}
	}
	log.Debugf("[TieredChunkStore] namespace: %s, 请求 %d, 缓存命中 %d, 主存储命中 %d",
		namespace, len(keys), len(keys)-len(misses), len(fetched))
	return result, nil
}

// PutChunks 先写主存储，再写缓存。
func (s *tieredChunkStore) PutChunks(ctx context.Context, namespace string, chunks []model.Chunk) error {
	if err := s.primary.PutChunks(ctx, namespace, chunks); err != nil {
		return err
	}
	if err := s.cache.PutChunks(ctx, namespace, chunks); err != nil {
		return fmt.Errorf("chunks saved but cache write failed: %w", err)
	}
	return nil
}

func (s *tieredChunkStore) DeleteDocument(ctx context.Context, namespace, docID string) error {
	if err := s.primary.DeleteDocument(ctx, namespace, docID); err != nil {
		return err
	}
	return s.cache.DeleteDocument(ctx, namespace, docID)
}
