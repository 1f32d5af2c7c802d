package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

type redisChunkStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisChunkStore 创建基于 Redis 的分块存储，ttl 为 0 表示不过期。
func NewRedisChunkStore(redisClient *redis.Client, ttl time.Duration) ChunkRepository {
	return &redisChunkStore{redisClient: redisClient, ttl: ttl}
}

func chunkRedisKey(namespace string, key model.ChunkKey) string {
	return fmt.Sprintf("chunk:%s:%s", namespace, key.String())
}

// FetchMany 使用一次 MGET 读取所有 key。
func (r *redisChunkStore) FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error) {
	result := make(map[model.ChunkKey]model.Chunk, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = chunkRedisKey(namespace, k)
	}
	values, err := r.redisClient.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return result, fmt.Errorf("failed to mget chunks: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var sc storedChunk
		if err := json.Unmarshal([]byte(s), &sc); err != nil {
			log.Warnf("[RedisChunkStore] 分块数据损坏, key: %s, error: %v", redisKeys[i], err)
			continue
		}
		result[keys[i]] = sc.toChunk(keys[i])
	}
	return result, nil
}

// PutChunks 通过 pipeline 批量写入分块。
func (r *redisChunkStore) PutChunks(ctx context.Context, namespace string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	pipe := r.redisClient.Pipeline()
	for _, c := range chunks {
		data, err := json.Marshal(newStoredChunk(c))
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %s: %w", c.Key, err)
		}
		pipe.Set(ctx, chunkRedisKey(namespace, c.Key), data, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	return nil
}

// DeleteDocument 扫描并删除某个文档的全部分块。
// 文档 ID 可能包含 '-'，所以匹配到的 key 需要再解析确认。
func (r *redisChunkStore) DeleteDocument(ctx context.Context, namespace, docID string) error {
	prefix := fmt.Sprintf("chunk:%s:", namespace)
	var cursor uint64
	var toDelete []string
	for {
		keys, next, err := r.redisClient.Scan(ctx, cursor, prefix+docID+"-*", 500).Result()
		if err != nil {
			return fmt.Errorf("failed to scan chunk keys: %w", err)
		}
		for _, k := range keys {
			ck, err := model.ParseChunkKey(strings.TrimPrefix(k, prefix))
			if err == nil && ck.DocumentID == docID {
				toDelete = append(toDelete, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(toDelete) == 0 {
		return nil
	}
	if err := r.redisClient.Del(ctx, toDelete...).Err(); err != nil {
		return fmt.Errorf("failed to delete chunk keys: %w", err)
	}
	return nil
}
