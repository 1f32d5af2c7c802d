package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

type esChunkStore struct {
	esClient *elasticsearch.Client
}

// NewESChunkStore 直接从向量索引中按 ID 读取分块，命名空间即索引名。
// 分块文本随向量一起由导入流水线写入索引，因此写方法不做任何事。
func NewESChunkStore(esClient *elasticsearch.Client) ChunkRepository {
	return &esChunkStore{esClient: esClient}
}

// FetchMany 使用一次 _mget 读取分块，不返回向量字段。
func (r *esChunkStore) FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error) {
	result := make(map[model.ChunkKey]model.Chunk, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.String()
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]interface{}{"ids": ids}); err != nil {
		return result, fmt.Errorf("failed to encode mget body: %w", err)
	}

	res, err := r.esClient.Mget(
		&buf,
		r.esClient.Mget.WithContext(ctx),
		r.esClient.Mget.WithIndex(namespace),
		r.esClient.Mget.WithSourceExcludes("vector"),
	)
	if err != nil {
		return result, fmt.Errorf("elasticsearch mget failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return result, fmt.Errorf("elasticsearch mget returned %s: %s", res.Status(), string(body))
	}

	var mgetResp struct {
		Docs []struct {
			ID     string                `json:"_id"`
			Found  bool                  `json:"found"`
			Source model.EsChunkDocument `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mgetResp); err != nil {
		return result, fmt.Errorf("failed to decode mget response: %w", err)
	}

	for _, d := range mgetResp.Docs {
		if !d.Found {
			continue
		}
		key, err := model.ParseChunkKey(d.ID)
		if err != nil {
			log.Warnf("[ESChunkStore] 跳过无法解析的分块 ID: %v", err)
			continue
		}
		c := d.Source.ToChunk()
		c.Key = key
		result[key] = c
	}
	return result, nil
}

func (r *esChunkStore) PutChunks(ctx context.Context, namespace string, chunks []model.Chunk) error {
	return nil
}

func (r *esChunkStore) DeleteDocument(ctx context.Context, namespace, docID string) error {
	return nil
}
