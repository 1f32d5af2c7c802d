// Package service 包含检索引擎与问答的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/embedding"
	"fatwa-rag-go/pkg/log"
	"fatwa-rag-go/pkg/normalize"

	"github.com/elastic/go-elasticsearch/v8"
)

// VectorIndex 在某个语言命名空间中做 kNN 相似度检索，结果按相似度降序。
type VectorIndex interface {
	Search(ctx context.Context, query string, lang model.Language, k int) ([]model.ScoredHit, error)
}

type esVectorIndex struct {
	embedders    map[model.Language]embedding.Client
	esClient     *elasticsearch.Client
	retrievalCfg config.RetrievalConfig
}

// NewVectorIndex 创建基于 Elasticsearch dense_vector 的向量索引。
// embedders 为每种语言提供 embedding 客户端，入库与查询必须使用同一个模型。
func NewVectorIndex(embedders map[model.Language]embedding.Client, esClient *elasticsearch.Client, retrievalCfg config.RetrievalConfig) VectorIndex {
	return &esVectorIndex{
		embedders:    embedders,
		esClient:     esClient,
		retrievalCfg: retrievalCfg,
	}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                `json:"_id"`
			Score  float64               `json:"_score"`
			Source model.EsChunkDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 规范化查询、向量化并执行 kNN 检索。
// 后端失败时返回包装了 model.ErrRetrievalUnavailable 的错误，不会用空结果代替失败。
func (s *esVectorIndex) Search(ctx context.Context, query string, lang model.Language, k int) ([]model.ScoredHit, error) {
	embedder, ok := s.embedders[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedLanguage, lang)
	}
	indexName := s.retrievalCfg.ForLanguage(lang.String()).IndexName

	normalized := normalize.Normalize(query, lang)
	queryVector, err := embedder.CreateEmbedding(ctx, normalized)
	if err != nil {
		log.Errorf("[VectorIndex] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("%w: embed query: %v", model.ErrRetrievalUnavailable, err)
	}

	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"size": k,
		"_source": map[string]interface{}{
			"excludes": []string{"vector"},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("%w: elasticsearch search: %v", model.ErrRetrievalUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorIndex] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
		return nil, fmt.Errorf("%w: elasticsearch returned %s", model.ErrRetrievalUnavailable, res.Status())
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("%w: decode es response: %v", model.ErrRetrievalUnavailable, err)
	}

	hits := make([]model.ScoredHit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		key, err := model.ParseChunkKey(h.ID)
		if err != nil {
			log.Warnf("[VectorIndex] 跳过无法解析的命中: %v", err)
			continue
		}
		chunk := h.Source.ToChunk()
		chunk.Key = key
		score := h.Score
		chunk.Score = &score
		hits = append(hits, model.ScoredHit{Chunk: chunk, Score: score})
	}
	log.Infof("[VectorIndex] 检索完成, index: %s, k: %d, 命中 %d 条", indexName, k, len(hits))
	return hits, nil
}
