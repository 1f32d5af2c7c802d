// Package model 包含了检索引擎使用的领域模型定义。
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkKey 唯一标识一个文档分块。
// 向量索引与分块存储使用的 "<docId>-<idx>" 字符串形式只在这里构造和解析。
type ChunkKey struct {
	DocumentID string `json:"documentId"`
	ChunkIndex int    `json:"chunkIndex"`
}

// String 返回分块的外部 ID，例如 "12345-0"。
func (k ChunkKey) String() string {
	return k.DocumentID + "-" + strconv.Itoa(k.ChunkIndex)
}

// ParseChunkKey 在最后一个 '-' 处切分外部 ID，文档 ID 本身可以包含 '-'。
func ParseChunkKey(id string) (ChunkKey, error) {
	i := strings.LastIndex(id, "-")
	if i <= 0 || i == len(id)-1 {
		return ChunkKey{}, fmt.Errorf("%w: %q", ErrInvalidChunkKey, id)
	}
	idx, err := strconv.Atoi(id[i+1:])
	if err != nil || idx < 0 {
		return ChunkKey{}, fmt.Errorf("%w: %q", ErrInvalidChunkKey, id)
	}
	return ChunkKey{DocumentID: id[:i], ChunkIndex: idx}, nil
}

// Chunk 是一个被索引的文本分块。
// 同一文档的所有分块 TotalChunks 和 SourceURL 一致。
type Chunk struct {
	Key         ChunkKey `json:"key"`
	Text        string   `json:"text"`
	TotalChunks int      `json:"totalChunks"`
	SourceURL   string   `json:"sourceUrl"`
	// Score 仅在分块来自相似度检索时存在，按 key 取回的分块为 nil。
	Score *float64 `json:"score,omitempty"`
}

// ScoredHit 是向量索引返回的一条命中。
type ScoredHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// ReassembledDocument 是按分块顺序拼接后的完整文档。
type ReassembledDocument struct {
	DocumentID string  `json:"documentId"`
	Text       string  `json:"text"`
	SourceURL  string  `json:"sourceUrl"`
	Score      float64 `json:"score"` // 该文档所有命中分块中的最高分
}

// RetrievalResult 是检索网关的输出。
type RetrievalResult struct {
	ContextText string   `json:"context"`
	SourceURLs  []string `json:"sources"`
}
