// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"

	"fatwa-rag-go/internal/model"
)

// ChunkStore 按 (documentId, chunkIndex) 批量读取分块。
// FetchMany 是尽力而为的：不存在的 key 不出现在结果中，不视为错误。
// 一次调用只发起一次后端往返（tiered 实现为每层一次）。
// 返回 error 时结果 map 可能仍包含部分数据，调用方可以继续使用。
type ChunkStore interface {
	FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error)
}

// ChunkWriter 是导入流水线使用的写接口。
type ChunkWriter interface {
	PutChunks(ctx context.Context, namespace string, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, namespace, docID string) error
}

// ChunkRepository 同时支持读写。
type ChunkRepository interface {
	ChunkStore
	ChunkWriter
}

// storedChunk 是 redis 和 bbolt 中保存的值格式，key 已经编码在存储 key 里。
type storedChunk struct {
	Text        string `json:"text"`
	TotalChunks int    `json:"total_chunks"`
	SourceURL   string `json:"source_url"`
}

func (s storedChunk) toChunk(key model.ChunkKey) model.Chunk {
	return model.Chunk{
		Key:         key,
		Text:        s.Text,
		TotalChunks: s.TotalChunks,
		SourceURL:   s.SourceURL,
	}
}

func newStoredChunk(c model.Chunk) storedChunk {
	return storedChunk{Text: c.Text, TotalChunks: c.TotalChunks, SourceURL: c.SourceURL}
}
