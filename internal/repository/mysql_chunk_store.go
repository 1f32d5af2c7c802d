package repository

import (
	"context"
	"fmt"

	"fatwa-rag-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type mysqlChunkStore struct {
	db *gorm.DB
}

// NewMySQLChunkStore 创建基于 document_chunks 表的分块存储。
func NewMySQLChunkStore(db *gorm.DB) ChunkRepository {
	return &mysqlChunkStore{db: db}
}

// FetchMany 用一条 SQL 取回所有请求的分块。
func (r *mysqlChunkStore) FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error) {
	result := make(map[model.ChunkKey]model.Chunk, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	cond := r.db.Where("doc_id = ? AND chunk_index = ?", keys[0].DocumentID, keys[0].ChunkIndex)
	for _, k := range keys[1:] {
		cond = cond.Or("doc_id = ? AND chunk_index = ?", k.DocumentID, k.ChunkIndex)
	}

	var rows []model.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		Where(cond).
		Find(&rows).Error
	if err != nil {
		return result, fmt.Errorf("failed to query document_chunks: %w", err)
	}
	for _, row := range rows {
		c := row.ToChunk()
		result[c.Key] = c
	}
	return result, nil
}

// PutChunks 批量写入分块，已存在的 (namespace, doc_id, chunk_index) 会被覆盖。
func (r *mysqlChunkStore) PutChunks(ctx context.Context, namespace string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]model.DocumentChunk, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, model.NewDocumentChunk(namespace, c))
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "doc_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "total_chunks", "source_url"}),
		}).
		CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("failed to save document_chunks: %w", err)
	}
	return nil
}

// DeleteDocument 删除某个文档的全部分块记录。
func (r *mysqlChunkStore) DeleteDocument(ctx context.Context, namespace, docID string) error {
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND doc_id = ?", namespace, docID).
		Delete(&model.DocumentChunk{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete document_chunks: %w", err)
	}
	return nil
}
