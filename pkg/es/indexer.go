package es

import (
	"context"

	"fatwa-rag-go/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
)

// Indexer 把分块写入向量索引，供导入流水线使用。
type Indexer struct {
	client *elasticsearch.Client
}

// NewIndexer 创建 Indexer。
func NewIndexer(client *elasticsearch.Client) *Indexer {
	return &Indexer{client: client}
}

// DeleteDocument 删除文档在索引中的全部分块。
func (i *Indexer) DeleteDocument(ctx context.Context, indexName, docID string) error {
	return DeleteByDocID(ctx, i.client, indexName, docID)
}

// IndexChunks 批量写入分块向量。
func (i *Indexer) IndexChunks(ctx context.Context, indexName string, docs []model.EsChunkDocument) error {
	return BulkIndexChunks(ctx, i.client, indexName, docs)
}
