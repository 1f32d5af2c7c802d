package model

import "time"

// DocumentChunk 对应于数据库中的 document_chunks 表。
type DocumentChunk struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Namespace   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chunk_key,priority:1"`
	DocID       string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_chunk_key,priority:2"`
	ChunkIndex  int       `gorm:"not null;uniqueIndex:idx_chunk_key,priority:3"`
	Text        string    `gorm:"type:text"`
	TotalChunks int       `gorm:"not null"`
	SourceURL   string    `gorm:"type:varchar(512)"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// ToChunk 将数据库记录转换为领域分块。
func (c DocumentChunk) ToChunk() Chunk {
	return Chunk{
		Key:         ChunkKey{DocumentID: c.DocID, ChunkIndex: c.ChunkIndex},
		Text:        c.Text,
		TotalChunks: c.TotalChunks,
		SourceURL:   c.SourceURL,
	}
}

// NewDocumentChunk 根据领域分块构造数据库记录。
func NewDocumentChunk(namespace string, c Chunk) DocumentChunk {
	return DocumentChunk{
		Namespace:   namespace,
		DocID:       c.Key.DocumentID,
		ChunkIndex:  c.Key.ChunkIndex,
		Text:        c.Text,
		TotalChunks: c.TotalChunks,
		SourceURL:   c.SourceURL,
	}
}
