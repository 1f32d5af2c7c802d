package model

// EsChunkDocument 定义了存储在 Elasticsearch 中的分块文档结构。
// 文档 ID 为 ChunkKey.String()。
type EsChunkDocument struct {
	DocID        string    `json:"doc_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Text         string    `json:"text"`
	TotalChunks  int       `json:"total_chunks"`
	SourceURL    string    `json:"source_url"`
	Language     string    `json:"language"`
	Vector       []float32 `json:"vector,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
}

// ToChunk 将 ES 文档转换为领域分块。
func (d EsChunkDocument) ToChunk() Chunk {
	return Chunk{
		Key:         ChunkKey{DocumentID: d.DocID, ChunkIndex: d.ChunkIndex},
		Text:        d.Text,
		TotalChunks: d.TotalChunks,
		SourceURL:   d.SourceURL,
	}
}
