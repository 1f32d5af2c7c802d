package model

import "errors"

var (
	// ErrRetrievalUnavailable 表示 embedding 或向量检索后端不可用，调用方需要感知该错误。
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")
	// ErrInvalidChunkKey 表示分块 ID 不符合 "<docId>-<idx>" 格式。
	ErrInvalidChunkKey = errors.New("invalid chunk key")
	// ErrUnsupportedLanguage 表示请求的语言没有对应的索引。
	ErrUnsupportedLanguage = errors.New("unsupported language")
)
