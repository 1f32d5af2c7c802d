package service

import (
	"context"
	"errors"
	"sync"

	"fatwa-rag-go/internal/model"
)

// fakeChunkStore 记录每次 FetchMany 请求的 key。
type fakeChunkStore struct {
	mu     sync.Mutex
	chunks map[string]map[model.ChunkKey]model.Chunk
	calls  [][]model.ChunkKey
	err    error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[string]map[model.ChunkKey]model.Chunk)}
}

func (f *fakeChunkStore) add(namespace string, chunks ...model.Chunk) {
	if f.chunks[namespace] == nil {
		f.chunks[namespace] = make(map[model.ChunkKey]model.Chunk)
	}
	for _, c := range chunks {
		f.chunks[namespace][c.Key] = c
	}
}

func (f *fakeChunkStore) FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]model.ChunkKey(nil), keys...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[model.ChunkKey]model.Chunk)
	for _, k := range keys {
		if c, ok := f.chunks[namespace][k]; ok {
			out[k] = c
		}
	}
	return out, nil
}

type fakeVectorIndex struct {
	hits  []model.ScoredHit
	err   error
	calls int
	lastK int
}

func (f *fakeVectorIndex) Search(ctx context.Context, query string, lang model.Language, k int) ([]model.ScoredHit, error) {
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.ScoredHit, len(f.hits))
	copy(out, f.hits)
	return out, nil
}

var errBackendDown = errors.New("connection refused")

func chunk(doc string, idx, total int, text, source string) model.Chunk {
	return model.Chunk{
		Key:         model.ChunkKey{DocumentID: doc, ChunkIndex: idx},
		Text:        text,
		TotalChunks: total,
		SourceURL:   source,
	}
}

func hit(c model.Chunk, score float64) model.ScoredHit {
	s := score
	c.Score = &s
	return model.ScoredHit{Chunk: c, Score: score}
}
