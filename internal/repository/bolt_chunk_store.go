package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"fatwa-rag-go/internal/model"

	"go.etcd.io/bbolt"
)

type boltChunkStore struct {
	db *bbolt.DB
}

// NewBoltChunkStore 创建基于 bbolt 的本地分块存储，每个命名空间一个 bucket。
func NewBoltChunkStore(db *bbolt.DB) ChunkRepository {
	return &boltChunkStore{db: db}
}

// FetchMany 在一个只读事务中读取所有 key。
func (s *boltChunkStore) FetchMany(ctx context.Context, namespace string, keys []model.ChunkKey) (map[model.ChunkKey]model.Chunk, error) {
	result := make(map[model.ChunkKey]model.Chunk, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		for _, k := range keys {
			data := b.Get([]byte(k.String()))
			if data == nil {
				continue
			}
			var sc storedChunk
			if err := json.Unmarshal(data, &sc); err != nil {
				return fmt.Errorf("corrupt chunk %s: %w", k, err)
			}
			result[k] = sc.toChunk(k)
		}
		return nil
	})
	return result, err
}

func (s *boltChunkStore) PutChunks(ctx context.Context, namespace string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", namespace, err)
		}
		for _, c := range chunks {
			data, err := json.Marshal(newStoredChunk(c))
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.Key.String()), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDocument 用前缀游标删除文档的分块。
func (s *boltChunkStore) DeleteDocument(ctx context.Context, namespace, docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		prefix := []byte(docID + "-")
		var toDelete [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ck, err := model.ParseChunkKey(string(k))
			if err == nil && ck.DocumentID == docID {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
