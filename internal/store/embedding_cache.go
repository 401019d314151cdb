package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EmbeddingCacheEntry is a cached embedding keyed by content hash.
type EmbeddingCacheEntry struct {
	ContentHash string
	Embedding   []byte
	Dimension   int
	Model       string
	UpdatedAt   int64
}

// EmbeddingCacheStore handles the embedding_cache table.
type EmbeddingCacheStore struct {
	db *DB
}

func NewEmbeddingCacheStore(db *DB) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{db: db}
}

func (s *EmbeddingCacheStore) Get(hash string) (*EmbeddingCacheEntry, error) {
	var e EmbeddingCacheEntry
	e.ContentHash = hash
	err := s.db.QueryRow(
		`SELECT embedding, dimension, model, updated_at FROM embedding_cache WHERE content_hash = ?`,
		hash,
	).Scan(&e.Embedding, &e.Dimension, &e.Model, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding cache: %w", err)
	}
	return &e, nil
}

func (s *EmbeddingCacheStore) Put(e *EmbeddingCacheEntry) error {
	e.UpdatedAt = time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO embedding_cache (content_hash, embedding, dimension, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			embedding = excluded.embedding, dimension = excluded.dimension,
			model = excluded.model, updated_at = excluded.updated_at
	`, e.ContentHash, e.Embedding, e.Dimension, e.Model, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put embedding cache: %w", err)
	}
	return nil
}
