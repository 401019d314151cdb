package embedding

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/store"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// CachedEmbedder wraps an Embedder with two layers of content-hash caching:
// an in-process TTL cache (patrickmn/go-cache) for the hot path within a
// turn, falling back to the SQLite embedding_cache table, and only then
// calling through to the underlying embedding service — the same shape as
// the teacher's CachedEmbedder but with the in-process layer added so
// repeated embed calls in one hook invocation never round-trip to SQLite.
type CachedEmbedder struct {
	client   Embedder
	dbCache  *store.EmbeddingCacheStore
	memCache *gocache.Cache
	model    string
	dim      int
}

func NewCachedEmbedder(client Embedder, dbCache *store.EmbeddingCacheStore, model string, dim int) *CachedEmbedder {
	return &CachedEmbedder{
		client:   client,
		dbCache:  dbCache,
		memCache: gocache.New(10*time.Minute, 20*time.Minute),
		model:    model,
		dim:      dim,
	}
}

// Embed returns the embedding for text, checking the memory cache, then the
// SQLite cache, before calling through to the embedding service.
func (e *CachedEmbedder) Embed(text string, task models.EmbeddingTask) ([]float32, error) {
	hash := ContentHash(text) + "|" + string(task)

	if v, ok := e.memCache.Get(hash); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	entry, err := e.dbCache.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		vec := vectorstore.BytesToFloat32(entry.Embedding)
		e.memCache.SetDefault(hash, vec)
		return vec, nil
	}

	vec, err := e.client.Embed(text, task)
	if err != nil {
		return nil, err
	}

	cacheEntry := &store.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   vectorstore.Float32ToBytes(vec),
		Dimension:   e.dim,
		Model:       e.model,
	}
	if putErr := e.dbCache.Put(cacheEntry); putErr != nil {
		// Cache write failures don't block returning the computed vector.
		_ = putErr
	}
	e.memCache.SetDefault(hash, vec)

	return vec, nil
}

// EmbedBatch embeds each text independently through the cache.
func (e *CachedEmbedder) EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(t, task)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
