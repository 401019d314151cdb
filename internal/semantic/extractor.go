// Package semantic distills episodes into short, reusable facts and drops
// near-duplicates of what's already stored, following the dedup-distance
// technique of the teacher's memory.Deduplicator generalized from a single
// exact/near-duplicate band into the one dedupeThreshold cosine-distance
// gate spec.md §4.2 calls for.
package semantic

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hmemcore/hmem/internal/embedding"
	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// Extractor turns an Episode into 0-3 new Semantic candidates.
type Extractor struct {
	summariser      *llm.Summariser
	embedder        embedding.Embedder
	store           vectorstore.Store
	dedupeThreshold float64 // cosine distance; candidates within this of a neighbor are dropped
}

func NewExtractor(summariser *llm.Summariser, embedder embedding.Embedder, store vectorstore.Store, dedupeThreshold float64) *Extractor {
	return &Extractor{
		summariser:      summariser,
		embedder:        embedder,
		store:           store,
		dedupeThreshold: dedupeThreshold,
	}
}

// Extract produces deduplicated Semantic facts from an episode. Theme
// assignment is left unset — that's the Theme Manager's job.
func (x *Extractor) Extract(ep *models.Episode) ([]*models.Semantic, error) {
	rawFacts, err := x.summariser.ExtractFacts(ep.Summary)
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}

	existing, err := x.store.ScanAll(vectorstore.TableSemantics)
	if err != nil {
		return nil, fmt.Errorf("scan existing semantics: %w", err)
	}

	var out []*models.Semantic
	for _, fact := range rawFacts {
		vec, err := x.embedder.Embed(fact, models.TaskTextMatching)
		if err != nil {
			return nil, fmt.Errorf("embed candidate fact: %w", err)
		}

		if x.isDuplicate(vec, existing) {
			continue
		}

		out = append(out, &models.Semantic{
			ID:              uuid.NewString(),
			Content:         fact,
			Embedding:       vec,
			CreatedAt:       time.Now().Unix(),
			UpdatedAt:       time.Now().Unix(),
			SourceEpisodeID: []string{ep.ID},
		})
	}

	return out, nil
}

// isDuplicate reports whether vec falls within dedupeThreshold cosine
// distance of any existing semantic's embedding.
func (x *Extractor) isDuplicate(vec []float32, existing []vectorstore.Row) bool {
	for _, row := range existing {
		emb := vectorstore.BytesToFloat32(asEmbeddingBytes(row["embedding"]))
		if len(emb) == 0 {
			continue
		}
		if vectorstore.CosineDistance(vec, emb) <= x.dedupeThreshold {
			return true
		}
	}
	return false
}

func asEmbeddingBytes(v any) []byte {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}
