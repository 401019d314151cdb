package temporal

import (
	"sort"

	"github.com/google/uuid"

	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// BuildDurativeMemories groups temporally close, related events into
// DurativeMemory spans: sort by semantic time, then greedily extend the
// current group while the gap to the next event is within maxGapDays and
// the embeddings are similar enough. A group of one is only emitted if the
// seed event itself carried a nonzero duration.
func BuildDurativeMemories(events []*models.TemporalEvent, maxGapDays, similarityThreshold float64) []*models.DurativeMemory {
	if len(events) == 0 {
		return nil
	}

	sorted := append([]*models.TemporalEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SemanticTime < sorted[j].SemanticTime })

	var out []*models.DurativeMemory
	group := []*models.TemporalEvent{sorted[0]}

	flush := func() {
		if len(group) > 1 || group[0].DurationMs > 0 {
			out = append(out, newDurativeMemory(group))
		}
		group = nil
	}

	for i := 1; i < len(sorted); i++ {
		prev := group[len(group)-1]
		cur := sorted[i]
		gapDays := float64(cur.SemanticTime-prev.SemanticTime) / 86400

		sim := vectorstore.CosineSimilarity(prev.Embedding, cur.Embedding)
		if gapDays <= maxGapDays && sim >= similarityThreshold {
			group = append(group, cur)
			continue
		}
		flush()
		group = []*models.TemporalEvent{cur}
	}
	flush()

	return out
}

func newDurativeMemory(group []*models.TemporalEvent) *models.DurativeMemory {
	ids := make([]string, len(group))
	embs := make([][]float32, len(group))
	summary := group[0].Content
	for i, e := range group {
		ids[i] = e.ID
		embs[i] = e.Embedding
	}
	start := group[0].SemanticTime
	end := group[len(group)-1].SemanticTime
	if group[len(group)-1].DurationMs > 0 {
		end += group[len(group)-1].DurationMs / 1000
	}
	return &models.DurativeMemory{
		ID:        uuid.NewString(),
		Summary:   summary,
		StartTime: start,
		EndTime:   end,
		MemberIDs: ids,
		Embedding: vectorstore.Centroid(embs),
	}
}
