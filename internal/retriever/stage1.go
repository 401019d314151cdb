package retriever

import (
	"fmt"
	"sort"

	"github.com/hmemcore/hmem/internal/vectorstore"
)

// Candidate is one theme scored against a query for Stage I selection.
type Candidate struct {
	ThemeID     string
	Name        string
	Summary     string
	Embedding   []float32
	SemanticIDs []string
	NeighborIDs []string
	Relevance   float64 // cosine similarity to the query
}

// StageOneResult is the breadth-limited theme set Stage I selects, plus
// the top facts drawn from them and the neighbor IDs recorded for
// possible later cross-theme expansion (but not expanded into here).
type StageOneResult struct {
	Themes            []Candidate
	Facts             []FactCandidate
	RecordedNeighbors []string
}

// FactCandidate is a semantic fact scored against the query.
type FactCandidate struct {
	SemanticID       string
	ThemeID          string
	Content          string
	SourceEpisodeIDs []string
	Relevance        float64
}

// SelectThemes runs the greedy submodular Stage I pass: up to
// maxCandidates themes are ranked by cosine similarity to queryVec, then
// up to maxSelected are picked one at a time by maximizing
// alpha*coverageGain + (1-alpha)*relevance, where coverage gain is the
// fraction of that theme's semantic IDs not already covered by a
// previously selected theme.
func SelectThemes(store vectorstore.Store, queryVec []float32, alpha float64, maxCandidates, maxSelected int) ([]Candidate, error) {
	rows, err := store.ScanAll(vectorstore.TableThemes)
	if err != nil {
		return nil, fmt.Errorf("select themes: scan: %w", err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		emb := vectorstore.BytesToFloat32(asBytes(r["embedding"]))
		if len(emb) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			ThemeID:     asString(r["id"]),
			Name:        asString(r["name"]),
			Summary:     asString(r["summary"]),
			Embedding:   emb,
			SemanticIDs: asStringSlice(r["semantic_ids"]),
			NeighborIDs: asStringSlice(r["neighbor_ids"]),
			Relevance:   vectorstore.CosineSimilarity(queryVec, emb),
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Relevance > candidates[j].Relevance })
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	covered := make(map[string]bool)
	var selected []Candidate
	remaining := append([]Candidate(nil), candidates...)

	for len(selected) < maxSelected && len(remaining) > 0 {
		bestIdx, bestScore := -1, -1.0
		for i, c := range remaining {
			gain := coverageGain(c.SemanticIDs, covered)
			score := alpha*gain + (1-alpha)*c.Relevance
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		chosen := remaining[bestIdx]
		selected = append(selected, chosen)
		for _, id := range chosen.SemanticIDs {
			covered[id] = true
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, nil
}

// coverageGain is the fraction of ids not already in covered.
func coverageGain(ids []string, covered map[string]bool) float64 {
	if len(ids) == 0 {
		return 0
	}
	var newCount int
	for _, id := range ids {
		if !covered[id] {
			newCount++
		}
	}
	return float64(newCount) / float64(len(ids))
}

// TopFacts returns the top-N semantic facts by cosine similarity to
// queryVec across the given themes' own semantics.
func TopFacts(store vectorstore.Store, queryVec []float32, themes []Candidate, n int) ([]FactCandidate, error) {
	themeIDs := make(map[string]bool, len(themes))
	for _, t := range themes {
		themeIDs[t.ThemeID] = true
	}

	rows, err := store.ScanAll(vectorstore.TableSemantics)
	if err != nil {
		return nil, fmt.Errorf("top facts: scan: %w", err)
	}

	var facts []FactCandidate
	for _, r := range rows {
		themeID := asString(r["theme_id"])
		if !themeIDs[themeID] {
			continue
		}
		emb := vectorstore.BytesToFloat32(asBytes(r["embedding"]))
		if len(emb) == 0 {
			continue
		}
		facts = append(facts, FactCandidate{
			SemanticID:       asString(r["id"]),
			ThemeID:          themeID,
			Content:          asString(r["content"]),
			SourceEpisodeIDs: asStringSlice(r["source_episode_ids"]),
			Relevance:        vectorstore.CosineSimilarity(queryVec, emb),
		})
	}

	sort.Slice(facts, func(i, j int) bool { return facts[i].Relevance > facts[j].Relevance })
	if len(facts) > n {
		facts = facts[:n]
	}
	return facts, nil
}

// RecordNeighbors collects, without expanding into, the k-NN neighbor IDs
// of the selected themes — Stage II may use these as expansion candidates
// later, but Stage I only records them.
func RecordNeighbors(themes []Candidate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range themes {
		for _, n := range t.NeighborIDs {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
