package retriever

import (
	"fmt"
	"sort"

	"github.com/hmemcore/hmem/internal/decay"
	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// ExpandedEpisode is a source episode pulled in during Stage II depth
// expansion.
type ExpandedEpisode struct {
	EpisodeID string
	Summary   string
	CreatedAt int64
	Relevance float64
}

// Options tunes one retrieval pass.
type Options struct {
	Alpha               float64 // Stage I coverage/relevance tradeoff
	TokenBudget         int     // total injection budget; episodes get 40%
	EpisodeHalfLifeDays float64 // down-weights stale episodes; 0 disables
}

// Result is the full two-stage retrieval output ready for budget
// allocation.
type Result struct {
	Themes    []Candidate
	Facts     []FactCandidate
	Decision  models.Stage2Decision
	Episodes  []ExpandedEpisode
	Neighbors []string
}

// Retrieve runs Stage I then Stage II: select breadth-limited themes and
// top facts, ask the LLM whether that answers the query, and on
// PARTIAL/NO expand into the surviving facts' source episodes up to 40%
// of the token budget.
func Retrieve(store vectorstore.Store, summariser *llm.Summariser, query string, queryVec []float32, opts Options) (*Result, error) {
	themes, err := SelectThemes(store, queryVec, opts.Alpha, 5, 3)
	if err != nil {
		return nil, err
	}
	facts, err := TopFacts(store, queryVec, themes, 10)
	if err != nil {
		return nil, err
	}
	neighbors := RecordNeighbors(themes)

	if len(themes) == 0 || len(facts) == 0 {
		return &Result{Themes: themes, Decision: models.Stage2No, Neighbors: neighbors}, nil
	}

	themeSummary := themes[0].Summary
	factContents := make([]string, len(facts))
	for i, f := range facts {
		factContents[i] = f.Content
	}

	decision, err := summariser.Stage2Decide(query, themeSummary, factContents)
	if err != nil {
		// A failed LLM call still yields the conservative PARTIAL
		// default from Stage2Decide; propagate the themes/facts found
		// so far rather than failing retrieval outright.
		decision = models.Stage2Partial
	}

	result := &Result{Themes: themes, Facts: facts, Decision: decision, Neighbors: neighbors}

	if decision == models.Stage2Yes {
		return result, nil
	}

	episodes, err := expandEpisodes(store, queryVec, facts, int(float64(opts.TokenBudget)*0.4), opts.EpisodeHalfLifeDays)
	if err != nil {
		return nil, fmt.Errorf("stage2 expand: %w", err)
	}
	result.Episodes = episodes
	return result, nil
}

// expandEpisodes pulls the source episodes the surviving facts point at,
// ranked by cosine similarity to the query down-weighted by episode age,
// admitted greedily until tokenBudget is exhausted.
func expandEpisodes(store vectorstore.Store, queryVec []float32, facts []FactCandidate, tokenBudget int, halfLifeDays float64) ([]ExpandedEpisode, error) {
	episodeIDs := make(map[string]bool)
	for _, f := range facts {
		for _, epID := range f.SourceEpisodeIDs {
			episodeIDs[epID] = true
		}
	}

	epRows, err := store.ScanAll(vectorstore.TableEpisodes)
	if err != nil {
		return nil, fmt.Errorf("expand: scan episodes: %w", err)
	}

	var candidates []ExpandedEpisode
	for _, r := range epRows {
		id := asString(r["id"])
		if !episodeIDs[id] {
			continue
		}
		emb := vectorstore.BytesToFloat32(asBytes(r["embedding"]))
		rel := 0.0
		if len(emb) > 0 {
			rel = vectorstore.CosineSimilarity(queryVec, emb)
		}
		createdAt := int64(asInt(r["created_at"]))
		if halfLifeDays > 0 {
			rel *= decay.Weight(createdAt, halfLifeDays)
		}
		candidates = append(candidates, ExpandedEpisode{
			EpisodeID: id,
			Summary:   asString(r["summary"]),
			CreatedAt: createdAt,
			Relevance: rel,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Relevance > candidates[j].Relevance })

	var out []ExpandedEpisode
	used := 0
	for _, c := range candidates {
		cost := episodeTokenCost(c.Summary)
		if used+cost > tokenBudget {
			continue
		}
		out = append(out, c)
		used += cost
	}
	return out, nil
}
