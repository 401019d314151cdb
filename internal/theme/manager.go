// Package theme clusters Semantic facts into topic-labeled Themes:
// assignment against existing centroids, size-distribution-aware split and
// merge gates, and a k-NN graph over theme centroids for cross-theme
// expansion. Grounded on the teacher's store/links.go upsert-and-strengthen
// pattern for the neighbor-list bookkeeping, and on search/hybrid.go's
// cosine-ranked candidate selection for the assignment and k-NN scans.
package theme

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/stats"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// Manager owns theme assignment, splitting, merging, and the k-NN graph.
type Manager struct {
	store      vectorstore.Store
	summariser *llm.Summariser

	assignDistanceThreshold float64 // e.g. 0.70: 1 - this is the similarity gate
	maxSemanticsPerTheme    int     // fixed fallback, e.g. 12
	minSemanticsPerTheme    int     // e.g. 3
	knnK                    int     // e.g. 5
	maxThemes               int     // 0 disables the cap

	sizeSampler *stats.Sampler // observed theme sizes, feeds the split gate
	simSampler  *stats.Sampler // observed inter-theme similarities, feeds the merge gate
}

// DedupSteadyThreshold is the within-theme cosine distance below which two
// semantics count as duplicates during the weekly sweep.
const DedupSteadyThreshold = 0.10

func NewManager(store vectorstore.Store, summariser *llm.Summariser, assignDistanceThreshold float64, maxSemanticsPerTheme, minSemanticsPerTheme, knnK, maxThemes int) *Manager {
	return &Manager{
		store:                   store,
		summariser:              summariser,
		assignDistanceThreshold: assignDistanceThreshold,
		maxSemanticsPerTheme:    maxSemanticsPerTheme,
		minSemanticsPerTheme:    minSemanticsPerTheme,
		knnK:                    knnK,
		maxThemes:               maxThemes,
		sizeSampler:             stats.NewSampler(),
		simSampler:              stats.NewSampler(),
	}
}

// Assign attaches sem to the most similar existing theme if it clears the
// assignment gate (cosine similarity >= 1 - assignDistanceThreshold), or
// creates a new theme named by the summariser on a miss.
func (m *Manager) Assign(sem *models.Semantic) (themeID string, err error) {
	rows, err := m.store.ScanAll(vectorstore.TableThemes)
	if err != nil {
		return "", fmt.Errorf("scan themes: %w", err)
	}

	bestID, bestSim := "", -1.0
	for _, row := range rows {
		emb := vectorstore.BytesToFloat32(asBytes(row["embedding"]))
		if len(emb) == 0 {
			continue
		}
		sim := vectorstore.CosineSimilarity(sem.Embedding, emb)
		if sim > bestSim {
			bestSim = sim
			bestID = asString(row["id"])
		}
	}

	gate := 1 - m.assignDistanceThreshold
	atCap := m.maxThemes > 0 && len(rows) >= m.maxThemes
	if bestID != "" && (bestSim >= gate || atCap) {
		size, err := m.attach(bestID, sem)
		if err != nil {
			return "", err
		}
		if size > m.SplitThreshold() {
			return m.splitAfterAssign(bestID, sem)
		}
		return bestID, nil
	}

	return m.createTheme(sem)
}

// splitAfterAssign runs the post-assignment split gate's consequence: the
// theme's stored semantics plus the just-attached (not yet persisted) fact
// are repartitioned, and the child now holding sem becomes its assignment.
func (m *Manager) splitAfterAssign(themeID string, sem *models.Semantic) (string, error) {
	members, err := m.loadSemantics(themeID)
	if err != nil {
		return "", err
	}
	members = append(members, sem)
	if len(members) < 2 {
		return themeID, nil
	}
	if _, _, err := m.Split(themeID, members); err != nil {
		return "", err
	}
	return sem.ThemeID, nil
}

// loadSemantics returns a theme's member semantics hydrated from the
// store. Uses a full scan rather than a filtered query so the caller's
// semantic_ids list stays the single source of membership truth.
func (m *Manager) loadSemantics(themeID string) ([]*models.Semantic, error) {
	rows, err := m.store.ScanAll(vectorstore.TableSemantics)
	if err != nil {
		return nil, fmt.Errorf("load semantics: %w", err)
	}
	var out []*models.Semantic
	for _, r := range rows {
		if asString(r["theme_id"]) != themeID {
			continue
		}
		out = append(out, &models.Semantic{
			ID:        asString(r["id"]),
			Content:   asString(r["content"]),
			Embedding: vectorstore.BytesToFloat32(asBytes(r["embedding"])),
			CreatedAt: int64(asInt(r["created_at"])),
			ThemeID:   themeID,
		})
	}
	return out, nil
}

func (m *Manager) createTheme(sem *models.Semantic) (string, error) {
	name, err := m.summariser.NameTheme([]string{sem.Content})
	if err != nil {
		name = "Untitled Topic"
	}
	th := &models.Theme{
		ID:           uuid.NewString(),
		Name:         name,
		Summary:      sem.Content,
		Embedding:    sem.Embedding,
		SemanticIDs:  []string{sem.ID},
		MessageCount: 1,
		LastActive:   time.Now().Unix(),
	}
	if err := m.store.Add(vectorstore.TableThemes, themeRow(th)); err != nil {
		return "", fmt.Errorf("create theme: %w", err)
	}
	m.sizeSampler.Observe(1)
	sem.ThemeID = th.ID
	return th.ID, nil
}

func (m *Manager) attach(themeID string, sem *models.Semantic) (int, error) {
	rows, err := m.store.Filter(vectorstore.TableThemes, "id = ?", themeID)
	if err != nil || len(rows) == 0 {
		return 0, fmt.Errorf("attach: load theme: %w", err)
	}
	row := rows[0]
	semIDs := append(asStringSlice(row["semantic_ids"]), sem.ID)

	if err := m.store.Update(vectorstore.TableThemes, "id = ?", []any{themeID}, vectorstore.Row{
		"semantic_ids":  joinIDs(semIDs),
		"message_count": asInt(row["message_count"]) + 1,
		"last_active":   time.Now().Unix(),
		"dormant":       false,
	}); err != nil {
		return 0, fmt.Errorf("attach: update theme: %w", err)
	}
	m.sizeSampler.Observe(float64(len(semIDs)))
	sem.ThemeID = themeID
	return len(semIDs), nil
}

// SplitThreshold returns the current size above which a theme should be
// split: the observed upper-10%-tail theme size once enough themes have
// been sized, falling back to maxSemanticsPerTheme below that.
func (m *Manager) SplitThreshold() int {
	if m.sizeSampler.Ready() {
		return int(m.sizeSampler.UpperTail(0.1))
	}
	return m.maxSemanticsPerTheme
}

// MergeThreshold returns the inter-theme similarity above which two themes
// should merge: the observed upper-10%-tail similarity once enough theme
// pairs have been sampled, falling back to a fixed 0.80 below that.
func (m *Manager) MergeThreshold() float64 {
	if m.simSampler.Ready() {
		return m.simSampler.UpperTail(0.1)
	}
	return 0.80
}

// Split partitions a theme whose semantic count has crossed SplitThreshold
// into two, using two-means (first/last member seeding, 3 iterations,
// non-empty-group enforcement). Returns the two resulting theme IDs.
func (m *Manager) Split(themeID string, semantics []*models.Semantic) (string, string, error) {
	if len(semantics) < 2 {
		return "", "", fmt.Errorf("split: need at least 2 semantics, got %d", len(semantics))
	}

	centroidA := semantics[0].Embedding
	centroidB := semantics[len(semantics)-1].Embedding

	var groupA, groupB []*models.Semantic
	for iter := 0; iter < 3; iter++ {
		groupA, groupB = nil, nil
		for _, s := range semantics {
			if vectorstore.CosineSimilarity(s.Embedding, centroidA) >= vectorstore.CosineSimilarity(s.Embedding, centroidB) {
				groupA = append(groupA, s)
			} else {
				groupB = append(groupB, s)
			}
		}
		if len(groupA) == 0 {
			groupA = append(groupA, groupB[len(groupB)-1])
			groupB = groupB[:len(groupB)-1]
		}
		if len(groupB) == 0 {
			groupB = append(groupB, groupA[len(groupA)-1])
			groupA = groupA[:len(groupA)-1]
		}
		centroidA = vectorstore.Centroid(embeddingsOf(groupA))
		centroidB = vectorstore.Centroid(embeddingsOf(groupB))
	}

	nameA, _ := m.summariser.NameTheme(contentsOf(groupA))
	nameB, _ := m.summariser.NameTheme(contentsOf(groupB))

	// Message counts carry over from the parent, halved floor/ceiling,
	// rather than restarting at the group sizes.
	parentCount := len(semantics)
	if rows, err := m.store.Filter(vectorstore.TableThemes, "id = ?", themeID); err == nil && len(rows) > 0 {
		parentCount = asInt(rows[0]["message_count"])
	}
	countA := parentCount / 2
	countB := parentCount - countA

	thA := &models.Theme{ID: uuid.NewString(), Name: nameA, Summary: nameA, Embedding: centroidA, SemanticIDs: idsOf(groupA), MessageCount: countA, LastActive: time.Now().Unix()}
	thB := &models.Theme{ID: uuid.NewString(), Name: nameB, Summary: nameB, Embedding: centroidB, SemanticIDs: idsOf(groupB), MessageCount: countB, LastActive: time.Now().Unix()}

	if err := m.store.Add(vectorstore.TableThemes, themeRow(thA)); err != nil {
		return "", "", fmt.Errorf("split: add theme A: %w", err)
	}
	if err := m.store.Add(vectorstore.TableThemes, themeRow(thB)); err != nil {
		return "", "", fmt.Errorf("split: add theme B: %w", err)
	}
	if err := m.store.Delete(vectorstore.TableThemes, "id = ?", themeID); err != nil {
		return "", "", fmt.Errorf("split: delete parent theme: %w", err)
	}

	for _, s := range groupA {
		s.ThemeID = thA.ID
		if err := m.store.Update(vectorstore.TableSemantics, "id = ?", []any{s.ID}, vectorstore.Row{"theme_id": thA.ID}); err != nil {
			return "", "", fmt.Errorf("split: reassign semantic %s: %w", s.ID, err)
		}
	}
	for _, s := range groupB {
		s.ThemeID = thB.ID
		if err := m.store.Update(vectorstore.TableSemantics, "id = ?", []any{s.ID}, vectorstore.Row{"theme_id": thB.ID}); err != nil {
			return "", "", fmt.Errorf("split: reassign semantic %s: %w", s.ID, err)
		}
	}

	m.sizeSampler.Observe(float64(len(groupA)))
	m.sizeSampler.Observe(float64(len(groupB)))

	return thA.ID, thB.ID, nil
}

// RebuildKNN re-centres each theme's embedding on the mean of its member
// semantics' embeddings (themes with no embedded members keep theirs),
// then recomputes each theme's neighbor_ids against every other theme's
// centroid, keeping the top knnK by cosine similarity. Called once per
// batch rather than per assignment, per the cron_weekly-adjacent batching
// the rest of the engine uses.
func (m *Manager) RebuildKNN() error {
	rows, err := m.store.ScanAll(vectorstore.TableThemes)
	if err != nil {
		return fmt.Errorf("rebuild knn: scan: %w", err)
	}
	semRows, err := m.store.ScanAll(vectorstore.TableSemantics)
	if err != nil {
		return fmt.Errorf("rebuild knn: scan semantics: %w", err)
	}
	members := make(map[string][][]float32)
	for _, r := range semRows {
		if emb := vectorstore.BytesToFloat32(asBytes(r["embedding"])); len(emb) > 0 {
			members[asString(r["theme_id"])] = append(members[asString(r["theme_id"])], emb)
		}
	}

	type themeVec struct {
		id  string
		emb []float32
	}
	vecs := make([]themeVec, 0, len(rows))
	for _, r := range rows {
		tv := themeVec{id: asString(r["id"]), emb: vectorstore.BytesToFloat32(asBytes(r["embedding"]))}
		if embs := members[tv.id]; len(embs) > 0 {
			tv.emb = vectorstore.Centroid(embs)
		}
		vecs = append(vecs, tv)
	}

	for i, tv := range vecs {
		type cand struct {
			id  string
			sim float64
		}
		var cands []cand
		for j, other := range vecs {
			if i == j || len(tv.emb) == 0 || len(other.emb) == 0 {
				continue
			}
			sim := vectorstore.CosineSimilarity(tv.emb, other.emb)
			cands = append(cands, cand{id: other.id, sim: sim})
			m.simSampler.Observe(sim)
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].sim > cands[b].sim })
		if len(cands) > m.knnK {
			cands = cands[:m.knnK]
		}
		neighborIDs := make([]string, len(cands))
		for k, c := range cands {
			neighborIDs[k] = c.id
		}
		if err := m.store.Update(vectorstore.TableThemes, "id = ?", []any{tv.id}, vectorstore.Row{
			"neighbor_ids": joinIDs(neighborIDs),
			"embedding":    vectorstore.Float32ToBytes(tv.emb),
		}); err != nil {
			return fmt.Errorf("rebuild knn: update %s: %w", tv.id, err)
		}
	}
	return nil
}

// MergeCandidates returns theme ID pairs that are k-NN neighbors, both
// below minSemanticsPerTheme, whose similarity clears MergeThreshold.
func (m *Manager) MergeCandidates() ([][2]string, error) {
	rows, err := m.store.ScanAll(vectorstore.TableThemes)
	if err != nil {
		return nil, fmt.Errorf("merge candidates: scan: %w", err)
	}
	byID := make(map[string]vectorstore.Row, len(rows))
	for _, r := range rows {
		byID[asString(r["id"])] = r
	}

	threshold := m.MergeThreshold()
	seen := make(map[string]bool)
	var out [][2]string
	for _, r := range rows {
		id := asString(r["id"])
		semIDs := asStringSlice(r["semantic_ids"])
		if len(semIDs) >= m.minSemanticsPerTheme {
			continue
		}
		emb := vectorstore.BytesToFloat32(asBytes(r["embedding"]))
		for _, nbID := range asStringSlice(r["neighbor_ids"]) {
			nb, ok := byID[nbID]
			if !ok {
				continue
			}
			if len(asStringSlice(nb["semantic_ids"])) >= m.minSemanticsPerTheme {
				continue
			}
			key := pairKey(id, nbID)
			if seen[key] {
				continue
			}
			seen[key] = true
			nbEmb := vectorstore.BytesToFloat32(asBytes(nb["embedding"]))
			if len(emb) == 0 || len(nbEmb) == 0 {
				continue
			}
			if vectorstore.CosineSimilarity(emb, nbEmb) >= threshold {
				out = append(out, [2]string{id, nbID})
			}
		}
	}
	return out, nil
}

// Merge folds theme B into theme A: A keeps its id, name, and embedding
// (the centroid is recomputed lazily on the next RebuildKNN), semantic
// lists are concatenated, message counts summed, and last_active becomes
// the later of the two. Both neighbor lists are cleared since the merged
// membership invalidates prior similarity rankings.
func (m *Manager) Merge(idA, idB string) (string, error) {
	rowsA, err := m.store.Filter(vectorstore.TableThemes, "id = ?", idA)
	if err != nil || len(rowsA) == 0 {
		return "", fmt.Errorf("merge: load theme A: %w", err)
	}
	rowsB, err := m.store.Filter(vectorstore.TableThemes, "id = ?", idB)
	if err != nil || len(rowsB) == 0 {
		return "", fmt.Errorf("merge: load theme B: %w", err)
	}
	a, b := rowsA[0], rowsB[0]

	semIDs := append(asStringSlice(a["semantic_ids"]), asStringSlice(b["semantic_ids"])...)
	lastActive := int64(asInt(a["last_active"]))
	if lb := int64(asInt(b["last_active"])); lb > lastActive {
		lastActive = lb
	}

	if err := m.store.Update(vectorstore.TableThemes, "id = ?", []any{idA}, vectorstore.Row{
		"semantic_ids":  joinIDs(semIDs),
		"message_count": asInt(a["message_count"]) + asInt(b["message_count"]),
		"last_active":   lastActive,
		"neighbor_ids":  "",
	}); err != nil {
		return "", fmt.Errorf("merge: update theme A: %w", err)
	}
	if err := m.store.Delete(vectorstore.TableThemes, "id = ?", idB); err != nil {
		return "", fmt.Errorf("merge: delete theme B: %w", err)
	}
	if err := m.store.Update(vectorstore.TableSemantics, "theme_id = ?", []any{idB}, vectorstore.Row{
		"theme_id": idA,
	}); err != nil {
		return "", fmt.Errorf("merge: reassign semantics: %w", err)
	}
	m.sizeSampler.Observe(float64(len(semIDs)))
	return idA, nil
}

// RunMerges finds and executes every eligible merge pair, skipping pairs
// whose partner was already consumed by an earlier merge this pass.
func (m *Manager) RunMerges() (int, error) {
	pairs, err := m.MergeCandidates()
	if err != nil {
		return 0, err
	}
	consumed := make(map[string]bool)
	merged := 0
	for _, p := range pairs {
		if consumed[p[0]] || consumed[p[1]] {
			continue
		}
		if _, err := m.Merge(p[0], p[1]); err != nil {
			return merged, err
		}
		consumed[p[1]] = true
		merged++
	}
	return merged, nil
}

// MarkDormant flags themes with no activity in the given window. A later
// attach reactivates them.
func (m *Manager) MarkDormant(olderThanDays int) (int, error) {
	rows, err := m.store.ScanAll(vectorstore.TableThemes)
	if err != nil {
		return 0, fmt.Errorf("mark dormant: scan: %w", err)
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).Unix()
	marked := 0
	for _, r := range rows {
		if asBool(r["dormant"]) || int64(asInt(r["last_active"])) >= cutoff {
			continue
		}
		if err := m.store.Update(vectorstore.TableThemes, "id = ?", []any{asString(r["id"])}, vectorstore.Row{
			"dormant": true,
		}); err != nil {
			return marked, fmt.Errorf("mark dormant: update: %w", err)
		}
		marked++
	}
	return marked, nil
}

// DedupSweep removes near-duplicate semantics within each theme: for any
// pair closer than the given cosine distance, the younger row is deleted
// and unlisted from its theme. Returns the number of rows removed.
func (m *Manager) DedupSweep(threshold float64) (int, error) {
	members := make(map[string][]*models.Semantic)
	rows, err := m.store.ScanAll(vectorstore.TableSemantics)
	if err != nil {
		return 0, fmt.Errorf("dedup sweep: scan: %w", err)
	}
	for _, r := range rows {
		s := &models.Semantic{
			ID:        asString(r["id"]),
			Embedding: vectorstore.BytesToFloat32(asBytes(r["embedding"])),
			CreatedAt: int64(asInt(r["created_at"])),
			ThemeID:   asString(r["theme_id"]),
		}
		members[s.ThemeID] = append(members[s.ThemeID], s)
	}

	removed := 0
	for themeID, sems := range members {
		drop := make(map[string]bool)
		for i := 0; i < len(sems); i++ {
			for j := i + 1; j < len(sems); j++ {
				if drop[sems[i].ID] || drop[sems[j].ID] {
					continue
				}
				if len(sems[i].Embedding) == 0 || len(sems[j].Embedding) == 0 {
					continue
				}
				dist := 1 - vectorstore.CosineSimilarity(sems[i].Embedding, sems[j].Embedding)
				if dist >= threshold {
					continue
				}
				victim := sems[j]
				if sems[i].CreatedAt > sems[j].CreatedAt {
					victim = sems[i]
				}
				drop[victim.ID] = true
			}
		}
		if len(drop) == 0 {
			continue
		}
		for id := range drop {
			if err := m.store.Delete(vectorstore.TableSemantics, "id = ?", id); err != nil {
				return removed, fmt.Errorf("dedup sweep: delete %s: %w", id, err)
			}
			removed++
		}
		if err := m.unlistSemantics(themeID, drop); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (m *Manager) unlistSemantics(themeID string, drop map[string]bool) error {
	rows, err := m.store.Filter(vectorstore.TableThemes, "id = ?", themeID)
	if err != nil || len(rows) == 0 {
		return nil // dangling theme pointer; the decay sweep owns that case
	}
	var kept []string
	for _, id := range asStringSlice(rows[0]["semantic_ids"]) {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	if err := m.store.Update(vectorstore.TableThemes, "id = ?", []any{themeID}, vectorstore.Row{
		"semantic_ids": joinIDs(kept),
	}); err != nil {
		return fmt.Errorf("dedup sweep: unlist from theme %s: %w", themeID, err)
	}
	return nil
}

// Sparsity returns N²/(K·Σn_k²+ε), where N is the total fact count, K is
// the theme count, and n_k is each theme's fact count. 1.0 means facts are
// spread perfectly evenly; it falls toward 1/K as one theme absorbs
// everything.
func (m *Manager) Sparsity() (float64, error) {
	rows, err := m.store.ScanAll(vectorstore.TableThemes)
	if err != nil {
		return 0, fmt.Errorf("sparsity: scan: %w", err)
	}
	k := float64(len(rows))
	if k == 0 {
		return 0, nil
	}
	var total, sumSq float64
	for _, r := range rows {
		nk := float64(len(asStringSlice(r["semantic_ids"])))
		total += nk
		sumSq += nk * nk
	}
	const eps = 1e-9
	return (total * total) / (k*sumSq + eps), nil
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

func themeRow(th *models.Theme) vectorstore.Row {
	return vectorstore.Row{
		"id":            th.ID,
		"name":          th.Name,
		"summary":       th.Summary,
		"embedding":     vectorstore.Float32ToBytes(th.Embedding),
		"semantic_ids":  joinIDs(th.SemanticIDs),
		"message_count": th.MessageCount,
		"last_active":   th.LastActive,
		"neighbor_ids":  joinIDs(th.NeighborIDs),
		"dormant":       th.Dormant,
	}
}

func embeddingsOf(sems []*models.Semantic) [][]float32 {
	out := make([][]float32, len(sems))
	for i, s := range sems {
		out[i] = s.Embedding
	}
	return out
}

func contentsOf(sems []*models.Semantic) []string {
	out := make([]string, len(sems))
	for i, s := range sems {
		out[i] = s.Content
	}
	return out
}

func idsOf(sems []*models.Semantic) []string {
	out := make([]string, len(sems))
	for i, s := range sems {
		out[i] = s.ID
	}
	return out
}
