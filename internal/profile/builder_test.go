package profile

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

type memStore struct {
	rows map[vectorstore.Table][]vectorstore.Row
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[vectorstore.Table][]vectorstore.Row)}
}

func (m *memStore) Add(table vectorstore.Table, row vectorstore.Row) error {
	m.rows[table] = append(m.rows[table], row)
	return nil
}
func (m *memStore) Search(table vectorstore.Table, vector []float32, limit int) ([]vectorstore.Row, error) {
	return m.rows[table], nil
}
func (m *memStore) Filter(table vectorstore.Table, expr string, args ...any) ([]vectorstore.Row, error) {
	if !strings.HasPrefix(expr, "user_id = ?") || len(args) != 1 {
		return m.rows[table], nil
	}
	var out []vectorstore.Row
	for _, r := range m.rows[table] {
		if r["user_id"] == args[0] {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *memStore) Update(table vectorstore.Table, where string, args []any, values vectorstore.Row) error {
	return nil
}
func (m *memStore) Delete(table vectorstore.Table, where string, args ...any) error {
	var kept []vectorstore.Row
	for _, r := range m.rows[table] {
		if strings.HasPrefix(where, "user_id = ?") && r["user_id"] == args[0] {
			continue
		}
		kept = append(kept, r)
	}
	m.rows[table] = kept
	return nil
}
func (m *memStore) CountRows(table vectorstore.Table) (int, error) {
	return len(m.rows[table]), nil
}
func (m *memStore) ScanAll(table vectorstore.Table) ([]vectorstore.Row, error) {
	return m.rows[table], nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string, task models.EmbeddingTask) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (fakeEmbedder) EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeProfileClient struct{ response string }

func (f fakeProfileClient) Complete(prompt string) (string, error) { return f.response, nil }

func testBuilder(store vectorstore.Store, response string) *Builder {
	summariser := llm.NewSummariser(fakeProfileClient{response: response})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBuilder(store, fakeEmbedder{}, summariser, logger)
}

func episodeRow(summary string, createdAt int64) vectorstore.Row {
	return vectorstore.Row{"id": summary, "summary": summary, "created_at": createdAt}
}

func TestRebuildNoRecentEpisodesIsNoOp(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.Add(vectorstore.TableEpisodes, episodeRow("stale", now.AddDate(0, 0, -30).Unix()))
	b := testBuilder(store, "BEHAVIOURAL: ships Go services\nCOGNITIVE: terse")

	if err := b.Rebuild("u1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows, _ := store.ScanAll(vectorstore.TableUserProfile); len(rows) != 0 {
		t.Fatal("a week with no episodes should not write a profile")
	}
}

func TestRebuildWritesProfileRow(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.Add(vectorstore.TableEpisodes, episodeRow("discussed the deploy pipeline", now.Unix()))
	b := testBuilder(store, "BEHAVIOURAL: ships Go services weekly\nCOGNITIVE: prefers terse answers")

	if err := b.Rebuild("u1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := b.Latest("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a profile row")
	}
	if got.Behavioural != "ships Go services weekly" || got.Cognitive != "prefers terse answers" {
		t.Fatalf("unexpected profile texts: %+v", got)
	}
	if got.Phase != PhaseLabel(now) {
		t.Fatalf("phase should be the current ISO week, got %q", got.Phase)
	}
	if got.MergedGlobal != "" {
		t.Fatal("first rebuild should have an empty merged global")
	}
}

func TestRebuildFoldsPriorPhaseIntoGlobal(t *testing.T) {
	store := newMemStore()
	lastWeek := time.Now().AddDate(0, 0, -8)
	now := time.Now()
	store.Add(vectorstore.TableEpisodes, episodeRow("week one work", lastWeek.Unix()))
	b := testBuilder(store, "BEHAVIOURAL: week one habits\nCOGNITIVE: week one style")
	if err := b.Rebuild("u1", lastWeek); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.Add(vectorstore.TableEpisodes, episodeRow("week two work", now.Unix()))
	b2 := testBuilder(store, "BEHAVIOURAL: week two habits\nCOGNITIVE: week two style")
	if err := b2.Rebuild("u1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := b2.Latest("u1")
	if got == nil {
		t.Fatal("expected a profile row")
	}
	if got.Behavioural != "week two habits" {
		t.Fatalf("latest phase should hold the new behavioural text, got %q", got.Behavioural)
	}
	if !strings.Contains(got.MergedGlobal, "week one habits") || !strings.Contains(got.MergedGlobal, "week one style") {
		t.Fatalf("prior phase texts should fold into merged global, got %q", got.MergedGlobal)
	}
	rows, _ := store.ScanAll(vectorstore.TableUserProfile)
	if len(rows) != 1 {
		t.Fatalf("only the latest row should remain per user, got %d", len(rows))
	}
}

func TestRebuildNoneResponseLeavesProfileUntouched(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.Add(vectorstore.TableEpisodes, episodeRow("small talk", now.Unix()))
	b := testBuilder(store, "NONE")

	if err := b.Rebuild("u1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows, _ := store.ScanAll(vectorstore.TableUserProfile); len(rows) != 0 {
		t.Fatal("a NONE response should not write a profile row")
	}
}
