package decay

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hmemcore/hmem/internal/vectorstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	rows map[vectorstore.Table][]vectorstore.Row
}

func newMemStore() *memStore { return &memStore{rows: make(map[vectorstore.Table][]vectorstore.Row)} }

func (m *memStore) Add(table vectorstore.Table, row vectorstore.Row) error {
	m.rows[table] = append(m.rows[table], row)
	return nil
}
func (m *memStore) Search(table vectorstore.Table, vector []float32, limit int) ([]vectorstore.Row, error) {
	return m.rows[table], nil
}
func (m *memStore) Filter(table vectorstore.Table, expr string, args ...any) ([]vectorstore.Row, error) {
	return m.rows[table], nil
}
func (m *memStore) Update(table vectorstore.Table, where string, args []any, values vectorstore.Row) error {
	id, _ := args[0].(string)
	for i, r := range m.rows[table] {
		if asString(r["id"]) != id {
			continue
		}
		for k, v := range values {
			m.rows[table][i][k] = v
		}
	}
	return nil
}
func (m *memStore) Delete(table vectorstore.Table, where string, args ...any) error {
	id, _ := args[0].(string)
	var kept []vectorstore.Row
	for _, r := range m.rows[table] {
		if asString(r["id"]) == id {
			continue
		}
		kept = append(kept, r)
	}
	m.rows[table] = kept
	return nil
}
func (m *memStore) CountRows(table vectorstore.Table) (int, error) { return len(m.rows[table]), nil }
func (m *memStore) ScanAll(table vectorstore.Table) ([]vectorstore.Row, error) {
	return m.rows[table], nil
}

func TestWeightNeverDecays(t *testing.T) {
	if got := Weight(time.Now().Unix(), 0); got != 1 {
		t.Fatalf("non-positive half-life should never decay, got %v", got)
	}
}

func TestWeightHalvesAtHalfLife(t *testing.T) {
	createdAt := time.Now().Add(-30 * 24 * time.Hour).Unix()
	got := Weight(createdAt, 30)
	if got < 0.49 || got > 0.51 {
		t.Fatalf("weight at exactly one half-life should be ~0.5, got %v", got)
	}
}

func TestSweepDeletesOldEpisodes(t *testing.T) {
	store := newMemStore()
	oldCreatedAt := time.Now().Add(-100 * 24 * time.Hour).Unix()
	store.Add(vectorstore.TableEpisodes, vectorstore.Row{"id": "ep1", "created_at": oldCreatedAt})

	sweeper := NewSweeper(store, Policy{HalfLifeDays: 30}, Policy{}, discardLogger())
	res, err := sweeper.Sweep()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EpisodesDeleted != 1 {
		t.Fatalf("expected 1 episode deleted past 3x half-life, got %d", res.EpisodesDeleted)
	}
}

func TestSweepKeepsRecentEpisodes(t *testing.T) {
	store := newMemStore()
	store.Add(vectorstore.TableEpisodes, vectorstore.Row{"id": "ep1", "created_at": time.Now().Unix()})

	sweeper := NewSweeper(store, Policy{HalfLifeDays: 30}, Policy{}, discardLogger())
	res, err := sweeper.Sweep()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EpisodesDeleted != 0 {
		t.Fatalf("recent episode should survive, got %d deleted", res.EpisodesDeleted)
	}
}

func TestSweepBlanksRawMessagesPastRetention(t *testing.T) {
	store := newMemStore()
	oldCreatedAt := time.Now().Add(-10 * 24 * time.Hour).Unix()
	store.Add(vectorstore.TableEpisodes, vectorstore.Row{"id": "ep1", "created_at": oldCreatedAt, "raw_messages": []byte("some raw turns")})

	sweeper := NewSweeper(store, Policy{HalfLifeDays: 0, RawRetentionDays: 7}, Policy{}, discardLogger())
	res, err := sweeper.Sweep()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RawBlobsBlanked != 1 {
		t.Fatalf("expected 1 raw blob blanked, got %d", res.RawBlobsBlanked)
	}
	rows, _ := store.ScanAll(vectorstore.TableEpisodes)
	if len(rows[0]["raw_messages"].([]byte)) != 0 {
		t.Fatal("raw_messages should be blanked after the retention window")
	}
}

func TestSweepDeletesOldSemantics(t *testing.T) {
	store := newMemStore()
	oldCreatedAt := time.Now().Add(-1000 * 24 * time.Hour).Unix()
	store.Add(vectorstore.TableSemantics, vectorstore.Row{"id": "s1", "created_at": oldCreatedAt})

	sweeper := NewSweeper(store, Policy{}, Policy{HalfLifeDays: 180}, discardLogger())
	res, err := sweeper.Sweep()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SemanticsDeleted != 1 {
		t.Fatalf("expected 1 semantic deleted past 3x half-life, got %d", res.SemanticsDeleted)
	}
}
