package semantic

import (
	"strings"
	"testing"

	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

type fakeFactClient struct{ response string }

func (f fakeFactClient) Complete(prompt string) (string, error) { return f.response, nil }

// fakeEmbedder returns a deterministic unit vector based on whether the
// text contains "dup", so duplicate-detection tests are reproducible
// without a real embedding call.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string, task models.EmbeddingTask) ([]float32, error) {
	if strings.Contains(text, "dup") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (fakeEmbedder) EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := fakeEmbedder{}.Embed(t, task)
		out[i] = v
	}
	return out, nil
}

type fakeSemStore struct {
	semantics []vectorstore.Row
}

func (f *fakeSemStore) Add(table vectorstore.Table, row vectorstore.Row) error { return nil }
func (f *fakeSemStore) Search(table vectorstore.Table, vector []float32, limit int) ([]vectorstore.Row, error) {
	return nil, nil
}
func (f *fakeSemStore) Filter(table vectorstore.Table, expr string, args ...any) ([]vectorstore.Row, error) {
	return nil, nil
}
func (f *fakeSemStore) Update(table vectorstore.Table, where string, args []any, values vectorstore.Row) error {
	return nil
}
func (f *fakeSemStore) Delete(table vectorstore.Table, where string, args ...any) error { return nil }
func (f *fakeSemStore) CountRows(table vectorstore.Table) (int, error)                  { return len(f.semantics), nil }
func (f *fakeSemStore) ScanAll(table vectorstore.Table) ([]vectorstore.Row, error) {
	return f.semantics, nil
}

func TestExtractProducesNewSemantics(t *testing.T) {
	summariser := llm.NewSummariser(fakeFactClient{response: "The user prefers unique fact one."})
	store := &fakeSemStore{}
	x := NewExtractor(summariser, fakeEmbedder{}, store, 0.15)

	got, err := x.Extract(&models.Episode{ID: "ep1", Summary: "discussed user preferences"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 new semantic, got %d", len(got))
	}
	if got[0].SourceEpisodeID[0] != "ep1" {
		t.Fatalf("expected source episode id to be set, got %v", got[0].SourceEpisodeID)
	}
}

func TestExtractDropsDuplicates(t *testing.T) {
	summariser := llm.NewSummariser(fakeFactClient{response: "This is a dup fact already known."})
	store := &fakeSemStore{semantics: []vectorstore.Row{
		{"id": "existing", "embedding": vectorstore.Float32ToBytes([]float32{1, 0})},
	}}
	x := NewExtractor(summariser, fakeEmbedder{}, store, 0.15)

	got, err := x.Extract(&models.Episode{ID: "ep1", Summary: "discussed user preferences"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected duplicate fact to be dropped, got %d", len(got))
	}
}

func TestExtractNoneProducesNoFacts(t *testing.T) {
	summariser := llm.NewSummariser(fakeFactClient{response: "NONE"})
	store := &fakeSemStore{}
	x := NewExtractor(summariser, fakeEmbedder{}, store, 0.15)

	got, err := x.Extract(&models.Episode{ID: "ep1", Summary: "just chit chat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no facts for a NONE response, got %d", len(got))
	}
}
