package episode

import (
	"testing"

	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
)

type fakeEpisodeClient struct{ response string }

func (f fakeEpisodeClient) Complete(prompt string) (string, error) { return f.response, nil }

type fakeEpisodeEmbedder struct{}

func (fakeEpisodeEmbedder) Embed(text string, task models.EmbeddingTask) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (fakeEpisodeEmbedder) EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func TestTopicSwitchDetectsMarker(t *testing.T) {
	if !TopicSwitch("By the way, what's the weather?", "let's talk about deployment") {
		t.Fatal("expected a leading topic-switch marker to be detected")
	}
}

func TestTopicSwitchNoPreviousNeverSwitches(t *testing.T) {
	if TopicSwitch("By the way, anything new?", "") {
		t.Fatal("an empty previous message should never trigger a topic switch")
	}
}

func TestTopicSwitchContinuationIsNotASwitch(t *testing.T) {
	if TopicSwitch("Also, can you check the logs?", "let's talk about deployment") {
		t.Fatal("a continuation phrase should not be treated as a topic switch")
	}
}

func TestBuilderFlushesOnBatchSize(t *testing.T) {
	summariser := llm.NewSummariser(fakeEpisodeClient{response: "Summary of the batch."})
	b := NewBuilder("session1", 2, summariser, fakeEpisodeEmbedder{})

	if _, err := b.Add(models.Message{Role: models.RoleUser, Text: "hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Ready() {
		t.Fatal("should not be ready before reaching batch size")
	}
	if _, err := b.Add(models.Message{Role: models.RoleAssistant, Text: "hi there"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Ready() {
		t.Fatal("should be ready once batch size is reached")
	}

	ep, err := b.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep == nil || ep.MessageCount != 2 {
		t.Fatalf("expected a flushed episode with 2 messages, got %+v", ep)
	}
	if b.Ready() {
		t.Fatal("buffer should be empty after flush")
	}
}

func TestBuilderAddFlushesOnTopicSwitch(t *testing.T) {
	summariser := llm.NewSummariser(fakeEpisodeClient{response: "Summary."})
	b := NewBuilder("session1", 5, summariser, fakeEpisodeEmbedder{})

	b.Add(models.Message{Role: models.RoleUser, Text: "let's talk about deployment"})
	flushed, err := b.Add(models.Message{Role: models.RoleUser, Text: "by the way, unrelated question"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flushed == nil {
		t.Fatal("expected the prior buffer to be flushed on topic switch")
	}
	if flushed.MessageCount != 1 {
		t.Fatalf("expected the flushed episode to contain only the pre-switch message, got %d", flushed.MessageCount)
	}
}

func TestBuilderFlushEmptyBufferIsNoOp(t *testing.T) {
	summariser := llm.NewSummariser(fakeEpisodeClient{response: "Summary."})
	b := NewBuilder("session1", 5, summariser, fakeEpisodeEmbedder{})

	ep, err := b.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep != nil {
		t.Fatal("flushing an empty buffer should return nil, nil")
	}
}

func TestNewBuilderDefaultsBatchSize(t *testing.T) {
	summariser := llm.NewSummariser(fakeEpisodeClient{response: "x"})
	b := NewBuilder("s", 0, summariser, fakeEpisodeEmbedder{})
	if b.batchSize != DefaultBatchSize {
		t.Fatalf("expected default batch size %d, got %d", DefaultBatchSize, b.batchSize)
	}
}
