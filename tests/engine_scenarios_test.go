// Package tests exercises the engine end-to-end against a temp-file
// SQLite database with fake LLM and embedding ports, the way the teacher's
// own top-level integration suite drives its service through a real
// database but fake external calls.
package tests

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hmemcore/hmem/internal/config"
	"github.com/hmemcore/hmem/internal/engine"
	"github.com/hmemcore/hmem/internal/models"
)

// fakeEmbedder assigns a fixed direction in embedding space per topic
// keyword so cosine similarity in the theme manager and retriever behaves
// predictably without a real embedding service.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string, task models.EmbeddingTask) ([]float32, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "deploy"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(lower, "weather"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func (e fakeEmbedder) EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(t, task)
		out[i] = v
	}
	return out, nil
}

// fakeLLMClient dispatches on the distinguishing phrases in each
// Summariser prompt template rather than needing one fake per call site.
type fakeLLMClient struct{}

func (fakeLLMClient) Complete(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Summarize the following conversation"):
		return "the team discussed the nightly deploy pipeline", nil
	case strings.Contains(prompt, "Extract 1 to 3 short standalone facts"):
		return "The deploy pipeline runs nightly at 2am.", nil
	case strings.Contains(prompt, "Give a short topic label"):
		return "Deploy Pipeline", nil
	case strings.Contains(prompt, "Does this fully answer the question"):
		return "YES", nil
	case strings.Contains(prompt, "Extract the date this event actually happened"):
		return `{"date":"","duration_days":0}`, nil
	default:
		return "NONE", nil
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := &config.Config{
		Enabled:                 true,
		Port:                    8741,
		DBPath:                  filepath.Join(t.TempDir(), "hmem-test.db"),
		EpisodeBatchSize:        2,
		RetrievalBudget:         500,
		GlobalBudget:            4000,
		MaxThemes:               50,
		EmbeddingDim:            3,
		DedupeThreshold:         0.05,
		AssignDistanceThreshold: 0.3,
		MaxSemanticsPerTheme:    12,
		MinSemanticsPerTheme:    2,
		KNNK:                    3,
		AlphaDefault:            0.5,
		AlphaMin:                0.2,
		AlphaMax:                0.8,
		EpisodeHalfLifeDays:     30,
		SemanticHalfLifeDays:    180,
		MaxGapDays:              3,
		TemporalSimilarity:      0.6,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := engine.New(cfg, logger, engine.Deps{
		Embedder:  fakeEmbedder{},
		LLMClient: fakeLLMClient{},
	})
	if err != nil {
		t.Fatalf("unexpected error constructing engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestToolResultPersistBuildsEpisodeAndTheme(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	messages := []models.Message{
		{Role: models.RoleUser, Text: "when does the deploy pipeline run?"},
		{Role: models.RoleAssistant, Text: "the deploy pipeline runs nightly at 2am"},
	}
	for _, m := range messages {
		if err := eng.ToolResultPersist(ctx, "session-1", m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count, err := eng.ThemeCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one theme to be created from the flushed episode, got %d", count)
	}
}

func TestBeforePromptBuildSurfacesStoredFacts(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	for _, m := range []models.Message{
		{Role: models.RoleUser, Text: "when does the deploy pipeline run?"},
		{Role: models.RoleAssistant, Text: "the deploy pipeline runs nightly at 2am"},
	} {
		if err := eng.ToolResultPersist(ctx, "session-1", m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	prompt, err := eng.BeforePromptBuild(ctx, "agent-1", "when does the deploy run?", "you are an assistant", "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "deploy") {
		t.Fatalf("expected the retrieved memory content to mention deploy, got %q", prompt)
	}
}

func TestAgentEndFlushesRemainingBuffer(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.ToolResultPersist(ctx, "session-2", models.Message{Role: models.RoleUser, Text: "checking the weather forecast"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before, _ := eng.ThemeCount()
	if before != 0 {
		t.Fatalf("expected no theme yet with a half-full batch, got %d", before)
	}

	if err := eng.AgentEnd(ctx, "session-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := eng.ThemeCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after != 1 {
		t.Fatalf("expected agent_end to flush the partial buffer into a theme, got %d", after)
	}
}

func TestCronWeeklyRunsWithoutError(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	for _, m := range []models.Message{
		{Role: models.RoleUser, Text: "when does the deploy pipeline run?"},
		{Role: models.RoleAssistant, Text: "the deploy pipeline runs nightly at 2am"},
	} {
		eng.ToolResultPersist(ctx, "session-3", m)
	}

	if err := eng.CronWeekly(ctx); err != nil {
		t.Fatalf("unexpected error running cron_weekly: %v", err)
	}
}

func TestCompactToolOutputShrinksLargeText(t *testing.T) {
	eng := newTestEngine(t)
	huge := strings.Repeat("line of tool output\n", 2000)
	result := eng.CompactToolOutput(huge)
	if len(result.Text) >= len(huge) {
		t.Fatalf("expected compaction to shrink a large tool output")
	}
}

func TestBeforePromptBuildShortQueryIsNoOp(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	for _, m := range []models.Message{
		{Role: models.RoleUser, Text: "when does the deploy pipeline run?"},
		{Role: models.RoleAssistant, Text: "the deploy pipeline runs nightly at 2am"},
	} {
		if err := eng.ToolResultPersist(ctx, "session-short", m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	prompt, err := eng.BeforePromptBuild(ctx, "agent-1", "hi", "you are an assistant", "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "" {
		t.Fatalf("a sub-4-character prompt should produce no injection, got %q", prompt)
	}
}

func TestDormantEngineNoOpsAllHooks(t *testing.T) {
	cfg := &config.Config{
		Enabled:          false,
		Port:             8741,
		DBPath:           filepath.Join(t.TempDir(), "hmem-dormant.db"),
		EpisodeBatchSize: 2,
		EmbeddingDim:     3,
		AlphaDefault:     0.5, AlphaMin: 0.2, AlphaMax: 0.8,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(cfg, logger, engine.Deps{Embedder: fakeEmbedder{}, LLMClient: fakeLLMClient{}})
	if err != nil {
		t.Fatalf("unexpected error constructing engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	ctx := context.Background()

	for _, m := range []models.Message{
		{Role: models.RoleUser, Text: "when does the deploy pipeline run?"},
		{Role: models.RoleAssistant, Text: "the deploy pipeline runs nightly at 2am"},
	} {
		if err := eng.ToolResultPersist(ctx, "s", m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if count, _ := eng.ThemeCount(); count != 0 {
		t.Fatalf("a dormant engine must not build memory, got %d themes", count)
	}
	prompt, err := eng.BeforePromptBuild(ctx, "a", "when does the deploy run?", "", "", "", "")
	if err != nil || prompt != "" {
		t.Fatalf("a dormant engine must inject nothing, got %q err %v", prompt, err)
	}
	if err := eng.CronWeekly(ctx); err != nil {
		t.Fatalf("dormant cron should no-op cleanly: %v", err)
	}
}

func TestRunAutonomousMemoryStoresCandidate(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	text := "The team always deploys on Friday afternoons before the long weekend starts."
	result, err := eng.RunAutonomousMemory(ctx, text, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stored == 0 {
		t.Fatalf("expected a factual sentence to be stored, got %+v", result)
	}
}
