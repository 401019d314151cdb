package tuning

import (
	"testing"

	"github.com/hmemcore/hmem/internal/models"
)

func TestRecorderEvictsOldest(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < MaxTraces+10; i++ {
		r.Record(models.ObservabilityTrace{Timestamp: int64(i)})
	}
	traces := r.Traces()
	if len(traces) != MaxTraces {
		t.Fatalf("expected ring buffer capped at %d, got %d", MaxTraces, len(traces))
	}
	if traces[0].Timestamp != 10 {
		t.Fatalf("expected oldest entries evicted, got first timestamp %d", traces[0].Timestamp)
	}
}

func TestRateSatisfactionMarksRepeatAsUnsatisfied(t *testing.T) {
	traces := []models.ObservabilityTrace{
		{AgentID: "a1", Timestamp: 0},
		{AgentID: "a1", Timestamp: 10}, // within 60s window: same agent asks again
	}
	rated := RateSatisfaction(traces)
	if rated[0].Satisfaction != models.SatisfactionUnsatisfied {
		t.Fatalf("a quick repeat query should mark the first trace unsatisfied, got %v", rated[0].Satisfaction)
	}
}

func TestRateSatisfactionNoRepeatIsSatisfied(t *testing.T) {
	traces := []models.ObservabilityTrace{
		{AgentID: "a1", Timestamp: 0},
		{AgentID: "a1", Timestamp: 1000}, // well outside the window
	}
	rated := RateSatisfaction(traces)
	if rated[0].Satisfaction != models.SatisfactionSatisfied {
		t.Fatalf("no repeat within window should mark satisfied, got %v", rated[0].Satisfaction)
	}
}

func TestRateSatisfactionIgnoresOtherAgents(t *testing.T) {
	traces := []models.ObservabilityTrace{
		{AgentID: "a1", Timestamp: 0},
		{AgentID: "a2", Timestamp: 5},
	}
	rated := RateSatisfaction(traces)
	if rated[0].Satisfaction != models.SatisfactionSatisfied {
		t.Fatalf("a different agent's query should not count as a repeat, got %v", rated[0].Satisfaction)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got.TotalTraces != 0 {
		t.Fatalf("expected zero-value stats for no traces, got %+v", got)
	}
}

func TestSummarizeComputesHitRate(t *testing.T) {
	traces := []models.ObservabilityTrace{
		{AgentID: "a1", Timestamp: 0, MatchedThemeIDs: []string{"t1"}, TokensInjected: 100},
		{AgentID: "a2", Timestamp: 0, TokensInjected: 0},
	}
	stats := Summarize(traces)
	if stats.TotalTraces != 2 {
		t.Fatalf("expected 2 traces, got %d", stats.TotalTraces)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", stats.HitRate)
	}
}
