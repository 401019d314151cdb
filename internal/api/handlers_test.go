package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/tuning"
)

func TestObservabilityStatsHandlerReturnsSummary(t *testing.T) {
	recorder := tuning.NewRecorder()
	recorder.Record(models.ObservabilityTrace{AgentID: "a1", Timestamp: 0, MatchedThemeIDs: []string{"t1"}})

	handler := NewObservabilityHandler(recorder)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/observability/stats", nil)
	handler.Stats(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats tuning.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if stats.TotalTraces != 1 {
		t.Fatalf("expected 1 total trace, got %d", stats.TotalTraces)
	}
}

func TestObservabilityStatsHandlerEmpty(t *testing.T) {
	handler := NewObservabilityHandler(tuning.NewRecorder())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/observability/stats", nil)
	handler.Stats(rec, req)

	var stats tuning.Stats
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.TotalTraces != 0 {
		t.Fatalf("expected zero traces, got %d", stats.TotalTraces)
	}
}
