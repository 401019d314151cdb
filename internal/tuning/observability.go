package tuning

import (
	"sync"
	"time"

	"github.com/hmemcore/hmem/internal/models"
)

// MaxTraces bounds the in-memory ring buffer of recent retrieval traces.
const MaxTraces = 100

// satisfiedWindow is how long after a retrieval a next query from the
// same agent is still attributable to judging the first one.
const satisfiedWindow = 60 * time.Second

// Recorder is a thread-safe ring buffer of ObservabilityTrace, used both
// by the Feedback Tuner (via Traces) and by the /observability/stats
// endpoint.
type Recorder struct {
	mu     sync.Mutex
	traces []models.ObservabilityTrace
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a trace, evicting the oldest once MaxTraces is reached.
func (r *Recorder) Record(t models.ObservabilityTrace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
	if len(r.traces) > MaxTraces {
		r.traces = r.traces[len(r.traces)-MaxTraces:]
	}
}

// Traces returns a snapshot copy of the current buffer.
func (r *Recorder) Traces() []models.ObservabilityTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ObservabilityTrace, len(r.traces))
	copy(out, r.traces)
	return out
}

// RateSatisfaction applies the 60s-next-query heuristic: a trace is
// satisfied if no repeated query from the same agent follows within
// satisfiedWindow; if one does, it's unsatisfied (the agent needed more).
// Called once the next trace for an agent arrives or the window elapses.
func RateSatisfaction(traces []models.ObservabilityTrace) []models.ObservabilityTrace {
	out := make([]models.ObservabilityTrace, len(traces))
	copy(out, traces)

	for i := range out {
		if s := out[i].Satisfaction; s != models.SatisfactionUnknown && s != "" {
			continue
		}
		out[i].Satisfaction = models.SatisfactionSatisfied
		for j := i + 1; j < len(out); j++ {
			if out[j].AgentID != out[i].AgentID {
				continue
			}
			gap := out[j].Timestamp - out[i].Timestamp
			if gap > int64(satisfiedWindow.Seconds()) {
				break
			}
			out[i].Satisfaction = models.SatisfactionUnsatisfied
			break
		}
	}
	return out
}

// Stats summarizes the observability ring buffer for reporting.
type Stats struct {
	TotalTraces       int     `json:"totalTraces"`
	HitRate           float64 `json:"hitRate"` // fraction with at least one matched theme
	AvgTokensInjected float64 `json:"avgTokensInjected"`
	SatisfactionRate  float64 `json:"satisfactionRate"`
}

// Summarize computes Stats from traces, rating satisfaction first.
func Summarize(traces []models.ObservabilityTrace) Stats {
	rated := RateSatisfaction(traces)
	if len(rated) == 0 {
		return Stats{}
	}

	var hits, satisfied, totalTokens int
	for _, t := range rated {
		if len(t.MatchedThemeIDs) > 0 {
			hits++
		}
		if t.Satisfaction == models.SatisfactionSatisfied {
			satisfied++
		}
		totalTokens += t.TokensInjected
	}

	n := float64(len(rated))
	return Stats{
		TotalTraces:       len(rated),
		HitRate:           float64(hits) / n,
		AvgTokensInjected: float64(totalTokens) / n,
		SatisfactionRate:  float64(satisfied) / n,
	}
}
