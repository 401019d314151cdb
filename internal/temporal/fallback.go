package temporal

import (
	"time"

	"github.com/hmemcore/hmem/internal/llm"
)

// ExtractWithFallback runs the regex heuristic first and only calls
// through to the LLM extractor when is_temporal comes back false,
// matching spec.md §4.6's cost-conscious ladder: the cheap path handles
// the common cases, the LLM call is reserved for text the regexes miss.
// An invalid or erroring LLM response keeps the heuristic result rather
// than propagating the failure.
func ExtractWithFallback(text string, dialogueTime time.Time, summariser *llm.Summariser) Extraction {
	heuristic := Extract(text, dialogueTime)
	if heuristic.IsTemporal || summariser == nil {
		return heuristic
	}

	fallback, err := summariser.ExtractTemporal(text)
	if err != nil || fallback.Date == "" {
		return heuristic
	}

	parts := splitISODate(fallback.Date)
	if parts == nil {
		return heuristic
	}
	t, ok := parseYMD(parts[0], parts[1], parts[2])
	if !ok {
		return heuristic
	}

	return Extraction{
		SemanticTime: t,
		DurationDays: float64(fallback.DurationDays),
		IsTemporal:   true,
	}
}

func splitISODate(s string) []string {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return nil
	}
	return []string{s[0:4], s[5:7], s[8:10]}
}
