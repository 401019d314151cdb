// Package active implements the uncertainty-driven retrieval chain: derive
// how unsure the agent sounds, then escalate through memory recall,
// workspace search, and (gated) web search until something non-empty
// comes back, cross-verifying web results before proposing new facts.
// Grounded on the teacher's HybridSearcher cosine-ranking idiom for the
// cross-verification overlap check, generalized from vector similarity to
// token-set overlap since web snippets have no embedding yet at that
// point in the pipeline.
package active

import (
	"regexp"
	"strings"
)

// Level classifies how uncertain the agent's own text sounds.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// hedgeMarkers are phrases that signal the speaker isn't sure of a claim.
var hedgeMarkers = []string{
	"i think", "maybe", "not sure", "probably", "i believe", "might be",
	"could be", "i guess", "possibly", "as far as i know", "if i recall",
	"可能", "不确定", "大概", "也许", "好像",
}

var hedgeRe = regexp.MustCompile(strings.Join(quoteAll(hedgeMarkers), "|"))

func quoteAll(markers []string) []string {
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = regexp.QuoteMeta(m)
	}
	return out
}

// importantQuestionRe matches question shapes whose answers are costly to
// get wrong: prices, versions, dates, and direct factuality checks.
var importantQuestionRe = regexp.MustCompile(`(?i)(price|cost|how much|\$\d|version|v\d+\.\d+|release|date|when|deadline|is it true|多少钱|价格|版本|什么时候|是不是|日期)`)

// IsImportantQuestion reports whether a user question matches an
// importance pattern, which lowers the bar for escalating retrieval.
func IsImportantQuestion(question string) bool {
	return importantQuestionRe.MatchString(question)
}

// CountMarkers returns how many hedge markers appear in text.
func CountMarkers(text string) int {
	return len(hedgeRe.FindAllString(strings.ToLower(text), -1))
}

// DeriveLevel classifies uncertainty from hedge-marker count and an
// importance flag: 0 markers is none; exactly 1 marker without importance
// is low; 1 marker with importance, or 2 markers regardless, is medium;
// more than 2 markers is high.
func DeriveLevel(text string, important bool) Level {
	n := CountMarkers(text)
	switch {
	case n == 0:
		return LevelNone
	case n > 2:
		return LevelHigh
	case n >= 2:
		return LevelMedium
	case important:
		return LevelMedium
	default:
		return LevelLow
	}
}

// PromoteOnRepeat promotes level to at least medium when the current
// question overlaps the previous one by at least 60% of tokens — the
// agent asking essentially the same thing again is itself a signal of
// unresolved uncertainty, independent of hedge markers.
func PromoteOnRepeat(level Level, current, previous string) Level {
	if previous == "" {
		return level
	}
	if TokenOverlapRatio(current, previous) >= 0.6 {
		if level == LevelNone || level == LevelLow {
			return LevelMedium
		}
	}
	return level
}

// TokenOverlapRatio returns the fraction of a's tokens also present in b,
// by case-insensitive whitespace-split token set.
func TokenOverlapRatio(a, b string) float64 {
	aTokens := strings.Fields(strings.ToLower(a))
	if len(aTokens) == 0 {
		return 0
	}
	bSet := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(b)) {
		bSet[t] = true
	}
	var shared int
	for _, t := range aTokens {
		if bSet[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(aTokens))
}
