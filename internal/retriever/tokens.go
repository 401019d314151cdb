// Package retriever implements the two-stage top-down retrieval pass:
// Stage I picks a breadth-limited set of candidate themes by greedy
// submodular coverage, Stage II asks an LLM whether that's enough and
// expands into source episodes when it isn't. Grounded on the teacher's
// HybridSearcher for the cosine-ranked candidate scan and sort.Slice
// ranking idiom, generalized from a single flat ranked list into the
// theme-then-episode two-stage shape spec.md §4.4 calls for.
package retriever

import "unicode"

// EstimateTokens approximates token count the way spec.md §7 defines:
// non-CJK runes at 1/4 token each, CJK runes at 1/2 token each.
func EstimateTokens(text string) int {
	var nonCJK, cjk int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			nonCJK++
		}
	}
	tokens := float64(nonCJK)/4 + float64(cjk)/2
	return int(tokens + 0.999) // ceiling
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// themeTokenCost is the flat per-theme token cost spec.md §4.4 assigns
// regardless of a theme's actual summary length, keeping Stage I's budget
// accounting simple.
const themeTokenCost = 15

// episodeTokenCost estimates an episode's token cost from its summary.
func episodeTokenCost(summary string) int {
	return EstimateTokens(summary)
}
