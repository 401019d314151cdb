package toolkit

import (
	"regexp"
	"strings"
)

var factualMarkerRe = regexp.MustCompile(`(?i)\b(always|never|prefers?|is|are|uses?|requires?|must|should|works? at|lives? in|named?)\b`)

var versionOrNumberRe = regexp.MustCompile(`\b(v?\d+\.\d+(\.\d+)?|\d{2,})\b`)
var camelCaseRe = regexp.MustCompile(`\b[a-z]+[A-Z][a-zA-Z]*\b`)

// MaxStorePerTurn caps how many new memories the toolkit will propose
// storing from a single turn.
const MaxStorePerTurn = 3

// CandidateStore evaluates one piece of text as a storage candidate: it
// must look factual (a declarative marker present), fall within the
// 15-300 character length band, and overlap existing memory content by
// less than 40% (otherwise it's redundant with what's already stored).
func CandidateStore(text string, existingMemories []string, queryText string) (Decision, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 15 || len(trimmed) > 300 {
		return Decision{}, false
	}
	if !factualMarkerRe.MatchString(trimmed) {
		return Decision{}, false
	}
	for _, existing := range existingMemories {
		if overlapRatio(trimmed, existing) >= 0.4 {
			return Decision{}, false
		}
	}

	return Decision{
		Kind:            KindStore,
		StoreContent:    trimmed,
		StoreImportance: importanceScore(trimmed, queryText),
	}, true
}

// importanceScore weighs version/number tokens, CamelCase identifiers, and
// overlap with the current query more heavily, matching the signal spec.md
// §4.5 names for prioritizing which of several store candidates matters
// more.
func importanceScore(text, queryText string) float64 {
	score := 0.3
	if versionOrNumberRe.MatchString(text) {
		score += 0.25
	}
	if camelCaseRe.MatchString(text) {
		score += 0.2
	}
	if queryText != "" {
		score += 0.25 * overlapRatio(text, queryText)
	}
	if score > 1 {
		score = 1
	}
	return score
}

// overlapRatio is the fraction of a's lowercase word tokens also present
// in b.
func overlapRatio(a, b string) float64 {
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
