// Package compact shrinks large tool outputs before they enter the
// context window, picking a strategy off a size ladder:
// passthrough/strip/truncate/semantic/summarize. The strip strategy
// generalizes the teacher's privacy.StripPrivateTags regex-removal
// technique from one tag to the broader noise patterns (HTML, images,
// ads, navigation chrome) spec.md §4.8 names; summarize reuses the
// teacher's sessions.Summarizer head/tail truncation band as its input
// shaping before the LLM call.
package compact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/retriever"
)

// Strategy names which compaction technique was applied.
type Strategy string

const (
	StrategyPassthrough Strategy = "passthrough"
	StrategyStrip       Strategy = "strip"
	StrategyTruncate    Strategy = "truncate"
	StrategySemantic    Strategy = "semantic"
	StrategySummarize   Strategy = "summarize"
)

// Size-ladder thresholds, in estimated tokens.
const (
	passthroughMax = 200
	stripMax       = 500
	truncateMax    = 800
	semanticMax    = 1500
)

// Result is one compaction's outcome.
type Result struct {
	Strategy Strategy
	Text     string
	Tokens   int
}

// Compact picks a strategy by text's estimated token size and applies it.
func Compact(text string, summariser *llm.Summariser) Result {
	tokens := retriever.EstimateTokens(text)

	switch {
	case tokens <= passthroughMax:
		return Result{Strategy: StrategyPassthrough, Text: text, Tokens: tokens}
	case tokens <= stripMax:
		stripped := strip(text)
		return Result{Strategy: StrategyStrip, Text: stripped, Tokens: retriever.EstimateTokens(stripped)}
	case tokens <= truncateMax:
		truncated := truncate(text, stripMax)
		return Result{Strategy: StrategyTruncate, Text: truncated, Tokens: retriever.EstimateTokens(truncated)}
	case tokens <= semanticMax:
		sem := semanticExtract(text)
		if retriever.EstimateTokens(sem) < retriever.EstimateTokens(truncate(text, truncateMax)) {
			return Result{Strategy: StrategySemantic, Text: sem, Tokens: retriever.EstimateTokens(sem)}
		}
		truncated := truncate(text, truncateMax)
		return Result{Strategy: StrategyTruncate, Text: truncated, Tokens: retriever.EstimateTokens(truncated)}
	default:
		summary, err := summarize(text, summariser)
		if err != nil {
			truncated := truncate(text, truncateMax)
			return Result{Strategy: StrategyTruncate, Text: truncated, Tokens: retriever.EstimateTokens(truncated)}
		}
		return Result{Strategy: StrategySummarize, Text: summary, Tokens: retriever.EstimateTokens(summary)}
	}
}

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<script.*?</script>`),
	regexp.MustCompile(`(?s)<style.*?</style>`),
	regexp.MustCompile(`(?s)<nav.*?</nav>`),
	regexp.MustCompile(`(?s)<footer.*?</footer>`),
	regexp.MustCompile(`(?s)<img[^>]*>`),
	regexp.MustCompile(`(?s)<!--.*?-->`),
	regexp.MustCompile(`(?s)<private>.*?</private>`),
	regexp.MustCompile(`\s{3,}`),
}

// strip removes HTML noise (scripts, styles, nav/footer chrome, images,
// comments, private tags) and collapses excess whitespace, following the
// teacher's tag-stripping technique generalized to several tag families.
func strip(text string) string {
	out := text
	for i, pattern := range noisePatterns {
		if i == len(noisePatterns)-1 {
			out = pattern.ReplaceAllString(out, " ")
			continue
		}
		out = pattern.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(out)
}

// truncate keeps content up to maxTokens, appending a visible marker
// naming how many tokens were dropped.
func truncate(text string, maxTokens int) string {
	total := retriever.EstimateTokens(text)
	if total <= maxTokens {
		return text
	}
	// Roughly 4 chars/token outside CJK; cut once at maxTokens*4 bytes
	// rather than computing an exact cut point per rune.
	approxChars := maxTokens * 4
	if approxChars > len(text) {
		approxChars = len(text)
	}
	kept := text[:approxChars]
	omitted := total - retriever.EstimateTokens(kept)
	return fmt.Sprintf("%s\n[truncated, %d tokens omitted]", kept, omitted)
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)
	numberRe        = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	properNounRe    = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)
	actionVerbRe    = regexp.MustCompile(`(?i)\b(created|deleted|updated|failed|succeeded|returned|found|changed|added|removed)\b`)
)

// semanticExtract pulls out facts, entities, actions, and numbers by
// regex rather than an LLM call, used only when shorter than truncation.
func semanticExtract(text string) string {
	var entities, actions, numbers []string
	seen := make(map[string]bool)

	add := func(list *[]string, val string) {
		key := strings.ToLower(val)
		if seen[key] {
			return
		}
		seen[key] = true
		*list = append(*list, val)
	}

	for _, m := range properNounRe.FindAllString(text, -1) {
		add(&entities, m)
	}
	for _, m := range actionVerbRe.FindAllString(text, -1) {
		add(&actions, strings.ToLower(m))
	}
	for _, m := range numberRe.FindAllString(text, -1) {
		add(&numbers, m)
	}

	var sb strings.Builder
	if len(entities) > 0 {
		fmt.Fprintf(&sb, "Entities: %s\n", strings.Join(entities, ", "))
	}
	if len(actions) > 0 {
		fmt.Fprintf(&sb, "Actions: %s\n", strings.Join(actions, ", "))
	}
	if len(numbers) > 0 {
		fmt.Fprintf(&sb, "Numbers: %s\n", strings.Join(numbers, ", "))
	}

	sentences := sentenceSplitRe.Split(text, -1)
	var facts []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) >= 20 && len(s) <= 200 {
			facts = append(facts, s)
		}
		if len(facts) == 5 {
			break
		}
	}
	if len(facts) > 0 {
		fmt.Fprintf(&sb, "Facts: %s\n", strings.Join(facts, "; "))
	}

	return strings.TrimSpace(sb.String())
}

// summarize compresses text via the LLM, shaping the input with the same
// head/tail truncation band the teacher's sessions.Summarizer uses before
// the prompt is ever built.
func summarize(text string, summariser *llm.Summariser) (string, error) {
	if summariser == nil {
		return "", fmt.Errorf("no summariser configured")
	}
	return summariser.SummarizeEpisode(text)
}
