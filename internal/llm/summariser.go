package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hmemcore/hmem/internal/models"
)

// Summariser wraps a Client with the handful of prompt shapes the memory
// hierarchy needs: episode summarization, fact extraction, theme naming,
// and Stage II yes/partial/no retrieval decisions. Each method owns its
// own prompt template and its own response parsing, the same way the
// teacher keeps one Summarizer.Summarize per concern rather than a single
// do-everything prompt.
type Summariser struct {
	client Client
}

func NewSummariser(client Client) *Summariser {
	return &Summariser{client: client}
}

// truncateTranscript keeps the first headChars and last tailChars of a long
// transcript, matching the teacher's truncation band (8K head / 24K tail).
func truncateTranscript(transcript string, headChars, tailChars int) string {
	if len(transcript) <= headChars+tailChars {
		return transcript
	}
	return transcript[:headChars] + "\n\n[... middle truncated ...]\n\n" + transcript[len(transcript)-tailChars:]
}

const episodeSummaryPrompt = `Summarize the following conversation turns in 1-2 sentences (50-100 tokens). Be concrete: name the topic, decision, or outcome. Do not include greetings or filler.

%s`

// SummarizeEpisode produces the Episode Builder's short summary for a flushed
// batch of messages.
func (s *Summariser) SummarizeEpisode(transcript string) (string, error) {
	transcript = truncateTranscript(transcript, 8000, 24000)
	out, err := s.client.Complete(fmt.Sprintf(episodeSummaryPrompt, transcript))
	if err != nil {
		return "", fmt.Errorf("summarize episode: %w", err)
	}
	return out, nil
}

const factExtractionPrompt = `Extract 1 to 3 short standalone facts worth remembering long-term from this conversation excerpt. Ignore greetings, acknowledgements, and small talk. Each fact must be a single self-contained sentence. Output one fact per line with no numbering or bullets. If there is nothing worth remembering, output NONE.

%s`

// ExtractFacts produces candidate semantic facts from an episode's content.
func (s *Summariser) ExtractFacts(episodeText string) ([]string, error) {
	out, err := s.client.Complete(fmt.Sprintf(factExtractionPrompt, episodeText))
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}
	var facts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" || strings.EqualFold(line, "NONE") {
			continue
		}
		facts = append(facts, line)
		if len(facts) == 3 {
			break
		}
	}
	return facts, nil
}

const themeNamingPrompt = `Give a short topic label (2-5 words, title case, no punctuation) for a cluster of related facts:

%s`

// NameTheme produces a short label for a new or re-clustered theme.
func (s *Summariser) NameTheme(facts []string) (string, error) {
	out, err := s.client.Complete(fmt.Sprintf(themeNamingPrompt, strings.Join(facts, "\n")))
	if err != nil {
		return "", fmt.Errorf("name theme: %w", err)
	}
	name := strings.TrimSpace(strings.Trim(out, `"'`))
	if name == "" {
		return "Untitled Topic", nil
	}
	return name, nil
}

const stage2DecisionPrompt = `A user asked: %q

You have this candidate context:
Theme: %s
Facts:
%s

Does this fully answer the question, partially answer it (more detail from full conversation history would help), or not answer it at all?
Reply with exactly one word: YES, PARTIAL, or NO.`

// Stage2Decide asks whether the Stage I candidate context answers query,
// returning the parsed verdict. Any unparseable response defaults to
// PARTIAL, matching the teacher's conservative error posture of doing the
// safer thing rather than silently dropping context.
func (s *Summariser) Stage2Decide(query, themeSummary string, facts []string) (models.Stage2Decision, error) {
	prompt := fmt.Sprintf(stage2DecisionPrompt, query, themeSummary, strings.Join(facts, "\n"))
	out, err := s.client.Complete(prompt)
	if err != nil {
		return models.Stage2Partial, fmt.Errorf("stage2 decide: %w", err)
	}
	upper := strings.ToUpper(strings.TrimSpace(out))
	switch {
	case strings.Contains(upper, "YES"):
		return models.Stage2Yes, nil
	case strings.Contains(upper, "NO"):
		return models.Stage2No, nil
	case strings.Contains(upper, "PARTIAL"):
		return models.Stage2Partial, nil
	default:
		return models.Stage2Partial, nil
	}
}

const profilePrompt = `From the conversation episode summaries below, describe the user in two lines:
BEHAVIOURAL: what the user works on and how they tend to act (habits, recurring tasks, tools).
COGNITIVE: how the user thinks and communicates (detail level, preferred explanations, language).
Keep each line under 60 words. Use exactly those two uppercase labels. If the summaries say nothing about the user, output NONE.

%s`

// ProfileTexts distills a window of episode summaries into the weekly
// user-profile pair. A NONE or label-free response returns two empty
// strings and no error; the caller skips the rebuild for that phase.
func (s *Summariser) ProfileTexts(episodeSummaries []string) (behavioural, cognitive string, err error) {
	out, err := s.client.Complete(fmt.Sprintf(profilePrompt, strings.Join(episodeSummaries, "\n")))
	if err != nil {
		return "", "", fmt.Errorf("profile texts: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "BEHAVIOURAL:"):
			behavioural = strings.TrimSpace(strings.TrimPrefix(line, "BEHAVIOURAL:"))
		case strings.HasPrefix(line, "COGNITIVE:"):
			cognitive = strings.TrimSpace(strings.TrimPrefix(line, "COGNITIVE:"))
		}
	}
	return behavioural, cognitive, nil
}

const temporalExtractionPrompt = `Extract the date this event actually happened (not when it was discussed) from the text below. Respond with strict JSON: {"date":"YYYY-MM-DD","duration_days":N}. If no date can be determined, respond with {"date":"","duration_days":0}.

%s`

// TemporalExtraction is the fallback LLM extractor's parsed output.
type TemporalExtraction struct {
	Date         string
	DurationDays int
}

// ExtractTemporal is the LLM-fallback extractor spec.md §4.6 calls for when
// the regex heuristic finds no date. An invalid or unparseable response
// falls back to the heuristic result upstream, not a zero-value here.
func (s *Summariser) ExtractTemporal(text string) (*TemporalExtraction, error) {
	out, err := s.client.Complete(fmt.Sprintf(temporalExtractionPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("extract temporal: %w", err)
	}
	date, duration, ok := parseTemporalJSON(out)
	if !ok {
		return nil, fmt.Errorf("unparseable temporal extraction response: %q", out)
	}
	return &TemporalExtraction{Date: date, DurationDays: duration}, nil
}

// parseTemporalJSON does a minimal, dependency-free parse of the
// {"date":"...","duration_days":N} shape rather than pulling in
// encoding/json for a two-field object the model may wrap in prose.
func parseTemporalJSON(s string) (date string, durationDays int, ok bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", 0, false
	}
	body := s[start+1 : end]

	dateIdx := strings.Index(body, `"date"`)
	if dateIdx == -1 {
		return "", 0, false
	}
	rest := body[dateIdx:]
	q1 := strings.Index(rest[strings.Index(rest, ":")+1:], `"`)
	if q1 == -1 {
		return "", 0, false
	}
	afterColon := rest[strings.Index(rest, ":")+1:]
	q1 = strings.Index(afterColon, `"`)
	q2 := strings.Index(afterColon[q1+1:], `"`)
	if q1 == -1 || q2 == -1 {
		return "", 0, false
	}
	date = afterColon[q1+1 : q1+1+q2]

	durIdx := strings.Index(body, `"duration_days"`)
	if durIdx == -1 {
		return date, 0, true
	}
	durRest := body[durIdx+len(`"duration_days"`):]
	colon := strings.Index(durRest, ":")
	if colon == -1 {
		return date, 0, true
	}
	numPart := strings.TrimLeft(durRest[colon+1:], " ")
	end2 := strings.IndexAny(numPart, ",}")
	if end2 == -1 {
		end2 = len(numPart)
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(numPart[:end2]))
	if convErr != nil {
		return date, 0, true
	}
	return date, n, true
}
