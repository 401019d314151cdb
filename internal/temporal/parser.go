// Package temporal distinguishes semantic time (when something happened)
// from dialogue time (when it was discussed): a regex-first relative-date
// parser with an LLM fallback, durative-memory grouping, and temporal
// reranking of retrieval candidates. Grounded on the decay-half-life
// reasoning in the retrieved continuity/memento decay implementations,
// generalized from "age since creation" to "age since the event itself".
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	daysAgoRe    = regexp.MustCompile(`(?i)(\d+)\s*days?\s*ago`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	chineseIsoRe = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
)

// Extraction is the result of parsing a piece of text for when the event
// it describes actually happened.
type Extraction struct {
	SemanticTime time.Time
	DurationDays float64
	IsTemporal   bool
}

// Extract applies the regex heuristic ladder spec.md §4.6 defines: ISO or
// Chinese absolute date, then yesterday/昨天, then last week/上周, then
// "N days ago", then "recently", falling back to dialogueTime with zero
// duration and is_temporal=false when nothing matches.
func Extract(text string, dialogueTime time.Time) Extraction {
	lower := strings.ToLower(text)

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if t, ok := parseYMD(m[1], m[2], m[3]); ok {
			return Extraction{SemanticTime: t, IsTemporal: true}
		}
	}
	if m := chineseIsoRe.FindStringSubmatch(text); m != nil {
		if t, ok := parseYMD(m[1], padZero(m[2]), padZero(m[3])); ok {
			return Extraction{SemanticTime: t, IsTemporal: true}
		}
	}

	if strings.Contains(lower, "yesterday") || strings.Contains(text, "昨天") {
		return Extraction{SemanticTime: dialogueTime.AddDate(0, 0, -1), IsTemporal: true}
	}

	if strings.Contains(lower, "last week") || strings.Contains(text, "上周") || strings.Contains(text, "上星期") {
		return Extraction{SemanticTime: dialogueTime.AddDate(0, 0, -7), DurationDays: 7, IsTemporal: true}
	}

	if m := daysAgoRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return Extraction{SemanticTime: dialogueTime.AddDate(0, 0, -n), IsTemporal: true}
		}
	}

	if strings.Contains(lower, "recently") || strings.Contains(text, "最近") {
		return Extraction{SemanticTime: dialogueTime.AddDate(0, 0, -3), DurationDays: 3, IsTemporal: true}
	}

	return Extraction{SemanticTime: dialogueTime, DurationDays: 0, IsTemporal: false}
}

// ParseIntent maps a query's relative temporal expression to the
// semantic-time window it asks about. Reuses the Extract ladder: the
// extracted point becomes the window start, the extracted duration (or a
// single day when none) becomes the window span. Queries with no temporal
// expression return (nil, false).
func ParseIntent(query string, now time.Time) (*Range, bool) {
	e := Extract(query, now)
	if !e.IsTemporal {
		return nil, false
	}
	days := e.DurationDays
	if days <= 0 {
		days = 1
	}
	start := e.SemanticTime
	end := start.Add(time.Duration(days*24) * time.Hour)
	return &Range{Start: start.Unix(), End: end.Unix()}, true
}

func parseYMD(y, m, d string) (time.Time, bool) {
	yi, err1 := strconv.Atoi(y)
	mi, err2 := strconv.Atoi(m)
	di, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil || mi < 1 || mi > 12 || di < 1 || di > 31 {
		return time.Time{}, false
	}
	return time.Date(yi, time.Month(mi), di, 0, 0, 0, 0, time.UTC), true
}

func padZero(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
