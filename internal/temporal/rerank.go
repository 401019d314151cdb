package temporal

// Range is a semantic-time window extracted from a query's own temporal
// expression (e.g. "what did we discuss last week" -> the 7 preceding
// days), used to rerank candidates by temporal relevance.
type Range struct {
	Start int64
	End   int64
}

// Score returns the temporal-relevance multiplier for an event's semantic
// time against a query range: 1.0 inside the range, decaying linearly
// with distance from the nearest edge of the range outside it (reaching
// 0 at three half-spans, or three days for an instant), dropped to 0 once the
// decay would fall below 0.1 per spec.md §4.6.
func Score(semanticTime int64, r Range) float64 {
	if semanticTime >= r.Start && semanticTime <= r.End {
		return 1.0
	}
	halfSpan := (r.End - r.Start) / 2
	if halfSpan <= 0 {
		halfSpan = 86400 // a single-instant range still decays over a day
	}
	var dist int64
	if semanticTime < r.Start {
		dist = r.Start - semanticTime
	} else {
		dist = semanticTime - r.End
	}
	score := 1.0 - float64(dist)/float64(halfSpan*3)
	if score < 0.1 {
		return 0
	}
	return score
}

// Rerank orders candidate (id, semanticTime) pairs by Score against r when
// r is non-nil, falling back to the given createdAt-ordered order (the
// caller's default) when no temporal range was extracted from the query.
func Rerank(ids []string, semanticTimes []int64, r *Range) []string {
	if r == nil || len(ids) != len(semanticTimes) {
		return ids
	}
	type scored struct {
		id    string
		score float64
	}
	scoredList := make([]scored, 0, len(ids))
	for i, id := range ids {
		sc := Score(semanticTimes[i], *r)
		if sc <= 0 {
			continue
		}
		scoredList = append(scoredList, scored{id: id, score: sc})
	}
	// stable-ish selection sort keeps ties in original order without
	// pulling in sort.Slice for a list that's already small (<=10 facts)
	out := make([]string, 0, len(scoredList))
	used := make([]bool, len(scoredList))
	for range scoredList {
		best := -1
		for i, s := range scoredList {
			if used[i] {
				continue
			}
			if best == -1 || s.score > scoredList[best].score {
				best = i
			}
		}
		used[best] = true
		out = append(out, scoredList[best].id)
	}
	return out
}
