package tuning

import (
	"sort"
	"time"
)

// bucket identifies a day-of-week / 3-hour time slot.
type bucket struct {
	weekday  time.Weekday
	hourSlot int // 0-7, each covering 3 hours
}

func bucketFor(t time.Time) bucket {
	return bucket{weekday: t.Weekday(), hourSlot: t.Hour() / 3}
}

// Preloader tracks which themes get accessed in which day/time buckets
// and, once enough observations accumulate, predicts the top themes to
// warm for the current bucket.
type Preloader struct {
	counts map[bucket]map[string]int
	rules  map[bucket][]string // snapshot taken by Recompute; nil until first cron
}

func NewPreloader() *Preloader {
	return &Preloader{counts: make(map[bucket]map[string]int)}
}

// Observe records that themeID was accessed at t.
func (p *Preloader) Observe(themeID string, t time.Time) {
	b := bucketFor(t)
	if p.counts[b] == nil {
		p.counts[b] = make(map[string]int)
	}
	p.counts[b][themeID]++
}

// minObservations is the smallest per-bucket access count a theme needs
// before it's considered a real pattern rather than noise.
const minObservations = 3

// Recompute snapshots the per-bucket preload rules from the accumulated
// counts. Runs only from the weekly cron so the rules stay fixed between
// maintenance passes while observations keep accumulating.
func (p *Preloader) Recompute() {
	rules := make(map[bucket][]string, len(p.counts))
	for b := range p.counts {
		if hints := p.topThemes(b); len(hints) > 0 {
			rules[b] = hints
		}
	}
	p.rules = rules
}

// Predict returns up to the top 2 themes historically accessed in t's
// bucket, each having been observed at least minObservations times.
// Serves the last Recompute snapshot once one exists; before the first
// weekly cron it computes directly from the live counts.
func (p *Preloader) Predict(t time.Time) []string {
	b := bucketFor(t)
	if p.rules != nil {
		return p.rules[b]
	}
	return p.topThemes(b)
}

func (p *Preloader) topThemes(b bucket) []string {
	themeCounts := p.counts[b]
	if len(themeCounts) == 0 {
		return nil
	}

	type scored struct {
		id    string
		count int
	}
	var candidates []scored
	for id, c := range themeCounts {
		if c >= minObservations {
			candidates = append(candidates, scored{id, c})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].count > candidates[j].count })
	if len(candidates) > 2 {
		candidates = candidates[:2]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	return out
}
