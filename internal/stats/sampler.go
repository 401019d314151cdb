// Package stats provides the online distribution sampler the Theme
// Manager's split/merge gates share: a running set of observations exposed as a sorted snapshot so a
// tail percentile can be read cheaply, following the sort-then-rank
// technique the teacher's hybrid searcher uses to rank scored candidates
// (sort.Slice over a scored list) generalized here to distribution
// quantiles instead of a fixed top-N cut.
package stats

import "sort"

// MinObservations is the smallest sample size a Sampler trusts for a
// percentile read; below it, callers should fall back to a fixed
// threshold instead of asking the (too-noisy) empirical distribution.
const MinObservations = 10

// Sampler accumulates float64 observations and answers percentile queries
// against a sorted snapshot, recomputed lazily on read.
type Sampler struct {
	values []float64
	sorted []float64
	dirty  bool
}

func NewSampler() *Sampler {
	return &Sampler{dirty: true}
}

// Observe records a new data point.
func (s *Sampler) Observe(v float64) {
	s.values = append(s.values, v)
	s.dirty = true
}

// Count returns the number of observations recorded so far.
func (s *Sampler) Count() int {
	return len(s.values)
}

// Ready reports whether enough observations exist to trust a percentile
// read over a fixed fallback threshold.
func (s *Sampler) Ready() bool {
	return len(s.values) >= MinObservations
}

func (s *Sampler) snapshot() []float64 {
	if s.dirty {
		s.sorted = append([]float64(nil), s.values...)
		sort.Float64s(s.sorted)
		s.dirty = false
	}
	return s.sorted
}

// Percentile returns the value at the given percentile in [0, 1] of the
// observed distribution, using nearest-rank interpolation. Returns 0 for
// an empty sampler.
func (s *Sampler) Percentile(p float64) float64 {
	snap := s.snapshot()
	if len(snap) == 0 {
		return 0
	}
	if p <= 0 {
		return snap[0]
	}
	if p >= 1 {
		return snap[len(snap)-1]
	}
	idx := int(p * float64(len(snap)-1))
	return snap[idx]
}

// UpperTail returns the threshold above which the top fraction (e.g. 0.1
// for the upper 10%) of observations fall.
func (s *Sampler) UpperTail(fraction float64) float64 {
	return s.Percentile(1 - fraction)
}
