package temporal

import "testing"

func TestScoreInsideRange(t *testing.T) {
	r := Range{Start: 1000, End: 2000}
	if got := Score(1500, r); got != 1.0 {
		t.Fatalf("Score inside range = %v, want 1.0", got)
	}
}

func TestScoreDecaysOutsideRange(t *testing.T) {
	r := Range{Start: 1000, End: 2000}
	near := Score(2100, r)
	far := Score(50000, r)
	if !(near > far) {
		t.Fatalf("closer event should score higher: near=%v far=%v", near, far)
	}
	if near >= 1.0 {
		t.Fatalf("outside-range score should be < 1.0, got %v", near)
	}
}

func TestScoreDropsToZeroFarEnough(t *testing.T) {
	r := Range{Start: 1000, End: 2000}
	if got := Score(100000000, r); got != 0 {
		t.Fatalf("sufficiently distant event should score 0, got %v", got)
	}
}

func TestRerankNoRangePreservesOrder(t *testing.T) {
	ids := []string{"a", "b", "c"}
	times := []int64{1, 2, 3}
	got := Rerank(ids, times, nil)
	for i, id := range got {
		if id != ids[i] {
			t.Fatalf("Rerank with nil range should preserve order, got %v", got)
		}
	}
}

func TestRerankOrdersByScore(t *testing.T) {
	r := Range{Start: 1000, End: 1000}
	ids := []string{"far", "near", "exact"}
	times := []int64{1000000, 5000, 1000}
	got := Rerank(ids, times, &r)
	if len(got) == 0 || got[0] != "exact" {
		t.Fatalf("exact match should rank first, got %v", got)
	}
}

func TestRerankDropsZeroScoreEntries(t *testing.T) {
	r := Range{Start: 1000, End: 1000}
	ids := []string{"exact", "impossibly_far"}
	times := []int64{1000, 999999999999}
	got := Rerank(ids, times, &r)
	for _, id := range got {
		if id == "impossibly_far" {
			t.Fatal("a zero-scoring candidate should be dropped from the reranked list")
		}
	}
}
