package toolkit

import "testing"

func TestCandidateDiscardDetectsCorrection(t *testing.T) {
	existing := []ExistingMemory{
		{ID: "1", Content: "the user lives in Berlin Germany now"},
	}
	d, ok := CandidateDiscard("actually I no longer live in Berlin Germany", existing)
	if !ok {
		t.Fatal("expected a correction marker with shared tokens to propose a discard")
	}
	if d.Kind != KindDiscard || len(d.DiscardTargetIDs) != 1 {
		t.Fatalf("expected one discard target, got %+v", d)
	}
}

func TestCandidateDiscardNoMarkerNoOp(t *testing.T) {
	existing := []ExistingMemory{{ID: "1", Content: "the user lives in Berlin"}}
	if _, ok := CandidateDiscard("the user lives in Berlin", existing); ok {
		t.Fatal("text without a correction marker should not propose a discard")
	}
}

func TestCandidateDiscardNoOverlapNoOp(t *testing.T) {
	existing := []ExistingMemory{{ID: "1", Content: "completely unrelated content here"}}
	if _, ok := CandidateDiscard("actually that's wrong about something else entirely", existing); ok {
		t.Fatal("a correction with no shared tokens should not target unrelated memories")
	}
}

func TestCandidateDiscardCapsAtMax(t *testing.T) {
	existing := []ExistingMemory{
		{ID: "1", Content: "berlin germany location notes"},
		{ID: "2", Content: "berlin germany address details"},
		{ID: "3", Content: "berlin germany residency info"},
	}
	d, ok := CandidateDiscard("actually the berlin germany info is wrong", existing)
	if !ok {
		t.Fatal("expected a discard proposal")
	}
	if len(d.DiscardTargetIDs) > MaxDiscardPerTurn {
		t.Fatalf("expected at most %d targets, got %d", MaxDiscardPerTurn, len(d.DiscardTargetIDs))
	}
}

func TestCandidateDiscardChineseCorrection(t *testing.T) {
	existing := []ExistingMemory{
		{ID: "m1", Content: "产品价格是 50 元每月"},
	}
	d, ok := CandidateDiscard("不对，产品价格应该是 100 元不是 50 元", existing)
	if !ok {
		t.Fatal("expected a Chinese correction marker to propose a discard")
	}
	if len(d.DiscardTargetIDs) == 0 || d.DiscardTargetIDs[0] != "m1" {
		t.Fatalf("expected the price memory targeted, got %+v", d)
	}
}
