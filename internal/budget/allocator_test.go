package budget

import "testing"

func TestAllocateWithinBudgetNoTrim(t *testing.T) {
	inputs := []Input{
		{Tier: TierIdentity, Content: "you are an assistant"},
		{Tier: TierWorkspace, Content: "file: main.go"},
	}
	res := Allocate(inputs, DefaultTotalBudget)
	if res.TotalUsed > res.TotalBudget {
		t.Fatalf("used %d exceeds budget %d", res.TotalUsed, res.TotalBudget)
	}
	for _, a := range res.Allocations {
		if a.Trimmed {
			t.Fatalf("tier %s should not be trimmed when well within budget", a.Tier)
		}
	}
}

func TestAllocateNeverTrimsIdentity(t *testing.T) {
	huge := make([]byte, 50000)
	for i := range huge {
		huge[i] = 'a'
	}
	inputs := []Input{
		{Tier: TierIdentity, Content: string(huge)},
	}
	res := Allocate(inputs, 100)
	for _, a := range res.Allocations {
		if a.Tier == TierIdentity && a.Trimmed {
			t.Fatal("identity tier must never be trimmed")
		}
	}
}

func TestAllocateTrimsLowestPriorityFirst(t *testing.T) {
	line := "this is one line of filler content that costs some tokens\n"
	var extras string
	for i := 0; i < 50; i++ {
		extras += line
	}
	inputs := []Input{
		{Tier: TierIdentity, Content: "short identity"},
		{Tier: TierExtras, Content: extras},
	}
	res := Allocate(inputs, 200)
	var extrasAlloc, identityAlloc Allocation
	for _, a := range res.Allocations {
		if a.Tier == TierExtras {
			extrasAlloc = a
		}
		if a.Tier == TierIdentity {
			identityAlloc = a
		}
	}
	if !extrasAlloc.Trimmed {
		t.Fatal("extras should be trimmed under a tight budget")
	}
	if identityAlloc.Trimmed {
		t.Fatal("identity should survive untouched")
	}
}

func TestAllocateZeroBudgetUsesDefault(t *testing.T) {
	res := Allocate(nil, 0)
	if res.TotalBudget != DefaultTotalBudget {
		t.Fatalf("TotalBudget = %d, want default %d", res.TotalBudget, DefaultTotalBudget)
	}
}

func TestAllocateEmptyTierStaysEmpty(t *testing.T) {
	res := Allocate(nil, DefaultTotalBudget)
	for _, a := range res.Allocations {
		if a.Content != "" {
			t.Fatalf("tier %s should be empty with no input", a.Tier)
		}
	}
}
