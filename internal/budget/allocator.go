// Package budget allocates a fixed token budget across five priority
// tiers — identity, workspace, memory, tools, extras — admitting content
// tier by tier and trimming whichever tier overflows, lowest priority
// first. Grounded on the teacher's threads/service.go token-budget
// constants (defaultTokenBudget/totalBudgetCap), generalized from a
// single flat cap into the five-tier ratio split spec.md §4.7 defines.
package budget

import (
	"strings"

	"github.com/hmemcore/hmem/internal/retriever"
)

// Tier names the five priority buckets, in admission order (highest
// priority first).
type Tier string

const (
	TierIdentity  Tier = "identity"
	TierWorkspace Tier = "workspace"
	TierMemory    Tier = "memory"
	TierTools     Tier = "tools"
	TierExtras    Tier = "extras"
)

var tierOrder = []Tier{TierIdentity, TierWorkspace, TierMemory, TierTools, TierExtras}

// tierRatios are each tier's share of the total budget: 10/35/30/15/10.
var tierRatios = map[Tier]float64{
	TierIdentity:  0.10,
	TierWorkspace: 0.35,
	TierMemory:    0.30,
	TierTools:     0.15,
	TierExtras:    0.10,
}

// DefaultTotalBudget matches the teacher's defaultTokenBudget constant.
const DefaultTotalBudget = 4000

// minRemainingForTrim is the smallest remaining-token count worth trying
// to fill with a partial (line-trimmed) admission; below it, the content
// is dropped entirely rather than admitting a near-empty fragment.
const minRemainingForTrim = 50

// Input is one tier's proposed content before allocation.
type Input struct {
	Tier    Tier
	Content string
}

// Allocation is one tier's admitted content after budgeting.
type Allocation struct {
	Tier    Tier
	Content string
	Tokens  int
	Trimmed bool
}

// Result is the full allocation across all tiers plus accounting.
type Result struct {
	Allocations []Allocation
	TotalUsed   int
	TotalBudget int
	Savings     int
}

// Allocate admits each tier's content up to its ratio share of
// totalBudget, trimming line-by-line at the tier boundary when content
// overflows, then — if identity+workspace+memory+tools+extras still
// overflows totalBudget overall — trims further starting from the lowest
// priority tier upward. Identity is never trimmed.
func Allocate(inputs []Input, totalBudget int) Result {
	if totalBudget <= 0 {
		totalBudget = DefaultTotalBudget
	}

	byTier := make(map[Tier]string, len(inputs))
	for _, in := range inputs {
		byTier[in.Tier] = in.Content
	}

	allocations := make(map[Tier]Allocation, len(tierOrder))
	for _, t := range tierOrder {
		if t == TierIdentity {
			content := byTier[t]
			allocations[t] = Allocation{Tier: t, Content: content, Tokens: retriever.EstimateTokens(content)}
			continue
		}
		tierBudget := int(tierRatios[t] * float64(totalBudget))
		content, trimmed := admit(byTier[t], tierBudget)
		allocations[t] = Allocation{Tier: t, Content: content, Tokens: retriever.EstimateTokens(content), Trimmed: trimmed}
	}

	total := 0
	for _, a := range allocations {
		total += a.Tokens
	}

	if total > totalBudget {
		overflow := total - totalBudget
		for i := len(tierOrder) - 1; i >= 1 && overflow > 0; i-- { // never trims TierIdentity at index 0
			t := tierOrder[i]
			a := allocations[t]
			newBudget := a.Tokens - overflow
			if newBudget < 0 {
				newBudget = 0
			}
			content, trimmed := admit(a.Content, newBudget)
			newTokens := retriever.EstimateTokens(content)
			overflow -= a.Tokens - newTokens
			allocations[t] = Allocation{Tier: t, Content: content, Tokens: newTokens, Trimmed: trimmed || a.Trimmed}
		}
	}

	out := make([]Allocation, len(tierOrder))
	finalTotal := 0
	for i, t := range tierOrder {
		out[i] = allocations[t]
		finalTotal += allocations[t].Tokens
	}

	originalTotal := 0
	for _, in := range inputs {
		originalTotal += retriever.EstimateTokens(in.Content)
	}

	return Result{
		Allocations: out,
		TotalUsed:   finalTotal,
		TotalBudget: totalBudget,
		Savings:     originalTotal - finalTotal,
	}
}

// admit trims content to fit within tierBudget tokens, respecting line
// boundaries: whole lines are kept until the next one would exceed
// budget. A budget below minRemainingForTrim drops the tier to empty;
// lines are never cut, so a first line longer than the budget also
// leaves the tier empty.
func admit(content string, tierBudget int) (string, bool) {
	if content == "" {
		return "", false
	}
	tokens := retriever.EstimateTokens(content)
	if tokens <= tierBudget {
		return content, false
	}
	if tierBudget < minRemainingForTrim {
		return "", true
	}

	lines := strings.Split(content, "\n")
	var kept []string
	used := 0
	for _, line := range lines {
		cost := retriever.EstimateTokens(line)
		if used+cost > tierBudget {
			break
		}
		kept = append(kept, line)
		used += cost
	}
	return strings.Join(kept, "\n"), true
}
