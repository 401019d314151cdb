package active

import "testing"

func TestCrossVerifyCorroborated(t *testing.T) {
	claim := "The Acme launch happened in 2024"
	snippet := "News: Acme announced its launch in 2024 after months of delay."
	if !CrossVerify(claim, snippet) {
		t.Fatal("snippet sharing proper noun and number should corroborate the claim")
	}
}

func TestCrossVerifyUnrelated(t *testing.T) {
	claim := "Acme shipped Widget 3000 in 2024"
	snippet := "The weather today is sunny with a light breeze."
	if CrossVerify(claim, snippet) {
		t.Fatal("an unrelated snippet should not corroborate the claim")
	}
}

func TestCrossVerifyNoSalientTokensInClaim(t *testing.T) {
	if CrossVerify("the sky is blue today", "blue skies everywhere") {
		t.Fatal("a claim with no proper nouns/numbers cannot be cross-verified")
	}
}

func TestProposeFactsLimitsToThree(t *testing.T) {
	snippet := "This is a long enough sentence one. This is a long enough sentence two. " +
		"This is a long enough sentence three. This is a long enough sentence four."
	facts := ProposeFacts(snippet)
	if len(facts) != 3 {
		t.Fatalf("expected at most 3 facts, got %d", len(facts))
	}
}

func TestProposeFactsSkipsTrivialSentences(t *testing.T) {
	snippet := "Ok. Yes. This is a long enough sentence to count as a fact."
	facts := ProposeFacts(snippet)
	for _, f := range facts {
		if len(f) < 15 {
			t.Fatalf("trivial short sentence should have been filtered: %q", f)
		}
	}
}

func TestCrossVerifyPriceClaimAgainstWebSnippet(t *testing.T) {
	if !CrossVerify("I think it costs around $50", "Official pricing: $50 per month") {
		t.Fatal("a snippet repeating the claimed number should verify the claim")
	}
}
