package temporal

import (
	"testing"
	"time"
)

var dialogueTime = time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

func TestExtractISODate(t *testing.T) {
	got := Extract("the incident happened on 2026-07-01", dialogueTime)
	if !got.IsTemporal {
		t.Fatal("expected ISO date to be recognized as temporal")
	}
	want := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if !got.SemanticTime.Equal(want) {
		t.Fatalf("SemanticTime = %v, want %v", got.SemanticTime, want)
	}
}

func TestExtractChineseISODate(t *testing.T) {
	got := Extract("事情发生在2026年7月1日", dialogueTime)
	if !got.IsTemporal {
		t.Fatal("expected Chinese ISO date to be recognized as temporal")
	}
	want := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if !got.SemanticTime.Equal(want) {
		t.Fatalf("SemanticTime = %v, want %v", got.SemanticTime, want)
	}
}

func TestExtractYesterday(t *testing.T) {
	got := Extract("I fixed that bug yesterday", dialogueTime)
	if !got.IsTemporal {
		t.Fatal("expected 'yesterday' to be recognized as temporal")
	}
	want := dialogueTime.AddDate(0, 0, -1)
	if !got.SemanticTime.Equal(want) {
		t.Fatalf("SemanticTime = %v, want %v", got.SemanticTime, want)
	}
}

func TestExtractLastWeek(t *testing.T) {
	got := Extract("we discussed this last week", dialogueTime)
	if !got.IsTemporal {
		t.Fatal("expected 'last week' to be recognized as temporal")
	}
	if got.DurationDays != 7 {
		t.Fatalf("DurationDays = %v, want 7", got.DurationDays)
	}
}

func TestExtractThisWeekFallsThroughHeuristic(t *testing.T) {
	// "this week" is deliberately not a distinct heuristic case (DESIGN.md
	// documents why); it should fall through to is_temporal=false so the
	// LLM fallback ladder gets a chance at it.
	got := Extract("let's finish this week", dialogueTime)
	if got.IsTemporal {
		t.Fatal("'this week' should not match the fixed-offset heuristic ladder")
	}
}

func TestExtractDaysAgo(t *testing.T) {
	got := Extract("that was 5 days ago", dialogueTime)
	if !got.IsTemporal {
		t.Fatal("expected 'N days ago' to be recognized as temporal")
	}
	want := dialogueTime.AddDate(0, 0, -5)
	if !got.SemanticTime.Equal(want) {
		t.Fatalf("SemanticTime = %v, want %v", got.SemanticTime, want)
	}
}

func TestExtractRecently(t *testing.T) {
	got := Extract("I saw that recently", dialogueTime)
	if !got.IsTemporal || got.DurationDays != 3 {
		t.Fatalf("expected 'recently' to map to a 3-day window, got %+v", got)
	}
}

func TestExtractNoMatchFallsBackToDialogueTime(t *testing.T) {
	got := Extract("the sky is blue", dialogueTime)
	if got.IsTemporal {
		t.Fatal("non-temporal text should not be marked temporal")
	}
	if !got.SemanticTime.Equal(dialogueTime) {
		t.Fatalf("SemanticTime should default to dialogue time, got %v", got.SemanticTime)
	}
}

func TestExtractInvalidISODateIgnored(t *testing.T) {
	got := Extract("event code 9999-99-99 happened", dialogueTime)
	if got.IsTemporal {
		t.Fatal("an invalid month/day should not be accepted as a real date")
	}
}

func TestParseIntentYesterdayWindow(t *testing.T) {
	rng, ok := ParseIntent("what did we discuss yesterday", dialogueTime)
	if !ok {
		t.Fatal("expected a temporal intent for a yesterday query")
	}
	if rng.End < rng.Start {
		t.Fatalf("intent end %d must not precede start %d", rng.End, rng.Start)
	}
	wantStart := dialogueTime.AddDate(0, 0, -1).Unix()
	if rng.Start != wantStart {
		t.Fatalf("Start = %d, want %d", rng.Start, wantStart)
	}
	if rng.End != wantStart+86400 {
		t.Fatalf("a point expression should span one day, got end %d", rng.End)
	}
}

func TestParseIntentLastWeekSpansSevenDays(t *testing.T) {
	rng, ok := ParseIntent("上周我们聊了什么", dialogueTime)
	if !ok {
		t.Fatal("expected a temporal intent for 上周")
	}
	if got := rng.End - rng.Start; got != 7*86400 {
		t.Fatalf("last-week window should span 7 days, got %d seconds", got)
	}
}

func TestParseIntentNonTemporalQuery(t *testing.T) {
	if _, ok := ParseIntent("how does the deploy pipeline work", dialogueTime); ok {
		t.Fatal("a non-temporal query must not produce an intent window")
	}
}
