package store

import "testing"

func TestTemporalEventStorePutAndListSince(t *testing.T) {
	db := openTestDB(t)
	events := NewTemporalEventStore(db)

	events.Put(&TemporalEventRecord{ID: "e1", Content: "old event", SemanticTime: 100, DialogueTime: 100})
	events.Put(&TemporalEventRecord{ID: "e2", Content: "new event", SemanticTime: 200, DialogueTime: 200})

	got, err := events.ListSince(150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e2" {
		t.Fatalf("expected only e2 to be returned, got %+v", got)
	}
}

func TestTemporalEventStorePutUpsert(t *testing.T) {
	db := openTestDB(t)
	events := NewTemporalEventStore(db)

	events.Put(&TemporalEventRecord{ID: "e1", Content: "first", SemanticTime: 100, DialogueTime: 100})
	events.Put(&TemporalEventRecord{ID: "e1", Content: "updated", SemanticTime: 100, DialogueTime: 100})

	got, err := events.ListSince(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Content != "updated" {
		t.Fatalf("expected upsert to replace content, got %+v", got)
	}
}

func TestDurativeMemoryStoreInsertAndDeleteAll(t *testing.T) {
	db := openTestDB(t)
	durative := NewDurativeMemoryStore(db)

	if err := durative.Insert(&DurativeMemoryRecord{ID: "d1", Summary: "a week of deploys", StartTime: 0, EndTime: 604800}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := durative.DeleteAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM durative_memories").Scan(&count); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected DeleteAll to clear the table, got %d rows", count)
	}
}
