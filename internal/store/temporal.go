package store

import (
	"fmt"
	"time"
)

// TemporalEventRecord is a TemporalEvent persisted outside the vectorstore
// port's four logical tables — it shadows an episode by semantic time
// rather than being a first-class retrieval target, so it lives in its
// own table managed directly through store.DB rather than through the
// Store port's generic Add/Search surface.
type TemporalEventRecord struct {
	ID            string
	Content       string
	SemanticTime  int64
	DialogueTime  int64
	DurationMs    int64
	SourceEpisode string
	Embedding     []byte
}

// TemporalEventStore handles the temporal_events table.
type TemporalEventStore struct {
	db *DB
}

func NewTemporalEventStore(db *DB) *TemporalEventStore {
	return &TemporalEventStore{db: db}
}

func (s *TemporalEventStore) Put(e *TemporalEventRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO temporal_events (id, content, semantic_time, dialogue_time, duration_ms, source_episode_id, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content, semantic_time = excluded.semantic_time,
			dialogue_time = excluded.dialogue_time, duration_ms = excluded.duration_ms,
			embedding = excluded.embedding
	`, e.ID, e.Content, e.SemanticTime, e.DialogueTime, e.DurationMs, e.SourceEpisode, e.Embedding)
	if err != nil {
		return fmt.Errorf("put temporal event: %w", err)
	}
	return nil
}

// ListSince returns every temporal event with semantic_time >= since,
// ordered by semantic_time — the input the durative-memory builder groups.
func (s *TemporalEventStore) ListSince(since int64) ([]*TemporalEventRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, content, semantic_time, dialogue_time, duration_ms, source_episode_id, embedding
		FROM temporal_events WHERE semantic_time >= ? ORDER BY semantic_time ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list temporal events: %w", err)
	}
	defer rows.Close()

	var out []*TemporalEventRecord
	for rows.Next() {
		var e TemporalEventRecord
		if err := rows.Scan(&e.ID, &e.Content, &e.SemanticTime, &e.DialogueTime, &e.DurationMs, &e.SourceEpisode, &e.Embedding); err != nil {
			return nil, fmt.Errorf("scan temporal event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DurativeMemoryRecord is a persisted DurativeMemory span.
type DurativeMemoryRecord struct {
	ID        string
	Summary   string
	StartTime int64
	EndTime   int64
	MemberIDs string // comma-joined
	ThemeTag  string
	Embedding []byte
	CreatedAt int64
}

// DurativeMemoryStore handles the durative_memories table.
type DurativeMemoryStore struct {
	db *DB
}

func NewDurativeMemoryStore(db *DB) *DurativeMemoryStore {
	return &DurativeMemoryStore{db: db}
}

// DeleteAll clears every durative memory, used before a full weekly
// rebuild since spans are recomputed wholesale rather than incrementally.
func (s *DurativeMemoryStore) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM durative_memories`); err != nil {
		return fmt.Errorf("delete all durative memories: %w", err)
	}
	return nil
}

func (s *DurativeMemoryStore) Insert(m *DurativeMemoryRecord) error {
	m.CreatedAt = time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO durative_memories (id, summary, start_time, end_time, member_ids, theme_tag, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Summary, m.StartTime, m.EndTime, m.MemberIDs, m.ThemeTag, m.Embedding, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert durative memory: %w", err)
	}
	return nil
}
