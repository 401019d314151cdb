package vectorstore

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/hmemcore/hmem/internal/store"
)

// SQLiteStore is the default Store adapter: SQLite tables with brute-force
// cosine search, in the same spirit as the teacher's short-term-memory path
// (search.HybridSearcher scanning SQLite BLOBs directly) generalized to all
// four logical tables instead of just one. A LanceDB- or Qdrant-backed
// adapter satisfying the same Store interface could replace this one for
// larger deployments without any caller changing; such an adapter would
// need to tolerate first-use collection creation via a zero-vector seed
// row that is added then immediately deleted, exactly as spec.md §6
// describes — SQLite tables exist from schema init so this adapter has
// nothing to seed.
type SQLiteStore struct {
	db *store.DB
}

// NewSQLiteStore wraps an already-open DB.
func NewSQLiteStore(db *store.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var tableColumns = map[Table][]string{
	TableThemes:      {"id", "name", "summary", "embedding", "semantic_ids", "message_count", "last_active", "neighbor_ids", "dormant"},
	TableSemantics:   {"id", "content", "embedding", "created_at", "updated_at", "theme_id", "source_episode_ids", "neighbor_ids"},
	TableEpisodes:    {"id", "session_id", "summary", "turn_start", "turn_end", "message_count", "created_at", "embedding", "raw_messages"},
	TableUserProfile: {"id", "user_id", "phase", "behavioural", "cognitive", "merged_global", "embedding", "created_at", "updated_at"},
}

func (s *SQLiteStore) Add(table Table, row Row) error {
	cols, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("unknown table: %s", table)
	}
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = row[c]
	}
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("add to %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) Search(table Table, vector []float32, limit int) ([]Row, error) {
	rows, err := s.ScanAll(table)
	if err != nil {
		return nil, err
	}
	type scored struct {
		row Row
		sim float64
	}
	scoredRows := make([]scored, 0, len(rows))
	for _, r := range rows {
		emb := BytesToFloat32(asBytes(r["embedding"]))
		if len(emb) == 0 {
			continue
		}
		scoredRows = append(scoredRows, scored{row: r, sim: CosineSimilarity(vector, emb)})
	}
	sort.Slice(scoredRows, func(i, j int) bool { return scoredRows[i].sim > scoredRows[j].sim })
	if limit > 0 && limit < len(scoredRows) {
		scoredRows = scoredRows[:limit]
	}
	out := make([]Row, len(scoredRows))
	for i, sr := range scoredRows {
		out[i] = sr.row
	}
	return out, nil
}

func (s *SQLiteStore) Filter(table Table, expression string, args ...any) ([]Row, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table: %s", table)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	if expression != "" {
		query += " WHERE " + expression
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows, cols)
}

func (s *SQLiteStore) Update(table Table, where string, args []any, values Row) error {
	if len(values) == 0 {
		return nil
	}
	sets := make([]string, 0, len(values))
	setArgs := make([]any, 0, len(values))
	// deterministic column order
	cols := tableColumns[table]
	for _, c := range cols {
		if v, ok := values[c]; ok {
			sets = append(sets, c+" = ?")
			setArgs = append(setArgs, v)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", "))
	allArgs := setArgs
	if where != "" {
		query += " WHERE " + where
		allArgs = append(allArgs, args...)
	}
	// Storage-conflict: updating a missing row is a no-op, not an error.
	if _, err := s.db.Exec(query, allArgs...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(table Table, where string, args ...any) error {
	query := fmt.Sprintf("DELETE FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	// Deletes are idempotent: no error if zero rows matched.
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) CountRows(table Table) (int, error) {
	var count int
	err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

func (s *SQLiteStore) ScanAll(table Table) ([]Row, error) {
	return s.Filter(table, "")
}

// scanRows reads every row into Row maps ordered by cols, using sql.RawBytes
// via generic any scanning.
func scanRows(rows *sql.Rows, cols []string) ([]Row, error) {
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func asBytes(v any) []byte {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}
