// Package decay applies an Ebbinghaus forgetting curve to episodes and
// semantics on a weekly sweep, following the teacher's
// LifecycleManager.Compact's scan-score-delete-and-log shape — themes
// never decay, episodes and semantics follow their own half-lives, and
// raw message blobs are blanked out after their retention window even
// while the owning episode survives.
package decay

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hmemcore/hmem/internal/vectorstore"
)

// Policy names the half-life and retention rules for one logical table.
type Policy struct {
	HalfLifeDays     float64 // 0 or negative means "never decays"
	RawRetentionDays float64 // only meaningful for episodes
}

// Weight returns decayWeight = 0.5^(age/halfLife), 1 when halfLife is
// non-positive (never forgets).
func Weight(createdAt int64, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1
	}
	ageDays := float64(time.Now().Unix()-createdAt) / 86400
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// Sweeper runs the weekly decay pass against the vector store.
type Sweeper struct {
	store          vectorstore.Store
	episodePolicy  Policy
	semanticPolicy Policy
	logger         *slog.Logger
}

func NewSweeper(store vectorstore.Store, episodePolicy, semanticPolicy Policy, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, episodePolicy: episodePolicy, semanticPolicy: semanticPolicy, logger: logger}
}

// Result tallies one sweep's actions.
type Result struct {
	EpisodesDeleted  int
	SemanticsDeleted int
	RawBlobsBlanked  int
}

// Sweep deletes episodes and semantics whose age has crossed 3x their
// half-life, and blanks raw message blobs on episodes past their
// retention window even when the episode itself survives.
func (s *Sweeper) Sweep() (Result, error) {
	var result Result

	epRows, err := s.store.ScanAll(vectorstore.TableEpisodes)
	if err != nil {
		return result, fmt.Errorf("sweep: scan episodes: %w", err)
	}
	for _, row := range epRows {
		id := asString(row["id"])
		createdAt := asInt64(row["created_at"])

		if s.episodePolicy.HalfLifeDays > 0 {
			ageDays := float64(time.Now().Unix()-createdAt) / 86400
			if ageDays >= 3*s.episodePolicy.HalfLifeDays {
				if err := s.store.Delete(vectorstore.TableEpisodes, "id = ?", id); err != nil {
					s.logger.Error("decay: delete episode failed", "id", id, "error", err)
					continue
				}
				result.EpisodesDeleted++
				continue
			}
		}

		if s.episodePolicy.RawRetentionDays > 0 {
			ageDays := float64(time.Now().Unix()-createdAt) / 86400
			if ageDays >= s.episodePolicy.RawRetentionDays && len(asBytes(row["raw_messages"])) > 0 {
				if err := s.store.Update(vectorstore.TableEpisodes, "id = ?", []any{id}, vectorstore.Row{"raw_messages": []byte(nil)}); err != nil {
					s.logger.Error("decay: blank raw messages failed", "id", id, "error", err)
					continue
				}
				result.RawBlobsBlanked++
			}
		}
	}

	if s.semanticPolicy.HalfLifeDays > 0 {
		semRows, err := s.store.ScanAll(vectorstore.TableSemantics)
		if err != nil {
			return result, fmt.Errorf("sweep: scan semantics: %w", err)
		}
		for _, row := range semRows {
			id := asString(row["id"])
			createdAt := asInt64(row["created_at"])
			ageDays := float64(time.Now().Unix()-createdAt) / 86400
			if ageDays >= 3*s.semanticPolicy.HalfLifeDays {
				if err := s.store.Delete(vectorstore.TableSemantics, "id = ?", id); err != nil {
					s.logger.Error("decay: delete semantic failed", "id", id, "error", err)
					continue
				}
				result.SemanticsDeleted++
			}
		}
	}

	if result.EpisodesDeleted > 0 || result.SemanticsDeleted > 0 || result.RawBlobsBlanked > 0 {
		s.logger.Info("decay sweep complete",
			"episodesDeleted", result.EpisodesDeleted,
			"semanticsDeleted", result.SemanticsDeleted,
			"rawBlobsBlanked", result.RawBlobsBlanked,
		)
	}

	return result, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return ""
}

func asBytes(v any) []byte {
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
