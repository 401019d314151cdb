// Package profile maintains the weekly user profile: a behavioural and a
// cognitive summary for the current ISO-week phase, with prior phases
// folded into one merged global text. The latest profile row feeds the
// retrieval injection; the rebuild runs from the weekly cron.
package profile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hmemcore/hmem/internal/embedding"
	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// mergedGlobalMaxChars bounds how much prior-phase text accumulates in
// merged_global across rebuilds.
const mergedGlobalMaxChars = 2000

// Builder rebuilds the profile from the recent episode window.
type Builder struct {
	store      vectorstore.Store
	embedder   embedding.Embedder
	summariser *llm.Summariser
	logger     *slog.Logger
}

func NewBuilder(store vectorstore.Store, embedder embedding.Embedder, summariser *llm.Summariser, logger *slog.Logger) *Builder {
	return &Builder{store: store, embedder: embedder, summariser: summariser, logger: logger}
}

// PhaseLabel names a rebuild's phase by ISO week, e.g. "2026-W32".
func PhaseLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Rebuild distills the last 7 days of episodes into a fresh profile row
// for userID, folding any previous phase's texts into merged_global and
// replacing the stored rows. A week with no episodes, or one whose
// summaries say nothing about the user, leaves the stored profile as is.
func (b *Builder) Rebuild(userID string, now time.Time) error {
	summaries, err := b.recentEpisodeSummaries(now.AddDate(0, 0, -7).Unix())
	if err != nil {
		return fmt.Errorf("profile rebuild: %w", err)
	}
	if len(summaries) == 0 {
		return nil
	}

	behavioural, cognitive, err := b.summariser.ProfileTexts(summaries)
	if err != nil {
		return fmt.Errorf("profile rebuild: %w", err)
	}
	if behavioural == "" && cognitive == "" {
		return nil
	}

	prev, err := b.Latest(userID)
	if err != nil {
		return fmt.Errorf("profile rebuild: %w", err)
	}

	phase := PhaseLabel(now)
	merged := ""
	if prev != nil {
		if prev.Phase == phase {
			// Same-phase rebuild replaces the row; the global text
			// carries over untouched.
			merged = prev.MergedGlobal
		} else {
			merged = foldGlobal(prev.MergedGlobal, prev.Behavioural, prev.Cognitive)
		}
	}

	vec, err := b.embedder.Embed(behavioural+"\n"+cognitive, models.TaskTextMatching)
	if err != nil {
		return fmt.Errorf("profile rebuild: embed: %w", err)
	}

	if err := b.store.Delete(vectorstore.TableUserProfile, "user_id = ?", userID); err != nil {
		return fmt.Errorf("profile rebuild: clear prior rows: %w", err)
	}
	nowUnix := now.Unix()
	if err := b.store.Add(vectorstore.TableUserProfile, vectorstore.Row{
		"id":            uuid.NewString(),
		"user_id":       userID,
		"phase":         phase,
		"behavioural":   behavioural,
		"cognitive":     cognitive,
		"merged_global": merged,
		"embedding":     vectorstore.Float32ToBytes(vec),
		"created_at":    nowUnix,
		"updated_at":    nowUnix,
	}); err != nil {
		return fmt.Errorf("profile rebuild: store: %w", err)
	}

	if b.logger != nil {
		b.logger.Info("user profile rebuilt", "user", userID, "phase", phase, "episodes", len(summaries))
	}
	return nil
}

// Latest returns the stored profile for userID, or nil when none exists.
func (b *Builder) Latest(userID string) (*models.UserProfile, error) {
	rows, err := b.store.Filter(vectorstore.TableUserProfile, "user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("profile latest: %w", err)
	}
	var latest *models.UserProfile
	for _, r := range rows {
		p := &models.UserProfile{
			ID:           asString(r["id"]),
			UserID:       asString(r["user_id"]),
			Phase:        asString(r["phase"]),
			Behavioural:  asString(r["behavioural"]),
			Cognitive:    asString(r["cognitive"]),
			MergedGlobal: asString(r["merged_global"]),
			CreatedAt:    asInt64(r["created_at"]),
			UpdatedAt:    asInt64(r["updated_at"]),
		}
		if latest == nil || p.UpdatedAt > latest.UpdatedAt {
			latest = p
		}
	}
	return latest, nil
}

func (b *Builder) recentEpisodeSummaries(since int64) ([]string, error) {
	rows, err := b.store.ScanAll(vectorstore.TableEpisodes)
	if err != nil {
		return nil, fmt.Errorf("scan episodes: %w", err)
	}
	var out []string
	for _, r := range rows {
		if asInt64(r["created_at"]) < since {
			continue
		}
		if s := asString(r["summary"]); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// foldGlobal appends the outgoing phase's texts to the accumulated global
// text, trimming from the front once the bound is crossed so the newest
// phases survive.
func foldGlobal(global, behavioural, cognitive string) string {
	merged := global
	for _, part := range []string{behavioural, cognitive} {
		if part == "" {
			continue
		}
		if merged != "" {
			merged += "\n"
		}
		merged += part
	}
	if len(merged) > mergedGlobalMaxChars {
		merged = merged[len(merged)-mergedGlobalMaxChars:]
	}
	return merged
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return ""
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
