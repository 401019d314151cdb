// Package episode buffers raw conversation turns and flushes them into
// Episode summaries, the leaf layer the rest of the memory hierarchy is
// built from. Grounded on the teacher's sessions.Summarizer for the
// summarization call itself, generalized here with the buffering and
// topic-switch detection the teacher's single-shot session summarizer
// never needed (it summarized one finished session, not a live stream).
package episode

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hmemcore/hmem/internal/embedding"
	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
)

// DefaultBatchSize is the message count that triggers an automatic flush
// absent a topic switch.
const DefaultBatchSize = 5

// topicSwitchMarkers are phrases that, when they open a turn, signal the
// conversation has moved on from whatever the buffer was accumulating.
// English and Chinese markers are matched case-insensitively; continuation
// phrases like "also" or "and" must never trigger a false positive.
var topicSwitchMarkers = []string{
	"by the way", "unrelated", "switching topics", "on another note",
	"different question", "another question", "new topic", "anyway,",
	"changing subject",
	"顺便说", "换个话题", "另外", "不相关的问题",
}

// TopicSwitch reports whether cur opens a new topic relative to prev. A
// nil or empty prev never triggers a switch — there is nothing to switch
// away from yet.
func TopicSwitch(cur, prev string) bool {
	if strings.TrimSpace(prev) == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(cur))
	for _, marker := range topicSwitchMarkers {
		if strings.HasPrefix(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Builder buffers messages for one session and flushes them into Episodes.
type Builder struct {
	sessionID  string
	batchSize  int
	buffer     []models.Message
	turnOffset int
	summariser *llm.Summariser
	embedder   embedding.Embedder
}

func NewBuilder(sessionID string, batchSize int, summariser *llm.Summariser, embedder embedding.Embedder) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		sessionID:  sessionID,
		batchSize:  batchSize,
		summariser: summariser,
		embedder:   embedder,
	}
}

// Add buffers msg. If it opens a new topic relative to the last buffered
// message, the existing buffer is flushed first (if non-empty) and msg
// starts a fresh buffer; the caller receives the flushed episode, if any.
// Whether the buffer is ready for a batch flush is read through Ready().
func (b *Builder) Add(msg models.Message) (flushed *models.Episode, err error) {
	if len(b.buffer) > 0 && TopicSwitch(msg.Text, b.buffer[len(b.buffer)-1].Text) {
		ep, flushErr := b.Flush()
		if flushErr != nil {
			return nil, flushErr
		}
		flushed = ep
	}
	b.buffer = append(b.buffer, msg)
	return flushed, nil
}

// Ready reports whether the buffer has reached batchSize and should be
// flushed by the caller's next tool_result_persist or agent_end hook.
func (b *Builder) Ready() bool {
	return len(b.buffer) >= b.batchSize
}

// Flush summarizes and embeds the current buffer into an Episode, clearing
// the buffer. An empty buffer flushes to nil with no error. A summarizer
// or embedding failure leaves the buffer untouched so no partial episode
// is ever persisted — the caller can retry the flush later.
func (b *Builder) Flush() (*models.Episode, error) {
	if len(b.buffer) == 0 {
		return nil, nil
	}

	transcript := renderTranscript(b.buffer)
	summary, err := b.summariser.SummarizeEpisode(transcript)
	if err != nil {
		return nil, fmt.Errorf("flush episode: %w", err)
	}

	vec, err := b.embedder.Embed(summary, models.TaskTextMatching)
	if err != nil {
		return nil, fmt.Errorf("flush episode embed: %w", err)
	}

	ep := &models.Episode{
		ID:           uuid.NewString(),
		Summary:      summary,
		TurnStart:    b.turnOffset,
		TurnEnd:      b.turnOffset + len(b.buffer) - 1,
		MessageCount: len(b.buffer),
		SessionID:    b.sessionID,
		CreatedAt:    time.Now().Unix(),
		Embedding:    vec,
		RawMessages:  []byte(truncateRaw(b.buffer)),
	}

	b.turnOffset += len(b.buffer)
	b.buffer = nil
	return ep, nil
}

func renderTranscript(msgs []models.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Text)
	}
	return sb.String()
}

// truncateRaw caps each message at 500 characters before serializing the
// raw blob, so a single verbose turn doesn't dominate storage.
func truncateRaw(msgs []models.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		text := m.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Fprintf(&sb, "[%d] %s: %s\n", m.Timestamp, m.Role, text)
	}
	return sb.String()
}
