// Package models holds the entity types shared across the memory hierarchy:
// messages, episodes, semantics, themes, user profiles, temporal events,
// durative memories, and observability traces.
package models

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single turn buffered by the Episode Builder. Transient: it is
// never persisted on its own, only folded into an Episode on flush.
type Message struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Episode is a coherent summary of a short contiguous message batch.
type Episode struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	TurnStart    int       `json:"turnStart"`
	TurnEnd      int       `json:"turnEnd"`
	MessageCount int       `json:"messageCount"`
	SessionID    string    `json:"sessionId"`
	CreatedAt    int64     `json:"createdAt"`
	Embedding    []float32 `json:"-"`
	RawMessages  []byte    `json:"-"` // opaque serialized blob, stripped after messageRetainDays
}

// Semantic is a short reusable fact distilled from one or more episodes.
type Semantic struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	Embedding       []float32 `json:"-"`
	CreatedAt       int64     `json:"createdAt"`
	UpdatedAt       int64     `json:"updatedAt"`
	ThemeID         string    `json:"themeId"`
	SourceEpisodeID []string  `json:"sourceEpisodeIds"`
	NeighborIDs     []string  `json:"neighborIds"`
}

// Theme is a cluster of semantically related facts exposed as a topic label.
type Theme struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Summary      string    `json:"summary"`
	Embedding    []float32 `json:"-"` // centroid
	SemanticIDs  []string  `json:"semanticIds"`
	MessageCount int       `json:"messageCount"`
	LastActive   int64     `json:"lastActive"`
	NeighborIDs  []string  `json:"neighborIds"`
	Dormant      bool      `json:"dormant"`
}

// UserProfile is the latest rebuilt-weekly behavioural/cognitive summary for
// one (user, phase) pair, feeding retrieval injection.
type UserProfile struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Phase        string    `json:"phase"` // ISO-week label
	Behavioural  string    `json:"behavioural"`
	Cognitive    string    `json:"cognitive"`
	MergedGlobal string    `json:"mergedGlobal"`
	Embedding    []float32 `json:"-"`
	CreatedAt    int64     `json:"createdAt"`
	UpdatedAt    int64     `json:"updatedAt"`
}

// TemporalEvent shadows an Episode indexed by when it happened rather than
// when it was discussed.
type TemporalEvent struct {
	ID            string    `json:"id"` // equals the source episode id
	Content       string    `json:"content"`
	SemanticTime  int64     `json:"semanticTime"`
	DialogueTime  int64     `json:"dialogueTime"`
	DurationMs    int64     `json:"durationMs"`
	SourceEpisode string    `json:"sourceEpisodeId"`
	Embedding     []float32 `json:"-"`
}

// DurativeMemory is a span-valued memory derived from a cluster of temporally
// close, related TemporalEvents.
type DurativeMemory struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	StartTime int64     `json:"startTime"`
	EndTime   int64     `json:"endTime"`
	MemberIDs []string  `json:"memberIds"`
	ThemeTag  string    `json:"themeTag"`
	Embedding []float32 `json:"-"`
}

// Satisfaction classifies whether a retrieval call appeared to help.
type Satisfaction string

const (
	SatisfactionSatisfied   Satisfaction = "satisfied"
	SatisfactionUnsatisfied Satisfaction = "unsatisfied"
	SatisfactionUnknown     Satisfaction = "unknown"
)

// Stage2Decision is the Top-Down Retriever's depth-expansion verdict.
type Stage2Decision string

const (
	Stage2Yes     Stage2Decision = "YES"
	Stage2Partial Stage2Decision = "PARTIAL"
	Stage2No      Stage2Decision = "NO"
)

// ObservabilityTrace records one retrieval call for the Feedback Tuner and
// hit-rate/satisfaction reporting.
type ObservabilityTrace struct {
	Query               string         `json:"query"`
	Timestamp           int64          `json:"timestamp"`
	MatchedThemeIDs     []string       `json:"matchedThemeIds"`
	SelectedFactPreview []string       `json:"selectedFactPreviews"`
	ExpandedEpisodeIDs  []string       `json:"expandedEpisodeIds"`
	Stage2              Stage2Decision `json:"stage2"`
	TokensInjected      int            `json:"tokensInjected"`
	Satisfaction        Satisfaction   `json:"satisfaction"`
	AgentID             string         `json:"agentId"`
}

// EmbeddingTask distinguishes query embeddings from document embeddings,
// matching the two-argument embed(text, task) contract of spec.md §6.
type EmbeddingTask string

const (
	TaskQuery        EmbeddingTask = "query"
	TaskTextMatching EmbeddingTask = "text-matching"
)
