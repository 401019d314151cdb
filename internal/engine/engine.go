// Package engine wires every memory-hierarchy component into one
// explicitly constructed handle exposing the four hooks a host agent
// calls into: before_prompt_build, tool_result_persist, agent_end, and
// cron_weekly. Grounded on the teacher's memory.Service facade — a single
// struct holding every collaborator, constructed once at startup, with no
// package-level singletons — generalized from the teacher's CRUD facade
// to the hook-shaped surface spec.md §5 defines.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hmemcore/hmem/internal/active"
	"github.com/hmemcore/hmem/internal/budget"
	"github.com/hmemcore/hmem/internal/compact"
	"github.com/hmemcore/hmem/internal/config"
	"github.com/hmemcore/hmem/internal/decay"
	"github.com/hmemcore/hmem/internal/embedding"
	"github.com/hmemcore/hmem/internal/episode"
	"github.com/hmemcore/hmem/internal/llm"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/profile"
	"github.com/hmemcore/hmem/internal/retriever"
	"github.com/hmemcore/hmem/internal/semantic"
	"github.com/hmemcore/hmem/internal/store"
	"github.com/hmemcore/hmem/internal/temporal"
	"github.com/hmemcore/hmem/internal/theme"
	"github.com/hmemcore/hmem/internal/toolkit"
	"github.com/hmemcore/hmem/internal/tuning"
	"github.com/hmemcore/hmem/internal/vectorstore"
)

// Engine is the single handle threading every component through the
// hook surface. Construct exactly one per process via New.
type Engine struct {
	cfg        *config.Config
	db         *store.DB
	vstore     vectorstore.Store
	embedder   embedding.Embedder
	summariser *llm.Summariser
	logger     *slog.Logger

	builders map[string]*episode.Builder // keyed by session ID

	extractor *semantic.Extractor
	themes    *theme.Manager
	profiles  *profile.Builder
	tuner     *tuning.Tuner
	preloader *tuning.Preloader
	recorder  *tuning.Recorder
	metrics   *tuning.Metrics

	decaySweeper *decay.Sweeper

	temporalEvents   *store.TemporalEventStore
	durativeMemories *store.DurativeMemoryStore

	recall    active.Recaller
	workspace active.WorkspaceSearcher
	web       active.WebSearcher

	// recentQueries holds each agent's last few user queries (newest
	// last); active retrieval reads them for importance detection and
	// repeated-question promotion.
	recentQueries map[string][]string

	// dormant engines no-op every hook: set at construction when no
	// embedding credential (and no injected embedder) exists, or when the
	// config disables the core outright.
	dormant bool
}

// minQueryChars is the shortest prompt retrieval engages with.
const minQueryChars = 4

// defaultUserID keys the user profile in this single-tenant sidecar
// deployment, where one engine process serves one user's agent.
const defaultUserID = "default"

// Deps bundles the external collaborators New needs beyond cfg, keeping
// the constructor signature from growing every time a new optional
// collaborator is added. Embedder and LLMClient let a caller substitute
// fakes for the Jina/Ollama-backed defaults, which integration tests use
// to exercise the engine without reaching the network.
type Deps struct {
	Recall    active.Recaller
	Workspace active.WorkspaceSearcher
	Web       active.WebSearcher
	Metrics   *tuning.Metrics
	Embedder  embedding.Embedder
	LLMClient llm.Client
}

// New opens the database, builds every component, and returns a ready
// Engine. The caller owns calling Close when done.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Engine, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	vstore := vectorstore.NewSQLiteStore(db)

	dormant := !cfg.Enabled
	if deps.Embedder == nil && cfg.JinaAPIKey == "" {
		dormant = true
	}
	if dormant {
		logger.Warn("memory core dormant: missing embedding credential or disabled by config; all hooks will no-op")
	}

	embedder := deps.Embedder
	if embedder == nil {
		embCache := store.NewEmbeddingCacheStore(db)
		jina := embedding.NewJinaClient(cfg.JinaAPIKey, cfg.JinaModel)
		embedder = embedding.NewCachedEmbedder(jina, embCache, cfg.JinaModel, cfg.EmbeddingDim)
	}

	llmClient := deps.LLMClient
	if llmClient == nil {
		llmClient = llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey, cfg.LLMEnabled)
	}
	summariser := llm.NewSummariser(llmClient)

	extractor := semantic.NewExtractor(summariser, embedder, vstore, cfg.DedupeThreshold)
	themeMgr := theme.NewManager(vstore, summariser, cfg.AssignDistanceThreshold, cfg.MaxSemanticsPerTheme, cfg.MinSemanticsPerTheme, cfg.KNNK, cfg.MaxThemes)
	profiles := profile.NewBuilder(vstore, embedder, summariser, logger)
	tuner := tuning.NewTuner(cfg.AlphaDefault, cfg.AlphaMin, cfg.AlphaMax)
	preloader := tuning.NewPreloader()
	recorder := tuning.NewRecorder()

	decaySweeper := decay.NewSweeper(vstore,
		decay.Policy{HalfLifeDays: cfg.EpisodeHalfLifeDays, RawRetentionDays: float64(cfg.MessageRetainDays)},
		decay.Policy{HalfLifeDays: cfg.SemanticHalfLifeDays},
		logger,
	)

	return &Engine{
		cfg:              cfg,
		db:               db,
		vstore:           vstore,
		embedder:         embedder,
		summariser:       summariser,
		logger:           logger,
		builders:         make(map[string]*episode.Builder),
		extractor:        extractor,
		themes:           themeMgr,
		profiles:         profiles,
		tuner:            tuner,
		preloader:        preloader,
		recorder:         recorder,
		metrics:          deps.Metrics,
		decaySweeper:     decaySweeper,
		temporalEvents:   store.NewTemporalEventStore(db),
		durativeMemories: store.NewDurativeMemoryStore(db),
		recall:           deps.Recall,
		workspace:        deps.Workspace,
		web:              deps.Web,
		recentQueries:    make(map[string][]string),
		dormant:          dormant,
	}, nil
}

// Close releases the underlying database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Recorder exposes the engine's observability ring buffer so the stats
// endpoint reads the same traces retrieval writes.
func (e *Engine) Recorder() *tuning.Recorder {
	return e.recorder
}

// ThemeCount reports the current number of themes, used by the health
// endpoint to confirm the database is reachable and populated.
func (e *Engine) ThemeCount() (int, error) {
	return e.db.ThemeCount()
}

func (e *Engine) builderFor(sessionID string) *episode.Builder {
	b, ok := e.builders[sessionID]
	if !ok {
		b = episode.NewBuilder(sessionID, e.cfg.EpisodeBatchSize, e.summariser, e.embedder)
		e.builders[sessionID] = b
	}
	return b
}

// ToolResultPersist buffers one message into its session's Episode
// Builder, flushing (and folding the result into the memory hierarchy)
// when the buffer is ready or a topic switch triggered an early flush.
func (e *Engine) ToolResultPersist(ctx context.Context, sessionID string, msg models.Message) error {
	if e.dormant {
		return nil
	}
	b := e.builderFor(sessionID)

	flushedEarly, err := b.Add(msg)
	if err != nil {
		return fmt.Errorf("tool_result_persist: %w", err)
	}
	if flushedEarly != nil {
		if err := e.absorbEpisode(flushedEarly); err != nil {
			return err
		}
	}

	if b.Ready() {
		ep, err := b.Flush()
		if err != nil {
			return fmt.Errorf("tool_result_persist flush: %w", err)
		}
		if ep != nil {
			if err := e.absorbEpisode(ep); err != nil {
				return err
			}
		}
	}

	return nil
}

// absorbEpisode persists an Episode and folds its extracted facts into
// the theme hierarchy.
func (e *Engine) absorbEpisode(ep *models.Episode) error {
	if err := e.vstore.Add(vectorstore.TableEpisodes, vectorstore.Row{
		"id": ep.ID, "session_id": ep.SessionID, "summary": ep.Summary,
		"turn_start": ep.TurnStart, "turn_end": ep.TurnEnd, "message_count": ep.MessageCount,
		"created_at": ep.CreatedAt, "embedding": vectorstore.Float32ToBytes(ep.Embedding), "raw_messages": ep.RawMessages,
	}); err != nil {
		return fmt.Errorf("absorb episode: %w", err)
	}

	tev := e.temporalEventFor(ep)
	if err := e.temporalEvents.Put(&store.TemporalEventRecord{
		ID: tev.ID, Content: tev.Content, SemanticTime: tev.SemanticTime,
		DialogueTime: tev.DialogueTime, DurationMs: tev.DurationMs,
		SourceEpisode: tev.SourceEpisode, Embedding: vectorstore.Float32ToBytes(tev.Embedding),
	}); err != nil {
		return fmt.Errorf("absorb episode: persist temporal event: %w", err)
	}

	facts, err := e.extractor.Extract(ep)
	if err != nil {
		return fmt.Errorf("absorb episode: extract facts: %w", err)
	}

	for _, f := range facts {
		themeID, err := e.themes.Assign(f)
		if err != nil {
			return fmt.Errorf("absorb episode: assign theme: %w", err)
		}
		f.ThemeID = themeID
		if err := e.vstore.Add(vectorstore.TableSemantics, vectorstore.Row{
			"id": f.ID, "content": f.Content, "embedding": vectorstore.Float32ToBytes(f.Embedding),
			"created_at": f.CreatedAt, "updated_at": f.UpdatedAt, "theme_id": f.ThemeID,
			"source_episode_ids": joinIDs(f.SourceEpisodeID), "neighbor_ids": "",
		}); err != nil {
			return fmt.Errorf("absorb episode: add semantic: %w", err)
		}
	}

	return nil
}

// AgentEnd flushes any remaining buffered messages for a session at the
// end of an agent run.
func (e *Engine) AgentEnd(ctx context.Context, sessionID string) error {
	if e.dormant {
		return nil
	}
	b, ok := e.builders[sessionID]
	if !ok {
		return nil
	}
	ep, err := b.Flush()
	if err != nil {
		return fmt.Errorf("agent_end: %w", err)
	}
	delete(e.builders, sessionID)
	if ep == nil {
		return nil
	}
	return e.absorbEpisode(ep)
}

// BeforePromptBuild runs the retrieval pass for query, allocates the
// result across the token budget tiers, and records an observability
// trace. agentID identifies the caller for the tuner's satisfaction
// heuristic and the preloader's access pattern.
func (e *Engine) BeforePromptBuild(ctx context.Context, agentID, query string, identity, workspace, tools, extras string) (string, error) {
	if e.dormant || len(strings.TrimSpace(query)) < minQueryChars {
		return "", nil
	}

	e.recordQuery(agentID, query)

	queryVec, err := e.embedder.Embed(query, models.TaskQuery)
	if err != nil {
		return "", fmt.Errorf("before_prompt_build: embed query: %w", err)
	}

	result, err := retriever.Retrieve(e.vstore, e.summariser, query, queryVec, retriever.Options{
		Alpha:               e.tuner.Alpha(),
		TokenBudget:         e.cfg.RetrievalBudget,
		EpisodeHalfLifeDays: e.cfg.EpisodeHalfLifeDays,
	})
	if err != nil {
		return "", fmt.Errorf("before_prompt_build: retrieve: %w", err)
	}

	if len(result.Facts) == 0 {
		result.Facts = e.lexicalFactFallback(query)
	}

	if rng, ok := temporal.ParseIntent(query, time.Now()); ok {
		result.Episodes = e.rerankEpisodesByTime(result.Episodes, rng)
	}

	memoryContent := e.renderMemoryWithProfile(result)

	alloc := budget.Allocate([]budget.Input{
		{Tier: budget.TierIdentity, Content: identity},
		{Tier: budget.TierWorkspace, Content: workspace},
		{Tier: budget.TierMemory, Content: memoryContent},
		{Tier: budget.TierTools, Content: tools},
		{Tier: budget.TierExtras, Content: extras},
	}, e.cfg.GlobalBudget)

	now := time.Now()
	for _, th := range result.Themes {
		e.preloader.Observe(th.ThemeID, now)
	}

	trace := models.ObservabilityTrace{
		Query:          query,
		Timestamp:      now.Unix(),
		TokensInjected: alloc.TotalUsed,
		Stage2:         result.Decision,
		Satisfaction:   models.SatisfactionUnknown,
		AgentID:        agentID,
	}
	for _, th := range result.Themes {
		trace.MatchedThemeIDs = append(trace.MatchedThemeIDs, th.ThemeID)
	}
	for _, f := range result.Facts {
		trace.SelectedFactPreview = append(trace.SelectedFactPreview, f.Content)
	}
	for _, ep := range result.Episodes {
		trace.ExpandedEpisodeIDs = append(trace.ExpandedEpisodeIDs, ep.EpisodeID)
	}
	e.recorder.Record(trace)

	if e.metrics != nil {
		stats := tuning.Summarize(e.recorder.Traces())
		e.metrics.Update(stats, e.tuner.Alpha())
		e.metrics.RetrievalsTotal.Inc()
	}

	return renderPrompt(alloc), nil
}

// CronWeekly runs the maintenance pipeline: decay sweep, within-theme
// dedup, eligible merges, k-NN rebuild, dormancy marking, durative-memory
// regrouping, user-profile rebuild, preload-rule snapshot, and the alpha
// tuning pass.
func (e *Engine) CronWeekly(ctx context.Context) error {
	if e.dormant {
		return nil
	}
	if _, err := e.decaySweeper.Sweep(); err != nil {
		return fmt.Errorf("cron_weekly: decay sweep: %w", err)
	}
	deduped, err := e.themes.DedupSweep(theme.DedupSteadyThreshold)
	if err != nil {
		return fmt.Errorf("cron_weekly: dedup sweep: %w", err)
	}
	merged, err := e.themes.RunMerges()
	if err != nil {
		return fmt.Errorf("cron_weekly: merges: %w", err)
	}
	if err := e.themes.RebuildKNN(); err != nil {
		return fmt.Errorf("cron_weekly: rebuild knn: %w", err)
	}
	dormantMarked, err := e.themes.MarkDormant(e.cfg.ThemeDormantDays)
	if err != nil {
		return fmt.Errorf("cron_weekly: mark dormant: %w", err)
	}
	if err := e.rebuildDurativeMemories(); err != nil {
		return fmt.Errorf("cron_weekly: rebuild durative memories: %w", err)
	}
	if err := e.profiles.Rebuild(defaultUserID, time.Now()); err != nil {
		return fmt.Errorf("cron_weekly: rebuild profile: %w", err)
	}
	e.preloader.Recompute()
	e.tuner.Adjust(e.recorder.Traces())

	sparsity, err := e.themes.Sparsity()
	if err != nil {
		return fmt.Errorf("cron_weekly: sparsity: %w", err)
	}
	e.logger.Info("cron_weekly maintenance complete",
		"semantics_deduped", deduped,
		"themes_merged", merged,
		"themes_marked_dormant", dormantMarked,
		"sparsity", sparsity,
		"alpha", e.tuner.Alpha(),
	)
	return nil
}

// lexicalFactFallback keyword-searches the semantics FTS index when
// vector ranking surfaced nothing — a query phrased with none of the
// stored embeddings' vocabulary overlap can still hit on exact terms. A
// failed or empty search just leaves the fact list empty.
func (e *Engine) lexicalFactFallback(query string) []retriever.FactCandidate {
	hits, err := e.db.SearchSemanticsFTS(query, 5)
	if err != nil || len(hits) == 0 {
		return nil
	}
	facts := make([]retriever.FactCandidate, len(hits))
	for i, h := range hits {
		facts[i] = retriever.FactCandidate{SemanticID: h.ID, ThemeID: h.ThemeID, Content: h.Content}
	}
	return facts
}

// rerankEpisodesByTime reorders expanded episodes against a temporal query
// window, preferring the episode's own semantic time when the temporal
// layer recorded one and its dialogue time otherwise. Episodes scoring
// zero are dropped.
func (e *Engine) rerankEpisodesByTime(episodes []retriever.ExpandedEpisode, rng *temporal.Range) []retriever.ExpandedEpisode {
	if len(episodes) == 0 {
		return episodes
	}
	semanticTimes := make(map[string]int64)
	if records, err := e.temporalEvents.ListSince(0); err == nil {
		for _, r := range records {
			semanticTimes[r.SourceEpisode] = r.SemanticTime
		}
	}

	type scored struct {
		ep    retriever.ExpandedEpisode
		score float64
	}
	var kept []scored
	for _, ep := range episodes {
		at, ok := semanticTimes[ep.EpisodeID]
		if !ok {
			at = ep.CreatedAt
		}
		if s := temporal.Score(at, *rng); s > 0 {
			kept = append(kept, scored{ep: ep, score: s})
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].score > kept[j].score })
	out := make([]retriever.ExpandedEpisode, len(kept))
	for i, k := range kept {
		out[i] = k.ep
	}
	return out
}

// renderMemoryWithProfile prepends the stored user profile, when one
// exists, to the retrieval result's rendered memory content.
func (e *Engine) renderMemoryWithProfile(result *retriever.Result) string {
	out := renderMemoryContent(result)
	p, err := e.profiles.Latest(defaultUserID)
	if err != nil || p == nil {
		return out
	}
	var header string
	if p.Behavioural != "" {
		header += "About the user: " + p.Behavioural + "\n"
	}
	if p.Cognitive != "" {
		header += "Communication style: " + p.Cognitive + "\n"
	}
	if p.MergedGlobal != "" {
		header += "Longer-term context: " + p.MergedGlobal + "\n"
	}
	return header + out
}

// rebuildDurativeMemories regroups the last 90 days of temporal events
// into spans, replacing durative memories wholesale rather than
// incrementally — cheap enough at weekly cadence and avoids merge-drift
// bugs from incremental span extension.
func (e *Engine) rebuildDurativeMemories() error {
	since := time.Now().AddDate(0, 0, -90).Unix()
	records, err := e.temporalEvents.ListSince(since)
	if err != nil {
		return fmt.Errorf("list temporal events: %w", err)
	}

	events := make([]*models.TemporalEvent, len(records))
	for i, r := range records {
		events[i] = &models.TemporalEvent{
			ID: r.ID, Content: r.Content, SemanticTime: r.SemanticTime,
			DialogueTime: r.DialogueTime, DurationMs: r.DurationMs,
			SourceEpisode: r.SourceEpisode, Embedding: vectorstore.BytesToFloat32(r.Embedding),
		}
	}

	spans := temporal.BuildDurativeMemories(events, e.cfg.MaxGapDays, e.cfg.TemporalSimilarity)

	if err := e.durativeMemories.DeleteAll(); err != nil {
		return fmt.Errorf("clear durative memories: %w", err)
	}
	for _, span := range spans {
		if err := e.durativeMemories.Insert(&store.DurativeMemoryRecord{
			ID: span.ID, Summary: span.Summary, StartTime: span.StartTime, EndTime: span.EndTime,
			MemberIDs: joinIDs(span.MemberIDs), Embedding: vectorstore.Float32ToBytes(span.Embedding),
		}); err != nil {
			return fmt.Errorf("insert durative memory: %w", err)
		}
	}
	return nil
}

// recordQuery appends to an agent's query history, keeping the current
// query plus the three before it — the window the repeated-question
// promotion compares against.
func (e *Engine) recordQuery(agentID, query string) {
	h := append(e.recentQueries[agentID], query)
	if len(h) > 4 {
		h = h[len(h)-4:]
	}
	e.recentQueries[agentID] = h
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

func renderMemoryContent(result *retriever.Result) string {
	var out string
	for _, th := range result.Themes {
		out += "## " + th.Name + "\n" + th.Summary + "\n"
	}
	for _, f := range result.Facts {
		out += "- " + f.Content + "\n"
	}
	for _, ep := range result.Episodes {
		out += "(from earlier) " + ep.Summary + "\n"
	}
	return out
}

func renderPrompt(alloc budget.Result) string {
	var out string
	for _, a := range alloc.Allocations {
		if a.Content == "" {
			continue
		}
		out += string(a.Tier) + ":\n" + a.Content + "\n\n"
	}
	return out
}

// CompactToolOutput shrinks a raw tool result before it is handed to
// ToolResultPersist, so large command/file output never inflates an
// episode's raw message blob.
func (e *Engine) CompactToolOutput(text string) compact.Result {
	return compact.Compact(text, e.summariser)
}

// RunToolkit evaluates the autonomous store/discard/summarize decisions
// for one turn's text against the host's existing memory snapshot, and
// executes whatever it decides against the host's store/forget
// callbacks. This is a separate pass the host wires alongside
// ToolResultPersist, not something folded into that hook itself, since
// the host — not the engine — owns what "storing" ultimately means.
func (e *Engine) RunToolkit(ctx context.Context, text, queryText string, existing []toolkit.ExistingMemory, hostStore toolkit.Store, hostForget toolkit.Forget) toolkit.ExecResult {
	var decisions []toolkit.Decision

	contents := make([]string, len(existing))
	for i, m := range existing {
		contents[i] = m.Content
	}
	if d, ok := toolkit.CandidateStore(text, contents, queryText); ok {
		decisions = append(decisions, d)
	}
	if d, ok := toolkit.CandidateDiscard(text, existing); ok {
		decisions = append(decisions, d)
	}
	if d, ok := toolkit.CandidateSummarize(existing); ok {
		decisions = append(decisions, d)
	}

	return toolkit.Execute(ctx, decisions, hostStore, hostForget)
}

// RunAutonomousMemory evaluates and executes the store/discard/summarize
// toolkit against the engine's own semantic store: existing candidates come
// from a scan of the semantics table, a KindStore/KindSummarize decision
// embeds and assigns a theme the same way absorbEpisode does, and a
// KindDiscard decision deletes the target row outright. This is the
// memory engine acting as its own host, for callers that want autonomous
// memory management without supplying their own Store/Forget.
func (e *Engine) RunAutonomousMemory(ctx context.Context, text, queryText string) (toolkit.ExecResult, error) {
	if e.dormant {
		return toolkit.ExecResult{}, nil
	}
	rows, err := e.vstore.ScanAll(vectorstore.TableSemantics)
	if err != nil {
		return toolkit.ExecResult{}, fmt.Errorf("run_autonomous_memory: scan semantics: %w", err)
	}

	existing := make([]toolkit.ExistingMemory, 0, len(rows))
	for _, row := range rows {
		id, _ := row["id"].(string)
		content, _ := row["content"].(string)
		existing = append(existing, toolkit.ExistingMemory{ID: id, Content: content})
	}

	storeFn := func(ctx context.Context, content string, importance float64) error {
		vec, err := e.embedder.Embed(content, models.TaskTextMatching)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		sem := &models.Semantic{
			ID: uuid.NewString(), Content: content, Embedding: vec,
			CreatedAt: time.Now().Unix(), UpdatedAt: time.Now().Unix(),
		}
		themeID, err := e.themes.Assign(sem)
		if err != nil {
			return fmt.Errorf("assign theme: %w", err)
		}
		sem.ThemeID = themeID
		return e.vstore.Add(vectorstore.TableSemantics, vectorstore.Row{
			"id": sem.ID, "content": sem.Content, "embedding": vectorstore.Float32ToBytes(sem.Embedding),
			"created_at": sem.CreatedAt, "updated_at": sem.UpdatedAt, "theme_id": sem.ThemeID,
			"source_episode_ids": "", "neighbor_ids": "",
		})
	}

	forgetFn := func(ctx context.Context, id string) error {
		return e.vstore.Delete(vectorstore.TableSemantics, "id = ?", id)
	}

	result, ok := toolkit.CandidateStore(text, contentsOf(existing), queryText)
	var decisions []toolkit.Decision
	if ok {
		decisions = append(decisions, result)
	}
	if d, ok := toolkit.CandidateDiscard(text, existing); ok {
		decisions = append(decisions, d)
	}
	if d, ok := toolkit.CandidateSummarize(existing); ok {
		decisions = append(decisions, d)
	}

	return toolkit.Execute(ctx, decisions, storeFn, forgetFn), nil
}

func contentsOf(existing []toolkit.ExistingMemory) []string {
	out := make([]string, len(existing))
	for i, m := range existing {
		out[i] = m.Content
	}
	return out
}

// RunActiveRetrieval derives how uncertain agentText sounds, escalates
// through the memory/workspace/web chain when warranted, and — for web
// hits that cross-verify against agentText — proposes new candidate facts
// for the caller to feed into RunToolkit. important flags text the host
// already knows is consequential; beyond that flag, importance is derived
// from the agent's latest user query matching a price/version/date
// pattern, and the level is promoted when that query repeats one of the
// agent's prior queries.
func (e *Engine) RunActiveRetrieval(ctx context.Context, agentID, agentText string, important bool) (active.ChainResult, []string, error) {
	history := e.recentQueries[agentID]
	latest := ""
	if len(history) > 0 {
		latest = history[len(history)-1]
	}
	level := active.DeriveLevel(agentText, important || active.IsImportantQuestion(latest))
	for _, prior := range history[:max(0, len(history)-1)] {
		level = active.PromoteOnRepeat(level, latest, prior)
	}

	if level == active.LevelNone || level == active.LevelLow {
		return active.ChainResult{}, nil, nil
	}

	result, err := active.Run(ctx, agentText, level, e.recall, e.workspace, e.web)
	if err != nil {
		return active.ChainResult{}, nil, fmt.Errorf("run_active_retrieval: %w", err)
	}

	if result.Source != "web" {
		return result, nil, nil
	}
	if !active.CrossVerify(agentText, result.Text) {
		return active.ChainResult{}, nil, nil
	}
	return result, active.ProposeFacts(result.Text), nil
}

// temporalEventFor derives the semantic-time shadow of an episode, used
// by absorbEpisode to populate the temporal layer alongside the theme
// hierarchy.
func (e *Engine) temporalEventFor(ep *models.Episode) *models.TemporalEvent {
	extraction := temporal.ExtractWithFallback(ep.Summary, time.Unix(ep.CreatedAt, 0), e.summariser)
	return &models.TemporalEvent{
		ID:            ep.ID,
		Content:       ep.Summary,
		SemanticTime:  extraction.SemanticTime.Unix(),
		DialogueTime:  ep.CreatedAt,
		DurationMs:    int64(extraction.DurationDays * 86400 * 1000),
		SourceEpisode: ep.ID,
		Embedding:     ep.Embedding,
	}
}
