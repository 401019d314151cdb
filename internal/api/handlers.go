package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hmemcore/hmem/internal/engine"
	"github.com/hmemcore/hmem/internal/models"
	"github.com/hmemcore/hmem/internal/tuning"
)

// HookHandler exposes Engine's four hooks plus the active-retrieval and
// autonomous-toolkit passes over HTTP, for a host agent that runs as its
// own process rather than linking the engine in-process.
type HookHandler struct {
	eng *engine.Engine
}

func NewHookHandler(eng *engine.Engine) *HookHandler {
	return &HookHandler{eng: eng}
}

type beforePromptBuildRequest struct {
	AgentID   string `json:"agentId"`
	Query     string `json:"query"`
	Identity  string `json:"identity"`
	Workspace string `json:"workspace"`
	Tools     string `json:"tools"`
	Extras    string `json:"extras"`
}

// BeforePromptBuild handles POST /hooks/before-prompt-build
func (h *HookHandler) BeforePromptBuild(w http.ResponseWriter, r *http.Request) {
	var req beforePromptBuildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	prompt, err := h.eng.BeforePromptBuild(r.Context(), req.AgentID, req.Query, req.Identity, req.Workspace, req.Tools, req.Extras)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

type toolResultPersistRequest struct {
	SessionID string         `json:"sessionId"`
	Message   models.Message `json:"message"`
}

// ToolResultPersist handles POST /hooks/tool-result-persist
func (h *HookHandler) ToolResultPersist(w http.ResponseWriter, r *http.Request) {
	var req toolResultPersistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	if err := h.eng.ToolResultPersist(r.Context(), req.SessionID, req.Message); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AgentEnd handles POST /hooks/agent-end/{sessionId}
func (h *HookHandler) AgentEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := h.eng.AgentEnd(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CronWeekly handles POST /hooks/cron-weekly — normally fired by an
// external scheduler rather than a human, but exposed so an operator can
// trigger the maintenance pass out of band.
func (h *HookHandler) CronWeekly(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.CronWeekly(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type compactRequest struct {
	Text string `json:"text"`
}

// Compact handles POST /tools/compact
func (h *HookHandler) Compact(w http.ResponseWriter, r *http.Request) {
	var req compactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.eng.CompactToolOutput(req.Text))
}

type autonomousMemoryRequest struct {
	Text      string `json:"text"`
	QueryText string `json:"queryText"`
}

// AutonomousMemory handles POST /memory/autonomous
func (h *HookHandler) AutonomousMemory(w http.ResponseWriter, r *http.Request) {
	var req autonomousMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.eng.RunAutonomousMemory(r.Context(), req.Text, req.QueryText)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type activeRetrievalRequest struct {
	AgentID   string `json:"agentId"`
	Text      string `json:"text"`
	Important bool   `json:"important"`
}

type activeRetrievalResponse struct {
	Source        string   `json:"source"`
	Text          string   `json:"text"`
	ProposedFacts []string `json:"proposedFacts,omitempty"`
}

// ActiveRetrieval handles POST /memory/active-retrieval
func (h *HookHandler) ActiveRetrieval(w http.ResponseWriter, r *http.Request) {
	var req activeRetrievalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AgentID == "" {
		req.AgentID = agentIDFrom(r)
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, facts, err := h.eng.RunActiveRetrieval(r.Context(), req.AgentID, req.Text, req.Important)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, activeRetrievalResponse{Source: result.Source, Text: result.Text, ProposedFacts: facts})
}

// ObservabilityHandler serves read-only stats about recent retrievals.
type ObservabilityHandler struct {
	recorder *tuning.Recorder
}

func NewObservabilityHandler(recorder *tuning.Recorder) *ObservabilityHandler {
	return &ObservabilityHandler{recorder: recorder}
}

// Stats handles GET /observability/stats
func (h *ObservabilityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tuning.Summarize(h.recorder.Traces()))
}

// HealthHandler reports whether the engine's database is reachable.
type HealthHandler struct {
	eng *engine.Engine
}

func NewHealthHandler(eng *engine.Engine) *HealthHandler {
	return &HealthHandler{eng: eng}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.eng.ThemeCount()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "themeCount": count})
}
