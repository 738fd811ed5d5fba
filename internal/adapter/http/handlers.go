package http

import (
	"net/http"
	"strconv"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	"github.com/vitalis-ai/vitalis/internal/port/database"
	"github.com/vitalis-ai/vitalis/internal/port/eventstore"
	"github.com/vitalis-ai/vitalis/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Orchestrator *service.Orchestrator
	Approvals    *service.ApprovalService
	Store        database.Store
	Events       eventstore.Store
	LLM          *llm.Client
}

// ListUsers returns every onboarded user profile.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		writeDomainError(w, err, "users not found")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// GetUser returns one user profile.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	p, err := h.Store.GetProfile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GenerateAgent runs the full generation pipeline and returns the deployed
// configuration. 409 while a pipeline for the user is already running or an
// agent is already deployed.
func (h *Handlers) GenerateAgent(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	cfg, err := h.Orchestrator.Generate(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// GetAgentStatus returns the aggregate agent view for a user.
func (h *Handlers) GetAgentStatus(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	status, err := h.Orchestrator.GetStatus(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "no agent for user")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RunTask executes one live task against the user's deployed agent and
// returns the finalized trace.
func (h *Handlers) RunTask(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	req, ok := readJSON[struct {
		Task string `json:"task"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Task, "task") {
		return
	}

	tr, err := h.Orchestrator.RunTask(r.Context(), userID, req.Task)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// Chat handles one conversational turn and returns the agent's reply.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	req, ok := readJSON[struct {
		Message string `json:"message"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Message, "message") {
		return
	}

	tr, err := h.Orchestrator.Chat(r.Context(), userID, req.Message)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trace_id":  tr.ID,
		"response":  tr.Response,
		"completed": tr.Completed,
	})
}

// RunDemo executes the scripted demo sequence and a monitoring cycle.
func (h *Handlers) RunDemo(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	report, err := h.Orchestrator.Demo(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListVersions returns the user's configuration history.
func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	versions, err := h.Orchestrator.ListVersions(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// ListEvaluations returns the user's evaluation results.
func (h *Handlers) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	results, err := h.Orchestrator.ListEvaluations(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ListRewards returns the user's persisted reward snapshots, newest first.
func (h *Handlers) ListRewards(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	limit := queryInt(r, "limit", 20)
	snaps, err := h.Store.ListRewardSnapshots(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// ListUserEvents returns the user's agent event log, oldest first.
func (h *Handlers) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	events, err := h.Events.LoadByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetTrace returns one execution trace with its full action list.
func (h *Handlers) GetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := urlParam(r, "id")
	tr, err := h.Store.GetTrace(r.Context(), traceID)
	if err != nil {
		writeDomainError(w, err, "trace not found")
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// ListPendingApprovals returns all unresolved approvals, oldest first.
func (h *Handlers) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Approvals.ListPending(r.Context())
	if err != nil {
		writeDomainError(w, err, "approvals not found")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// ApproveAction resolves a pending approval positively; the suspended run
// resumes with the tool execution.
func (h *Handlers) ApproveAction(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Approvals.Approve(r.Context(), id); err != nil {
		writeDomainError(w, err, "approval not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// DenyAction resolves a pending approval negatively; the suspended run
// continues without the side effect.
func (h *Handlers) DenyAction(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Approvals.Deny(r.Context(), id); err != nil {
		writeDomainError(w, err, "approval not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
}

// LLMHealth reports the gateway's reachability and the breaker state.
func (h *Handlers) LLMHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"breaker": h.LLM.BreakerState(),
	}
	if ok, err := h.LLM.Health(r.Context()); err != nil || !ok {
		status["status"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
