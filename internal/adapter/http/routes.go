package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Users
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)

		// Agent lifecycle (nested under users)
		r.Post("/users/{id}/agent", h.GenerateAgent)
		r.Get("/users/{id}/agent", h.GetAgentStatus)
		r.Get("/users/{id}/versions", h.ListVersions)
		r.Get("/users/{id}/evaluations", h.ListEvaluations)
		r.Get("/users/{id}/rewards", h.ListRewards)
		r.Get("/users/{id}/events", h.ListUserEvents)

		// Live execution
		r.Post("/users/{id}/tasks", h.RunTask)
		r.Post("/users/{id}/chat", h.Chat)
		r.Post("/users/{id}/demo", h.RunDemo)

		// Traces
		r.Get("/traces/{id}", h.GetTrace)

		// Human approval gate
		r.Get("/approvals", h.ListPendingApprovals)
		r.Post("/approvals/{id}/approve", h.ApproveAction)
		r.Post("/approvals/{id}/deny", h.DenyAction)

		// LLM gateway health (proxied)
		r.Get("/llm/health", h.LLMHealth)
	})
}
