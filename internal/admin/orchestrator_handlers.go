package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ferro-labs/agentrouter/audit"
	"github.com/ferro-labs/agentrouter/registry"
	"github.com/go-chi/chi/v5"
)

// AgentRegistry is the minimal registry.Registry surface admin needs.
type AgentRegistry interface {
	List() []registry.Descriptor
}

// AuditReader is the minimal audit read surface admin needs, satisfied by
// *audit.SQLSink.
type AuditReader interface {
	ByID(ctx context.Context, queryID string) (audit.Summary, bool, error)
}

// OrchestratorHandlers holds the admin endpoints for the Agent Orchestration
// Core: listing registered agents and looking up a query's audit trace.
type OrchestratorHandlers struct {
	Registry AgentRegistry
	Audit    *audit.SQLSink // nil when audit persistence isn't SQL-backed
}

// Routes returns a chi.Router with the orchestrator admin endpoints
// mounted. Callers should mount it alongside Handlers.Routes() under
// /admin, behind the same AuthMiddleware.
func (h *OrchestratorHandlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireScope(ScopeReadOnly, ScopeAdmin))
	r.Get("/registry", h.listRegistry)
	r.Get("/audit/{query_id}", h.getAudit)
	return r
}

func (h *OrchestratorHandlers) listRegistry(w http.ResponseWriter, _ *http.Request) {
	var descriptors []registry.Descriptor
	if h.Registry != nil {
		descriptors = h.Registry.List()
	}
	if descriptors == nil {
		descriptors = []registry.Descriptor{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": descriptors,
		"summary": map[string]interface{}{
			"total": len(descriptors),
		},
	})
}

func (h *OrchestratorHandlers) getAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusNotImplemented, "audit persistence is not enabled")
		return
	}
	queryID := chi.URLParam(r, "query_id")
	summary, ok, err := h.Audit.ByID(r.Context(), queryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit trace")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "audit trace not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}
