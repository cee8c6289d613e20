package www

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"orchconsole/api"
)

func (h *Handlers) handleAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	page := intQuery(q, "page", 1)

	data := h.pageData(w, r, "agents")
	data["FilterStatus"] = status
	data["Statuses"] = api.AgentStatuses

	env, err := h.engine.Agents(r.Context(), api.AgentQuery{
		Status: status,
		Page:   page,
		Limit:  h.pageSize,
	})
	if err != nil {
		h.log.Warnf("agents: list: %v", err)
		data["Error"] = errorMessage(err)
	} else if env.Data != nil {
		data["Agents"] = h.engine.AgentViews(env.Data)
		data["Pager"] = newPager("/agents", url.Values{"status": {status}}, page, env.Data.TotalPages)
	}
	h.render(w, "agents.html", data)
}

func (h *Handlers) handleAgentDelete(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if err := h.engine.DeleteAgent(r.Context(), h.getUsername(r), agentID); err != nil {
		h.log.Errorf("agents: delete %s: %v", agentID, err)
		h.addFlash(w, r, flashError, "Failed to delete agent "+agentID+": "+errorMessage(err))
	} else {
		h.addFlash(w, r, flashSuccess, "Agent "+agentID+" deleted")
	}
	http.Redirect(w, r, "/agents", http.StatusSeeOther)
}
