package www

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orchconsole/api"
	"orchconsole/engine"
	"orchconsole/query"
)

// Error codes for failures raised by the console itself.
const (
	errCodeBadRequest  = "BAD_REQUEST"
	errCodeUnavailable = "BACKEND_UNAVAILABLE"
)

func (h *Handlers) apiListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	env, err := h.engine.Tasks(r.Context(), api.TaskQuery{
		NodeID: q.Get("node_id"),
		Status: q.Get("status"),
		Page:   intQuery(q, "page", 1),
		Limit:  intQuery(q, "limit", h.pageSize),
	})
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

func (h *Handlers) apiGetTask(w http.ResponseWriter, r *http.Request) {
	id := engine.ParseTaskID(chi.URLParam(r, "taskID"))
	if id == 0 {
		h.jsonError(w, "invalid task id", errCodeBadRequest, http.StatusBadRequest)
		return
	}
	env, err := h.engine.Task(r.Context(), id)
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

func (h *Handlers) apiTaskLogs(w http.ResponseWriter, r *http.Request) {
	id := engine.ParseTaskID(chi.URLParam(r, "taskID"))
	if id == 0 {
		h.jsonError(w, "invalid task id", errCodeBadRequest, http.StatusBadRequest)
		return
	}
	env, err := h.engine.TaskLogs(r.Context(), id)
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

func (h *Handlers) apiTaskAudit(w http.ResponseWriter, r *http.Request) {
	id := engine.ParseTaskID(chi.URLParam(r, "taskID"))
	if id == 0 {
		h.jsonError(w, "invalid task id", errCodeBadRequest, http.StatusBadRequest)
		return
	}
	env, err := h.engine.TaskAudit(r.Context(), id)
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

// agentViewPage is an agent page with derived statuses filled in.
type agentViewPage struct {
	Agents     []engine.AgentView `json:"agents"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

func (h *Handlers) apiListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	env, err := h.engine.Agents(r.Context(), api.AgentQuery{
		Status: q.Get("status"),
		Page:   intQuery(q, "page", 1),
		Limit:  intQuery(q, "limit", h.pageSize),
	})
	if err != nil {
		h.apiError(w, err)
		return
	}
	out := api.Envelope[agentViewPage]{Status: env.Status, Message: env.Message, ErrorCode: env.ErrorCode}
	if env.Data != nil {
		out.Data = &agentViewPage{
			Agents:     h.engine.AgentViews(env.Data),
			Total:      env.Data.Total,
			Page:       env.Data.Page,
			Limit:      env.Data.Limit,
			TotalPages: env.Data.TotalPages,
		}
	}
	h.jsonOK(w, out)
}

func (h *Handlers) apiGetAgent(w http.ResponseWriter, r *http.Request) {
	env, err := h.engine.Agent(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

func (h *Handlers) apiListPlugins(w http.ResponseWriter, r *http.Request) {
	env, err := h.engine.Plugins(r.Context())
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

func (h *Handlers) apiGetPlugin(w http.ResponseWriter, r *http.Request) {
	env, err := h.engine.Plugin(r.Context(), chi.URLParam(r, "pluginID"))
	if err != nil {
		h.apiError(w, err)
		return
	}
	h.jsonOK(w, env)
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	backends := h.engine.Health()
	status := api.StatusSuccess
	for _, b := range backends {
		if !b.Connected {
			status = api.StatusError
		}
	}
	h.jsonOK(w, map[string]any{
		"status":  status,
		"message": "",
		"data": map[string]any{
			"backends":   backends,
			"stale_time": h.engine.Cache().StaleTime().String(),
		},
	})
}

// apiError writes err as an error envelope. Backend errors keep their HTTP
// status and envelope.
func (h *Handlers) apiError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.HTTPStatus)
		json.NewEncoder(w).Encode(apiErr.Envelope())
	case errors.Is(err, query.ErrDisabled), errors.Is(err, api.ErrNodeIDRequired):
		h.jsonError(w, api.ErrNodeIDRequired.Error(), errCodeBadRequest, http.StatusBadRequest)
	default:
		h.log.Warnf("api: %v", err)
		h.jsonError(w, err.Error(), errCodeUnavailable, http.StatusBadGateway)
	}
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     api.StatusError,
		"message":    msg,
		"error_code": code,
		"data":       nil,
	})
}

// errorMessage is the text shown to an operator for a failed call.
func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, query.ErrDisabled) {
		return api.ErrNodeIDRequired.Error()
	}
	return err.Error()
}
