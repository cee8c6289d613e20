package www

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"orchconsole/api"
	"orchconsole/engine"
	"orchconsole/query"
)

func (h *Handlers) handleTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nodeID := strings.TrimSpace(q.Get("node_id"))
	status := q.Get("status")
	page := intQuery(q, "page", 1)

	data := h.pageData(w, r, "tasks")
	data["NodeID"] = nodeID
	data["FilterStatus"] = status
	data["Statuses"] = api.TaskStatuses

	env, err := h.engine.Tasks(r.Context(), api.TaskQuery{
		NodeID: nodeID,
		Status: status,
		Page:   page,
		Limit:  h.pageSize,
	})
	switch {
	case errors.Is(err, query.ErrDisabled):
		// No node selected yet.
	case err != nil:
		h.log.Warnf("tasks: list for %s: %v", nodeID, err)
		data["Error"] = errorMessage(err)
	case env.Data != nil:
		data["Tasks"] = env.Data.Tasks
		data["Pager"] = newPager("/tasks", url.Values{"node_id": {nodeID}, "status": {status}}, page, env.Data.TotalPages)
	}
	h.render(w, "tasks.html", data)
}

// stepView is a task step with the log entries it produced.
type stepView struct {
	api.Step
	Logs []api.LogEntry
}

func (h *Handlers) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	id := engine.ParseTaskID(chi.URLParam(r, "taskID"))
	if id == 0 {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	data := h.pageData(w, r, "tasks")
	data["TaskID"] = id

	taskEnv, err := h.engine.Task(r.Context(), id)
	if err != nil {
		h.log.Warnf("tasks: get %d: %v", id, err)
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusNotFound {
			w.WriteHeader(http.StatusNotFound)
		}
		data["Error"] = errorMessage(err)
		h.render(w, "task_detail.html", data)
		return
	}
	if taskEnv.Data == nil {
		w.WriteHeader(http.StatusNotFound)
		data["Error"] = "Task not found"
		h.render(w, "task_detail.html", data)
		return
	}
	task := taskEnv.Data.Task
	data["Task"] = task

	var logs *api.TaskLogs
	if env, err := h.engine.TaskLogs(r.Context(), id); err != nil {
		h.log.Warnf("tasks: logs for %d: %v", id, err)
		data["LogsError"] = errorMessage(err)
	} else {
		logs = env.Data
	}
	steps := make([]stepView, len(task.Payload.Steps))
	for i, s := range task.Payload.Steps {
		steps[i] = stepView{Step: s, Logs: logs.ForStep(s.Index)}
	}
	data["Steps"] = steps

	if env, err := h.engine.TaskAudit(r.Context(), id); err != nil {
		h.log.Warnf("tasks: audit for %d: %v", id, err)
		data["AuditError"] = errorMessage(err)
	} else if env.Data != nil {
		data["AuditLogs"] = env.Data.AuditLogs
	}

	h.render(w, "task_detail.html", data)
}

func (h *Handlers) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id := engine.ParseTaskID(chi.URLParam(r, "taskID"))
	if id == 0 {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	back := "/tasks"
	if node := strings.TrimSpace(r.FormValue("node_id")); node != "" {
		back += "?node_id=" + url.QueryEscape(node)
	}

	if err := h.engine.DeleteTask(r.Context(), h.getUsername(r), id); err != nil {
		h.log.Errorf("tasks: delete %d: %v", id, err)
		h.addFlash(w, r, flashError, fmt.Sprintf("Failed to delete task %d: %s", id, errorMessage(err)))
	} else {
		h.addFlash(w, r, flashSuccess, fmt.Sprintf("Task %d deleted", id))
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
