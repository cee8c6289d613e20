package www

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"orchconsole/api"
	"orchconsole/taskbuilder"
)

// The task form posts back to itself for every edit. The clicked button's
// "action" value says what to do with the steps parsed from the form:
//
//	add_step            append a plugin.install step
//	remove_step:N       drop step N
//	move_up:N           swap step N with N-1
//	move_down:N         swap step N with N+1
//	add_env:N           add an empty env var row to step N
//	remove_env:N:M      drop env var row M of step N
//	submit              create the task
//
// Anything else (including a bare type change) just re-renders.

func (h *Handlers) handleTaskNew(w http.ResponseWriter, r *http.Request) {
	h.renderTaskForm(w, r, taskbuilder.New(), taskForm{
		NodeID: r.URL.Query().Get("node_id"),
	}, "")
}

// taskForm holds the task-level fields of the form.
type taskForm struct {
	NodeID      string
	Description string
	CallerID    string
}

func (h *Handlers) handleTaskBuilder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := taskbuilder.ParseForm(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := taskForm{
		NodeID:      strings.TrimSpace(r.PostFormValue("node_id")),
		Description: r.PostFormValue("description"),
		CallerID:    strings.TrimSpace(r.PostFormValue("caller_id")),
	}

	action, args := splitAction(r.PostFormValue("action"))
	switch action {
	case "add_step":
		b.AddStep(taskbuilder.StepInstall)
	case "remove_step":
		if len(args) == 1 {
			b.RemoveStep(args[0])
		}
	case "move_up":
		if len(args) == 1 {
			b.MoveStep(args[0], args[0]-1)
		}
	case "move_down":
		if len(args) == 1 {
			b.MoveStep(args[0], args[0]+1)
		}
	case "add_env":
		if len(args) == 1 {
			b.AddEnvVar(args[0])
		}
	case "remove_env":
		if len(args) == 2 {
			b.RemoveEnvVar(args[0], args[1])
		}
	case "submit":
		h.submitTask(w, r, b, form)
		return
	}
	h.renderTaskForm(w, r, b, form, "")
}

func (h *Handlers) submitTask(w http.ResponseWriter, r *http.Request, b *taskbuilder.Builder, form taskForm) {
	actor := h.getUsername(r)
	res, err := h.engine.CreateTask(r.Context(), actor, b, taskbuilder.TaskMeta{
		NodeID:      form.NodeID,
		Description: form.Description,
		CallerID:    form.CallerID,
	})
	if err != nil {
		msg := errorMessage(err)
		switch {
		case errors.Is(err, taskbuilder.ErrNoSteps):
			msg = "Please add at least one step"
		case errors.Is(err, api.ErrNodeIDRequired):
			msg = "Node ID is required"
		default:
			h.log.Errorf("tasks: create for %s: %v", form.NodeID, err)
			msg = "Failed to create task: " + msg
		}
		h.renderTaskForm(w, r, b, form, msg)
		return
	}
	h.addFlash(w, r, flashSuccess, fmt.Sprintf("Task %d created (%s)", res.TaskID, res.TaskStatus))
	http.Redirect(w, r, "/tasks?node_id="+url.QueryEscape(form.NodeID), http.StatusSeeOther)
}

func (h *Handlers) renderTaskForm(w http.ResponseWriter, r *http.Request, b *taskbuilder.Builder, form taskForm, errMsg string) {
	data := h.pageData(w, r, "tasks")
	data["Form"] = form
	data["Drafts"] = b.Drafts()
	data["StepTypes"] = taskbuilder.StepTypes
	if errMsg != "" {
		data["Error"] = errMsg
	}
	// The plugin list only feeds the plugin ID suggestions.
	if env, err := h.engine.Plugins(r.Context()); err != nil {
		h.log.Debugf("tasks: plugin suggestions: %v", err)
	} else if env.Data != nil {
		data["Plugins"] = env.Data.Plugins
	}
	if errMsg != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	h.render(w, "task_new.html", data)
}

// splitAction splits "name:1:2" into its name and integer arguments.
// Malformed arguments are dropped.
func splitAction(s string) (string, []int) {
	parts := strings.Split(s, ":")
	var args []int
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return parts[0], nil
		}
		args = append(args, n)
	}
	return parts[0], args
}
