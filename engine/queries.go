package engine

import (
	"context"
	"sort"
	"strconv"

	"orchconsole/agentstatus"
	"orchconsole/api"
	"orchconsole/query"
)

// Cache key entities.
const (
	KeyTasks     = "tasks"
	KeyTask      = "task"
	KeyTaskLogs  = "task-logs"
	KeyTaskAudit = "task-audit"
	KeyAgents    = "agents"
	KeyAgent     = "agent"
	KeyPlugins   = "plugins"
	KeyPlugin    = "plugin"
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}

// Tasks lists one node's tasks. It is disabled without a node ID.
func (e *Engine) Tasks(ctx context.Context, q api.TaskQuery) (*api.Envelope[api.TaskPage], error) {
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.TaskPage]]{
		Key:      query.NewKey(KeyTasks, q.NodeID, q.Status, q.Page, q.Limit),
		Disabled: q.NodeID == "",
		Fn: func(ctx context.Context) (*api.Envelope[api.TaskPage], error) {
			return e.orch.ListTasks(ctx, q)
		},
	})
}

func (e *Engine) Task(ctx context.Context, taskID int64) (*api.Envelope[api.TaskDetail], error) {
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.TaskDetail]]{
		Key:      query.NewKey(KeyTask, taskID),
		Disabled: taskID == 0,
		Fn: func(ctx context.Context) (*api.Envelope[api.TaskDetail], error) {
			return e.orch.GetTask(ctx, taskID)
		},
	})
}

func (e *Engine) TaskLogs(ctx context.Context, taskID int64) (*api.Envelope[api.TaskLogs], error) {
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.TaskLogs]]{
		Key:      query.NewKey(KeyTaskLogs, taskID),
		Disabled: taskID == 0,
		Fn: func(ctx context.Context) (*api.Envelope[api.TaskLogs], error) {
			return e.orch.GetTaskLogs(ctx, taskID)
		},
	})
}

// TaskAudit returns the task's audit trail in ascending id order.
func (e *Engine) TaskAudit(ctx context.Context, taskID int64) (*api.Envelope[api.TaskAuditLogs], error) {
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.TaskAuditLogs]]{
		Key:      query.NewKey(KeyTaskAudit, taskID),
		Disabled: taskID == 0,
		Fn: func(ctx context.Context) (*api.Envelope[api.TaskAuditLogs], error) {
			env, err := e.orch.GetTaskAuditLogs(ctx, taskID)
			if err != nil {
				return nil, err
			}
			if env.Data != nil {
				logs := env.Data.AuditLogs
				sort.SliceStable(logs, func(i, j int) bool { return logs[i].ID < logs[j].ID })
			}
			return env, nil
		},
	})
}

func (e *Engine) Agents(ctx context.Context, q api.AgentQuery) (*api.Envelope[api.AgentPage], error) {
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.AgentPage]]{
		Key: query.NewKey(KeyAgents, q.Status, q.Page, q.Limit),
		Fn: func(ctx context.Context) (*api.Envelope[api.AgentPage], error) {
			return e.orch.ListAgents(ctx, q)
		},
	})
}

// Agent looks an agent up by node. It is disabled without a node ID.
func (e *Engine) Agent(ctx context.Context, nodeID string) (*api.Envelope[api.AgentDetail], error) {
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.AgentDetail]]{
		Key:      query.NewKey(KeyAgent, nodeID),
		Disabled: nodeID == "",
		Fn: func(ctx context.Context) (*api.Envelope[api.AgentDetail], error) {
			return e.orch.GetAgent(ctx, nodeID)
		},
	})
}

func (e *Engine) Plugins(ctx context.Context) (*api.Envelope[api.PluginList], error) {
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.PluginList]]{
		Key: query.NewKey(KeyPlugins),
		Fn: func(ctx context.Context) (*api.Envelope[api.PluginList], error) {
			return e.orch.ListPlugins(ctx)
		},
	})
}

func (e *Engine) Plugin(ctx context.Context, pluginID string) (*api.Envelope[api.PluginDetail], error) {
	return query.Fetch(ctx, e.cache, query.Query[*api.Envelope[api.PluginDetail]]{
		Key:      query.NewKey(KeyPlugin, pluginID),
		Disabled: pluginID == "",
		Fn: func(ctx context.Context) (*api.Envelope[api.PluginDetail], error) {
			return e.orch.GetPlugin(ctx, pluginID)
		},
	})
}

// AgentView is an agent together with its derived display status.
type AgentView struct {
	api.Agent
	Derived agentstatus.Derived `json:"derived"`
}

// AgentViews derives the display status of every agent on a page.
func (e *Engine) AgentViews(page *api.AgentPage) []AgentView {
	if page == nil {
		return nil
	}
	out := make([]AgentView, len(page.Agents))
	for i, a := range page.Agents {
		out[i] = AgentView{Agent: a, Derived: e.status.Derive(a.LastSeenAt, a.Status)}
	}
	return out
}

// ParseTaskID parses a task id path parameter; 0 means invalid.
func ParseTaskID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
