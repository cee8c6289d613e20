package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// ErrNodeIDRequired is returned by ListTasks before any request is made.
var ErrNodeIDRequired = errors.New("node_id is required")

const (
	defaultPage  = 1
	defaultLimit = 10
)

// OrchClient talks to the orchestration service.
type OrchClient struct {
	*Client
}

func NewOrchClient(baseURL string, opts ...Option) *OrchClient {
	return &OrchClient{Client: newClient("orch", baseURL, opts...)}
}

func pageParams(page, limit int) url.Values {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func (c *OrchClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*Envelope[CreateTaskResult], error) {
	return call[CreateTaskResult](ctx, c.Client, request{method: http.MethodPost, path: "/v1/client/tasks", body: req})
}

// ListTasks pages through the tasks of one node, optionally filtered by status.
func (c *OrchClient) ListTasks(ctx context.Context, q TaskQuery) (*Envelope[TaskPage], error) {
	if q.NodeID == "" {
		return nil, ErrNodeIDRequired
	}
	params := pageParams(q.Page, q.Limit)
	params.Set("node_id", q.NodeID)
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	return call[TaskPage](ctx, c.Client, request{method: http.MethodGet, path: "/v1/client/tasks", query: params})
}

func (c *OrchClient) GetTask(ctx context.Context, taskID int64) (*Envelope[TaskDetail], error) {
	return call[TaskDetail](ctx, c.Client, request{method: http.MethodGet, path: taskPath(taskID)})
}

func (c *OrchClient) DeleteTask(ctx context.Context, taskID int64) (*Envelope[struct{}], error) {
	return call[struct{}](ctx, c.Client, request{method: http.MethodDelete, path: taskPath(taskID)})
}

func (c *OrchClient) GetTaskLogs(ctx context.Context, taskID int64) (*Envelope[TaskLogs], error) {
	return call[TaskLogs](ctx, c.Client, request{method: http.MethodGet, path: taskPath(taskID) + "/logs"})
}

func (c *OrchClient) GetTaskAuditLogs(ctx context.Context, taskID int64) (*Envelope[TaskAuditLogs], error) {
	return call[TaskAuditLogs](ctx, c.Client, request{method: http.MethodGet, path: taskPath(taskID) + "/audit"})
}

func (c *OrchClient) ListAgents(ctx context.Context, q AgentQuery) (*Envelope[AgentPage], error) {
	params := pageParams(q.Page, q.Limit)
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	return call[AgentPage](ctx, c.Client, request{method: http.MethodGet, path: "/v1/client/agents", query: params})
}

// GetAgent looks an agent up by the node it runs on.
func (c *OrchClient) GetAgent(ctx context.Context, nodeID string) (*Envelope[AgentDetail], error) {
	return call[AgentDetail](ctx, c.Client, request{method: http.MethodGet, path: "/v1/client/agents/" + url.PathEscape(nodeID)})
}

func (c *OrchClient) DeleteAgent(ctx context.Context, agentID string) (*Envelope[struct{}], error) {
	return call[struct{}](ctx, c.Client, request{method: http.MethodDelete, path: "/v1/client/agents/" + url.PathEscape(agentID)})
}

func (c *OrchClient) ListPlugins(ctx context.Context) (*Envelope[PluginList], error) {
	return call[PluginList](ctx, c.Client, request{method: http.MethodGet, path: "/v1/client/plugins"})
}

func (c *OrchClient) GetPlugin(ctx context.Context, pluginID string) (*Envelope[PluginDetail], error) {
	return call[PluginDetail](ctx, c.Client, request{method: http.MethodGet, path: pluginPath(pluginID)})
}

// CreatePlugin publishes new plugin metadata. The request is validated first;
// an unknown driver type is never sent.
func (c *OrchClient) CreatePlugin(ctx context.Context, req *CreatePluginRequest) (*Envelope[PluginDetail], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return call[PluginDetail](ctx, c.Client, request{method: http.MethodPost, path: "/v1/client/plugins/publish", body: req})
}

func (c *OrchClient) UpdatePlugin(ctx context.Context, pluginID string, req *UpdatePluginRequest) (*Envelope[PluginDetail], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return call[PluginDetail](ctx, c.Client, request{method: http.MethodPut, path: pluginPath(pluginID), body: req})
}

func (c *OrchClient) DeletePlugin(ctx context.Context, pluginID string) (*Envelope[struct{}], error) {
	return call[struct{}](ctx, c.Client, request{method: http.MethodDelete, path: pluginPath(pluginID)})
}

func taskPath(taskID int64) string {
	return "/v1/client/tasks/" + strconv.FormatInt(taskID, 10)
}

func pluginPath(pluginID string) string {
	return "/v1/client/plugins/" + url.PathEscape(pluginID)
}
