package engine

import (
	"context"
	"fmt"
	"strings"

	"orchconsole/api"
	"orchconsole/taskbuilder"
)

// Mutations never retry. On success they invalidate the affected cache
// prefixes and emit an event; the actor is the operator's username.

func (e *Engine) invalidate(ctx context.Context, entities ...string) {
	for _, ent := range entities {
		if err := e.cache.Invalidate(ctx, ent); err != nil {
			e.log.Warnf("engine: invalidate %s: %v", ent, err)
		}
	}
}

// CreateTask submits the builder's steps for node. An empty builder fails
// with taskbuilder.ErrNoSteps before anything is sent.
func (e *Engine) CreateTask(ctx context.Context, actor string, b *taskbuilder.Builder, meta taskbuilder.TaskMeta) (*api.CreateTaskResult, error) {
	meta.NodeID = strings.TrimSpace(meta.NodeID)
	if meta.NodeID == "" {
		return nil, api.ErrNodeIDRequired
	}
	if meta.CallerID == "" {
		meta.CallerID = actor
	}
	req, err := b.Request(meta)
	if err != nil {
		return nil, err
	}
	env, err := e.orch.CreateTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	res := &api.CreateTaskResult{}
	if env.Data != nil {
		res = env.Data
	}
	e.invalidate(ctx, KeyTasks, KeyTask)
	e.Events.Emit(Event{Type: EventTaskCreated, Actor: actor, Payload: TaskCreatedEvent{
		TaskID:     res.TaskID,
		TaskStatus: res.TaskStatus,
		NodeID:     meta.NodeID,
		Steps:      len(req.Payload.Steps),
	}})
	return res, nil
}

func (e *Engine) DeleteTask(ctx context.Context, actor string, taskID int64) error {
	if _, err := e.orch.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}
	e.invalidate(ctx, KeyTasks, KeyTask, KeyTaskLogs, KeyTaskAudit)
	e.Events.Emit(Event{Type: EventTaskDeleted, Actor: actor, Payload: TaskDeletedEvent{TaskID: taskID}})
	return nil
}

func (e *Engine) DeleteAgent(ctx context.Context, actor, agentID string) error {
	if _, err := e.orch.DeleteAgent(ctx, agentID); err != nil {
		return fmt.Errorf("delete agent %s: %w", agentID, err)
	}
	e.invalidate(ctx, KeyAgents, KeyAgent)
	e.Events.Emit(Event{Type: EventAgentDeleted, Actor: actor, Payload: AgentDeletedEvent{AgentID: agentID}})
	return nil
}

func (e *Engine) PublishPlugin(ctx context.Context, actor string, req *api.CreatePluginRequest) error {
	if _, err := e.orch.CreatePlugin(ctx, req); err != nil {
		return fmt.Errorf("publish plugin %s: %w", req.PluginID, err)
	}
	e.invalidate(ctx, KeyPlugins, KeyPlugin)
	e.Events.Emit(Event{Type: EventPluginPublished, Actor: actor, Payload: PluginEvent{
		PluginID:   req.PluginID,
		Version:    req.Version,
		DriverType: string(req.DriverType),
	}})
	return nil
}

func (e *Engine) UpdatePlugin(ctx context.Context, actor, pluginID string, req *api.UpdatePluginRequest) error {
	if _, err := e.orch.UpdatePlugin(ctx, pluginID, req); err != nil {
		return fmt.Errorf("update plugin %s: %w", pluginID, err)
	}
	e.invalidate(ctx, KeyPlugins, KeyPlugin)
	e.Events.Emit(Event{Type: EventPluginUpdated, Actor: actor, Payload: PluginEvent{
		PluginID:   pluginID,
		Version:    req.Version,
		DriverType: string(req.DriverType),
	}})
	return nil
}

func (e *Engine) DeletePlugin(ctx context.Context, actor, pluginID string) error {
	if _, err := e.orch.DeletePlugin(ctx, pluginID); err != nil {
		return fmt.Errorf("delete plugin %s: %w", pluginID, err)
	}
	e.invalidate(ctx, KeyPlugins, KeyPlugin)
	e.Events.Emit(Event{Type: EventPluginDeleted, Actor: actor, Payload: PluginEvent{PluginID: pluginID}})
	return nil
}

// CreateBootstrapToken mints a token for nodeID. The token is returned to the
// caller only; it is neither cached nor put on the event bus.
func (e *Engine) CreateBootstrapToken(ctx context.Context, actor, nodeID string, expiresIn *int, accessToken string) (*api.BootstrapToken, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return nil, api.ErrNodeIDRequired
	}
	if expiresIn != nil && *expiresIn <= 0 {
		return nil, fmt.Errorf("expires_in must be a positive number of seconds")
	}
	env, err := e.authn.CreateBootstrapToken(ctx, nodeID, expiresIn, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, fmt.Errorf("create bootstrap token: %w", err)
	}
	tok := &api.BootstrapToken{NodeID: nodeID}
	if env.Data != nil {
		tok = env.Data
	}
	e.Events.Emit(Event{Type: EventBootstrapTokenIssued, Actor: actor, Payload: BootstrapTokenIssuedEvent{
		NodeID:    tok.NodeID,
		ExpiresAt: tok.ExpiresAt,
	}})
	return tok, nil
}
