package engine

import "orchconsole/messaging"

const (
	EventTaskCreated EventType = iota + 1
	EventTaskDeleted
	EventAgentDeleted
	EventPluginPublished
	EventPluginUpdated
	EventPluginDeleted
	EventBootstrapTokenIssued
	EventCacheInvalidated
	EventBackendConnected
	EventBackendDisconnected
)

var eventNames = map[EventType]string{
	EventTaskCreated:          "task created",
	EventTaskDeleted:          "task deleted",
	EventAgentDeleted:         "agent deleted",
	EventPluginPublished:      "plugin published",
	EventPluginUpdated:        "plugin updated",
	EventPluginDeleted:        "plugin deleted",
	EventBootstrapTokenIssued: "bootstrap token issued",
	EventCacheInvalidated:     "cache invalidated",
	EventBackendConnected:     "backend connected",
	EventBackendDisconnected:  "backend disconnected",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// activityTypes maps the events that go on the activity stream to their
// message type.
var activityTypes = map[EventType]string{
	EventTaskCreated:          messaging.TypeTaskCreated,
	EventTaskDeleted:          messaging.TypeTaskDeleted,
	EventAgentDeleted:         messaging.TypeAgentDeleted,
	EventPluginPublished:      messaging.TypePluginPublished,
	EventPluginUpdated:        messaging.TypePluginUpdated,
	EventPluginDeleted:        messaging.TypePluginDeleted,
	EventBootstrapTokenIssued: messaging.TypeBootstrapIssued,
}

// --- Event payloads ---

type TaskCreatedEvent struct {
	TaskID     int64  `json:"task_id"`
	TaskStatus string `json:"task_status"`
	NodeID     string `json:"node_id"`
	Steps      int    `json:"steps"`
}

type TaskDeletedEvent struct {
	TaskID int64 `json:"task_id"`
}

type AgentDeletedEvent struct {
	AgentID string `json:"agent_id"`
}

type PluginEvent struct {
	PluginID   string `json:"plugin_id"`
	Version    string `json:"version,omitempty"`
	DriverType string `json:"driver_type,omitempty"`
}

// BootstrapTokenIssuedEvent never carries the token itself.
type BootstrapTokenIssuedEvent struct {
	NodeID    string `json:"node_id"`
	ExpiresAt string `json:"expires_at"`
}

type CacheInvalidatedEvent struct {
	Prefix string
}

type ConnectionEvent struct {
	Service string
	Detail  string
}
