package api

import (
	"fmt"
	"strings"
)

// Task status values reported by the orchestration service. The set is open:
// the console never rejects a status it does not know.
const (
	TaskQueued   = "queued"
	TaskReceived = "received"
	TaskRunning  = "running"
	TaskSuccess  = "success"
	TaskFailed   = "failed"
)

// TaskStatuses lists the known task states in lifecycle order.
var TaskStatuses = []string{TaskQueued, TaskReceived, TaskRunning, TaskSuccess, TaskFailed}

// AgentStatuses lists the stored agent states offered as filters.
var AgentStatuses = []string{"active", "inactive", "offline"}

// TaskTypePluginManage is the only task type the console submits.
const TaskTypePluginManage = "plugin.manage"

type Task struct {
	TaskID      int64       `json:"task_id"`
	NodeID      string      `json:"node_id"`
	AgentID     string      `json:"agent_id"`
	CallerID    string      `json:"caller_id"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Payload     TaskPayload `json:"payload"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

type TaskPayload struct {
	Steps []Step `json:"steps"`
}

type Step struct {
	Index    int                `json:"index"`
	StepType string             `json:"step_type"`
	Plugin   *PluginStepPayload `json:"plugin,omitempty"`
}

type PluginStepPayload struct {
	PluginID string            `json:"plugin_id"`
	Options  *StepOptions      `json:"options,omitempty"`
	EnvVars  map[string]string `json:"env_vars,omitempty"`
	Force    *bool             `json:"force,omitempty"`
}

type StepOptions struct {
	Instance string `json:"instance,omitempty"`
}

type CreateTaskRequest struct {
	NodeID      string      `json:"node_id"`
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Payload     TaskPayload `json:"payload"`
	CallerID    string      `json:"caller_id"`
}

type CreateTaskResult struct {
	TaskID     int64  `json:"task_id"`
	TaskStatus string `json:"task_status"`
}

type TaskQuery struct {
	NodeID string
	Status string
	Page   int
	Limit  int
}

type TaskPage struct {
	Tasks      []Task `json:"tasks"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
}

type TaskDetail struct {
	Task Task `json:"task"`
}

type LogEntry struct {
	StepIndex  int    `json:"step_index"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}

type TaskLogs struct {
	Logs []LogEntry `json:"logs"`
}

// ForStep returns the entries belonging to the step with the given index.
func (l *TaskLogs) ForStep(index int) []LogEntry {
	if l == nil {
		return nil
	}
	var out []LogEntry
	for _, e := range l.Logs {
		if e.StepIndex == index {
			out = append(out, e)
		}
	}
	return out
}

type AuditLog struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"task_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type TaskAuditLogs struct {
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Agent struct {
	AgentID    string            `json:"agent_id"`
	NodeID     string            `json:"node_id"`
	Status     string            `json:"status"`
	LastSeenAt string            `json:"last_seen_at"`
	Version    string            `json:"version"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

type AgentQuery struct {
	Status string
	Page   int
	Limit  int
}

type AgentPage struct {
	Agents     []Agent `json:"agents"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}

type AgentDetail struct {
	Agent Agent `json:"agent"`
}

// DriverType says how a plugin is executed on a node.
type DriverType string

const (
	DriverSystemd    DriverType = "systemd"
	DriverKubernetes DriverType = "kubernetes"
)

var DriverTypes = []DriverType{DriverSystemd, DriverKubernetes}

// ParseDriverType accepts exactly "systemd" or "kubernetes".
func ParseDriverType(s string) (DriverType, error) {
	switch DriverType(s) {
	case DriverSystemd, DriverKubernetes:
		return DriverType(s), nil
	}
	return "", fmt.Errorf("invalid driver type %q: want one of systemd, kubernetes", s)
}

type Plugin struct {
	PluginID      string     `json:"plugin_id"`
	PluginName    string     `json:"plugin_name"`
	PublisherName string     `json:"publisher_name"`
	PublishedAt   string     `json:"published_at"`
	ArtifactURL   string     `json:"artifact_url"`
	Version       string     `json:"version"`
	Description   string     `json:"description"`
	DriverType    DriverType `json:"driver_type"`
}

type PluginList struct {
	Plugins []Plugin `json:"plugins"`
}

type PluginDetail struct {
	Plugin Plugin `json:"plugin"`
}

type CreatePluginRequest struct {
	PluginID      string     `json:"plugin_id"`
	PluginName    string     `json:"plugin_name"`
	PublisherName string     `json:"publisher_name"`
	PublishedAt   string     `json:"published_at,omitempty"`
	ArtifactURL   string     `json:"artifact_url"`
	Version       string     `json:"version"`
	Description   string     `json:"description"`
	DriverType    DriverType `json:"driver_type"`
}

// Validate checks the fields the console can check before sending.
func (r *CreatePluginRequest) Validate() error {
	if strings.TrimSpace(r.PluginID) == "" {
		return fmt.Errorf("plugin_id is required")
	}
	if _, err := ParseDriverType(string(r.DriverType)); err != nil {
		return err
	}
	return nil
}

// UpdatePluginRequest carries every mutable field. plugin_id is the path
// parameter and never part of the body.
type UpdatePluginRequest struct {
	PluginName    string     `json:"plugin_name"`
	PublisherName string     `json:"publisher_name"`
	PublishedAt   string     `json:"published_at"`
	ArtifactURL   string     `json:"artifact_url"`
	Version       string     `json:"version"`
	Description   string     `json:"description"`
	DriverType    DriverType `json:"driver_type"`
}

func (r *UpdatePluginRequest) Validate() error {
	_, err := ParseDriverType(string(r.DriverType))
	return err
}

type CreateBootstrapTokenRequest struct {
	NodeID    string `json:"node_id"`
	ExpiresIn *int   `json:"expires_in,omitempty"`
}

type BootstrapToken struct {
	Token     string `json:"token"`
	NodeID    string `json:"node_id"`
	ExpiresAt string `json:"expires_at"`
}

type LoginRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthType     string `json:"auth_type"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by both login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type Introspection struct {
	Active   bool   `json:"active"`
	Exp      int64  `json:"exp,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
	AgentID  string `json:"agent_id,omitempty"`
	NodeID   string `json:"node_id,omitempty"`
	AuthType string `json:"auth_type,omitempty"`
}
