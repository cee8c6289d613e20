// Package taskbuilder turns the steps an operator assembles in the console
// into the wire payload of a plugin.manage task.
package taskbuilder

import (
	"errors"
	"strings"

	"orchconsole/api"
)

// ErrNoSteps is returned when a task would be submitted without any step.
var ErrNoSteps = errors.New("please add at least one step")

// Step types understood by the orchestration service.
const (
	StepInstall       = "plugin.install"
	StepUninstall     = "plugin.uninstall"
	StepStart         = "plugin.start"
	StepStop          = "plugin.stop"
	StepRestart       = "plugin.restart"
	StepStatus        = "plugin.status"
	StepUpdateEnvVars = "plugin.update_env_vars"
)

// StepTypes lists every step type in the order the console offers them.
var StepTypes = []string{
	StepInstall,
	StepUninstall,
	StepStart,
	StepStop,
	StepRestart,
	StepStatus,
	StepUpdateEnvVars,
}

// SupportsEnvVars reports whether steps of this type carry env_vars.
func SupportsEnvVars(stepType string) bool {
	switch stepType {
	case StepInstall, StepStart, StepRestart, StepUpdateEnvVars:
		return true
	}
	return false
}

// SupportsInstance reports whether steps of this type carry options.instance.
func SupportsInstance(stepType string) bool {
	return stepType == StepStart || stepType == StepRestart
}

// SupportsForce reports whether steps of this type carry force.
func SupportsForce(stepType string) bool {
	return stepType == StepStop
}

type EnvVar struct {
	Key   string
	Value string
}

// Draft is one step as the operator is editing it. Fields that do not apply
// to StepType may still hold values; Steps drops them.
type Draft struct {
	Index    int
	StepType string
	PluginID string
	Instance string
	EnvVars  []EnvVar
	Force    *bool
}

// TaskMeta is the task-level part of a create request.
type TaskMeta struct {
	NodeID      string
	Description string
	CallerID    string
}

// Builder holds the ordered step drafts. Index always equals position.
type Builder struct {
	drafts []Draft
}

func New() *Builder {
	return &Builder{}
}

// Len returns the number of steps.
func (b *Builder) Len() int { return len(b.drafts) }

// Drafts returns a copy of the current drafts.
func (b *Builder) Drafts() []Draft {
	out := make([]Draft, len(b.drafts))
	for i, d := range b.drafts {
		d.EnvVars = append([]EnvVar(nil), d.EnvVars...)
		out[i] = d
	}
	return out
}

// AddStep appends an empty step of the given type and returns its index.
func (b *Builder) AddStep(stepType string) int {
	if stepType == "" {
		stepType = StepInstall
	}
	b.drafts = append(b.drafts, Draft{Index: len(b.drafts), StepType: stepType})
	return len(b.drafts) - 1
}

// Append adds a populated draft as is. Stale fields are kept until Steps.
func (b *Builder) Append(d Draft) {
	b.drafts = append(b.drafts, d)
	b.reindex()
}

func (b *Builder) RemoveStep(i int) bool {
	if !b.valid(i) {
		return false
	}
	b.drafts = append(b.drafts[:i], b.drafts[i+1:]...)
	b.reindex()
	return true
}

// MoveStep moves step from to position to, shifting the steps in between.
func (b *Builder) MoveStep(from, to int) bool {
	if !b.valid(from) || !b.valid(to) {
		return false
	}
	if from == to {
		return true
	}
	d := b.drafts[from]
	b.drafts = append(b.drafts[:from], b.drafts[from+1:]...)
	b.drafts = append(b.drafts[:to], append([]Draft{d}, b.drafts[to:]...)...)
	b.reindex()
	return true
}

// SetStepType changes a step's type, clearing env vars the new type does not
// support and force unless the new type is plugin.stop.
func (b *Builder) SetStepType(i int, stepType string) bool {
	if !b.valid(i) {
		return false
	}
	d := &b.drafts[i]
	d.StepType = stepType
	if !SupportsEnvVars(stepType) {
		d.EnvVars = nil
	}
	if !SupportsForce(stepType) {
		d.Force = nil
	}
	return true
}

func (b *Builder) SetPluginID(i int, pluginID string) bool {
	if !b.valid(i) {
		return false
	}
	b.drafts[i].PluginID = pluginID
	return true
}

func (b *Builder) SetInstance(i int, instance string) bool {
	if !b.valid(i) {
		return false
	}
	b.drafts[i].Instance = instance
	return true
}

// SetForce records the force checkbox. An unchecked box means "not set".
func (b *Builder) SetForce(i int, force bool) bool {
	if !b.valid(i) {
		return false
	}
	if force {
		v := true
		b.drafts[i].Force = &v
	} else {
		b.drafts[i].Force = nil
	}
	return true
}

// AddEnvVar appends an empty key/value row to step i.
func (b *Builder) AddEnvVar(i int) bool {
	if !b.valid(i) {
		return false
	}
	b.drafts[i].EnvVars = append(b.drafts[i].EnvVars, EnvVar{})
	return true
}

func (b *Builder) SetEnvVar(i, row int, key, value string) bool {
	if !b.valid(i) || row < 0 || row >= len(b.drafts[i].EnvVars) {
		return false
	}
	b.drafts[i].EnvVars[row] = EnvVar{Key: key, Value: value}
	return true
}

func (b *Builder) RemoveEnvVar(i, row int) bool {
	if !b.valid(i) || row < 0 || row >= len(b.drafts[i].EnvVars) {
		return false
	}
	vars := b.drafts[i].EnvVars
	b.drafts[i].EnvVars = append(vars[:row], vars[row+1:]...)
	return true
}

// Steps builds the wire steps in order. Only fields applicable to each step's
// type are attached.
func (b *Builder) Steps() []api.Step {
	steps := make([]api.Step, 0, len(b.drafts))
	for i, d := range b.drafts {
		p := &api.PluginStepPayload{PluginID: d.PluginID}
		if SupportsInstance(d.StepType) && d.Instance != "" {
			p.Options = &api.StepOptions{Instance: d.Instance}
		}
		if SupportsEnvVars(d.StepType) {
			p.EnvVars = envMap(d.EnvVars)
		}
		if SupportsForce(d.StepType) && d.Force != nil {
			f := *d.Force
			p.Force = &f
		}
		steps = append(steps, api.Step{Index: i, StepType: d.StepType, Plugin: p})
	}
	return steps
}

// Payload returns the task payload, or ErrNoSteps for an empty list.
func (b *Builder) Payload() (api.TaskPayload, error) {
	if len(b.drafts) == 0 {
		return api.TaskPayload{}, ErrNoSteps
	}
	return api.TaskPayload{Steps: b.Steps()}, nil
}

// Request assembles the full create-task request.
func (b *Builder) Request(meta TaskMeta) (*api.CreateTaskRequest, error) {
	payload, err := b.Payload()
	if err != nil {
		return nil, err
	}
	return &api.CreateTaskRequest{
		NodeID:      meta.NodeID,
		Type:        api.TaskTypePluginManage,
		Description: meta.Description,
		Payload:     payload,
		CallerID:    meta.CallerID,
	}, nil
}

func (b *Builder) valid(i int) bool {
	return i >= 0 && i < len(b.drafts)
}

func (b *Builder) reindex() {
	for i := range b.drafts {
		b.drafts[i].Index = i
	}
}

// envMap drops blank keys; later rows win on duplicates. Nil when nothing is
// left so the field is omitted.
func envMap(vars []EnvVar) map[string]string {
	var m map[string]string
	for _, v := range vars {
		if strings.TrimSpace(v.Key) == "" {
			continue
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[v.Key] = v.Value
	}
	return m
}
