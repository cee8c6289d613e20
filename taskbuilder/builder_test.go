package taskbuilder

import (
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

func assertContiguous(t *testing.T, b *Builder) {
	t.Helper()
	for i, d := range b.Drafts() {
		if d.Index != i {
			t.Errorf("draft %d Index = %d", i, d.Index)
		}
	}
	for i, s := range b.Steps() {
		if s.Index != i {
			t.Errorf("step %d Index = %d", i, s.Index)
		}
	}
}

func TestIndexAfterEdits(t *testing.T) {
	b := New()
	for _, st := range []string{StepInstall, StepStart, StepStop, StepRestart, StepStatus} {
		b.AddStep(st)
	}
	b.SetPluginID(0, "a")
	b.SetPluginID(4, "e")
	assertContiguous(t, b)

	if !b.RemoveStep(1) {
		t.Fatal("RemoveStep(1) = false")
	}
	assertContiguous(t, b)

	if !b.MoveStep(3, 0) {
		t.Fatal("MoveStep(3, 0) = false")
	}
	assertContiguous(t, b)
	d := b.Drafts()
	if d[0].PluginID != "e" || d[1].PluginID != "a" {
		t.Errorf("order after move = %q, %q; want e, a", d[0].PluginID, d[1].PluginID)
	}

	if !b.MoveStep(0, 3) {
		t.Fatal("MoveStep(0, 3) = false")
	}
	assertContiguous(t, b)
	if got := b.Drafts()[3].PluginID; got != "e" {
		t.Errorf("last PluginID = %q, want e", got)
	}

	if b.RemoveStep(9) || b.MoveStep(0, 9) {
		t.Error("out of range edits reported success")
	}
}

func TestEmptyListRejected(t *testing.T) {
	b := New()
	if _, err := b.Payload(); !errors.Is(err, ErrNoSteps) {
		t.Errorf("Payload err = %v, want ErrNoSteps", err)
	}
	req, err := b.Request(TaskMeta{NodeID: "n1"})
	if !errors.Is(err, ErrNoSteps) || req != nil {
		t.Errorf("Request = %v, %v; want nil, ErrNoSteps", req, err)
	}
}

func TestEnvVarsOnlyForSupportedTypes(t *testing.T) {
	for _, st := range StepTypes {
		b := New()
		b.Append(Draft{StepType: st, PluginID: "p", EnvVars: []EnvVar{{Key: "A", Value: "1"}}})
		got := b.Steps()[0].Plugin.EnvVars
		if SupportsEnvVars(st) {
			if !reflect.DeepEqual(got, map[string]string{"A": "1"}) {
				t.Errorf("%s env_vars = %v, want A=1", st, got)
			}
		} else if got != nil {
			t.Errorf("%s env_vars = %v, want none", st, got)
		}
	}
}

func TestForceOnlyForStop(t *testing.T) {
	yes := true
	for _, st := range StepTypes {
		b := New()
		b.Append(Draft{StepType: st, PluginID: "p", Force: &yes})
		got := b.Steps()[0].Plugin.Force
		if st == StepStop {
			if got == nil || !*got {
				t.Errorf("%s force = %v, want true", st, got)
			}
		} else if got != nil {
			t.Errorf("%s force = %v, want absent", st, *got)
		}
	}
}

func TestInstanceOnlyForStartRestart(t *testing.T) {
	for _, st := range StepTypes {
		b := New()
		b.Append(Draft{StepType: st, PluginID: "p", Instance: "blue"})
		opts := b.Steps()[0].Plugin.Options
		if st == StepStart || st == StepRestart {
			if opts == nil || opts.Instance != "blue" {
				t.Errorf("%s options = %+v, want instance blue", st, opts)
			}
		} else if opts != nil {
			t.Errorf("%s options = %+v, want none", st, opts)
		}
	}

	b := New()
	b.AddStep(StepStart)
	if opts := b.Steps()[0].Plugin.Options; opts != nil {
		t.Errorf("empty instance options = %+v, want none", opts)
	}
}

func TestBlankKeysDropped(t *testing.T) {
	b := New()
	b.Append(Draft{
		StepType: StepInstall,
		PluginID: "p",
		EnvVars: []EnvVar{
			{Key: "", Value: "x"},
			{Key: "A", Value: "1"},
			{Key: "   ", Value: "y"},
		},
	})
	got := b.Steps()[0].Plugin.EnvVars
	if !reflect.DeepEqual(got, map[string]string{"A": "1"}) {
		t.Errorf("env_vars = %v, want {A:1}", got)
	}
}

func TestDuplicateKeysLastWins(t *testing.T) {
	b := New()
	b.Append(Draft{StepType: StepStart, PluginID: "p", EnvVars: []EnvVar{{"A", "1"}, {"A", "2"}}})
	if got := b.Steps()[0].Plugin.EnvVars["A"]; got != "2" {
		t.Errorf("A = %q, want 2", got)
	}
}

func TestOnlyBlankKeysOmitted(t *testing.T) {
	b := New()
	b.Append(Draft{StepType: StepInstall, PluginID: "p", EnvVars: []EnvVar{{Key: " ", Value: "x"}}})
	data, _ := json.Marshal(b.Steps()[0])
	if strings.Contains(string(data), `"env_vars"`) {
		t.Errorf("env_vars present in %s", data)
	}
}

func TestSetStepTypeClears(t *testing.T) {
	b := New()
	i := b.AddStep(StepInstall)
	b.AddEnvVar(i)
	b.SetEnvVar(i, 0, "A", "1")
	b.SetStepType(i, StepStop)
	b.SetForce(i, true)

	d := b.Drafts()[i]
	if d.EnvVars != nil {
		t.Errorf("EnvVars = %v after switch to stop, want cleared", d.EnvVars)
	}
	if d.Force == nil || !*d.Force {
		t.Fatal("Force not set on stop step")
	}

	b.SetStepType(i, StepRestart)
	if b.Drafts()[i].Force != nil {
		t.Error("Force kept after switch to restart")
	}
}

func TestSetForceFalseUnsets(t *testing.T) {
	b := New()
	i := b.AddStep(StepStop)
	b.SetForce(i, true)
	b.SetForce(i, false)
	if b.Drafts()[i].Force != nil {
		t.Error("Force = false should unset")
	}
	data, _ := json.Marshal(b.Steps()[0])
	if strings.Contains(string(data), `"force"`) {
		t.Errorf("force present in %s", data)
	}
}

func TestEnvVarRows(t *testing.T) {
	b := New()
	i := b.AddStep(StepUpdateEnvVars)
	b.AddEnvVar(i)
	b.AddEnvVar(i)
	b.SetEnvVar(i, 0, "A", "1")
	b.SetEnvVar(i, 1, "B", "2")
	b.RemoveEnvVar(i, 0)
	got := b.Steps()[0].Plugin.EnvVars
	if !reflect.DeepEqual(got, map[string]string{"B": "2"}) {
		t.Errorf("env_vars = %v, want {B:2}", got)
	}
	if b.SetEnvVar(i, 5, "X", "y") {
		t.Error("SetEnvVar on missing row reported success")
	}
}

func TestRequestBody(t *testing.T) {
	b := New()
	b.Append(Draft{StepType: StepInstall, PluginID: "p1", EnvVars: []EnvVar{{Key: "FOO", Value: "bar"}}})
	req, err := b.Request(TaskMeta{NodeID: "n1", CallerID: "admin"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"node_id":"n1","type":"plugin.manage","payload":{"steps":[{"index":0,"step_type":"plugin.install","plugin":{"plugin_id":"p1","env_vars":{"FOO":"bar"}}}]},"caller_id":"admin"}`
	if string(data) != want {
		t.Errorf("body =\n%s\nwant\n%s", data, want)
	}
}

func TestParseForm(t *testing.T) {
	form := url.Values{
		"steps.1.type":        {StepStop},
		"steps.1.prev_type":   {StepStop},
		"steps.1.plugin_id":   {"nginx"},
		"steps.1.force":       {"on"},
		"steps.0.type":        {StepStart},
		"steps.0.prev_type":   {StepStart},
		"steps.0.plugin_id":   {" redis "},
		"steps.0.instance":    {"main"},
		"steps.0.env.0.key":   {"PORT"},
		"steps.0.env.0.value": {"6379"},
		"steps.0.env.2.key":   {""},
		"steps.0.env.2.value": {"junk"},
	}
	b, err := ParseForm(form)
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}
	steps := b.Steps()
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}
	if steps[0].Plugin.PluginID != "redis" {
		t.Errorf("PluginID = %q, want redis", steps[0].Plugin.PluginID)
	}
	if steps[0].Plugin.Options == nil || steps[0].Plugin.Options.Instance != "main" {
		t.Errorf("Options = %+v, want instance main", steps[0].Plugin.Options)
	}
	if !reflect.DeepEqual(steps[0].Plugin.EnvVars, map[string]string{"PORT": "6379"}) {
		t.Errorf("EnvVars = %v", steps[0].Plugin.EnvVars)
	}
	if len(b.Drafts()[0].EnvVars) != 2 {
		t.Errorf("draft rows = %d, want 2 (blank row kept for editing)", len(b.Drafts()[0].EnvVars))
	}
	if steps[1].Plugin.Force == nil || !*steps[1].Plugin.Force {
		t.Error("force not parsed on stop step")
	}
}

func TestParseFormTypeChangeClears(t *testing.T) {
	form := url.Values{
		"steps.0.type":        {StepStatus},
		"steps.0.prev_type":   {StepInstall},
		"steps.0.plugin_id":   {"p"},
		"steps.0.env.0.key":   {"A"},
		"steps.0.env.0.value": {"1"},
	}
	b, err := ParseForm(form)
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}
	d := b.Drafts()[0]
	if d.StepType != StepStatus {
		t.Errorf("StepType = %q, want %q", d.StepType, StepStatus)
	}
	if d.EnvVars != nil {
		t.Errorf("EnvVars = %v, want cleared", d.EnvVars)
	}
}

func TestParseFormBadIndex(t *testing.T) {
	if _, err := ParseForm(url.Values{"steps.x.type": {StepStart}}); err == nil {
		t.Error("expected error for non-numeric index")
	}
}

func TestValuesRoundTrip(t *testing.T) {
	b := New()
	b.Append(Draft{StepType: StepRestart, PluginID: "p", Instance: "i", EnvVars: []EnvVar{{"K", "V"}}})
	yes := true
	b.Append(Draft{StepType: StepStop, PluginID: "q", Force: &yes})

	back, err := ParseForm(b.Values())
	if err != nil {
		t.Fatalf("ParseForm: %v", err)
	}
	if !reflect.DeepEqual(back.Steps(), b.Steps()) {
		t.Errorf("steps differ after round trip:\n%+v\n%+v", back.Steps(), b.Steps())
	}
}
