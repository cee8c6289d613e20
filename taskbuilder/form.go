package taskbuilder

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ParseForm rebuilds a Builder from the task form. Step fields are named
// steps.N.type, steps.N.prev_type, steps.N.plugin_id, steps.N.instance,
// steps.N.force and steps.N.env.M.key / steps.N.env.M.value. Steps are taken
// in ascending N and renumbered from zero.
//
// When prev_type is present and differs from type, the type change is applied
// through SetStepType so fields the new type cannot carry are cleared.
func ParseForm(form url.Values) (*Builder, error) {
	stepIdx, err := indexesUnder(form, "steps.")
	if err != nil {
		return nil, err
	}

	b := New()
	for _, n := range stepIdx {
		prefix := "steps." + strconv.Itoa(n) + "."
		prevType := strings.TrimSpace(form.Get(prefix + "prev_type"))
		stepType := strings.TrimSpace(form.Get(prefix + "type"))
		if stepType == "" {
			stepType = prevType
		}
		if prevType == "" {
			prevType = stepType
		}

		d := Draft{
			StepType: prevType,
			PluginID: strings.TrimSpace(form.Get(prefix + "plugin_id")),
			Instance: strings.TrimSpace(form.Get(prefix + "instance")),
		}
		if isChecked(form.Get(prefix + "force")) {
			v := true
			d.Force = &v
		}

		rows, err := indexesUnder(form, prefix+"env.")
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			rp := prefix + "env." + strconv.Itoa(r) + "."
			d.EnvVars = append(d.EnvVars, EnvVar{
				Key:   form.Get(rp + "key"),
				Value: form.Get(rp + "value"),
			})
		}

		b.Append(d)
		if stepType != prevType {
			b.SetStepType(b.Len()-1, stepType)
		}
	}
	return b, nil
}

// Values encodes the builder back into form fields, the inverse of ParseForm.
func (b *Builder) Values() url.Values {
	v := url.Values{}
	for i, d := range b.drafts {
		prefix := "steps." + strconv.Itoa(i) + "."
		v.Set(prefix+"type", d.StepType)
		v.Set(prefix+"prev_type", d.StepType)
		v.Set(prefix+"plugin_id", d.PluginID)
		if d.Instance != "" {
			v.Set(prefix+"instance", d.Instance)
		}
		if d.Force != nil && *d.Force {
			v.Set(prefix+"force", "on")
		}
		for r, e := range d.EnvVars {
			rp := prefix + "env." + strconv.Itoa(r) + "."
			v.Set(rp+"key", e.Key)
			v.Set(rp+"value", e.Value)
		}
	}
	return v
}

// indexesUnder collects the distinct integers N of keys shaped prefix+N+".".
func indexesUnder(form url.Values, prefix string) ([]int, error) {
	seen := map[int]bool{}
	for key := range form {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		dot := strings.IndexByte(rest, '.')
		if dot <= 0 {
			continue
		}
		n, err := strconv.Atoi(rest[:dot])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad form field %q", key)
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
