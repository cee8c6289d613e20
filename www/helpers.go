package www

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orchconsole/agentstatus"
	"orchconsole/api"
	"orchconsole/taskbuilder"
)

var stepLabels = map[string]string{
	taskbuilder.StepInstall:       "Install",
	taskbuilder.StepUninstall:     "Uninstall",
	taskbuilder.StepStart:         "Start",
	taskbuilder.StepStop:          "Stop",
	taskbuilder.StepRestart:       "Restart",
	taskbuilder.StepStatus:        "Status",
	taskbuilder.StepUpdateEnvVars: "Update Env Vars",
}

func templateFuncs(d *agentstatus.Deriver) template.FuncMap {
	return template.FuncMap{
		// Values that do not parse are shown as sent.
		"formatTime": func(s string) string {
			return formatWith(d.ParseTime, s)
		},
		// Heartbeats carry a local wall-clock time behind the "Z".
		"formatLastSeen": func(s string) string {
			return formatWith(d.ParseLastSeen, s)
		},
		"timeAgo": func(s string) string {
			t, ok := d.ParseLastSeen(s)
			if !ok {
				return ""
			}
			now := time.Now()
			if d.Now != nil {
				now = d.Now()
			}
			dur := now.Sub(t)
			switch {
			case dur < time.Minute:
				return "just now"
			case dur < time.Hour:
				m := int(dur.Minutes())
				if m == 1 {
					return "1 minute ago"
				}
				return fmt.Sprintf("%d minutes ago", m)
			case dur < 24*time.Hour:
				h := int(dur.Hours())
				if h == 1 {
					return "1 hour ago"
				}
				return fmt.Sprintf("%d hours ago", h)
			default:
				days := int(dur.Hours() / 24)
				if days == 1 {
					return "1 day ago"
				}
				return fmt.Sprintf("%d days ago", days)
			}
		},
		"statusColor": func(status string) string {
			switch status {
			case api.TaskQueued, api.TaskReceived:
				return "badge badge-pending"
			case api.TaskRunning:
				return "badge badge-running"
			case api.TaskSuccess:
				return "badge badge-success"
			case api.TaskFailed:
				return "badge badge-failed"
			default:
				return "badge badge-outline"
			}
		},
		"emphasisClass": func(e agentstatus.Emphasis) string {
			return "badge badge-" + string(e)
		},
		"stepLabel": func(stepType string) string {
			if l, ok := stepLabels[stepType]; ok {
				return l
			}
			return stepType
		},
		"supportsEnvVars":  taskbuilder.SupportsEnvVars,
		"supportsInstance": taskbuilder.SupportsInstance,
		"supportsForce":    taskbuilder.SupportsForce,
		"isTrue": func(b *bool) bool {
			return b != nil && *b
		},
		"prettyJSON": func(v any) string {
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return ""
			}
			return string(b)
		},
		"upper": strings.ToUpper,
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
	}
}

// pager is the previous/next navigation under a paginated table.
type pager struct {
	Page       int
	TotalPages int
	PrevURL    string
	NextURL    string
}

func newPager(path string, params url.Values, page, totalPages int) pager {
	p := pager{Page: page, TotalPages: totalPages}
	link := func(n int) string {
		q := url.Values{}
		for k, v := range params {
			if len(v) > 0 && v[0] != "" {
				q.Set(k, v[0])
			}
		}
		q.Set("page", strconv.Itoa(n))
		return path + "?" + q.Encode()
	}
	if page > 1 {
		p.PrevURL = link(page - 1)
	}
	if page < totalPages {
		p.NextURL = link(page + 1)
	}
	return p
}

// intQuery reads a positive integer query parameter, or def.
func intQuery(q url.Values, name string, def int) int {
	if v := q.Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func formatWith(parse func(string) (time.Time, bool), s string) string {
	if s == "" {
		return "N/A"
	}
	t, ok := parse(s)
	if !ok {
		return s
	}
	return t.Format("2006-01-02 15:04:05")
}
