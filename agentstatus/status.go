// Package agentstatus derives the status an agent is shown with from its
// stored status and last heartbeat.
package agentstatus

import (
	"strings"
	"time"
)

// StaleAfter is how long an agent may go without a heartbeat before it is
// shown as inactive regardless of its stored status.
const StaleAfter = 5 * time.Minute

// Emphasis is the visual weight of a status badge.
type Emphasis string

const (
	Primary   Emphasis = "primary"
	Secondary Emphasis = "secondary"
	Outline   Emphasis = "outline"
)

type Derived struct {
	Status   string   `json:"status"`
	Emphasis Emphasis `json:"emphasis"`
}

var storedEmphasis = map[string]Emphasis{
	"active":   Primary,
	"inactive": Secondary,
	"offline":  Outline,
}

// Deriver computes display statuses against an injectable clock and zone.
type Deriver struct {
	Now      func() time.Time
	Location *time.Location
}

// Default uses the wall clock and the process's local zone.
func Default() *Deriver {
	return &Deriver{Now: time.Now, Location: time.Local}
}

// Derive returns the display status. An agent last seen more than StaleAfter
// ago is inactive; otherwise the stored status is mapped through the badge
// table, and unknown values pass through with outline emphasis. A
// last-seen value that does not parse never forces inactive.
func (d *Deriver) Derive(lastSeenAt, stored string) Derived {
	if seen, ok := d.ParseLastSeen(lastSeenAt); ok {
		if d.now().Sub(seen) > StaleAfter {
			return Derived{Status: "inactive", Emphasis: Secondary}
		}
	}
	if e, ok := storedEmphasis[stored]; ok {
		return Derived{Status: stored, Emphasis: e}
	}
	return Derived{Status: stored, Emphasis: Outline}
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseLastSeen parses a heartbeat timestamp. A trailing "Z" is dropped and
// the rest read as local time: the backend writes local wall-clock times with
// a UTC designator. Timestamps with an explicit numeric offset keep it.
func (d *Deriver) ParseLastSeen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc := d.location()
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1]
	} else if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTime parses an ordinary backend timestamp. A "Z" means UTC; values
// without a zone are read as local time. The result is in the deriver's zone.
func (d *Deriver) ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc := d.location()
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (d *Deriver) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deriver) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}
