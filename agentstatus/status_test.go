package agentstatus

import (
	"testing"
	"time"
)

func fixedDeriver(now time.Time) *Deriver {
	return &Deriver{
		Now:      func() time.Time { return now },
		Location: now.Location(),
	}
}

func TestDerive(t *testing.T) {
	loc := time.FixedZone("ops", 5*3600+1800)
	now := time.Date(2024, 1, 1, 10, 4, 0, 0, loc)
	d := fixedDeriver(now)

	tests := []struct {
		name     string
		lastSeen string
		stored   string
		want     Derived
	}{
		{"stale active", "2024-01-01T09:58:00", "active", Derived{"inactive", Secondary}},
		{"fresh active", "2024-01-01T10:03:00", "active", Derived{"active", Primary}},
		{"fresh inactive", "2024-01-01T10:03:00", "inactive", Derived{"inactive", Secondary}},
		{"fresh offline", "2024-01-01T10:03:00", "offline", Derived{"offline", Outline}},
		{"unknown passes through", "2024-01-01T10:03:00", "draining", Derived{"draining", Outline}},
		{"designator stripped", "2024-01-01T10:00:00Z", "active", Derived{"active", Primary}},
		{"designator stripped stale", "2024-01-01T09:58:59Z", "active", Derived{"inactive", Secondary}},
		{"fractional seconds", "2024-01-01T10:03:59.123456Z", "active", Derived{"active", Primary}},
		{"designator is not utc", "2024-01-01T04:33:00Z", "active", Derived{"inactive", Secondary}},
		{"explicit numeric offset", "2024-01-01T04:33:00+00:00", "active", Derived{"active", Primary}},
		{"unparseable", "yesterday", "active", Derived{"active", Primary}},
		{"empty", "", "offline", Derived{"offline", Outline}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Derive(tc.lastSeen, tc.stored)
			if got != tc.want {
				t.Errorf("Derive(%q, %q) = %+v, want %+v", tc.lastSeen, tc.stored, got, tc.want)
			}
		})
	}
}

func TestDeriveRelative(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	d := fixedDeriver(now)
	layout := "2006-01-02T15:04:05"

	six := now.Add(-6 * time.Minute).Format(layout)
	if got := d.Derive(six, "active"); got.Status != "inactive" {
		t.Errorf("6m ago: Status = %q, want inactive", got.Status)
	}
	one := now.Add(-1 * time.Minute).Format(layout)
	if got := d.Derive(one, "active"); got.Status != "active" {
		t.Errorf("1m ago: Status = %q, want active", got.Status)
	}
	exact := now.Add(-StaleAfter).Format(layout)
	if got := d.Derive(exact, "active"); got.Status != "active" {
		t.Errorf("exactly 5m ago: Status = %q, want active", got.Status)
	}
}

func TestParseLastSeenDesignatorIsLocal(t *testing.T) {
	loc := time.FixedZone("x", -7*3600)
	d := &Deriver{Location: loc}
	got, ok := d.ParseLastSeen("2024-01-01T10:00:00Z")
	if !ok {
		t.Fatal("ParseLastSeen failed")
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("ParseLastSeen = %v, want %v", got, want)
	}
}

func TestDeterministic(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 4, 0, 0, time.UTC)
	d := fixedDeriver(now)
	a := d.Derive("2024-01-01T10:00:00Z", "active")
	b := d.Derive("2024-01-01T10:00:00Z", "active")
	if a != b {
		t.Errorf("Derive not deterministic: %+v vs %+v", a, b)
	}
}

func TestDeriveStaleBoundary(t *testing.T) {
	loc := time.FixedZone("ops", -4*3600)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, loc)
	d := fixedDeriver(now)

	tests := []struct {
		name     string
		lastSeen string
		want     string
	}{
		{"exactly at the limit", now.Add(-StaleAfter).Format(time.RFC3339Nano), "active"},
		{"one nanosecond past", now.Add(-StaleAfter - time.Nanosecond).Format(time.RFC3339Nano), "inactive"},
		{"zoneless one nanosecond past", now.Add(-StaleAfter - time.Nanosecond).Format("2006-01-02T15:04:05.999999999"), "inactive"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.Derive(tc.lastSeen, "active").Status; got != tc.want {
				t.Errorf("Derive(%q) = %q, want %q", tc.lastSeen, got, tc.want)
			}
		})
	}
}

func TestParseTimeDesignatorIsUTC(t *testing.T) {
	loc := time.FixedZone("ist", 5*3600+1800)
	d := &Deriver{Location: loc}
	got, ok := d.ParseTime("2024-01-01T10:00:00Z")
	if !ok {
		t.Fatal("ParseTime failed")
	}
	if want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ParseTime = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}
	if _, ok := d.ParseTime("tomorrow"); ok {
		t.Error("ParseTime(tomorrow) succeeded")
	}
}
