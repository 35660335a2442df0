// Package view derives everything the dashboard shows from the event list.
// All functions are pure and cheap to recompute on every render.
package view

import (
	"math"
	"sort"
	"strings"
	"time"

	"maintdash/internal/model"
)

// Options fixes where calendar days begin and how their labels read.
type Options struct {
	Location *time.Location
	// Locale selects day labels: "id" (default) or "en".
	Locale string
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Group is one calendar day of events.
type Group struct {
	Key    string        `json:"key"`
	Label  string        `json:"label"`
	Events []model.Event `json:"events"`
}

// Stats are the dashboard counters.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	HighImpact   int `json:"highImpact"`
	Systems      int `json:"systems"`
	Coverage     int `json:"notificationCoverage"`
	CompletedPct int `json:"completedPercentage"`
	Health       int `json:"healthScore"`
}

// Dashboard is the projection the UI renders: active windows grouped by
// day, completed windows as a flat list, every window grouped by day, and
// counters over everything.
type Dashboard struct {
	Groups    []Group       `json:"groups"`
	Completed []model.Event `json:"completed"`
	All       []Group       `json:"all"`
	Stats     Stats         `json:"stats"`
}

// SortChronological returns a copy ordered by start date. The sort is
// stable; events whose start date does not parse go last, in input order.
func SortChronological(events []model.Event) []model.Event {
	out := append([]model.Event(nil), events...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := out[i].Start()
		tj, okj := out[j].Start()
		switch {
		case oki && okj:
			return ti.Before(tj)
		case oki:
			return true
		default:
			return false
		}
	})
	return out
}

// GroupByDay scans an already sorted list once and buckets it by calendar
// day in opts.Location. Groups keep first-seen order; a group's label comes
// from its first event. Unparseable start dates use the raw text as key
// and label.
func GroupByDay(sorted []model.Event, opts Options) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, ev := range sorted {
		key, label := dayKey(ev, opts)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: label})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

func dayKey(ev model.Event, opts Options) (string, string) {
	t, ok := ev.Start()
	if !ok {
		return ev.StartDate, ev.StartDate
	}
	t = t.In(opts.loc())
	return t.Format("2006-01-02"), DayLabel(t, opts.Locale)
}

// Flatten concatenates groups back into one list.
func Flatten(groups []Group) []model.Event {
	out := make([]model.Event, 0)
	for _, g := range groups {
		out = append(out, g.Events...)
	}
	return out
}

// Partition splits into not-completed and completed, keeping order.
func Partition(events []model.Event) (active, completed []model.Event) {
	active = make([]model.Event, 0)
	completed = make([]model.Event, 0)
	for _, ev := range events {
		if ev.Completed() {
			completed = append(completed, ev)
		} else {
			active = append(active, ev)
		}
	}
	return active, completed
}

// ComputeStats counts over the whole list.
func ComputeStats(events []model.Event) Stats {
	st := Stats{Total: len(events)}
	systems := make(map[string]struct{})
	notified := 0
	for _, ev := range events {
		if s := strings.TrimSpace(ev.System); s != "" {
			systems[s] = struct{}{}
		}
		if ev.Impact == model.ImpactHigh {
			st.HighImpact++
		}
		if ev.NotificationsSent {
			notified++
		}
		if ev.Completed() {
			st.Completed++
		} else {
			st.Active++
		}
	}
	st.Systems = len(systems)
	st.Coverage = percent(notified, st.Total)
	st.CompletedPct = percent(st.Completed, st.Total)
	st.Health = HealthScore(st.Active, st.Coverage, st.CompletedPct)
	return st
}

// HealthScore is clamp(0, 100, 78 + coverage/5 + completedPct/8 - 3*active),
// rounded to the nearest integer.
func HealthScore(active, coverage, completedPct int) int {
	raw := 78 + float64(coverage)/5 + float64(completedPct)/8 - 3*float64(active)
	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}

// Build produces the full dashboard projection.
func Build(events []model.Event, opts Options) Dashboard {
	sorted := SortChronological(events)
	active, completed := Partition(sorted)
	return Dashboard{
		Groups:    GroupByDay(active, opts),
		Completed: completed,
		All:       GroupByDay(sorted, opts),
		Stats:     ComputeStats(sorted),
	}
}
