package model

import "time"

type Environment string

const (
	EnvProduction       Environment = "Production"
	EnvStaging          Environment = "Staging"
	EnvDisasterRecovery Environment = "Disaster Recovery"
)

type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

type Impact string

const (
	ImpactLow    Impact = "Low"
	ImpactMedium Impact = "Medium"
	ImpactHigh   Impact = "High"
)

var (
	Environments = []Environment{EnvProduction, EnvStaging, EnvDisasterRecovery}
	Statuses     = []Status{StatusScheduled, StatusInProgress, StatusCompleted}
	Impacts      = []Impact{ImpactLow, ImpactMedium, ImpactHigh}
)

// SuggestedSystems is the fixed list offered by the form. System stays free text.
var SuggestedSystems = []string{
	"CX", "CNC Lathe 01", "CNC Lathe 02", "Milling 01", "Press Brake", "Injection Molding 01",
	"Injection Molding 02", "Compressor", "Boiler", "Chiller", "Genset", "Forklift 01",
}

func ParseEnvironment(s string) (Environment, bool) {
	for _, e := range Environments {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func ParseImpact(s string) (Impact, bool) {
	for _, i := range Impacts {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

// Event is one maintenance window as held in memory. Records are replaced
// wholesale on reload and never mutated in place.
//
// StartDate, EndDate and CreatedAt keep the ISO-8601 text the backend sent;
// use Start() and End() for parsed values.
type Event struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	System            string      `json:"system"`
	Owner             string      `json:"owner"`
	Environment       Environment `json:"environment"`
	Status            Status      `json:"status"`
	Impact            Impact      `json:"impact"`
	NotificationsSent bool        `json:"notificationsSent"`
	StartDate         string      `json:"startDate"`
	EndDate           string      `json:"endDate"`
	Description       string      `json:"description"`
	CreatedAt         string      `json:"createdAt"`
}

func (e Event) Completed() bool { return e.Status == StatusCompleted }

// Start parses StartDate. ok is false for blank or unparseable values.
func (e Event) Start() (time.Time, bool) { return ParseTimestamp(e.StartDate) }

func (e Event) End() (time.Time, bool) { return ParseTimestamp(e.EndDate) }

// Draft is an event under edit. A non-empty ID means update, empty means create.
type Draft struct {
	ID                string      `json:"id,omitempty"`
	Title             string      `json:"title"`
	System            string      `json:"system"`
	Owner             string      `json:"owner"`
	Environment       Environment `json:"environment"`
	Status            Status      `json:"status"`
	Impact            Impact      `json:"impact"`
	NotificationsSent bool        `json:"notificationsSent"`
	StartDate         string      `json:"startDate"`
	EndDate           string      `json:"endDate"`
	Description       string      `json:"description"`
}

// NewDraft returns an empty create-mode draft with defaults and both dates at now.
func NewDraft(now time.Time) Draft {
	ts := FormatTimestamp(now)
	return Draft{
		Environment: EnvProduction,
		Status:      StatusScheduled,
		Impact:      ImpactMedium,
		StartDate:   ts,
		EndDate:     ts,
	}
}

// DraftFrom builds an edit-mode draft. CreatedAt is dropped.
func DraftFrom(e Event) Draft {
	return Draft{
		ID:                e.ID,
		Title:             e.Title,
		System:            e.System,
		Owner:             e.Owner,
		Environment:       e.Environment,
		Status:            e.Status,
		Impact:            e.Impact,
		NotificationsSent: e.NotificationsSent,
		StartDate:         e.StartDate,
		EndDate:           e.EndDate,
		Description:       e.Description,
	}
}

func (d Draft) IsUpdate() bool { return d.ID != "" }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 plus the looser shapes Postgres, SQLite and
// datetime-local inputs produce. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	return ParseTimestampIn(s, time.UTC)
}

// ParseTimestampIn is ParseTimestamp with zone-less values read in loc.
func ParseTimestampIn(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
