package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "maintdash/internal/log"
	"maintdash/internal/model"
)

// propOwner carries the owner, which has no standard VEVENT property.
const propOwner = ical.ComponentProperty("X-MAINTDASH-OWNER")

// ExportOptions names the calendar and fixes DTSTAMP.
type ExportOptions struct {
	Name string
	Now  time.Time
}

// Export renders events as an iCalendar feed. Events whose start date does
// not parse are left out.
func Export(events []model.Event, opts ExportOptions) string {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendarFor("maintdash")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetName(opts.Name)
	}

	skipped := 0
	for _, ev := range events {
		start, ok := ev.Start()
		if !ok || ev.ID == "" {
			skipped++
			continue
		}
		end, ok := ev.End()
		if !ok {
			end = start
		}

		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(opts.Now)
		if created, ok := model.ParseTimestamp(ev.CreatedAt); ok {
			ve.SetCreatedTime(created)
		}
		ve.SetSummary(ev.Title)
		ve.SetDescription(ev.Description)
		ve.SetLocation(ev.System)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetStatus(exportStatus(ev.Status))
		ve.AddCategory(string(ev.Impact))
		ve.AddCategory(string(ev.Environment))
		if ev.Owner != "" {
			ve.SetProperty(propOwner, ev.Owner)
		}
	}

	if skipped > 0 {
		appLog.Debug("ics export skipped events without a start date", "count", skipped)
	}
	return cal.Serialize()
}

func exportStatus(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusCompleted:
		return ical.ObjectStatusCompleted
	case model.StatusInProgress:
		return ical.ObjectStatusConfirmed
	default:
		return ical.ObjectStatusTentative
	}
}
