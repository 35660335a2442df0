package ics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maintdash/internal/form"
	appLog "maintdash/internal/log"
	"maintdash/internal/model"
)

// Report summarizes one import run.
type Report struct {
	Sources     int
	Occurrences int
	Created     int
	Duplicates  int
	Cancelled   int
	Invalid     int
	Errors      []error
}

// Importer turns feed occurrences into maintenance windows. Every
// occurrence goes through a form controller, so imported windows obey the
// same validation and defaults as hand-entered ones.
type Importer struct {
	fetcher *Fetcher
	submit  form.Submitter
	loc     *time.Location
	now     func() time.Time
	horizon time.Duration
}

func NewImporter(f *Fetcher, submit form.Submitter, loc *time.Location, horizonDays int, now func() time.Time) *Importer {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &Importer{
		fetcher: f,
		submit:  submit,
		loc:     loc,
		now:     now,
		horizon: time.Duration(horizonDays) * 24 * time.Hour,
	}
}

// Run fetches all sources and creates one window per occurrence from now
// to the horizon. Occurrences whose (title, system, start) already exist in
// existing, or earlier in the same run, are skipped.
func (im *Importer) Run(ctx context.Context, sources []Source, existing []model.Event) (Report, error) {
	rep := Report{Sources: len(sources)}

	seen := make(map[string]struct{}, len(existing))
	for _, ev := range existing {
		if start, ok := ev.Start(); ok {
			seen[dedupKey(ev.Title, ev.System, start)] = struct{}{}
		}
	}

	results, errs := im.fetcher.FetchAll(ctx, sources)
	rep.Errors = append(rep.Errors, errs...)

	now := im.now()
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body, im.loc)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("ics source %s: %w", res.Source.ID, err))
			continue
		}
		occs, err := ExpandOccurrences(parsed, ExpandConfig{RangeStart: now, RangeEnd: now.Add(im.horizon)})
		if err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}

		for _, occ := range occs {
			rep.Occurrences++
			if occ.Event.Status == "CANCELLED" {
				rep.Cancelled++
				continue
			}
			system := systemFor(occ)
			key := dedupKey(occ.Event.Summary, system, occ.Start)
			if _, dup := seen[key]; dup {
				rep.Duplicates++
				continue
			}

			err := im.create(ctx, occ, system)
			var verr *form.ValidationError
			switch {
			case errors.As(err, &verr):
				rep.Invalid++
				appLog.Warn("ics occurrence rejected", "uid", occ.Event.UID, "error", err.Error())
				continue
			case err != nil:
				rep.Errors = append(rep.Errors, err)
				if ctx.Err() != nil {
					return rep, ctx.Err()
				}
				continue
			}
			seen[key] = struct{}{}
			rep.Created++
		}
	}

	appLog.Info("ics import finished",
		"sources", rep.Sources,
		"occurrences", rep.Occurrences,
		"created", rep.Created,
		"duplicates", rep.Duplicates,
		"invalid", rep.Invalid,
		"errors", len(rep.Errors),
	)
	return rep, nil
}

func (im *Importer) create(ctx context.Context, occ Occurrence, system string) error {
	c := form.NewCreate(im.now(), im.loc)
	fields := [][2]string{
		{"title", occ.Event.Summary},
		{"system", system},
		{"owner", occ.Event.Owner},
		{"description", occ.Event.Description},
		{"startDate", model.FormatTimestamp(occ.Start)},
	}
	if occ.Event.Status == "COMPLETED" {
		fields = append(fields, [2]string{"status", string(model.StatusCompleted)})
	}
	for _, cat := range occ.Event.Categories {
		if imp, ok := model.ParseImpact(cat); ok {
			fields = append(fields, [2]string{"impact", string(imp)})
		}
		if env, ok := model.ParseEnvironment(cat); ok {
			fields = append(fields, [2]string{"environment", string(env)})
		}
	}
	for _, f := range fields {
		if err := c.SetField(f[0], f[1]); err != nil {
			return err
		}
	}
	return c.Submit(ctx, im.submit)
}

func systemFor(occ Occurrence) string {
	if s := strings.TrimSpace(occ.Event.Location); s != "" {
		return s
	}
	return occ.Event.Source.Name
}

func dedupKey(title, system string, start time.Time) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" +
		strings.ToLower(strings.TrimSpace(system)) + "\x00" +
		start.UTC().Format(time.RFC3339)
}
