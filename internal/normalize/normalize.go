// Package normalize turns backend rows of any supported shape into
// model.Event values, and drafts back into write payloads.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "maintdash/internal/log"
	"maintdash/internal/model"
)

// Row is one record as returned by a row store: column name to value.
type Row = map[string]any

// Aliases are tried left to right; the first present, non-nil key wins.
var (
	keysID          = []string{"id"}
	keysTitle       = []string{"title"}
	keysSystem      = []string{"system", "machine"}
	keysOwner       = []string{"owner"}
	keysEnvironment = []string{"environment"}
	keysStatus      = []string{"status"}
	keysImpact      = []string{"impact"}
	keysNotified    = []string{"notifications_sent", "notificationsSent"}
	keysStart       = []string{"start_date", "startDate"}
	keysEnd         = []string{"end_date", "endDate"}
	keysDescription = []string{"description"}
	keysCreatedAt   = []string{"created_at", "createdAt"}
)

var ErrNilRow = errors.New("normalize: row is nil")

// FieldError reports a value of the wrong type under a known key.
type FieldError struct {
	Field string
	Got   any
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("normalize: field %q has unsupported type %T", e.Field, e.Got)
}

// Event maps one row into a canonical event.
//
// Missing fields get defaults. Timestamps that are missing or unreadable fall
// back to now, so the result depends on the instant passed in; this is
// intended. Text fields must be strings: a number under "title" is a
// *FieldError, not coerced.
func Event(row Row, now time.Time) (model.Event, error) {
	var ev model.Event
	if row == nil {
		return ev, ErrNilRow
	}

	var err error
	if ev.ID, err = idField(row); err != nil {
		return ev, err
	}
	if ev.Title, err = stringField(row, keysTitle); err != nil {
		return ev, err
	}
	if ev.System, err = stringField(row, keysSystem); err != nil {
		return ev, err
	}
	if ev.Owner, err = stringField(row, keysOwner); err != nil {
		return ev, err
	}
	if ev.Description, err = stringField(row, keysDescription); err != nil {
		return ev, err
	}
	if ev.NotificationsSent, err = boolField(row, keysNotified); err != nil {
		return ev, err
	}

	env, err := stringField(row, keysEnvironment)
	if err != nil {
		return ev, err
	}
	ev.Environment = environmentOrDefault(env)

	status, err := stringField(row, keysStatus)
	if err != nil {
		return ev, err
	}
	ev.Status = statusOrDefault(status)

	impact, err := stringField(row, keysImpact)
	if err != nil {
		return ev, err
	}
	ev.Impact = impactOrDefault(impact)

	fallback := model.FormatTimestamp(now)

	start, err := timeField(row, keysStart)
	if err != nil {
		return ev, err
	}
	if start == "" {
		start = fallback
	}
	ev.StartDate = start

	end, err := timeField(row, keysEnd)
	if err != nil {
		return ev, err
	}
	if end == "" {
		end = start
	}
	ev.EndDate = end

	created, err := timeField(row, keysCreatedAt)
	if err != nil {
		return ev, err
	}
	if created == "" {
		created = fallback
	}
	ev.CreatedAt = created

	return ev, nil
}

// RowError ties a normalization failure to its position in a batch.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Index, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// Events normalizes a batch. Rows that fail are skipped and reported; the
// remaining rows keep their relative order.
func Events(rows []Row, now time.Time) ([]model.Event, []RowError) {
	out := make([]model.Event, 0, len(rows))
	var errs []RowError
	for i, r := range rows {
		ev, err := Event(r, now)
		if err != nil {
			errs = append(errs, RowError{Index: i, Err: err})
			continue
		}
		out = append(out, ev)
	}
	return out, errs
}

// ToRow builds the snake_case write payload for a draft. The id is never
// part of the payload; row stores address updates by id separately.
func ToRow(d model.Draft) Row {
	return Row{
		"title":              d.Title,
		"system":             d.System,
		"owner":              d.Owner,
		"environment":        string(environmentOrDefault(string(d.Environment))),
		"status":             string(statusOrDefault(string(d.Status))),
		"impact":             string(impactOrDefault(string(d.Impact))),
		"notifications_sent": d.NotificationsSent,
		"start_date":         d.StartDate,
		"end_date":           d.EndDate,
		"description":        d.Description,
	}
}

func lookup(row Row, keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

func stringField(row Row, keys []string) (string, error) {
	k, v, ok := lookup(row, keys)
	if !ok {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", &FieldError{Field: k, Got: v}
	}
}

// idField accepts integer ids too: serial primary keys are common.
func idField(row Row) (string, error) {
	k, v, ok := lookup(row, keysID)
	if !ok {
		return "", nil
	}
	switch id := v.(type) {
	case string:
		return id, nil
	case []byte:
		return string(id), nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(id), nil
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprint(int64(id)), nil
		}
	}
	return "", &FieldError{Field: k, Got: v}
}

func boolField(row Row, keys []string) (bool, error) {
	k, v, ok := lookup(row, keys)
	if !ok {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "1":
			return true, nil
		case "false", "f", "0", "":
			return false, nil
		}
	case int64:
		// SQLite stores booleans as integers.
		return b != 0, nil
	}
	return false, &FieldError{Field: k, Got: v}
}

// timeField returns "" for a missing or empty timestamp so the caller can
// apply its fallback. Non-empty text that does not parse is kept verbatim;
// the view layer groups such events under the raw string.
func timeField(row Row, keys []string) (string, error) {
	k, v, ok := lookup(row, keys)
	if !ok {
		return "", nil
	}
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "", nil
		}
		return model.FormatTimestamp(t), nil
	case string:
		if t != "" {
			if _, ok := model.ParseTimestamp(t); !ok {
				appLog.Debug("normalize: unreadable timestamp kept as text", "field", k, "value", t)
			}
		}
		return t, nil
	case []byte:
		return timeField(Row{k: string(t)}, []string{k})
	default:
		return "", &FieldError{Field: k, Got: v}
	}
}

func environmentOrDefault(s string) model.Environment {
	if e, ok := model.ParseEnvironment(s); ok {
		return e
	}
	if s != "" {
		appLog.Debug("normalize: unknown environment, using default", "value", s)
	}
	return model.EnvProduction
}

func statusOrDefault(s string) model.Status {
	if st, ok := model.ParseStatus(s); ok {
		return st
	}
	if s != "" {
		appLog.Debug("normalize: unknown status, using default", "value", s)
	}
	return model.StatusScheduled
}

func impactOrDefault(s string) model.Impact {
	if i, ok := model.ParseImpact(s); ok {
		return i
	}
	if s != "" {
		appLog.Debug("normalize: unknown impact, using default", "value", s)
	}
	return model.ImpactMedium
}
