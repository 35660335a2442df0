// Package form drives the create/edit dialog for a maintenance window.
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	appLog "maintdash/internal/log"
	"maintdash/internal/model"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	ErrClosed       = errors.New("form: form is closed")
	ErrUnknownField = errors.New("form: unknown field")
	ErrInvalidValue = errors.New("form: invalid value")
	// ErrEndDate: the end date follows the start date and cannot be set on its own.
	ErrEndDate = errors.New("form: end date follows start date")
	// ErrBusy is returned for edits and submits while a submit is waiting on the store.
	ErrBusy = errors.New("form: submit in progress")
)

// ValidationError lists required fields that were blank. Nothing was sent.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "required: " + strings.Join(e.Fields, ", ")
}

// Submitter persists a finished draft.
type Submitter interface {
	Create(ctx context.Context, d model.Draft) error
	Update(ctx context.Context, d model.Draft) error
}

// Controller holds one draft from open to submit or close. It is safe for
// concurrent use; the lock is not held while the store call runs.
type Controller struct {
	mu    sync.Mutex
	mode  Mode
	draft model.Draft
	open  bool
	busy  bool
	err   string
	loc   *time.Location
}

// NewCreate opens an empty draft with both dates at now. loc is used for
// date input that carries no zone; nil means UTC.
func NewCreate(now time.Time, loc *time.Location) *Controller {
	return &Controller{mode: ModeCreate, draft: model.NewDraft(now), open: true, loc: loc}
}

// NewEdit opens a draft pre-filled from ev.
func NewEdit(ev model.Event, loc *time.Location) *Controller {
	return &Controller{mode: ModeEdit, draft: model.DraftFrom(ev), open: true, loc: loc}
}

func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Err is the inline error from the last submit, if any.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Draft() model.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Busy reports whether a submit is waiting on the store.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SetField edits one draft field by its wire name. Setting the start date
// also moves the end date to the same value.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}
	d := &c.draft
	switch name {
	case "title":
		d.Title = value
	case "system", "machine":
		d.System = value
	case "owner":
		d.Owner = value
	case "description":
		d.Description = value
	case "environment":
		env, ok := model.ParseEnvironment(value)
		if !ok {
			return fmt.Errorf("%w for environment: %q", ErrInvalidValue, value)
		}
		d.Environment = env
	case "status":
		st, ok := model.ParseStatus(value)
		if !ok {
			return fmt.Errorf("%w for status: %q", ErrInvalidValue, value)
		}
		d.Status = st
	case "impact":
		imp, ok := model.ParseImpact(value)
		if !ok {
			return fmt.Errorf("%w for impact: %q", ErrInvalidValue, value)
		}
		d.Impact = imp
	case "notificationsSent", "notifications_sent":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w for notificationsSent: %q", ErrInvalidValue, value)
		}
		d.NotificationsSent = b
	case "startDate", "start_date":
		t, ok := model.ParseTimestampIn(value, c.loc)
		if !ok {
			return fmt.Errorf("%w for startDate: %q", ErrInvalidValue, value)
		}
		ts := model.FormatTimestamp(t)
		d.StartDate = ts
		d.EndDate = ts
	case "endDate", "end_date":
		return ErrEndDate
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	return nil
}

// Submit validates and hands the draft to s. A blank title or system fails
// without calling s. On success the form closes and the draft is cleared;
// on failure the form stays open with the draft as it was.
func (c *Controller) Submit(ctx context.Context, s Submitter) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}

	var missing []string
	if strings.TrimSpace(c.draft.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(c.draft.System) == "" {
		missing = append(missing, "system")
	}
	if len(missing) > 0 {
		verr := &ValidationError{Fields: missing}
		c.err = verr.Error()
		c.mu.Unlock()
		return verr
	}

	d := c.draft
	if strings.TrimSpace(d.Description) == "" {
		d.Description = d.Title
	}
	c.busy = true
	c.mu.Unlock()

	var err error
	if d.IsUpdate() {
		err = s.Update(ctx, d)
	} else {
		err = s.Create(ctx, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		c.err = err.Error()
		appLog.Debug("form submit failed", "mode", c.mode, "id", d.ID)
		return err
	}
	c.err = ""
	c.close()
	return nil
}

// Close discards the draft.
func (c *Controller) Close() {
	c.mu.Lock()
	c.close()
	c.mu.Unlock()
}

func (c *Controller) close() {
	c.open = false
	c.draft = model.Draft{}
}
