// Package events holds the canonical list of maintenance events and the
// operations that change it. Every write is followed by a full reload from
// the row store; the list is only ever replaced by a reload.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "maintdash/internal/log"
	"maintdash/internal/model"
	"maintdash/internal/normalize"
	"maintdash/internal/rowstore"
)

const orderColumn = "start_date"

var (
	// ErrSyncInFlight is returned when a write starts while another one is running.
	ErrSyncInFlight = errors.New("events: another change is still being saved")
	// ErrDeclined means the user answered no to a confirmation; nothing was sent.
	ErrDeclined  = errors.New("events: action not confirmed")
	ErrMissingID = errors.New("events: draft has no id")
	ErrNotFound  = errors.New("events: event not found")
)

// LoadError is a failed reload. The previous list is kept.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "load maintenance events: " + e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError is a failed create/update/delete/toggle. Local state is unchanged.
type WriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s maintenance event: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s maintenance event %s: %v", e.Op, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Confirmer asks the user a yes/no question before destructive actions.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Always is a Confirmer that has already been answered.
type Always bool

func (a Always) Confirm(context.Context, string) bool { return bool(a) }

// Alerter shows a blocking, user-facing message for failed writes.
type Alerter interface {
	Alert(ctx context.Context, msg string)
}

// Change describes one confirmed write.
type Change struct {
	Op string    `json:"op"`
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

// Notifier receives a Change after every successful write.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// State is a point-in-time copy of the store.
type State struct {
	Events   []model.Event `json:"events"`
	Loading  bool          `json:"loading"`
	Syncing  bool          `json:"syncing"`
	Error    string        `json:"error,omitempty"`
	LoadedAt time.Time     `json:"loadedAt"`
	// Skipped counts rows dropped by the last reload because they could not be normalized.
	Skipped int `json:"skipped"`
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithAlerter(a Alerter) Option { return func(s *Store) { s.alerter = a } }

func WithNotifier(n Notifier) Option { return func(s *Store) { s.notifier = n } }

// Store owns the event list. Only reloads write to it.
type Store struct {
	rows     rowstore.RowStore
	now      func() time.Time
	alerter  Alerter
	notifier Notifier

	mu    sync.RWMutex
	state State
	// loads counts reloads in flight; Loading is true while it is above zero.
	loads int

	// beforeCompletion remembers status and end date as they were when this
	// process marked an event Completed, so un-completing can put them back.
	// Not persisted.
	beforeCompletion map[string]priorState
}

type priorState struct {
	status model.Status
	end    string
}

func NewStore(rows rowstore.RowStore, opts ...Option) *Store {
	s := &Store{
		rows:             rows,
		now:              time.Now,
		beforeCompletion: make(map[string]priorState),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Events = append([]model.Event(nil), s.state.Events...)
	return st
}

// Get looks an event up in the last loaded list.
func (s *Store) Get(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.state.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// FetchAll reloads every event ordered by start date. On failure the
// previous list stays in place and the error is recorded in the state.
func (s *Store) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.loads++
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()

	rows, err := s.rows.SelectAll(ctx, orderColumn)
	if err != nil {
		lerr := &LoadError{Err: err}
		s.mu.Lock()
		s.doneLoading()
		s.state.Error = lerr.Error()
		s.mu.Unlock()
		appLog.Error("fetch maintenance events failed", err)
		return lerr
	}

	now := s.now()
	evs, rowErrs := normalize.Events(rows, now)
	for _, re := range rowErrs {
		appLog.Error("skipping malformed maintenance row", re.Err, "index", re.Index)
	}

	s.mu.Lock()
	s.state.Events = evs
	s.doneLoading()
	s.state.LoadedAt = now
	s.state.Skipped = len(rowErrs)
	s.mu.Unlock()

	appLog.Debug("maintenance events loaded", "count", len(evs), "skipped", len(rowErrs))
	return nil
}

// doneLoading must be called with mu held.
func (s *Store) doneLoading() {
	s.loads--
	s.state.Loading = s.loads > 0
}

// Create inserts a new row from every draft field except the id.
func (s *Store) Create(ctx context.Context, d model.Draft) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	stored, err := s.rows.Insert(ctx, normalize.ToRow(d))
	if err != nil {
		return s.writeFailed(ctx, "create", "", err)
	}
	id, _ := stored["id"].(string)
	s.afterWrite(ctx, Change{Op: "create", ID: id})
	return nil
}

// Update writes every draft field to the row with draft.ID.
func (s *Store) Update(ctx context.Context, d model.Draft) error {
	if d.ID == "" {
		return ErrMissingID
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if _, err := s.rows.Update(ctx, d.ID, normalize.ToRow(d)); err != nil {
		return s.writeFailed(ctx, "update", d.ID, err)
	}
	s.afterWrite(ctx, Change{Op: "update", ID: d.ID})
	return nil
}

// Delete removes a row after the user confirms. A nil Confirmer or a "no"
// answer returns ErrDeclined without touching the backend.
func (s *Store) Delete(ctx context.Context, id string, confirm Confirmer) error {
	prompt := "Delete this maintenance window?"
	if ev, ok := s.Get(id); ok {
		prompt = fmt.Sprintf("Delete maintenance %q on %s?", ev.Title, ev.System)
	}
	if confirm == nil || !confirm.Confirm(ctx, prompt) {
		return ErrDeclined
	}

	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if err := s.rows.Delete(ctx, id); err != nil {
		return s.writeFailed(ctx, "delete", id, err)
	}
	s.mu.Lock()
	delete(s.beforeCompletion, id)
	s.mu.Unlock()
	s.afterWrite(ctx, Change{Op: "delete", ID: id})
	return nil
}

// ToggleComplete flips an event between Completed and its prior
// non-terminal status, patching only status and end date. Completing stamps
// the end date with now. Un-completing puts back the status and end date the
// event had before this process completed it; when that is unknown the
// status becomes Scheduled and the current end date is kept.
func (s *Store) ToggleComplete(ctx context.Context, ev model.Event) error {
	if ev.ID == "" {
		return ErrMissingID
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	var (
		status model.Status
		end    string
	)
	s.mu.RLock()
	prior, remembered := s.beforeCompletion[ev.ID]
	s.mu.RUnlock()

	if ev.Completed() {
		status, end = model.StatusScheduled, ev.EndDate
		if remembered {
			status, end = prior.status, prior.end
		}
	} else {
		status = model.StatusCompleted
		end = model.FormatTimestamp(s.now())
	}

	patch := rowstore.Row{"status": string(status), "end_date": end}
	if _, err := s.rows.Update(ctx, ev.ID, patch); err != nil {
		return s.writeFailed(ctx, "toggle", ev.ID, err)
	}

	s.mu.Lock()
	if status == model.StatusCompleted {
		s.beforeCompletion[ev.ID] = priorState{status: ev.Status, end: ev.EndDate}
	} else {
		delete(s.beforeCompletion, ev.ID)
	}
	s.mu.Unlock()

	s.afterWrite(ctx, Change{Op: "toggle", ID: ev.ID})
	return nil
}

func (s *Store) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Syncing {
		return ErrSyncInFlight
	}
	s.state.Syncing = true
	return nil
}

func (s *Store) end() {
	s.mu.Lock()
	s.state.Syncing = false
	s.mu.Unlock()
}

func (s *Store) writeFailed(ctx context.Context, op, id string, err error) error {
	werr := &WriteError{Op: op, ID: id, Err: err}
	appLog.Error("maintenance write failed", err, "op", op, "id", id)
	if s.alerter != nil {
		s.alerter.Alert(ctx, fmt.Sprintf("Could not %s the maintenance window: %v", op, err))
	}
	return werr
}

// afterWrite publishes the change and reloads. A failed reload after a
// confirmed write is recorded in the state, not returned: the write itself
// succeeded.
func (s *Store) afterWrite(ctx context.Context, c Change) {
	c.At = s.now()
	appLog.Info("maintenance write confirmed", "op", c.Op, "id", c.ID)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, c); err != nil {
			appLog.Error("change notification failed", err, "op", c.Op, "id", c.ID)
		}
	}
	_ = s.FetchAll(ctx)
}
