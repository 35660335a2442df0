// Package dashboard is the single owner of UI state. Every user action goes
// through one of App's handlers, which wire the gate, the form, the event
// store and the projector together.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"maintdash/internal/events"
	"maintdash/internal/form"
	"maintdash/internal/gate"
	appLog "maintdash/internal/log"
	"maintdash/internal/model"
	"maintdash/internal/view"
)

var (
	// ErrLocked is returned by write actions while the gate is locked.
	ErrLocked = errors.New("dashboard: locked")
	// ErrNoForm is returned by form actions when no form is open.
	ErrNoForm = errors.New("dashboard: no form open")
)

// FormState is what the UI needs to draw the open form.
type FormState struct {
	Mode  form.Mode   `json:"mode"`
	Draft model.Draft `json:"draft"`
	Error string      `json:"error,omitempty"`
	Busy  bool        `json:"busy"`
}

// State is everything a render needs.
type State struct {
	view.Dashboard
	Authenticated bool       `json:"authenticated"`
	Loading       bool       `json:"loading"`
	Syncing       bool       `json:"syncing"`
	Error         string     `json:"error,omitempty"`
	Skipped       int        `json:"skipped"`
	LoadedAt      time.Time  `json:"loadedAt"`
	Form          *FormState `json:"form,omitempty"`
	Systems       []string   `json:"systems"`
}

// Ready reports whether a first load has finished.
func (s State) Ready() bool { return !s.LoadedAt.IsZero() && !s.Loading }

type App struct {
	store *events.Store
	gate  *gate.Gate
	opts  view.Options
	now   func() time.Time

	mu   sync.Mutex
	form *form.Controller
}

func New(store *events.Store, g *gate.Gate, opts view.Options, now func() time.Time) *App {
	if now == nil {
		now = time.Now
	}
	return &App{store: store, gate: g, opts: opts, now: now}
}

func (a *App) Login(passcode string) bool {
	ok := a.gate.AttemptLogin(passcode)
	if !ok {
		appLog.Warn("dashboard login rejected")
	}
	return ok
}

// Logout locks the gate and drops any open form.
func (a *App) Logout() {
	a.gate.Lock()
	a.CloseForm()
}

func (a *App) OpenCreate() error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	a.mu.Lock()
	a.form = form.NewCreate(a.now(), a.opts.Location)
	a.mu.Unlock()
	return nil
}

func (a *App) OpenEdit(id string) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	ev, ok := a.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", events.ErrNotFound, id)
	}
	a.mu.Lock()
	a.form = form.NewEdit(ev, a.opts.Location)
	a.mu.Unlock()
	return nil
}

func (a *App) EditField(name, value string) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	c := a.openForm()
	if c == nil {
		return ErrNoForm
	}
	return c.SetField(name, value)
}

// EditFields applies several edits in name order and stops at the first error.
func (a *App) EditFields(fields map[string]string) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	c := a.openForm()
	if c == nil {
		return ErrNoForm
	}
	return applyFields(c, fields)
}

func (a *App) openForm() *form.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.form
}

func applyFields(c *form.Controller, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := c.SetField(k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}

// Submit sends the open form to the store. The form slot is emptied on
// success and left as is on failure. The app lock is not held during the
// store call, so renders and other actions carry on while it runs.
func (a *App) Submit(ctx context.Context) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	c := a.openForm()
	if c == nil {
		return ErrNoForm
	}
	if err := c.Submit(ctx, a.store); err != nil {
		return err
	}
	a.mu.Lock()
	if a.form == c {
		a.form = nil
	}
	a.mu.Unlock()
	return nil
}

// Save runs a whole form round in one step: open (create when id is empty,
// edit otherwise), apply fields in name order, submit. The shared form slot
// is not touched, so concurrent API callers do not see each other's drafts.
func (a *App) Save(ctx context.Context, id string, fields map[string]string) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	var c *form.Controller
	if id == "" {
		c = form.NewCreate(a.now(), a.opts.Location)
	} else {
		ev, ok := a.store.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", events.ErrNotFound, id)
		}
		c = form.NewEdit(ev, a.opts.Location)
	}

	if err := applyFields(c, fields); err != nil {
		return err
	}
	return c.Submit(ctx, a.store)
}

func (a *App) CloseForm() {
	a.mu.Lock()
	c := a.form
	a.form = nil
	a.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

func (a *App) Delete(ctx context.Context, id string, confirm events.Confirmer) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	return a.store.Delete(ctx, id, confirm)
}

func (a *App) Toggle(ctx context.Context, id string) error {
	if !a.gate.Authenticated() {
		return ErrLocked
	}
	ev, ok := a.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", events.ErrNotFound, id)
	}
	return a.store.ToggleComplete(ctx, ev)
}

// Refresh reloads from the backend. It needs no unlock.
func (a *App) Refresh(ctx context.Context) error {
	return a.store.FetchAll(ctx)
}

// View projects the current store state.
func (a *App) View() State {
	snap := a.store.Snapshot()
	st := State{
		Dashboard:     view.Build(snap.Events, a.opts),
		Authenticated: a.gate.Authenticated(),
		Loading:       snap.Loading,
		Syncing:       snap.Syncing,
		Error:         snap.Error,
		Skipped:       snap.Skipped,
		LoadedAt:      snap.LoadedAt,
		Systems:       model.SuggestedSystems,
	}
	if c := a.openForm(); c != nil {
		st.Form = &FormState{Mode: c.Mode(), Draft: c.Draft(), Error: c.Err(), Busy: c.Busy()}
	}
	return st
}

// Options returns the projector options the app renders with.
func (a *App) Options() view.Options { return a.opts }

// Store exposes the underlying event store for the refresh job and the
// calendar export.
func (a *App) Store() *events.Store { return a.store }
