package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintdash/internal/events"
	"maintdash/internal/form"
	"maintdash/internal/gate"
	"maintdash/internal/model"
	"maintdash/internal/rowstore"
	"maintdash/internal/view"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newApp(t *testing.T, seed ...rowstore.Row) (*App, *rowstore.Memory) {
	t.Helper()
	mem := rowstore.NewMemory(clock)
	mem.Seed(seed...)
	store := events.NewStore(mem, events.WithClock(clock))
	require.NoError(t, store.FetchAll(context.Background()))
	app := New(store, gate.New(""), view.Options{Locale: "en"}, clock)
	return app, mem
}

func TestWriteActionsNeedLogin(t *testing.T) {
	app, _ := newApp(t, rowstore.Row{"id": "a", "title": "Ganti oli", "system": "CX", "start_date": "2024-06-01T08:00:00Z"})
	ctx := context.Background()

	assert.ErrorIs(t, app.OpenCreate(), ErrLocked)
	assert.ErrorIs(t, app.OpenEdit("a"), ErrLocked)
	assert.ErrorIs(t, app.EditField("title", "x"), ErrLocked)
	assert.ErrorIs(t, app.Submit(ctx), ErrLocked)
	assert.ErrorIs(t, app.Delete(ctx, "a", events.Always(true)), ErrLocked)
	assert.ErrorIs(t, app.Toggle(ctx, "a"), ErrLocked)
	assert.ErrorIs(t, app.Save(ctx, "", map[string]string{"title": "x", "system": "y"}), ErrLocked)

	// Reading and refreshing stay open.
	assert.NoError(t, app.Refresh(ctx))
	assert.Len(t, app.View().Groups, 1)

	assert.False(t, app.Login("0000"))
	assert.False(t, app.View().Authenticated)
	assert.True(t, app.Login("6666"))
	assert.True(t, app.View().Authenticated)
}

func TestCreateFlow(t *testing.T) {
	app, _ := newApp(t)
	ctx := context.Background()
	require.True(t, app.Login("6666"))

	assert.ErrorIs(t, app.EditField("title", "x"), ErrNoForm)
	assert.ErrorIs(t, app.Submit(ctx), ErrNoForm)

	require.NoError(t, app.OpenCreate())
	st := app.View()
	require.NotNil(t, st.Form)
	assert.Equal(t, form.ModeCreate, st.Form.Mode)

	require.NoError(t, app.EditField("system", "CX"))
	err := app.Submit(ctx)
	var verr *form.ValidationError
	require.True(t, errors.As(err, &verr))
	require.NotNil(t, app.View().Form, "form stays open after validation failure")
	assert.NotEmpty(t, app.View().Form.Error)

	require.NoError(t, app.EditField("title", "Ganti oli"))
	require.NoError(t, app.Submit(ctx))

	st = app.View()
	assert.Nil(t, st.Form)
	require.Len(t, st.Groups, 1)
	ev := st.Groups[0].Events[0]
	assert.Equal(t, "Ganti oli", ev.Title)
	assert.Equal(t, "Ganti oli", ev.Description)
	assert.Equal(t, "Saturday, June 1, 2024", st.Groups[0].Label)
}

func TestEditAndToggle(t *testing.T) {
	app, _ := newApp(t, rowstore.Row{
		"id": "a", "title": "Kalibrasi", "system": "Chiller",
		"start_date": "2024-06-01T08:00:00Z", "end_date": "2024-06-01T10:00:00Z",
	})
	ctx := context.Background()
	require.True(t, app.Login("6666"))

	assert.ErrorIs(t, app.OpenEdit("missing"), events.ErrNotFound)
	require.NoError(t, app.OpenEdit("a"))
	assert.Equal(t, form.ModeEdit, app.View().Form.Mode)
	require.NoError(t, app.EditField("impact", "High"))
	require.NoError(t, app.Submit(ctx))

	ev, ok := app.Store().Get("a")
	require.True(t, ok)
	assert.Equal(t, model.ImpactHigh, ev.Impact)

	require.NoError(t, app.Toggle(ctx, "a"))
	st := app.View()
	assert.Empty(t, st.Groups)
	require.Len(t, st.Completed, 1)
	assert.Equal(t, 100, st.Stats.CompletedPct)

	require.NoError(t, app.Toggle(ctx, "a"))
	ev, _ = app.Store().Get("a")
	assert.Equal(t, model.StatusScheduled, ev.Status)
	assert.Equal(t, "2024-06-01T10:00:00Z", ev.EndDate)
}

func TestSaveDoesNotTouchFormSlot(t *testing.T) {
	app, _ := newApp(t)
	ctx := context.Background()
	require.True(t, app.Login("6666"))
	require.NoError(t, app.OpenCreate())
	require.NoError(t, app.EditField("title", "draft in progress"))

	require.NoError(t, app.Save(ctx, "", map[string]string{"title": "Ganti filter", "machine": "Compressor", "impact": "Low"}))
	assert.Error(t, app.Save(ctx, "", map[string]string{"title": "x", "system": "y", "impact": "Critical"}))

	st := app.View()
	require.NotNil(t, st.Form)
	assert.Equal(t, "draft in progress", st.Form.Draft.Title)
	require.Len(t, st.Groups, 1)
	assert.Equal(t, "Compressor", st.Groups[0].Events[0].System)
}

// gatedRows holds Insert until release is closed.
type gatedRows struct {
	*rowstore.Memory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRows) Insert(ctx context.Context, row rowstore.Row) (rowstore.Row, error) {
	close(g.entered)
	<-g.release
	return g.Memory.Insert(ctx, row)
}

func TestSubmit_DoesNotBlockViewWhileStoreWaits(t *testing.T) {
	rows := &gatedRows{
		Memory:  rowstore.NewMemory(clock),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := events.NewStore(rows, events.WithClock(clock))
	app := New(store, gate.New(""), view.Options{Locale: "en"}, clock)
	ctx := context.Background()

	require.True(t, app.Login("6666"))
	require.NoError(t, app.OpenCreate())
	require.NoError(t, app.EditField("title", "Ganti oli"))
	require.NoError(t, app.EditField("system", "CX"))

	done := make(chan error, 1)
	go func() { done <- app.Submit(ctx) }()
	<-rows.entered

	viewed := make(chan State, 1)
	go func() { viewed <- app.View() }()
	select {
	case st := <-viewed:
		assert.True(t, st.Syncing)
		require.NotNil(t, st.Form)
		assert.True(t, st.Form.Busy)
		assert.Equal(t, "Ganti oli", st.Form.Draft.Title)
	case <-time.After(2 * time.Second):
		close(rows.release)
		t.Fatal("View blocked while the store call was pending")
	}

	assert.ErrorIs(t, app.EditField("title", "x"), form.ErrBusy)
	assert.ErrorIs(t, app.Submit(ctx), form.ErrBusy)

	// A form opened while the first one is in flight survives its success.
	require.NoError(t, app.OpenCreate())
	require.NoError(t, app.EditField("title", "next"))

	close(rows.release)
	require.NoError(t, <-done)

	st := app.View()
	require.NotNil(t, st.Form)
	assert.Equal(t, "next", st.Form.Draft.Title)
	require.Len(t, st.Groups, 1)
	assert.Equal(t, "Ganti oli", st.Groups[0].Events[0].Title)
}

func TestDeleteAndLogout(t *testing.T) {
	app, mem := newApp(t, rowstore.Row{"id": "a", "title": "Ganti oli", "system": "CX", "start_date": "2024-06-01T08:00:00Z"})
	ctx := context.Background()
	require.True(t, app.Login("6666"))

	assert.ErrorIs(t, app.Delete(ctx, "a", events.Always(false)), events.ErrDeclined)
	rows, err := mem.SelectAll(ctx, "start_date")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, app.Delete(ctx, "a", events.Always(true)))
	assert.Empty(t, app.View().Groups)

	require.NoError(t, app.OpenCreate())
	app.Logout()
	st := app.View()
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.Form)
}
