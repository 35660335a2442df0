package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintdash/internal/model"
)

type fakeSubmitter struct {
	created []model.Draft
	updated []model.Draft
	err     error
}

func (f *fakeSubmitter) Create(_ context.Context, d model.Draft) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, d)
	return nil
}

func (f *fakeSubmitter) Update(_ context.Context, d model.Draft) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, d)
	return nil
}

func (f *fakeSubmitter) calls() int { return len(f.created) + len(f.updated) }

var now = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func TestNewCreate_Defaults(t *testing.T) {
	c := NewCreate(now, nil)
	d := c.Draft()
	assert.Equal(t, ModeCreate, c.Mode())
	assert.True(t, c.Open())
	assert.Empty(t, d.ID)
	assert.Equal(t, "2024-06-01T08:00:00.000Z", d.StartDate)
	assert.Equal(t, d.StartDate, d.EndDate)
	assert.Equal(t, model.EnvProduction, d.Environment)
	assert.Equal(t, model.StatusScheduled, d.Status)
	assert.Equal(t, model.ImpactMedium, d.Impact)
}

func TestSubmit_BlankTitleMakesNoCall(t *testing.T) {
	c := NewCreate(now, nil)
	require.NoError(t, c.SetField("title", ""))
	require.NoError(t, c.SetField("system", "CX"))

	s := &fakeSubmitter{}
	err := c.Submit(context.Background(), s)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"title"}, verr.Fields)
	assert.Equal(t, 0, s.calls())
	assert.True(t, c.Open())
	assert.Equal(t, "CX", c.Draft().System, "draft retained")
	assert.NotEmpty(t, c.Err())
}

func TestSubmit_WhitespaceOnlyFails(t *testing.T) {
	c := NewCreate(now, nil)
	require.NoError(t, c.SetField("title", "Ganti oli"))
	require.NoError(t, c.SetField("system", "   "))

	s := &fakeSubmitter{}
	var verr *ValidationError
	require.True(t, errors.As(c.Submit(context.Background(), s), &verr))
	assert.Equal(t, []string{"system"}, verr.Fields)
	assert.Equal(t, 0, s.calls())
}

func TestSubmit_DescriptionDefaultsToTitle(t *testing.T) {
	c := NewCreate(now, nil)
	require.NoError(t, c.SetField("title", "Ganti oli"))
	require.NoError(t, c.SetField("system", "CX"))

	s := &fakeSubmitter{}
	require.NoError(t, c.Submit(context.Background(), s))

	require.Len(t, s.created, 1)
	assert.Equal(t, "Ganti oli", s.created[0].Description)
	assert.False(t, c.Open())
	assert.Equal(t, model.Draft{}, c.Draft(), "draft cleared")
	assert.Empty(t, c.Err())
}

func TestSubmit_EditUsesUpdate(t *testing.T) {
	ev := model.Event{
		ID: "a1", Title: "Kalibrasi", System: "Chiller", Description: "cek sensor",
		Status: model.StatusInProgress, StartDate: "2024-06-01T08:00:00Z", EndDate: "2024-06-01T08:00:00Z",
		CreatedAt: "2024-05-01T00:00:00Z",
	}
	c := NewEdit(ev, nil)
	assert.Equal(t, ModeEdit, c.Mode())
	require.NoError(t, c.SetField("impact", "High"))

	s := &fakeSubmitter{}
	require.NoError(t, c.Submit(context.Background(), s))
	require.Len(t, s.updated, 1)
	assert.Empty(t, s.created)
	assert.Equal(t, "a1", s.updated[0].ID)
	assert.Equal(t, "cek sensor", s.updated[0].Description)
	assert.Equal(t, model.ImpactHigh, s.updated[0].Impact)
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	c := NewCreate(now, nil)
	require.NoError(t, c.SetField("title", "Ganti oli"))
	require.NoError(t, c.SetField("system", "CX"))
	before := c.Draft()

	s := &fakeSubmitter{err: errors.New("network down")}
	require.Error(t, c.Submit(context.Background(), s))

	assert.True(t, c.Open())
	assert.Equal(t, before, c.Draft(), "description default is not written back")
	assert.Contains(t, c.Err(), "network down")
}

func TestSetField_StartDateMirrorsEnd(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	c := NewCreate(now, wib)
	require.NoError(t, c.SetField("startDate", "2024-06-03T09:30"))

	d := c.Draft()
	assert.Equal(t, "2024-06-03T02:30:00.000Z", d.StartDate)
	assert.Equal(t, d.StartDate, d.EndDate)

	assert.ErrorIs(t, c.SetField("endDate", "2024-06-04T00:00:00Z"), ErrEndDate)
	assert.Error(t, c.SetField("startDate", "kapan-kapan"))
}

func TestSetField_Validation(t *testing.T) {
	c := NewCreate(now, nil)
	assert.ErrorIs(t, c.SetField("impact", "Critical"), ErrInvalidValue)
	assert.Error(t, c.SetField("status", "Done"))
	assert.Error(t, c.SetField("environment", "QA"))
	assert.Error(t, c.SetField("notificationsSent", "yes please"))
	assert.ErrorIs(t, c.SetField("color", "red"), ErrUnknownField)

	require.NoError(t, c.SetField("notificationsSent", "true"))
	require.NoError(t, c.SetField("machine", "CX"))
	require.NoError(t, c.SetField("environment", "Disaster Recovery"))
	d := c.Draft()
	assert.True(t, d.NotificationsSent)
	assert.Equal(t, "CX", d.System)
	assert.Equal(t, model.EnvDisasterRecovery, d.Environment)
}

func TestClose(t *testing.T) {
	c := NewCreate(now, nil)
	require.NoError(t, c.SetField("title", "x"))
	c.Close()
	assert.False(t, c.Open())
	assert.Equal(t, model.Draft{}, c.Draft())
	assert.ErrorIs(t, c.SetField("title", "y"), ErrClosed)
	assert.ErrorIs(t, c.Submit(context.Background(), &fakeSubmitter{}), ErrClosed)
}

// waitingSubmitter blocks Create until release is closed.
type waitingSubmitter struct {
	entered chan struct{}
	release chan struct{}
}

func (w *waitingSubmitter) Create(context.Context, model.Draft) error {
	close(w.entered)
	<-w.release
	return nil
}

func (w *waitingSubmitter) Update(context.Context, model.Draft) error { return nil }

func TestSubmit_BusyWhileStoreWaits(t *testing.T) {
	c := NewCreate(now, nil)
	require.NoError(t, c.SetField("title", "Ganti oli"))
	require.NoError(t, c.SetField("system", "CX"))

	s := &waitingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), s) }()
	<-s.entered

	assert.True(t, c.Busy())
	assert.Equal(t, "Ganti oli", c.Draft().Title)
	assert.ErrorIs(t, c.SetField("title", "x"), ErrBusy)
	assert.ErrorIs(t, c.Submit(context.Background(), s), ErrBusy)

	close(s.release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
	assert.False(t, c.Open())
}
