package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintdash/internal/model"
)

func ev(id, start string, status model.Status) model.Event {
	return model.Event{ID: id, Title: id, System: "CX", StartDate: start, EndDate: start, Status: status, Impact: model.ImpactMedium}
}

func TestSortChronological_Stable(t *testing.T) {
	in := []model.Event{
		ev("late", "2024-06-02T08:00:00Z", model.StatusScheduled),
		ev("bad", "not a date", model.StatusScheduled),
		ev("early-1", "2024-06-01T08:00:00Z", model.StatusScheduled),
		ev("early-2", "2024-06-01T08:00:00Z", model.StatusScheduled),
	}
	out := SortChronological(in)

	ids := []string{}
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"early-1", "early-2", "late", "bad"}, ids)
	assert.Equal(t, "late", in[0].ID, "input is not modified")
}

func TestGroupByDay_TwoDays(t *testing.T) {
	events := SortChronological([]model.Event{
		ev("b", "2024-06-02T09:00:00Z", model.StatusScheduled),
		ev("a1", "2024-06-01T08:00:00Z", model.StatusScheduled),
		ev("a2", "2024-06-01T15:00:00Z", model.StatusScheduled),
	})
	groups := GroupByDay(events, Options{Location: time.UTC})

	require.Len(t, groups, 2)
	assert.Equal(t, "2024-06-01", groups[0].Key)
	assert.Equal(t, "Sabtu, 1 Juni 2024", groups[0].Label)
	require.Len(t, groups[0].Events, 2)
	for _, e := range groups[0].Events {
		assert.Contains(t, e.StartDate, "2024-06-01")
	}
	assert.Equal(t, "2024-06-02", groups[1].Key)
	require.Len(t, groups[1].Events, 1)
	assert.Equal(t, "b", groups[1].Events[0].ID)
}

func TestGroupByDay_UsesLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	events := []model.Event{ev("x", "2024-06-01T20:00:00Z", model.StatusScheduled)}
	groups := GroupByDay(events, Options{Location: jakarta, Locale: "en"})
	require.Len(t, groups, 1)
	assert.Equal(t, "2024-06-02", groups[0].Key)
	assert.Equal(t, "Sunday, June 2, 2024", groups[0].Label)
}

func TestGroupByDay_UnparseableDate(t *testing.T) {
	groups := GroupByDay([]model.Event{ev("x", "besok", model.StatusScheduled)}, Options{})
	require.Len(t, groups, 1)
	assert.Equal(t, "besok", groups[0].Key)
	assert.Equal(t, "besok", groups[0].Label)
}

func TestGroupThenFlatten_PreservesSortedList(t *testing.T) {
	events := SortChronological([]model.Event{
		ev("c", "2024-06-03T00:00:00Z", model.StatusScheduled),
		ev("a", "2024-06-01T00:00:00Z", model.StatusCompleted),
		ev("b1", "2024-06-02T00:00:00Z", model.StatusScheduled),
		ev("b2", "2024-06-02T23:00:00Z", model.StatusInProgress),
		ev("z", "???", model.StatusScheduled),
	})
	assert.Equal(t, events, Flatten(GroupByDay(events, Options{})))
}

func TestPartition(t *testing.T) {
	active, completed := Partition([]model.Event{
		ev("a", "2024-06-01T00:00:00Z", model.StatusCompleted),
		ev("b", "2024-06-02T00:00:00Z", model.StatusInProgress),
		ev("c", "2024-06-03T00:00:00Z", model.StatusCompleted),
	})
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)
	require.Len(t, completed, 2)
	assert.Equal(t, "a", completed[0].ID, "oldest completed first")
}

func TestHealthScore(t *testing.T) {
	assert.Equal(t, 87, HealthScore(2, 50, 40))
	assert.Equal(t, 100, HealthScore(0, 100, 100))
	assert.Equal(t, 0, HealthScore(40, 0, 0))
	assert.Equal(t, 78, HealthScore(0, 0, 0))
}

func TestComputeStats(t *testing.T) {
	events := []model.Event{
		{System: " CX ", Impact: model.ImpactHigh, NotificationsSent: true, Status: model.StatusCompleted},
		{System: "CX", Impact: model.ImpactLow, Status: model.StatusScheduled},
		{System: "Boiler", Impact: model.ImpactHigh, NotificationsSent: true, Status: model.StatusScheduled},
		{System: "  ", Impact: model.ImpactMedium, Status: model.StatusInProgress},
	}
	st := ComputeStats(events)

	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.Systems)
	assert.Equal(t, 2, st.HighImpact)
	assert.Equal(t, 50, st.Coverage)
	assert.Equal(t, 25, st.CompletedPct)
	assert.Equal(t, 3, st.Active)
	assert.Equal(t, 1, st.Completed)
	// 78 + 10 + 3.125 - 9 = 82.125
	assert.Equal(t, 82, st.Health)
}

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(nil)
	assert.Equal(t, Stats{Health: 78}, st)
}

func TestBuild(t *testing.T) {
	d := Build([]model.Event{
		ev("done", "2024-06-01T08:00:00Z", model.StatusCompleted),
		ev("next", "2024-06-02T08:00:00Z", model.StatusScheduled),
	}, Options{})
	require.Len(t, d.Groups, 1)
	assert.Equal(t, "next", d.Groups[0].Events[0].ID)
	require.Len(t, d.Completed, 1)
	assert.Equal(t, 2, d.Stats.Total)

	require.Len(t, d.All, 2)
	assert.Equal(t, "done", d.All[0].Events[0].ID)
	assert.Equal(t, "next", d.All[1].Events[0].ID)
	assert.Equal(t, SortChronological(append(d.Completed, d.Groups[0].Events...)), Flatten(d.All))
}

func TestTimeRange(t *testing.T) {
	assert.Equal(t, "08:00", TimeRange("2024-06-01T08:00:00Z", "2024-06-01T08:00:00Z", nil))
	assert.Equal(t, "08:00 – 10:30", TimeRange("2024-06-01T08:00:00Z", "2024-06-01T10:30:00Z", time.UTC))
	assert.Equal(t, "nanti", TimeRange("nanti", "", nil))
}
