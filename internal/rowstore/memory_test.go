package rowstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(func() time.Time { return now })

	b, err := m.Insert(ctx, Row{"title": "B", "start_date": "2024-06-02T00:00:00.000Z"})
	require.NoError(t, err)
	a, err := m.Insert(ctx, Row{"title": "A", "start_date": "2024-06-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.NotEmpty(t, a["id"])
	assert.NotEqual(t, a["id"], b["id"])
	assert.Equal(t, "2024-06-01T00:00:00Z", a["created_at"])

	rows, err := m.SelectAll(ctx, "start_date")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0]["title"])

	// Returned rows are copies.
	rows[0]["title"] = "mutated"
	again, _ := m.SelectAll(ctx, "start_date")
	assert.Equal(t, "A", again[0]["title"])

	up, err := m.Update(ctx, b["id"].(string), Row{"status": "Completed"})
	require.NoError(t, err)
	assert.Equal(t, "Completed", up["status"])
	assert.Equal(t, "B", up["title"])

	require.NoError(t, m.Delete(ctx, b["id"].(string)))
	assert.ErrorIs(t, m.Delete(ctx, b["id"].(string)), ErrNotFound)
	_, err = m.Update(ctx, "nope", Row{"status": "Completed"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Insert(ctx, Row{"id": "forced"})
	assert.Error(t, err, "id is not writable")
}

func TestMemory_Seed(t *testing.T) {
	m := NewMemory(nil)
	m.Seed(Row{"id": "x", "title": "seeded", "machine": "CX"}, Row{"title": "no id"})

	rows, err := m.SelectAll(context.Background(), "id")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var found bool
	for _, r := range rows {
		if r["id"] == "x" {
			found = true
			assert.Equal(t, "CX", r["machine"], "seeded rows keep legacy columns")
		}
	}
	assert.True(t, found)
}
