package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestREST(t *testing.T, h http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	r, err := NewREST(RESTOptions{BaseURL: srv.URL, APIKey: "anon-key", Table: "maintenance_events"})
	require.NoError(t, err)
	return r
}

func TestREST_SelectAll(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/rest/v1/maintenance_events", req.URL.Path)
		assert.Equal(t, "*", req.URL.Query().Get("select"))
		assert.Equal(t, "start_date.asc", req.URL.Query().Get("order"))
		assert.Equal(t, "anon-key", req.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", req.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a","title":"Ganti oli","startDate":"2024-06-01T08:00:00Z"}]`))
	})

	rows, err := r.SelectAll(context.Background(), "start_date")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ganti oli", rows[0]["title"])
}

func TestREST_Insert(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "return=representation", req.Header.Get("Prefer"))

		body, _ := io.ReadAll(req.Body)
		var got map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "CX", got["system"])

		got["id"] = "srv-1"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]map[string]any{got})
	})

	row, err := r.Insert(context.Background(), Row{"title": "Ganti oli", "system": "CX"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", row["id"])
}

func TestREST_UpdateAndDeleteNotFound(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "eq.missing", req.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := r.Update(context.Background(), "missing", Row{"status": "Completed"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Delete(context.Background(), "missing"), ErrNotFound)
}

func TestREST_ErrorStatus(t *testing.T) {
	calls := 0
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
	})

	_, err := r.SelectAll(context.Background(), "start_date")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "permission denied")
	assert.Equal(t, 1, calls, "failures are not retried")
}

func TestNewREST_Validation(t *testing.T) {
	_, err := NewREST(RESTOptions{Table: "maintenance_events"})
	assert.Error(t, err)
	_, err = NewREST(RESTOptions{BaseURL: "http://x", Table: "bad table"})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://xyz.supabase.co/...(redacted)", redactURL("https://xyz.supabase.co/rest/v1?apikey=s"))
	assert.Equal(t, "rest://...(redacted)", redactURL("not a url"))
}
