package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"maintdash/internal/dashboard"
	"maintdash/internal/events"
	"maintdash/internal/form"
	"maintdash/internal/ics"
	appLog "maintdash/internal/log"
	"maintdash/internal/rowstore"
)

// maxBody bounds request bodies on write endpoints.
const maxBody = 64 << 10

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Refresh(r.Context()); err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

type loginRequest struct {
	Passcode string `json:"passcode"`
}

type loginResponse struct {
	Authenticated bool `json:"authenticated"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.app.Login(req.Passcode) {
		writeJSON(w, http.StatusUnauthorized, loginResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Authenticated: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.app.Logout()
	writeJSON(w, http.StatusOK, loginResponse{Authenticated: false})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, "")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, r.PathValue("id"))
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, id string) {
	fields, err := decodeFields(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.Save(r.Context(), id, fields); err != nil {
		s.writeActionError(w, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.app.View())
}

type openFormRequest struct {
	// ID selects edit mode; empty opens a blank create form.
	ID string `json:"id"`
}

// handleFormOpen puts a create or edit form into the dashboard's form slot.
// The page renders whatever the slot holds.
func (s *Server) handleFormOpen(w http.ResponseWriter, r *http.Request) {
	var req openFormRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var err error
	if req.ID == "" {
		err = s.app.OpenCreate()
	} else {
		err = s.app.OpenEdit(req.ID)
	}
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleFormEdit(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.EditFields(fields); err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

// handleFormSubmit sends the open form. On failure the form stays in the
// slot with its draft and inline error for the next render.
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Submit(r.Context()); err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleFormClose(w http.ResponseWriter, _ *http.Request) {
	s.app.CloseForm()
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "yes"
	if err := s.app.Delete(r.Context(), r.PathValue("id"), events.Always(confirmed)); err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Toggle(r.Context(), r.PathValue("id")); err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	snap := s.app.Store().Snapshot()
	body := ics.Export(snap.Events, ics.ExportOptions{Name: s.cfg.ICSExport.Name, Now: s.now()})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="maintenance.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// decodeFields reads a flat JSON object of form fields. Strings pass
// through and booleans become "true"/"false"; anything else is rejected.
func decodeFields(r io.Reader) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch k {
		case "id", "createdAt", "created_at", "endDate", "end_date":
			// Server-owned: the id comes from the path and the end date follows the start date.
			continue
		}
		switch val := v.(type) {
		case string:
			fields[k] = val
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %q must be a string or boolean", k)
		}
	}
	return fields, nil
}

// writeActionError maps dashboard and store errors onto HTTP statuses.
func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	var (
		verr *form.ValidationError
		werr *events.WriteError
		lerr *events.LoadError
	)
	switch {
	case errors.Is(err, dashboard.ErrLocked):
		writeError(w, http.StatusForbidden, "locked: log in with the passcode first")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: err.Error(), Fields: verr.Fields})
	case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrInvalidValue), errors.Is(err, form.ErrEndDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, events.ErrNotFound), errors.Is(err, rowstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "maintenance window not found")
	case errors.Is(err, events.ErrDeclined):
		writeError(w, http.StatusPreconditionRequired, "add ?confirm=yes to delete")
	case errors.Is(err, events.ErrSyncInFlight), errors.Is(err, form.ErrBusy), errors.Is(err, dashboard.ErrNoForm):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &werr), errors.As(err, &lerr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		appLog.Error("unhandled action error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
