package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"maintdash/internal/dashboard"
	appLog "maintdash/internal/log"
	"maintdash/internal/model"
	"maintdash/internal/view"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type pageData struct {
	Title string
	Ready bool
	// TimeRange renders an event's hours in the dashboard's zone.
	TimeRange func(ev model.Event) string
	Stats     view.Stats
	Groups    []view.Group
	Completed []model.Event
	Error     string
	Auth      bool
	Systems   []string
	Envs      []model.Environment
	Statuses  []model.Status
	Impacts   []model.Impact
	// Form is the open create/edit form, nil when none is open.
	Form *dashboard.FormState
	// FormStart is the draft's start in datetime-local form.
	FormStart string
}

// handlePage renders the dashboard server-side. data-ready on <body> turns
// true once the first load has finished, which snapshot capture waits for.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	st := s.app.View()
	loc := s.app.Options().Location

	data := pageData{
		Title: s.cfg.ICSExport.Name,
		Ready: st.Ready(),
		TimeRange: func(ev model.Event) string {
			return view.TimeRange(ev.StartDate, ev.EndDate, loc)
		},
		Stats:     st.Stats,
		Groups:    st.Groups,
		Completed: st.Completed,
		Error:     st.Error,
		Auth:      st.Authenticated,
		Systems:   st.Systems,
		Envs:      model.Environments,
		Statuses:  model.Statuses,
		Impacts:   model.Impacts,
		Form:      st.Form,
	}
	if st.Form != nil {
		data.FormStart = localInput(st.Form.Draft.StartDate, loc)
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		appLog.Error("render dashboard page failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func localInput(ts string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t, ok := model.ParseTimestamp(ts)
	if !ok {
		return ""
	}
	return t.In(loc).Format("2006-01-02T15:04")
}
