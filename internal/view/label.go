package view

import (
	"fmt"
	"time"

	"maintdash/internal/model"
)

var (
	idWeekdays = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	idMonths   = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember"}
)

// DayLabel formats a day heading, e.g. "Sabtu, 1 Juni 2024" for "id" and
// "Saturday, June 1, 2024" for "en".
func DayLabel(t time.Time, locale string) string {
	switch locale {
	case "en":
		return t.Format("Monday, January 2, 2006")
	default:
		return fmt.Sprintf("%s, %d %s %d", idWeekdays[t.Weekday()], t.Day(), idMonths[t.Month()-1], t.Year())
	}
}

// TimeRange renders "08:00 – 10:30" in loc, or a single time when both ends
// match. Unparseable input is returned as is.
func TimeRange(start, end string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	s, ok := model.ParseTimestamp(start)
	if !ok {
		return start
	}
	from := s.In(loc).Format("15:04")
	e, ok := model.ParseTimestamp(end)
	if !ok || e.Equal(s) {
		return from
	}
	return from + " – " + e.In(loc).Format("15:04")
}
