package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"trainerdesk/internal/application/scheduler"
	"trainerdesk/internal/domain/session"
)

// icsWindow is how far back and forward the calendar export reaches.
const (
	icsLookback  = 30 * 24 * time.Hour
	icsLookahead = 90 * 24 * time.Hour
)

// handleGetCalendarICS serves sessions as an ICS feed so the trainer
// can subscribe from a phone calendar. With year and month query
// parameters it exports just that month; otherwise a rolling window
// around now. Cancelled sessions are exported with the matching ICS
// status so subscribers see them struck through rather than silently
// missing.
func (s *Server) handleGetCalendarICS(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now()
	start, end := now.Add(-icsLookback), now.Add(icsLookahead)
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, yerr := strconv.Atoi(yearStr)
		month, merr := strconv.Atoi(r.URL.Query().Get("month"))
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			http.Error(w, "invalid year or month", http.StatusBadRequest)
			return
		}
		start, end = s.deps.Normalizer.MonthRange(year, time.Month(month), 0)
	}

	sessions, err := s.deps.Sessions.LoadSessions(r.Context(), start, end, scheduler.Filters{})
	if err != nil {
		internalError(w, err)
		return
	}

	names, err := clientDisplayNames(r, s)
	if err != nil {
		internalError(w, err)
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//trainerdesk//calendar//EN")
	cal.SetName("Training sessions")

	for _, sess := range sessions {
		ev := cal.AddEvent(sess.ID + "@trainerdesk")
		ev.SetDtStampTime(now)
		ev.SetStartAt(sess.StartAt)
		ev.SetEndAt(sess.EndAt)
		ev.SetSummary(eventSummary(sess, names))
		if sess.Location != "" {
			ev.SetLocation(sess.Location)
		}
		switch sess.Status {
		case session.StatusCancelled:
			ev.SetStatus(ical.ObjectStatusCancelled)
		default:
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trainerdesk.ics"`)
	if _, err := fmt.Fprint(w, cal.Serialize()); err != nil {
		return
	}
}

func eventSummary(sess session.Session, names map[string]string) string {
	name := names[sess.ClientID]
	if name == "" {
		name = sess.ClientID
	}
	return "Session: " + name
}

func clientDisplayNames(r *http.Request, s *Server) (map[string]string, error) {
	clients, err := s.deps.Clients.List(r.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.DisplayName()
	}
	return names, nil
}
