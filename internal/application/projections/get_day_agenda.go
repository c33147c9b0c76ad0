package projections

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"trainerdesk/internal/application/scheduler"
	"trainerdesk/internal/application/timeutil"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in note input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// GetDayAgendaQuery carries input for the day agenda projection.
type GetDayAgendaQuery struct {
	DateKey string // YYYY-MM-DD in the trainer's timezone
}

// GetDayAgendaDeps holds dependencies for the day agenda projection.
type GetDayAgendaDeps struct {
	Repo       scheduler.SessionRepository
	Clients    scheduler.ClientDirectory
	Normalizer *timeutil.Normalizer
}

// AgendaItem is one session on the day's agenda, enriched for display.
type AgendaItem struct {
	SessionID  string `json:"session_id"`
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	Start      string `json:"start"` // HH:MM local
	End        string `json:"end"`   // HH:MM local
	Status     string `json:"status"`
	Location   string `json:"location,omitempty"`
	NotesHTML  string `json:"notes_html,omitempty"` // Markdown notes rendered to HTML
	Recurring  bool   `json:"recurring"`
}

// DayAgendaResult carries the output of the day agenda projection.
type DayAgendaResult struct {
	DateKey string       `json:"date_key"`
	Items   []AgendaItem `json:"items"`
}

// QueryGetDayAgenda returns the sessions for one local calendar day,
// ordered by start time, with client names resolved and notes rendered.
func QueryGetDayAgenda(ctx context.Context, query GetDayAgendaQuery, deps GetDayAgendaDeps) (DayAgendaResult, error) {
	day, err := time.ParseInLocation(timeutil.DateKeyLayout, query.DateKey, deps.Normalizer.Location())
	if err != nil {
		return DayAgendaResult{}, fmt.Errorf("invalid date key %q: %w", query.DateKey, err)
	}
	dayEnd := day.AddDate(0, 0, 1).Add(-time.Nanosecond)

	sessions, err := deps.Repo.LoadSessions(ctx, day.UTC(), dayEnd.UTC(), scheduler.Filters{})
	if err != nil {
		return DayAgendaResult{}, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartAt.Before(sessions[j].StartAt)
	})

	names, err := clientNames(ctx, deps.Clients)
	if err != nil {
		return DayAgendaResult{}, err
	}

	result := DayAgendaResult{DateKey: query.DateKey, Items: []AgendaItem{}}
	for _, s := range sessions {
		item := AgendaItem{
			SessionID:  s.ID,
			ClientID:   s.ClientID,
			ClientName: names[s.ClientID],
			Start:      deps.Normalizer.FormatTimeOfDay(s.StartAt),
			End:        deps.Normalizer.FormatTimeOfDay(s.EndAt),
			Status:     s.Status,
			Location:   s.Location,
			Recurring:  s.Recurring,
		}
		if item.ClientName == "" {
			item.ClientName = s.ClientID
		}
		if s.Notes != "" {
			item.NotesHTML = renderNotes(s.Notes)
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// renderNotes converts Markdown notes to HTML. On renderer failure the
// notes are dropped rather than served raw.
func renderNotes(notes string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(notes), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// clientNames builds a display-name lookup from the directory.
func clientNames(ctx context.Context, dir scheduler.ClientDirectory) (map[string]string, error) {
	clients, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.DisplayName()
	}
	return names, nil
}
