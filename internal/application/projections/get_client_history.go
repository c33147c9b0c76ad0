package projections

import (
	"context"
	"errors"
	"sort"
	"time"

	"trainerdesk/internal/application/scheduler"
	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/domain/session"
)

// ErrMissingClientID is returned when the history query has no client.
var ErrMissingClientID = errors.New("client ID is required")

// GetClientHistoryQuery carries input for the client history projection.
type GetClientHistoryQuery struct {
	ClientID string
	Statuses []string // Optional status filter, e.g. only completed
	From     time.Time
	To       time.Time // Zero means "now"
}

// GetClientHistoryDeps holds dependencies for the client history projection.
type GetClientHistoryDeps struct {
	Repo       scheduler.SessionRepository
	Normalizer *timeutil.Normalizer
	Now        func() time.Time
}

// HistoryEntry is one past session in a client's history.
type HistoryEntry struct {
	SessionID string  `json:"session_id"`
	DateKey   string  `json:"date_key"`
	Start     string  `json:"start"` // HH:MM local
	End       string  `json:"end"`   // HH:MM local
	Status    string  `json:"status"`
	Location  string  `json:"location,omitempty"`
	Hours     float64 `json:"hours"`
}

// ClientHistoryResult carries the output of the client history projection.
type ClientHistoryResult struct {
	ClientID       string         `json:"client_id"`
	TotalSessions  int            `json:"total_sessions"`
	CompletedCount int            `json:"completed_count"`
	NoShowCount    int            `json:"no_show_count"`
	TotalHours     float64        `json:"total_hours"` // Completed sessions only
	Entries        []HistoryEntry `json:"entries"`     // Newest first
}

// QueryGetClientHistory returns a client's session history newest-first,
// with completion tallies. Hours only accrue for completed sessions.
func QueryGetClientHistory(ctx context.Context, query GetClientHistoryQuery, deps GetClientHistoryDeps) (ClientHistoryResult, error) {
	if query.ClientID == "" {
		return ClientHistoryResult{}, ErrMissingClientID
	}

	from := query.From
	if from.IsZero() {
		// A year back covers any realistic coaching relationship view.
		from = deps.Now().AddDate(-1, 0, 0)
	}
	to := query.To
	if to.IsZero() {
		to = deps.Now()
	}

	sessions, err := deps.Repo.LoadSessions(ctx, from.UTC(), to.UTC(), scheduler.Filters{
		ClientID: query.ClientID,
		Statuses: query.Statuses,
	})
	if err != nil {
		return ClientHistoryResult{}, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartAt.After(sessions[j].StartAt)
	})

	result := ClientHistoryResult{ClientID: query.ClientID, Entries: []HistoryEntry{}}
	for _, s := range sessions {
		result.TotalSessions++
		switch s.Status {
		case session.StatusCompleted:
			result.CompletedCount++
			result.TotalHours += s.Duration().Hours()
		case session.StatusNoShow:
			result.NoShowCount++
		}
		result.Entries = append(result.Entries, HistoryEntry{
			SessionID: s.ID,
			DateKey:   s.DateKey,
			Start:     deps.Normalizer.FormatTimeOfDay(s.StartAt),
			End:       deps.Normalizer.FormatTimeOfDay(s.EndAt),
			Status:    s.Status,
			Location:  s.Location,
			Hours:     s.Duration().Hours(),
		})
	}
	return result, nil
}
