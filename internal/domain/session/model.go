package session

import (
	"errors"
	"regexp"
	"time"
)

// Session status constants. Status is set by the trainer; no transition
// rules are enforced at this layer.
const (
	StatusBooked    = "booked"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []string{StatusBooked, StatusCompleted, StatusCancelled, StatusNoShow}

// Max length constants for user-editable fields.
const (
	MaxLocationLength = 200
	MaxNotesLength    = 2000
)

// Domain errors
var (
	ErrEmptyClientID  = errors.New("session client ID cannot be empty")
	ErrInvalidStatus  = errors.New("session status must be 'booked', 'completed', 'cancelled', or 'no-show'")
	ErrInvalidTimes   = errors.New("session start must be before end")
	ErrInvalidDateKey = errors.New("session date key must be YYYY-MM-DD")
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Session represents a single time-boxed appointment with a client.
// StartAt and EndAt are absolute instants stored in UTC; DateKey is the
// local-calendar-day projection of StartAt in the viewer's timezone.
// PRE: ClientID references an externally-owned client record.
// INVARIANT: StartAt < EndAt. DateKey equals the local date of StartAt.
type Session struct {
	ID        string
	ClientID  string
	DateKey   string // YYYY-MM-DD in the display timezone
	StartAt   time.Time
	EndAt     time.Time
	Status    string
	Location  string
	Notes     string
	Recurring bool // produced by weekly expansion; informational only
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the session's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (s *Session) Validate() error {
	if s.ClientID == "" {
		return ErrEmptyClientID
	}
	if !dateKeyPattern.MatchString(s.DateKey) {
		return ErrInvalidDateKey
	}
	if s.StartAt.IsZero() || s.EndAt.IsZero() || !s.StartAt.Before(s.EndAt) {
		return ErrInvalidTimes
	}
	if !isValidStatus(s.Status) {
		return ErrInvalidStatus
	}
	if len(s.Location) > MaxLocationLength {
		return errors.New("session location cannot exceed 200 characters")
	}
	if len(s.Notes) > MaxNotesLength {
		return errors.New("session notes cannot exceed 2000 characters")
	}
	return nil
}

// MonthKey returns the YYYY-MM portion of the session's date key.
// PRE: DateKey is valid
// POST: returns the month bucket the session belongs to
func (s *Session) MonthKey() string {
	if len(s.DateKey) < 7 {
		return s.DateKey
	}
	return s.DateKey[:7]
}

// Duration returns the booked length of the session.
// INVARIANT: non-negative whenever Validate passes
func (s *Session) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}

func isValidStatus(status string) bool {
	for _, v := range ValidStatuses {
		if v == status {
			return true
		}
	}
	return false
}
