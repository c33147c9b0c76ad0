package session_test

import (
	"testing"
	"time"

	"trainerdesk/internal/domain/session"
)

// TestSession_Validate tests validation of Session.
func TestSession_Validate(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sess    session.Session
		wantErr bool
	}{
		{
			name:    "valid session",
			sess:    session.Session{ID: "s1", ClientID: "c1", DateKey: "2024-03-04", StartAt: start, EndAt: end, Status: session.StatusBooked},
			wantErr: false,
		},
		{
			name:    "valid completed session",
			sess:    session.Session{ID: "s2", ClientID: "c1", DateKey: "2024-03-04", StartAt: start, EndAt: end, Status: session.StatusCompleted},
			wantErr: false,
		},
		{
			name:    "empty client ID",
			sess:    session.Session{ID: "s3", ClientID: "", DateKey: "2024-03-04", StartAt: start, EndAt: end, Status: session.StatusBooked},
			wantErr: true,
		},
		{
			name:    "start equals end",
			sess:    session.Session{ID: "s4", ClientID: "c1", DateKey: "2024-03-04", StartAt: start, EndAt: start, Status: session.StatusBooked},
			wantErr: true,
		},
		{
			name:    "start after end",
			sess:    session.Session{ID: "s5", ClientID: "c1", DateKey: "2024-03-04", StartAt: end, EndAt: start, Status: session.StatusBooked},
			wantErr: true,
		},
		{
			name:    "zero start",
			sess:    session.Session{ID: "s6", ClientID: "c1", DateKey: "2024-03-04", EndAt: end, Status: session.StatusBooked},
			wantErr: true,
		},
		{
			name:    "invalid status",
			sess:    session.Session{ID: "s7", ClientID: "c1", DateKey: "2024-03-04", StartAt: start, EndAt: end, Status: "tentative"},
			wantErr: true,
		},
		{
			name:    "malformed date key",
			sess:    session.Session{ID: "s8", ClientID: "c1", DateKey: "04/03/2024", StartAt: start, EndAt: end, Status: session.StatusBooked},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sess.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Session.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestSession_MonthKey tests month bucket derivation from the date key.
func TestSession_MonthKey(t *testing.T) {
	s := session.Session{DateKey: "2024-03-04"}
	if got := s.MonthKey(); got != "2024-03" {
		t.Errorf("MonthKey() = %q, want 2024-03", got)
	}
}

// TestSession_Duration tests booked duration.
func TestSession_Duration(t *testing.T) {
	s := session.Session{
		StartAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
	}
	if got := s.Duration(); got != 90*time.Minute {
		t.Errorf("Duration() = %v, want 90m", got)
	}
}
