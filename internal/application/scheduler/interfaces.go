package scheduler

import (
	"context"
	"time"

	"trainerdesk/internal/domain/client"
	"trainerdesk/internal/domain/session"
)

// Filters restricts a session range load. Zero value applies no filtering;
// set fields combine with AND semantics.
type Filters struct {
	Statuses []string // membership match on session status
	ClientID string   // exact match
}

// SessionRepository is the persistence collaborator consumed by the
// scheduling engine. Implementations own durability; the engine only assumes
// the contracts stated here. LoadSessions returns every session whose start
// instant falls within the inclusive [start, end] range.
type SessionRepository interface {
	LoadSessions(ctx context.Context, start, end time.Time, f Filters) ([]session.Session, error)
	Create(ctx context.Context, s session.Session) (session.Session, error)
	CreateBatch(ctx context.Context, batch []session.Session) ([]session.Session, error)
	Update(ctx context.Context, s session.Session) (session.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ClientDirectory supplies client records for display-name lookups.
// The scheduling engine only reads ID and name fields.
type ClientDirectory interface {
	List(ctx context.Context) ([]client.Client, error)
}
