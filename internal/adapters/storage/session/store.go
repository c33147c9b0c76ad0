package session

import (
	"context"
	"time"

	"trainerdesk/internal/application/scheduler"
	domain "trainerdesk/internal/domain/session"
)

// Store persists Session state. It is a superset of
// scheduler.SessionRepository: the engine consumes the range/write
// operations, the HTTP layer additionally reads single sessions by id.
type Store interface {
	LoadSessions(ctx context.Context, start, end time.Time, f scheduler.Filters) ([]domain.Session, error)
	GetByID(ctx context.Context, id string) (domain.Session, error)
	Create(ctx context.Context, entity domain.Session) (domain.Session, error)
	CreateBatch(ctx context.Context, batch []domain.Session) ([]domain.Session, error)
	Update(ctx context.Context, entity domain.Session) (domain.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
}
