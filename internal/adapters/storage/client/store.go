package client

import (
	"context"

	domain "trainerdesk/internal/domain/client"
)

// Store persists Client state.
type Store interface {
	List(ctx context.Context) ([]domain.Client, error)
	GetByID(ctx context.Context, id string) (domain.Client, error)
	Save(ctx context.Context, c domain.Client) error
	Delete(ctx context.Context, id string) error
}
