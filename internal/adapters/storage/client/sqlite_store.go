package client

import (
	"context"
	"database/sql"
	"fmt"

	"trainerdesk/internal/adapters/storage"
	"trainerdesk/internal/application/scheduler"
	domain "trainerdesk/internal/domain/client"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Compile-time check that *SQLiteStore serves as the engine's directory.
var _ scheduler.ClientDirectory = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, open database connection with the schema applied
// POST: store is ready for use
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const clientColumns = "id, first_name, last_name, email, phone, notes, status"

// List returns all clients ordered by first name.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM client ORDER BY first_name ASC, last_name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Notes, &c.Status); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// GetByID retrieves a client by ID.
// PRE: id is non-empty
// POST: returns the client or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM client WHERE id = ?", id,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Notes, &c.Status)
	if err == sql.ErrNoRows {
		return domain.Client{}, fmt.Errorf("client not found: %w", err)
	}
	return c, err
}

// Save inserts or updates a client.
// PRE: c is a valid Client (Validate() returns nil)
// POST: client is persisted
func (s *SQLiteStore) Save(ctx context.Context, c domain.Client) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client (`+clientColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   first_name=excluded.first_name, last_name=excluded.last_name,
		   email=excluded.email, phone=excluded.phone,
		   notes=excluded.notes, status=excluded.status`,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Notes, c.Status,
	)
	return err
}

// Delete removes a client by ID.
// PRE: id is non-empty; no sessions reference the client
// POST: client is removed from storage
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM client WHERE id = ?", id)
	return err
}
