package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trainerdesk/internal/adapters/storage"
	"trainerdesk/internal/application/scheduler"
	domain "trainerdesk/internal/domain/session"
)

// Instants are stored as fixed-width RFC3339 UTC strings so lexicographic
// comparison in SQL matches chronological order.
const instantLayout = time.RFC3339

// SQLiteStore implements scheduler.SessionRepository using SQLite.
type SQLiteStore struct {
	db         storage.SQLDB
	generateID func() string
}

// Compile-time check that *SQLiteStore satisfies the repository contract.
var _ scheduler.SessionRepository = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, open database connection with the schema applied
// POST: store is ready for use; ids are assigned from UUIDs
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, generateID: func() string { return uuid.New().String() }}
}

const sessionColumns = "id, client_id, date_key, start_at, end_at, status, location, notes, recurring, created_at, updated_at"

// LoadSessions returns all sessions whose start instant falls within the
// inclusive [start, end] range, optionally filtered by status set and client.
// PRE: start <= end
// POST: returns matching sessions; order is unspecified
func (s *SQLiteStore) LoadSessions(ctx context.Context, start, end time.Time, f scheduler.Filters) ([]domain.Session, error) {
	query := "SELECT " + sessionColumns + " FROM session WHERE start_at >= ? AND start_at <= ?"
	args := []any{start.UTC().Format(instantLayout), end.UTC().Format(instantLayout)}

	if len(f.Statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(", ?", len(f.Statuses)-1) + ")"
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, f.ClientID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		entity, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, entity)
	}
	return sessions, rows.Err()
}

// GetByID retrieves a session by ID.
// PRE: id is non-empty
// POST: returns the session or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM session WHERE id = ?", id)
	entity, err := scanSession(row)
	if err == sql.ErrNoRows {
		return domain.Session{}, fmt.Errorf("session not found: %w", err)
	}
	return entity, err
}

// Create persists a new session and assigns its id.
// PRE: entity has been validated apart from the empty id
// POST: returns the stored session with id set
func (s *SQLiteStore) Create(ctx context.Context, entity domain.Session) (domain.Session, error) {
	entity.ID = s.generateID()
	if err := s.insert(ctx, s.db, entity); err != nil {
		return domain.Session{}, err
	}
	return entity, nil
}

// CreateBatch persists a recurrence batch inside one transaction. The
// transaction is best effort on this backend; callers must not rely on
// batch atomicity being part of the repository contract.
// PRE: every entity has been validated apart from the empty id
// POST: returns the stored sessions with ids set, in input order
func (s *SQLiteStore) CreateBatch(ctx context.Context, batch []domain.Session) ([]domain.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]domain.Session, 0, len(batch))
	for _, entity := range batch {
		entity.ID = s.generateID()
		if err := s.insert(ctx, tx, entity); err != nil {
			return nil, fmt.Errorf("batch insert at %s: %w", entity.DateKey, err)
		}
		out = append(out, entity)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites an existing session.
// PRE: entity.ID refers to a stored session
// POST: returns the stored session or an error if the id is unknown
func (s *SQLiteStore) Update(ctx context.Context, entity domain.Session) (domain.Session, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session SET client_id = ?, date_key = ?, start_at = ?, end_at = ?,
		 status = ?, location = ?, notes = ?, recurring = ?, updated_at = ?
		 WHERE id = ?`,
		entity.ClientID, entity.DateKey,
		entity.StartAt.UTC().Format(instantLayout), entity.EndAt.UTC().Format(instantLayout),
		entity.Status, entity.Location, entity.Notes, boolToInt(entity.Recurring),
		formatNullable(entity.UpdatedAt), entity.ID,
	)
	if err != nil {
		return domain.Session{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, err
	}
	if affected == 0 {
		return domain.Session{}, fmt.Errorf("session not found: %s", entity.ID)
	}
	return entity, nil
}

// Delete removes a session by ID.
// PRE: id is non-empty
// POST: returns true if a row was removed, false if the id was unknown
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, entity domain.Session) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO session (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID, entity.ClientID, entity.DateKey,
		entity.StartAt.UTC().Format(instantLayout), entity.EndAt.UTC().Format(instantLayout),
		entity.Status, entity.Location, entity.Notes, boolToInt(entity.Recurring),
		entity.CreatedAt.UTC().Format(instantLayout), formatNullable(entity.UpdatedAt),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var entity domain.Session
	var startStr, endStr, createdStr string
	var updatedStr sql.NullString
	var recurring int

	err := row.Scan(&entity.ID, &entity.ClientID, &entity.DateKey,
		&startStr, &endStr, &entity.Status, &entity.Location, &entity.Notes,
		&recurring, &createdStr, &updatedStr)
	if err != nil {
		return domain.Session{}, err
	}

	if entity.StartAt, err = parseInstant(startStr); err != nil {
		return domain.Session{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if entity.EndAt, err = parseInstant(endStr); err != nil {
		return domain.Session{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if entity.CreatedAt, err = parseInstant(createdStr); err != nil {
		return domain.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if updatedStr.Valid {
		if entity.UpdatedAt, err = parseInstant(updatedStr.String); err != nil {
			return domain.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
		}
	}
	entity.Recurring = recurring != 0
	return entity, nil
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(instantLayout, s)
}

func formatNullable(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(instantLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
