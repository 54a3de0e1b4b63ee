// Package store provides PostgreSQL-backed storage for archived chat data:
// users, sessions and messages shipped over NATS by the chat server. The
// live system never reads from here; the archive exists for retention and
// offline analysis.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

// Migrate applies all pending migrations from sourceURL (e.g.
// "file://migrations") against the database at dsn.
func Migrate(sourceURL, dsn string) error {
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Store manages archived chat data in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an archive store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// MessageRow is one archived message. Media payloads are not archived; only
// the kind and filename are kept.
type MessageRow struct {
	ID        string
	SessionID string
	Sender    string
	Body      string
	MediaType string
	Filename  string
	IsVoice   bool
	Ts        int64
}

// UpsertUser records a user's profile and last-seen time, replacing any
// previous row for the same name.
func (s *Store) UpsertUser(ctx context.Context, name, gender, ageGroup, searchGender, searchAge string, lastSeen time.Time) error {
	const query = `
		INSERT INTO users (name, gender, age_group, search_gender, search_age, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET gender = EXCLUDED.gender,
		    age_group = EXCLUDED.age_group,
		    search_gender = EXCLUDED.search_gender,
		    search_age = EXCLUDED.search_age,
		    last_seen = EXCLUDED.last_seen`

	if _, err := s.db.ExecContext(ctx, query, name, gender, ageGroup, searchGender, searchAge, lastSeen); err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	return nil
}

// InsertSession records a newly created session.
func (s *Store) InsertSession(ctx context.Context, id, userA, userB string, createdAt time.Time) error {
	const query = `
		INSERT INTO sessions (id, user_a, user_b, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, $4)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, id, userA, userB, createdAt); err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

// InsertMessage records a message. The parent session row may be missing if
// its archive event was dropped; such messages are skipped silently by the
// foreign-key guard in the query.
func (s *Store) InsertMessage(ctx context.Context, m MessageRow) error {
	const query = `
		INSERT INTO messages (id, session_id, sender, body, media_type, filename, is_voice, ts)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $2)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query,
		m.ID, m.SessionID, m.Sender, m.Body, m.MediaType, m.Filename, m.IsVoice, m.Ts,
	); err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// UpdateSessionStatus records a session state change.
func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string) error {
	const query = `
		UPDATE sessions
		SET status = $2, updated_at = NOW()
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("store: update session status: %w", err)
	}
	return nil
}

// DeleteSessionsBefore removes archived sessions (and their messages, via
// cascade) last updated before cutoff. Returns the number of sessions removed.
func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE updated_at < $1`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete stale sessions: %w", err)
	}
	return n, nil
}

// DeleteUsersBefore removes archived users last seen before cutoff.
func (s *Store) DeleteUsersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM users WHERE last_seen < $1`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete stale users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete stale users: %w", err)
	}
	return n, nil
}
