package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/MrWong99/reelwright/internal/content"
)

// SQLiteSchema is the DDL for the sessions table.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
    id         TEXT PRIMARY KEY,
    stage      TEXT NOT NULL,
    data       TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated ON conversation_sessions(updated_at);
`

// SQLite is a session store backed by a SQLite file, for single-node
// deployments without a database server.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open sqlite: %w", err)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Get implements content.Store.
func (s *SQLite) Get(ctx context.Context, id string) (*content.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM conversation_sessions WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: get %q: %w", id, err)
	}
	return decode(id, []byte(data))
}

// Put implements content.Store.
func (s *SQLite) Put(ctx context.Context, sess *content.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO conversation_sessions (id, stage, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage = excluded.stage,
			data = excluded.data,
			updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.Stage.String(), string(data), updatedAt(sess).UnixMilli()); err != nil {
		return fmt.Errorf("sessionstore: put %q: %w", sess.ID, err)
	}
	return nil
}

// Delete implements content.Store.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sessionstore: delete %q: %w", id, err)
	}
	return nil
}

// Purge deletes sessions untouched since before cutoff.
func (s *SQLite) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE updated_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sessionstore: purge: %w", err)
	}
	return res.RowsAffected()
}
