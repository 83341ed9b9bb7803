package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/reelwright/internal/content"
)

// PostgresSchema is the DDL for the sessions table. Execute it via
// [Postgres.Migrate] or apply it manually during deployment.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
    id         TEXT PRIMARY KEY,
    stage      TEXT NOT NULL,
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated ON conversation_sessions(updated_at);
`

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a session store backed by PostgreSQL.
type Postgres struct {
	db DB
}

// NewPostgres returns a store using db. Call [Postgres.Migrate] before the
// first query.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the sessions table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("sessionstore: migrate: %w", err)
	}
	return nil
}

// Get implements content.Store.
func (p *Postgres) Get(ctx context.Context, id string) (*content.Session, error) {
	const query = `SELECT data FROM conversation_sessions WHERE id = $1`

	var data []byte
	if err := p.db.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: get %q: %w", id, err)
	}
	return decode(id, data)
}

// Put implements content.Store.
func (p *Postgres) Put(ctx context.Context, s *content.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO conversation_sessions (id, stage, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	if _, err := p.db.Exec(ctx, query, s.ID, s.Stage.String(), data, updatedAt(s)); err != nil {
		return fmt.Errorf("sessionstore: put %q: %w", s.ID, err)
	}
	return nil
}

// Delete implements content.Store.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM conversation_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("sessionstore: delete %q: %w", id, err)
	}
	return nil
}

// Purge deletes sessions untouched since before cutoff and returns how many
// were removed.
func (p *Postgres) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM conversation_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sessionstore: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func encode(s *content.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: marshal %q: %w", s.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*content.Session, error) {
	var s content.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("sessionstore: unmarshal %q: %w", id, err)
	}
	return &s, nil
}

func updatedAt(s *content.Session) time.Time {
	if s.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return s.UpdatedAt.UTC()
}
