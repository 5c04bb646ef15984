package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/fbksd/fbksd-server/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS techniques (
	id             INTEGER PRIMARY KEY,
	kind           TEXT NOT NULL,
	short_name     TEXT NOT NULL UNIQUE,
	full_name      TEXT NOT NULL DEFAULT '',
	citation       TEXT NOT NULL DEFAULT '',
	comment        TEXT NOT NULL DEFAULT '',
	owner_email    TEXT NOT NULL DEFAULT '',
	versions       JSONB NOT NULL DEFAULT '[]',
	num_workspaces INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workspaces (
	uuid            TEXT PRIMARY KEY,
	technique_id    INTEGER NOT NULL REFERENCES techniques(id),
	commit_sha      TEXT NOT NULL,
	container_image TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'New',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at     TIMESTAMPTZ,
	published_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_workspaces_technique ON workspaces(technique_id);

CREATE TABLE IF NOT EXISTS tasks_high (
	id              BIGSERIAL PRIMARY KEY,
	technique_id    INTEGER NOT NULL,
	commit_sha      TEXT NOT NULL,
	container_image TEXT NOT NULL,
	kind            TEXT NOT NULL,
	payload         TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks_normal (
	id              BIGSERIAL PRIMARY KEY,
	technique_id    INTEGER NOT NULL,
	commit_sha      TEXT NOT NULL,
	container_image TEXT NOT NULL,
	kind            TEXT NOT NULL,
	payload         TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mail (
	id         BIGSERIAL PRIMARY KEY,
	"to"       TEXT NOT NULL,
	subject    TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore implements Store against a shared Postgres database,
// reachable by every fbksd-server process through DATABASE_URL. Each
// method below is one transaction: invariants (uniqueness, capacity,
// single-Published, single-pending-task) are checked and enforced
// inside that transaction's boundary, never by the caller.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection and ensures the schema exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
