package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_users (
	uid               TEXT PRIMARY KEY,
	email             TEXT NOT NULL,
	profile_image_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chat_messages (
	owner_id   TEXT        NOT NULL,
	peer_id    TEXT        NOT NULL,
	seq        BIGINT      NOT NULL,
	id         TEXT        NOT NULL,
	logical_id TEXT        NOT NULL,
	from_id    TEXT        NOT NULL,
	to_id      TEXT        NOT NULL,
	text       TEXT        NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, peer_id, seq),
	CONSTRAINT chat_messages_id_key UNIQUE (owner_id, peer_id, id),
	CONSTRAINT chat_messages_logical_key UNIQUE (owner_id, peer_id, logical_id)
);

CREATE TABLE IF NOT EXISTS chat_likes (
	logical_id TEXT PRIMARY KEY,
	likes      TEXT[] NOT NULL,
	version    BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_recent (
	owner_id               TEXT        NOT NULL,
	peer_id                TEXT        NOT NULL,
	from_id                TEXT        NOT NULL,
	to_id                  TEXT        NOT NULL,
	text                   TEXT        NOT NULL,
	ts                     TIMESTAMPTZ NOT NULL,
	peer_email             TEXT        NOT NULL,
	peer_profile_image_url TEXT        NOT NULL,
	seq                    BIGINT      NOT NULL,
	PRIMARY KEY (owner_id, peer_id)
);

CREATE TABLE IF NOT EXISTS chat_recent_seq (
	owner_id TEXT PRIMARY KEY,
	seq      BIGINT NOT NULL
);
`

const uniqueViolation = "23505"

// Store implements storage.Backend using PostgreSQL.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// NewStore opens the database, verifies the connection and applies the schema.
func NewStore(ctx context.Context, dataSourceName string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info("connected to postgres")
	return &Store{db: db, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// constraintViolated reports whether err is a unique violation, and of which constraint.
func constraintViolated(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
