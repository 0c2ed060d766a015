package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	seq           BIGSERIAL   UNIQUE,
	id            TEXT        PRIMARY KEY,
	tutor_email   TEXT        NOT NULL,
	student_email TEXT,
	course        TEXT        NOT NULL,
	start_at      TIMESTAMPTZ NOT NULL,
	end_at        TIMESTAMPTZ NOT NULL,
	booked        BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	CHECK (start_at < end_at),
	CHECK (booked = (student_email IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS sessions_tutor_idx ON sessions (tutor_email, start_at);
CREATE INDEX IF NOT EXISTS sessions_student_idx ON sessions (student_email);

CREATE TABLE IF NOT EXISTS tutors (
	email  TEXT  PRIMARY KEY,
	name   TEXT  NOT NULL DEFAULT '',
	grades JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS students (
	email TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT ''
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT    NOT NULL UNIQUE,
	tutor_email   TEXT    NOT NULL,
	student_email TEXT,
	course        TEXT    NOT NULL,
	start_at      INTEGER NOT NULL,
	end_at        INTEGER NOT NULL,
	booked        INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	CHECK (start_at < end_at),
	CHECK (booked = (student_email IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS sessions_tutor_idx ON sessions (tutor_email, start_at);
CREATE INDEX IF NOT EXISTS sessions_student_idx ON sessions (student_email);

CREATE TABLE IF NOT EXISTS tutors (
	email  TEXT PRIMARY KEY,
	name   TEXT NOT NULL DEFAULT '',
	grades TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS students (
	email TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT ''
);
`

// MigratePostgres creates the tables and indexes if they do not exist.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// MigrateSQLite creates the tables and indexes if they do not exist.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
