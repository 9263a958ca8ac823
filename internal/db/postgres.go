package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// schema is applied on startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		image      TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		address    JSONB NOT NULL DEFAULT '{}'::jsonb,
		gender     TEXT NOT NULL DEFAULT '',
		dob        TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		image      TEXT NOT NULL DEFAULT '',
		speciality TEXT NOT NULL,
		degree     TEXT NOT NULL,
		experience TEXT NOT NULL,
		about      TEXT NOT NULL,
		available  BOOLEAN NOT NULL DEFAULT true,
		fees       DOUBLE PRECISION NOT NULL,
		address    JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booked_slots (
		doctor_id TEXT NOT NULL REFERENCES doctors(id),
		slot_date TEXT NOT NULL,
		slot_time TEXT NOT NULL,
		position  BIGSERIAL,
		PRIMARY KEY (doctor_id, slot_date, slot_time)
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL REFERENCES users(id),
		doc_id             TEXT NOT NULL REFERENCES doctors(id),
		slot_date          TEXT NOT NULL,
		slot_time          TEXT NOT NULL,
		user_data          JSONB NOT NULL,
		doc_data           JSONB NOT NULL,
		amount             DOUBLE PRECISION NOT NULL,
		created_at         BIGINT NOT NULL,
		cancelled          BOOLEAN NOT NULL DEFAULT false,
		payment            BOOLEAN NOT NULL DEFAULT false,
		is_completed       BOOLEAN NOT NULL DEFAULT false,
		session_id         TEXT NOT NULL DEFAULT '',
		pending_session_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_user_idx ON appointments (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS appointments_doc_idx ON appointments (doc_id, created_at DESC)`,
}

// EnsureSchema creates the tables the postgres repository expects.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
