package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"funnypdf/internal/config"
	"funnypdf/internal/models"
)

// NewPostgresDB opens and pings the Postgres connection.
func NewPostgresDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// schema creates the tables if they do not exist yet.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS runs (
	id              UUID PRIMARY KEY,
	input_file_name TEXT NOT NULL,
	style           TEXT NOT NULL,
	ai_mode         TEXT NOT NULL,
	status          TEXT NOT NULL,
	error_kind      TEXT NOT NULL DEFAULT '',
	pages           INT NOT NULL DEFAULT 0,
	paragraphs      INT NOT NULL DEFAULT 0,
	fallbacks       INT NOT NULL DEFAULT 0,
	duration_ms     BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Seed applies the schema and ensures the default admin account
// exists. hashFn is injected so this package stays free of crypto
// dependencies.
func Seed(ctx context.Context, db *sql.DB, hashFn func(string) (string, error)) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	userRepo := NewUserRepository(db)
	admin, err := userRepo.GetByUsername(ctx, "admin")
	if err != nil {
		return err
	}
	if admin != nil {
		return nil
	}

	hash, err := hashFn("admin")
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}
	return userRepo.Create(ctx, &models.User{
		Username:     "admin",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
}
