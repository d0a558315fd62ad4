package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitializeSchema creates the tables backing the directory store
func InitializeSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id          UUID PRIMARY KEY,
			external_id TEXT,
			username    TEXT NOT NULL UNIQUE,
			email       TEXT NOT NULL DEFAULT '',
			given_name  TEXT NOT NULL DEFAULT '',
			family_name TEXT NOT NULL DEFAULT '',
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	_, err = db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS groups (
			id           UUID PRIMARY KEY,
			external_id  TEXT,
			display_name TEXT NOT NULL UNIQUE,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create groups table: %w", err)
	}

	_, err = db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS group_members (
			group_id   UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			PRIMARY KEY (group_id, account_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create group_members table: %w", err)
	}

	_, err = db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_group_members_account ON group_members(account_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create group_members index: %w", err)
	}

	return nil
}
