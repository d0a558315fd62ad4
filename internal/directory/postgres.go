// Package directory provides the PostgreSQL account and group store
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second

	uniqueViolation = "23505"
	invalidTextRepr = "22P02"
)

// Store implements account and group persistence on PostgreSQL.
// All writes touching more than one row run in a transaction, so a
// concurrent writer sees either the old record or the new one.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL-backed store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks if the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// translateError maps low-level pgx errors onto the store's sentinel
// errors. A malformed UUID in a lookup reads as not-found, since no
// record can carry that id.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrConflict
		case invalidTextRepr:
			return ErrNotFound
		}
	}
	return err
}

// CreateAccount inserts a new account. An empty ID is assigned a fresh
// UUID; timestamps are set server-side. A duplicate username returns
// ErrConflict.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO accounts (
			id, external_id, username, email, given_name, family_name,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.ExternalID, a.Username, a.Email, a.GivenName, a.FamilyName,
		a.Active, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if tErr := translateError(err); tErr != err {
			return tErr
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetAccount retrieves an account by ID
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := `
		SELECT id, external_id, username, email, given_name, family_name,
			active, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	return scanAccount(s.pool.QueryRow(ctx, query, id))
}

// ListAccounts returns all accounts in creation order
func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := `
		SELECT id, external_id, username, email, given_name, family_name,
			active, created_at, updated_at
		FROM accounts
		ORDER BY created_at, id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Username, &a.Email,
			&a.GivenName, &a.FamilyName, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

// UpdateAccount writes the mutable columns of an account back in one
// statement. Returns ErrNotFound if the id does not exist and
// ErrConflict if the new username is taken.
func (s *Store) UpdateAccount(ctx context.Context, a *Account) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accounts
		SET external_id = $2, username = $3, email = $4, given_name = $5,
			family_name = $6, active = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		a.ID, a.ExternalID, a.Username, a.Email, a.GivenName, a.FamilyName,
		a.Active, a.UpdatedAt,
	)
	if err != nil {
		if tErr := translateError(err); tErr != err {
			return tErr
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteAccount removes an account. Group memberships are removed by
// the ON DELETE CASCADE on group_members.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if tErr := translateError(err); tErr != err {
			return tErr
		}
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ResolveAccounts returns a map of account ID to username for the IDs
// that exist. Callers detect unresolved references by missing keys.
func (s *Store) ResolveAccounts(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, username FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve accounts: %w", err)
	}
	defer rows.Close()

	resolved := make(map[string]string, len(ids))
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, fmt.Errorf("scan account ref: %w", err)
		}
		resolved[id] = username
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve accounts: %w", err)
	}

	return resolved, nil
}

// CreateGroup inserts a group and its membership rows in one
// transaction. A duplicate display name returns ErrConflict.
func (s *Store) CreateGroup(ctx context.Context, g *Group) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO groups (id, external_id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, g.ID, g.ExternalID, g.DisplayName, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if tErr := translateError(err); tErr != err {
			return tErr
		}
		return fmt.Errorf("insert group: %w", err)
	}

	if err := insertMembers(ctx, tx, g.ID, g.Members); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// GetGroup retrieves a group with its members, ordered by member
// username
func (s *Store) GetGroup(ctx context.Context, id string) (*Group, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := `
		SELECT id, external_id, display_name, created_at, updated_at
		FROM groups
		WHERE id = $1
	`

	g, err := scanGroup(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	members, err := s.loadMembers(ctx, []string{g.ID})
	if err != nil {
		return nil, err
	}
	g.Members = members[g.ID]

	return g, nil
}

// ListGroups returns all groups with members in creation order
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, external_id, display_name, created_at, updated_at
		FROM groups
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	var ids []string
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.ExternalID, &g.DisplayName, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	members, err := s.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Members = members[groups[i].ID]
	}

	return groups, nil
}

// UpdateGroup writes the group row and replaces its membership set in
// one transaction (delete then insert), so concurrent readers never see
// a half-replaced member list.
func (s *Store) UpdateGroup(ctx context.Context, g *Group) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	g.UpdatedAt = time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE groups
		SET external_id = $2, display_name = $3, updated_at = $4
		WHERE id = $1
	`, g.ID, g.ExternalID, g.DisplayName, g.UpdatedAt)
	if err != nil {
		if tErr := translateError(err); tErr != err {
			return tErr
		}
		return fmt.Errorf("update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	if err := insertMembers(ctx, tx, g.ID, g.Members); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// DeleteGroup removes a group and, via cascade, its membership rows
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		if tErr := translateError(err); tErr != err {
			return tErr
		}
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func insertMembers(ctx context.Context, tx pgx.Tx, groupID string, members []Member) error {
	for _, m := range members {
		_, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, account_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, groupID, m.AccountID)
		if err != nil {
			return fmt.Errorf("insert member %s: %w", m.AccountID, err)
		}
	}
	return nil
}

// loadMembers fetches membership rows joined with account usernames for
// a set of groups
func (s *Store) loadMembers(ctx context.Context, groupIDs []string) (map[string][]Member, error) {
	members := make(map[string][]Member, len(groupIDs))
	if len(groupIDs) == 0 {
		return members, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT gm.group_id, gm.account_id, a.username
		FROM group_members gm
		JOIN accounts a ON a.id = gm.account_id
		WHERE gm.group_id = ANY($1)
		ORDER BY a.username
	`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID string
		var m Member
		if err := rows.Scan(&groupID, &m.AccountID, &m.Display); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members[groupID] = append(members[groupID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	return members, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.ExternalID, &a.Username, &a.Email,
		&a.GivenName, &a.FamilyName, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if tErr := translateError(err); tErr != err {
			return nil, tErr
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

func scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.ExternalID, &g.DisplayName, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if tErr := translateError(err); tErr != err {
			return nil, tErr
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}
