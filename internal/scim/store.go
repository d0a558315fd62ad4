package scim

import (
	"context"

	"github.com/scimgate/scimgate/internal/directory"
)

// Store is the directory persistence the SCIM layer drives. The
// PostgreSQL implementation lives in internal/directory; the store is
// the only synchronization point between concurrent requests.
type Store interface {
	CreateAccount(ctx context.Context, a *directory.Account) error
	GetAccount(ctx context.Context, id string) (*directory.Account, error)
	ListAccounts(ctx context.Context) ([]directory.Account, error)
	UpdateAccount(ctx context.Context, a *directory.Account) error
	DeleteAccount(ctx context.Context, id string) error

	// ResolveAccounts maps account IDs to usernames for the IDs that
	// exist; absent keys mark unresolved references.
	ResolveAccounts(ctx context.Context, ids []string) (map[string]string, error)

	CreateGroup(ctx context.Context, g *directory.Group) error
	GetGroup(ctx context.Context, id string) (*directory.Group, error)
	ListGroups(ctx context.Context) ([]directory.Group, error)
	UpdateGroup(ctx context.Context, g *directory.Group) error
	DeleteGroup(ctx context.Context, id string) error
}
