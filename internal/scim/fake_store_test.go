package scim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scimgate/scimgate/internal/directory"
)

// memStore is an in-memory Store with the same contract as the
// PostgreSQL implementation: unique usernames and display names,
// cascading membership removal, display labels joined at read time.
type memStore struct {
	mu         sync.Mutex
	accounts   map[string]*directory.Account
	groups     map[string]*directory.Group
	order      []string
	groupOrder []string
	failWith   error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*directory.Account),
		groups:   make(map[string]*directory.Group),
	}
}

func (m *memStore) CreateAccount(_ context.Context, a *directory.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.accounts {
		if existing.Username == a.Username {
			return directory.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := *a
	m.accounts[a.ID] = &stored
	m.order = append(m.order, a.ID)
	return nil
}

func (m *memStore) GetAccount(_ context.Context, id string) (*directory.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *memStore) ListAccounts(_ context.Context) ([]directory.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]directory.Account, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.accounts[id])
	}
	return out, nil
}

func (m *memStore) UpdateAccount(_ context.Context, a *directory.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.accounts[a.ID]; !ok {
		return directory.ErrNotFound
	}
	for id, existing := range m.accounts {
		if id != a.ID && existing.Username == a.Username {
			return directory.ErrConflict
		}
	}
	a.UpdatedAt = time.Now().UTC()
	stored := *a
	stored.CreatedAt = m.accounts[a.ID].CreatedAt
	m.accounts[a.ID] = &stored
	return nil
}

func (m *memStore) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.accounts[id]; !ok {
		return directory.ErrNotFound
	}
	delete(m.accounts, id)
	for i, accountID := range m.order {
		if accountID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for _, g := range m.groups {
		kept := g.Members[:0]
		for _, member := range g.Members {
			if member.AccountID != id {
				kept = append(kept, member)
			}
		}
		g.Members = kept
	}
	return nil
}

func (m *memStore) ResolveAccounts(_ context.Context, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	resolved := make(map[string]string, len(ids))
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			resolved[id] = a.Username
		}
	}
	return resolved, nil
}

func (m *memStore) CreateGroup(_ context.Context, g *directory.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.groups {
		if existing.DisplayName == g.DisplayName {
			return directory.ErrConflict
		}
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	stored := *g
	stored.Members = append([]directory.Member(nil), g.Members...)
	m.groups[g.ID] = &stored
	m.groupOrder = append(m.groupOrder, g.ID)
	return nil
}

func (m *memStore) GetGroup(_ context.Context, id string) (*directory.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	g, ok := m.groups[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return m.copyGroup(g), nil
}

func (m *memStore) ListGroups(_ context.Context) ([]directory.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]directory.Group, 0, len(m.groupOrder))
	for _, id := range m.groupOrder {
		out = append(out, *m.copyGroup(m.groups[id]))
	}
	return out, nil
}

func (m *memStore) UpdateGroup(_ context.Context, g *directory.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.groups[g.ID]; !ok {
		return directory.ErrNotFound
	}
	for id, existing := range m.groups {
		if id != g.ID && existing.DisplayName == g.DisplayName {
			return directory.ErrConflict
		}
	}
	g.UpdatedAt = time.Now().UTC()
	stored := *g
	stored.CreatedAt = m.groups[g.ID].CreatedAt
	stored.Members = append([]directory.Member(nil), g.Members...)
	m.groups[g.ID] = &stored
	return nil
}

func (m *memStore) DeleteGroup(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.groups[id]; !ok {
		return directory.ErrNotFound
	}
	delete(m.groups, id)
	for i, groupID := range m.groupOrder {
		if groupID == id {
			m.groupOrder = append(m.groupOrder[:i], m.groupOrder[i+1:]...)
			break
		}
	}
	return nil
}

// copyGroup clones a group and fills member display labels from the
// current account records, mirroring the SQL join
func (m *memStore) copyGroup(g *directory.Group) *directory.Group {
	out := *g
	out.Members = make([]directory.Member, len(g.Members))
	for i, member := range g.Members {
		out.Members[i] = member
		if a, ok := m.accounts[member.AccountID]; ok {
			out.Members[i].Display = a.Username
		}
	}
	return &out
}
