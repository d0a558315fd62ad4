// Package directory is the persistence layer for provisioned accounts and groups.
package directory

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("directory: record not found")

	// ErrConflict is returned when a unique constraint (username or
	// group display name) is violated
	ErrConflict = errors.New("directory: conflict")
)

// Account is an application user record managed over the provisioning API.
// ID is assigned once and never changes; Username is unique.
type Account struct {
	ID         string
	ExternalID *string
	Username   string
	Email      string
	GivenName  string
	FamilyName string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Member is one group membership entry. Display carries the member
// account's username, filled in when the group is read.
type Member struct {
	AccountID string
	Display   string
}

// Group is a named collection of accounts. DisplayName is unique.
type Group struct {
	ID          string
	ExternalID  *string
	DisplayName string
	Members     []Member
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
