package repository

import (
	"context"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// UserRepository resolves user identities and their institutions.
// Account creation and credentials live with the external identity provider;
// this repository only reads and links what the service needs.
type UserRepository interface {
	// GetByID retrieves a user by id.
	// Returns domain.ErrNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	// Returns domain.ErrNotFound if no user has that email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// EnsureInstitution creates an institution with the given name or
	// returns the existing one. Used by bulk imports, idempotent by name.
	EnsureInstitution(ctx context.Context, name string) (*domain.Institution, error)
}
