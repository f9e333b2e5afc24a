package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// GetByID retrieves a user by id.
func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, uuid, name, email, institution_id, created_at, updated_at
		FROM users
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}

	query := `
		SELECT id, uuid, name, email, institution_id, created_at, updated_at
		FROM users
		WHERE email = $1`

	row := r.db.QueryRow(ctx, query, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// EnsureInstitution creates or returns the institution with the given name.
func (r *PgUserRepository) EnsureInstitution(ctx context.Context, name string) (*domain.Institution, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "institution name is required")
	}

	query := `
		INSERT INTO institutions (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = institutions.name
		RETURNING id, name`

	var inst domain.Institution
	if err := r.db.QueryRow(ctx, query, name).Scan(&inst.ID, &inst.Name); err != nil {
		return nil, fmt.Errorf("failed to ensure institution: %w", err)
	}

	return &inst, nil
}

// scanUser scans a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.InstitutionID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
