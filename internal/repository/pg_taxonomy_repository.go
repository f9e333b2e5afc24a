package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// Compile-time interface verification.
var _ TaxonomyRepository = (*PgTaxonomyRepository)(nil)

// PgTaxonomyRepository is a PostgreSQL implementation of TaxonomyRepository.
type PgTaxonomyRepository struct {
	db DBTX
}

// NewPgTaxonomyRepository creates a new PostgreSQL taxonomy repository.
func NewPgTaxonomyRepository(db DBTX) *PgTaxonomyRepository {
	return &PgTaxonomyRepository{db: db}
}

// ListFields retrieves all fields ordered by name.
func (r *PgTaxonomyRepository) ListFields(ctx context.Context) ([]*domain.Field, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM fields ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	fields := make([]*domain.Field, 0)
	for rows.Next() {
		var f domain.Field
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	return fields, nil
}

// GetField retrieves a field by id.
func (r *PgTaxonomyRepository) GetField(ctx context.Context, id int64) (*domain.Field, error) {
	var f domain.Field
	err := r.db.QueryRow(ctx, `SELECT id, name FROM fields WHERE id = $1`, id).
		Scan(&f.ID, &f.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("field", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get field: %w", err)
	}

	return &f, nil
}

// ListCategories retrieves the categories of a field ordered by name.
func (r *PgTaxonomyRepository) ListCategories(ctx context.Context, fieldID int64) ([]*domain.Category, error) {
	if _, err := r.GetField(ctx, fieldID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, name, field_id FROM categories WHERE field_id = $1 ORDER BY name`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.FieldID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// GetCategory retrieves a category by id.
func (r *PgTaxonomyRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRow(ctx,
		`SELECT id, name, field_id FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.FieldID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("category", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return &c, nil
}

// EnsureField creates or returns the field with the given name.
// Uses a single INSERT...ON CONFLICT...RETURNING query to avoid two roundtrips.
func (r *PgTaxonomyRepository) EnsureField(ctx context.Context, name string) (*domain.Field, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "field name is required")
	}

	query := `
		INSERT INTO fields (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = fields.name
		RETURNING id, name`

	var f domain.Field
	if err := r.db.QueryRow(ctx, query, name).Scan(&f.ID, &f.Name); err != nil {
		return nil, fmt.Errorf("failed to ensure field: %w", err)
	}

	return &f, nil
}

// EnsureCategory creates or returns the category with the given name under the field.
func (r *PgTaxonomyRepository) EnsureCategory(ctx context.Context, name string, fieldID int64) (*domain.Category, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "category name is required")
	}

	query := `
		INSERT INTO categories (name, field_id)
		VALUES ($1, $2)
		ON CONFLICT (name, field_id) DO UPDATE SET name = categories.name
		RETURNING id, name, field_id`

	var c domain.Category
	err := r.db.QueryRow(ctx, query, name, fieldID).Scan(&c.ID, &c.Name, &c.FieldID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, domain.NewNotFoundError("field", strconv.FormatInt(fieldID, 10))
		}
		return nil, fmt.Errorf("failed to ensure category: %w", err)
	}

	return &c, nil
}

// DeleteField removes a field; the schema cascades to its categories.
func (r *PgTaxonomyRepository) DeleteField(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM fields WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("field", strconv.FormatInt(id, 10))
	}

	return nil
}

// DeleteCategory removes a single category. Papers referencing it block the
// delete through the foreign key, surfacing as a database error.
func (r *PgTaxonomyRepository) DeleteCategory(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("category", strconv.FormatInt(id, 10))
	}

	return nil
}
