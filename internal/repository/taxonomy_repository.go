package repository

import (
	"context"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// TaxonomyRepository handles the field/category hierarchy.
// Fields group categories; every paper belongs to exactly one category.
type TaxonomyRepository interface {
	// ListFields retrieves all fields ordered by name.
	ListFields(ctx context.Context) ([]*domain.Field, error)

	// GetField retrieves a field by id.
	// Returns domain.ErrNotFound if the field does not exist.
	GetField(ctx context.Context, id int64) (*domain.Field, error)

	// ListCategories retrieves the categories of a field ordered by name.
	// Returns domain.ErrNotFound if the field does not exist.
	ListCategories(ctx context.Context, fieldID int64) ([]*domain.Category, error)

	// GetCategory retrieves a category by id.
	// Returns domain.ErrNotFound if the category does not exist.
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)

	// EnsureField creates a field with the given name or returns the
	// existing one. Used by bulk imports, idempotent by name.
	EnsureField(ctx context.Context, name string) (*domain.Field, error)

	// EnsureCategory creates a category under the field or returns the
	// existing one with that name. Used by bulk imports, idempotent by name.
	// Returns domain.ErrNotFound if the field does not exist.
	EnsureCategory(ctx context.Context, name string, fieldID int64) (*domain.Category, error)

	// DeleteField removes a field and, through the schema's cascade, all of
	// its categories. Returns domain.ErrNotFound if the field does not exist.
	DeleteField(ctx context.Context, id int64) error

	// DeleteCategory removes a single category.
	// Returns domain.ErrNotFound if the category does not exist.
	DeleteCategory(ctx context.Context, id int64) error
}
