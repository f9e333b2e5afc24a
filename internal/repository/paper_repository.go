package repository

import (
	"context"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// PaperRepository handles paper submission persistence and access-scoped reads.
// Read operations take the requesting principal so that visibility rules are
// enforced inside the query rather than scattered across handler bodies.
type PaperRepository interface {
	// Create inserts a new paper in pending status and assigns it a slug
	// derived from the title. A slug collision with an existing paper is
	// resolved by appending a disambiguating suffix, so two submissions
	// with identical titles receive distinct slugs.
	// Returns domain.ErrNotFound if the referenced category does not exist.
	Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// Get retrieves a paper by numeric id or slug without visibility
	// scoping. Mutation paths use it to distinguish a missing paper from a
	// forbidden one; the caller enforces authorization.
	// Returns domain.ErrNotFound if the paper does not exist.
	Get(ctx context.Context, ref string) (*domain.PaperDetails, error)

	// GetByIDOrSlug retrieves a paper by numeric id or slug, whichever the
	// reference parses as. Non-published papers are visible only to their
	// owner and to admins; for anyone else the paper does not exist
	// (domain.ErrNotFound, never a permission error).
	GetByIDOrSlug(ctx context.Context, principal domain.Principal, ref string) (*domain.PaperDetails, error)

	// List retrieves papers matching the filter, scoped to what the
	// principal may see, ordered newest-created first. Each row is enriched
	// with its author, category, field and attached keywords.
	// Returns the matching page and the total count before pagination.
	List(ctx context.Context, principal domain.Principal, filter PaperFilter) ([]*domain.PaperDetails, int64, error)

	// Update persists the full current state of the paper row.
	// Partial-update merging happens in the caller after a load.
	// Returns domain.ErrNotFound if the paper does not exist.
	Update(ctx context.Context, paper *domain.Paper) error

	// Delete removes the paper row and all of its keyword attachments.
	// Run inside a transaction for atomicity.
	// Returns domain.ErrNotFound if the paper does not exist.
	Delete(ctx context.Context, id int64) error
}

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	// CategoryID filters to papers in a specific category (optional).
	CategoryID *int64

	// FieldID filters to papers whose category belongs to a field (optional).
	FieldID *int64

	// UserID filters to papers owned by a specific user (optional).
	// Whether non-published statuses are visible depends on the principal.
	UserID *int64

	// Search is a case-insensitive substring match over title, abstract,
	// category name and field name (optional).
	Search string

	// Status filters to a single review status (optional). Ignored for
	// requesters who may only see published papers.
	Status *domain.PaperStatus

	// Page is the 1-indexed page number (default: 1).
	Page int

	// Size is the page size (default: 10, max: 100).
	Size int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	if f.Status != nil && !f.Status.Valid() {
		return domain.NewValidationError("status", "status must be one of pending, published, rejected")
	}
	applyPaginationDefaults(&f.Page, &f.Size)
	return nil
}

// Offset returns the row offset for the filter's page and size.
func (f PaperFilter) Offset() int {
	return (f.Page - 1) * f.Size
}
