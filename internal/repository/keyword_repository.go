package repository

import (
	"context"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// KeywordRepository handles keyword persistence, paper attachment and search.
type KeywordRepository interface {
	// GetByIDs retrieves keywords for all given ids. Every id must resolve;
	// otherwise a domain.ErrInvalidInput error naming all unknown ids is
	// returned. Duplicate ids in the input are resolved once.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Keyword, error)

	// FilterExisting returns the subset of ids that resolve to keyword rows,
	// silently dropping unknown ids. Used where missing ids are tolerated.
	FilterExisting(ctx context.Context, ids []int64) ([]int64, error)

	// GetByName retrieves a keyword by its exact name.
	// Returns domain.ErrNotFound if no keyword has that name.
	GetByName(ctx context.Context, name string) (*domain.Keyword, error)

	// Create inserts a new keyword with the given name and no aliases.
	// Returns domain.ErrAlreadyExists if the name is taken.
	Create(ctx context.Context, name string) (*domain.Keyword, error)

	// SetAliases replaces the keyword's alias list. Aliases participate in
	// fuzzy search alongside the name.
	// Returns domain.ErrNotFound if the keyword does not exist.
	SetAliases(ctx context.Context, id int64, aliases []string) error

	// Reconcile resolves existing ids and free-text new names into the final
	// deduplicated set of keyword ids to attach to a paper. Every id in
	// existingIDs must exist (domain.ErrInvalidInput otherwise). Each name is
	// trimmed and matched by exact name, creating the keyword when absent; a
	// concurrent create of the same name is resolved by re-reading.
	// The result is sorted ascending for deterministic attachment order.
	Reconcile(ctx context.Context, existingIDs []int64, newNames []string) ([]int64, error)

	// EnsureAttached attaches the keyword to the paper if not already
	// attached. Returns true when a new attachment row was inserted, false
	// when the pair already existed. Idempotent by contract.
	// Returns domain.ErrNotFound if the paper or keyword does not exist.
	EnsureAttached(ctx context.Context, paperID, keywordID int64) (bool, error)

	// Detach removes the attachments between the paper and the given
	// keywords. Pairs that are not attached are silently skipped.
	Detach(ctx context.Context, paperID int64, keywordIDs []int64) error

	// Search finds up to 10 keywords whose name or any alias is
	// trigram-similar to the query, ranked by best similarity descending.
	// Returns domain.ErrInvalidInput when the query is blank.
	Search(ctx context.Context, query string) ([]*domain.Keyword, error)
}
