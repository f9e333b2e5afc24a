// Package repository provides data access interfaces and implementations
// for the research repository service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from business logic.
//
// # Repository Interfaces
//
// The package provides the following repository interfaces:
//
//   - PaperRepository: Manages paper submissions, access-scoped listing and lookup
//   - KeywordRepository: Manages keyword reconciliation, attachment and fuzzy search
//   - TaxonomyRepository: Manages the field/category hierarchy
//   - UserRepository: Resolves user identities and institutions
//   - DonationRepository: Records donations ingested from payment webhooks
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass transaction from database.DB.WithTransaction for atomic operations.
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to handlers:
//
//	db, _ := database.New(ctx, cfg, logger)
//	paperRepo := repository.NewPgPaperRepository(db)
//	keywordRepo := repository.NewPgKeywordRepository(db)
package repository

import (
	"github.com/nubianresearch/research-repository-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
//
// # Constructor Pattern
//
// Repository implementations follow a constructor pattern that accepts DBTX:
//
//	type PgPaperRepository struct {
//	    db DBTX
//	}
//
//	func NewPgPaperRepository(db DBTX) *PgPaperRepository {
//	    return &PgPaperRepository{db: db}
//	}
//
// This design enables:
//   - Direct usage with a connection pool for standard operations
//   - Transaction support by passing a transaction (pgx.Tx) instead
//   - Easy testing with mock implementations of DBTX
//
// # Transaction Usage Example
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    // Create a transactional repository instance
//	    txRepo := repository.NewPgPaperRepository(tx)
//	    // All operations within this function use the same transaction
//	    return txRepo.Delete(ctx, paperID)
//	})
type DBTX = database.DBTX

// PostgreSQL error codes handled as domain conditions.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Listing pagination defaults and limits. Pages are 1-indexed.
const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// applyPaginationDefaults normalizes page and size values for listing queries.
// It clamps size to [1, maxPageSize] and ensures page >= 1.
func applyPaginationDefaults(page, size *int) {
	if *page < 1 {
		*page = 1
	}
	if *size <= 0 {
		*size = defaultPageSize
	}
	if *size > maxPageSize {
		*size = maxPageSize
	}
}
