package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// Compile-time interface verification.
var _ DonationRepository = (*PgDonationRepository)(nil)

// PgDonationRepository is a PostgreSQL implementation of DonationRepository.
type PgDonationRepository struct {
	db DBTX
}

// NewPgDonationRepository creates a new PostgreSQL donation repository.
func NewPgDonationRepository(db DBTX) *PgDonationRepository {
	return &PgDonationRepository{db: db}
}

// ExistsByReference reports whether the payment reference is already recorded.
func (r *PgDonationRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	if reference == "" {
		return false, domain.NewValidationError("reference", "payment reference is required")
	}

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM donations WHERE payment_reference = $1)`, reference).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check donation reference: %w", err)
	}

	return exists, nil
}

// Create records a donation.
func (r *PgDonationRepository) Create(ctx context.Context, donation *domain.Donation) (*domain.Donation, error) {
	if donation == nil {
		return nil, domain.NewValidationError("donation", "donation cannot be nil")
	}
	if donation.PaymentReference == "" {
		return nil, domain.NewValidationError("reference", "payment reference is required")
	}

	query := `
		INSERT INTO donations (
			payment_reference, donor_id, donor_email, amount, currency, paid_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		donation.PaymentReference,
		donation.DonorID,
		donation.DonorEmail,
		donation.Amount,
		donation.Currency,
		donation.PaidAt,
		time.Now().UTC(),
	).Scan(&donation.ID, &donation.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.NewAlreadyExistsError("donation", donation.PaymentReference)
		}
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	return donation, nil
}
