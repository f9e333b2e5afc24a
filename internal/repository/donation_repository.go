package repository

import (
	"context"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// DonationRepository records donations ingested from payment-provider webhooks.
type DonationRepository interface {
	// ExistsByReference reports whether a donation with the payment
	// reference has already been recorded. Webhook deliveries are retried
	// by the provider, so ingestion must be idempotent by reference.
	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// Create records a donation.
	// Returns domain.ErrAlreadyExists if the payment reference is taken.
	Create(ctx context.Context, donation *domain.Donation) (*domain.Donation, error)
}
