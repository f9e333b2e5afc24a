// Package domain contains the core entities and business rules of the
// research repository service: papers with their review lifecycle, the
// field/category taxonomy, keywords, identities and donations.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaperStatus is the review state of a submitted paper.
type PaperStatus string

// Paper review lifecycle states.
const (
	// PaperStatusPending is the initial state of every submission.
	PaperStatusPending PaperStatus = "pending"

	// PaperStatusPublished marks a paper approved by an admin.
	PaperStatusPublished PaperStatus = "published"

	// PaperStatusRejected marks a paper declined by an admin.
	PaperStatusRejected PaperStatus = "rejected"
)

// Valid reports whether s is a known paper status.
func (s PaperStatus) Valid() bool {
	switch s {
	case PaperStatusPending, PaperStatusPublished, PaperStatusRejected:
		return true
	}
	return false
}

// Reviewed reports whether s is a terminal review decision.
// Only reviewed papers carry a reviewer reference.
func (s PaperStatus) Reviewed() bool {
	return s == PaperStatusPublished || s == PaperStatusRejected
}

// Paper is a research paper submission. The PDF itself lives in the
// content-addressed file store; CID and FileURL reference it.
type Paper struct {
	ID              int64
	Title           string
	Slug            string
	Abstract        string
	Notes           string
	Status          PaperStatus
	CategoryID      int64
	UserID          int64
	ReviewedBy      *int64
	RejectionReason *string
	CID             string
	FileURL         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Field is a leaf grouping node of the taxonomy; categories belong to fields.
type Field struct {
	ID   int64
	Name string
}

// Category is a paper classification under a single field.
type Category struct {
	ID      int64
	Name    string
	FieldID int64
}

// Keyword is a tag attachable to papers. Name is unique; aliases feed the
// trigram search alongside the name.
type Keyword struct {
	ID      int64
	Name    string
	Aliases []string
}

// Institution is an optional affiliation for users. Names are unique.
type Institution struct {
	ID   int64
	Name string
}

// User is a regular authenticated identity. Users submit papers.
type User struct {
	ID            int64
	UUID          uuid.UUID
	Name          string
	Email         string
	InstitutionID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Admin is a reviewer identity. Admins live in a separate identity space
// from users and hold a superset of user permissions on papers.
type Admin struct {
	ID        int64
	UUID      uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
}

// UserSummary is the author projection embedded in paper reads.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CategorySummary is the category projection embedded in paper reads.
type CategorySummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	FieldID int64  `json:"fieldId"`
}

// FieldSummary is the field projection embedded in paper reads.
type FieldSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PaperDetails is a paper enriched with its author, taxonomy placement and
// attached keywords, as returned by listing and fetch operations.
type PaperDetails struct {
	Paper
	User     UserSummary
	Category CategorySummary
	Field    FieldSummary
	Keywords []Keyword
}

// Donation is a payment-provider donation recorded from webhook events.
// DonorID is set when the donor email matches a registered user.
type Donation struct {
	ID               int64
	PaymentReference string
	DonorID          *int64
	DonorEmail       string
	Amount           int64
	Currency         string
	PaidAt           *time.Time
	CreatedAt        time.Time
}
