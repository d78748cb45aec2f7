// Package store keeps a ledger of issued attestations so operators can
// answer "what did we sign for this address" after the fact.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"attestor/internal/eligibility/models"
	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
)

// DefaultListLimit caps ListBySubject when the caller passes no limit.
const DefaultListLimit = 50

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "receipt not found")

// Receipt is the persisted record of one issued attestation.
type Receipt struct {
	ID        uuid.UUID      `json:"id"`
	Subject   domain.Address `json:"subject"`
	Criterion string         `json:"criterion"`
	ChainID   uint64         `json:"chain_id"`
	Eligible  bool           `json:"eligible"`
	Auxiliary *string        `json:"auxiliary,omitempty"`
	Signature string         `json:"signature"`
	Signer    domain.Address `json:"signer"`
	// Wallets is how many addresses were evaluated, primary included.
	Wallets  int       `json:"wallets"`
	IssuedAt time.Time `json:"issued_at"`
}

// FromAttestation builds the receipt for an issued attestation.
func FromAttestation(att *models.Attestation, wallets int) Receipt {
	return Receipt{
		ID:        att.ID,
		Subject:   att.Subject,
		Criterion: att.Criterion.String(),
		ChainID:   att.Chain.Uint64(),
		Eligible:  att.Result.Eligible,
		Auxiliary: att.Result.Auxiliary,
		Signature: att.Signature,
		Signer:    att.Signer,
		Wallets:   wallets,
		IssuedAt:  att.IssuedAt,
	}
}

type Store interface {
	Save(ctx context.Context, r Receipt) error
	Get(ctx context.Context, id uuid.UUID) (Receipt, error)
	// ListBySubject returns the newest receipts for subject first.
	ListBySubject(ctx context.Context, subject domain.Address, limit int) ([]Receipt, error)
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
