package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
)

// ClaimRepository defines persistence operations for claims
type ClaimRepository interface {
	// FindByID finds a claim by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Claim, error)

	// FindByClaimNumber finds a claim by its human-readable number
	FindByClaimNumber(ctx context.Context, claimNumber string) (*Claim, error)

	// FindUnbalanced returns the scope's payable final-settlement claims with
	// a non-zero remaining balance, ordered by serial ID ascending
	FindUnbalanced(ctx context.Context, contractID, partnerID uuid.UUID) ([]*Claim, error)

	// FindAllForScope returns every claim in the scope, ordered by serial ID
	FindAllForScope(ctx context.Context, contractID, partnerID uuid.UUID) ([]*Claim, error)

	// FindFinalSettlementClaims returns the scope's final-settlement claims,
	// ordered by serial ID ascending
	FindFinalSettlementClaims(ctx context.Context, contractID, partnerID uuid.UUID) ([]*Claim, error)

	// List returns a filtered page of the scope's claims
	List(ctx context.Context, contractID, partnerID uuid.UUID, filter shared.Filter) (*shared.Paginated[*Claim], error)

	// Save creates or updates a claim
	Save(ctx context.Context, claim *Claim) error

	// SaveWithLock updates a claim with optimistic concurrency control,
	// returning shared.ErrConcurrencyConflict when the stored version moved
	SaveWithLock(ctx context.Context, claim *Claim) error

	// Delete removes a claim
	Delete(ctx context.Context, id uuid.UUID) error
}

// PayoutRepository defines persistence operations for payouts
type PayoutRepository interface {
	// FindByID finds a payout by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payout, error)

	// FindEstimatedOrderedBySerial returns the scope's estimated payouts with
	// a positive amount, ordered by serial ID ascending
	FindEstimatedOrderedBySerial(ctx context.Context, contractID, partnerID uuid.UUID) ([]*Payout, error)

	// FindLastEstimated returns the scope's most recently created estimated
	// payout, or nil when none exists
	FindLastEstimated(ctx context.Context, contractID, partnerID uuid.UUID) (*Payout, error)

	// List returns a filtered page of the scope's payouts
	List(ctx context.Context, contractID, partnerID uuid.UUID, filter shared.Filter) (*shared.Paginated[*Payout], error)

	// Save creates or updates a payout
	Save(ctx context.Context, payout *Payout) error

	// SaveWithLock updates a payout with optimistic concurrency control,
	// returning shared.ErrConcurrencyConflict when the stored version moved
	SaveWithLock(ctx context.Context, payout *Payout) error

	// Delete removes a payout
	Delete(ctx context.Context, id uuid.UUID) error
}

// SerialSequenceRepository hands out the monotonically increasing serial IDs
// that order claims and payouts within a scope
type SerialSequenceRepository interface {
	// Next returns the next serial ID for the scope
	Next(ctx context.Context, contractID, partnerID uuid.UUID) (int64, error)
}
