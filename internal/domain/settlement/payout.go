package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PayoutStatus represents the lifecycle status of a payout
type PayoutStatus string

const (
	PayoutStatusEstimated PayoutStatus = "ESTIMATED" // Funds scheduled, available for allocation
	PayoutStatusCompleted PayoutStatus = "COMPLETED" // Fully allocated and closed out
	PayoutStatusCancelled PayoutStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PayoutStatus
func (s PayoutStatus) IsValid() bool {
	switch s {
	case PayoutStatusEstimated, PayoutStatusCompleted, PayoutStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PayoutStatus
func (s PayoutStatus) String() string {
	return string(s)
}

// PaymentStatus represents how far the payout's amount has been matched
type PaymentStatus string

const (
	PaymentStatusUnbalanced PaymentStatus = "UNBALANCED"
	PaymentStatusBalanced   PaymentStatus = "BALANCED"
)

// MetaEntryType classifies an audit entry on the payout side
type MetaEntryType string

// MetaTypeFinalSettlementClaim is the entry type written when a claim deduction
// is applied to the payout. The value is the persisted wire format and must not
// change.
const MetaTypeFinalSettlementClaim MetaEntryType = "final_settlement_invoiced_cancelled"

// MetaEntry records a single claim deduction applied to the payout.
// Amounts are negative since each entry reduces the payout pool.
type MetaEntry struct {
	Type      MetaEntryType   `json:"type"`
	ClaimID   uuid.UUID       `json:"landlord_invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// NewMetaEntry builds an audit entry for a claim deduction. Amount is the
// signed delta applied to the payout pool, negative for deductions.
func NewMetaEntry(claimID uuid.UUID, amount decimal.Decimal) MetaEntry {
	return MetaEntry{
		Type:      MetaTypeFinalSettlementClaim,
		ClaimID:   claimID,
		Amount:    amount,
		AppliedAt: time.Now(),
	}
}

// MetaEntries is a JSONB-persisted list of audit entries
type MetaEntries []MetaEntry

// Value implements driver.Valuer for JSONB storage
func (m MetaEntries) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB storage
func (m *MetaEntries) Scan(value interface{}) error {
	if value == nil {
		*m = MetaEntries{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for MetaEntries: %T", value)
	}
	return json.Unmarshal(data, m)
}

// Payout is a scheduled landlord payment holding a pool of money that can be
// allocated to claims. Aggregate root; Amount is the remaining unallocated
// pool, reduced as claims are matched, with each reduction mirrored by a
// negative meta entry.
type Payout struct {
	shared.ScopedAggregateRoot
	PayoutNumber      string          `json:"payout_number"`
	SerialID          int64           `json:"serial_id"` // Monotonic per partner scope, FIFO ordering key
	Amount            decimal.Decimal `json:"amount"`
	IsFinalSettlement bool            `json:"is_final_settlement"`
	Status            PayoutStatus    `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	Meta              MetaEntries     `json:"meta"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

var _ shared.AggregateRoot = (*Payout)(nil)

// NewPayout creates a new estimated payout
func NewPayout(
	contractID, partnerID uuid.UUID,
	payoutNumber string,
	serialID int64,
	amount valueobject.Money,
	isFinalSettlement bool,
) (*Payout, error) {
	if contractID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CONTRACT", "Contract ID cannot be empty")
	}
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if payoutNumber == "" {
		return nil, shared.NewDomainError("INVALID_PAYOUT_NUMBER", "Payout number cannot be empty")
	}
	if serialID <= 0 {
		return nil, shared.NewDomainError("INVALID_SERIAL", "Serial ID must be positive")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payout amount must be positive")
	}

	p := &Payout{
		ScopedAggregateRoot: shared.NewScopedAggregateRoot(contractID, partnerID),
		PayoutNumber:        payoutNumber,
		SerialID:            serialID,
		Amount:              valueobject.RoundAmount(amount.Amount()),
		IsFinalSettlement:   isFinalSettlement,
		Status:              PayoutStatusEstimated,
		PaymentStatus:       PaymentStatusUnbalanced,
		Meta:                make(MetaEntries, 0),
	}

	p.AddDomainEvent(NewPayoutCreatedEvent(p))
	return p, nil
}

// CanAllocate reports whether the payout can contribute to allocation.
// A payout with a non-positive amount stays in the candidate list but is inert.
func (p *Payout) CanAllocate() bool {
	return p.Status == PayoutStatusEstimated && p.Amount.GreaterThan(decimal.Zero)
}

// ApplyDeduction moves amount out of the payout toward the given claim,
// appending the negative audit entry
func (p *Payout) ApplyDeduction(claimID uuid.UUID, amount decimal.Decimal) error {
	if p.Status != PayoutStatusEstimated {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot deduct from payout in %s status", p.Status))
	}
	if claimID == uuid.Nil {
		return shared.NewDomainError("INVALID_CLAIM", "Claim ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Deduction amount must be positive")
	}
	if amount.GreaterThan(p.Amount) {
		return shared.NewDomainError("EXCEEDS_AMOUNT",
			fmt.Sprintf("Deduction %s exceeds payout amount %s", amount.StringFixed(2), p.Amount.StringFixed(2)))
	}

	amount = valueobject.RoundAmount(amount)
	p.Meta = append(p.Meta, MetaEntry{
		Type:      MetaTypeFinalSettlementClaim,
		ClaimID:   claimID,
		Amount:    amount.Neg(),
		AppliedAt: time.Now(),
	})
	p.Amount = valueobject.RoundAmount(p.Amount.Sub(amount))
	p.UpdatedAt = time.Now()
	return nil
}

// ApplyDeductions applies a batch of deductions as one payout update. Used by
// the single-payout reconciliation path, which accumulates all claim
// deductions before touching the payout.
func (p *Payout) ApplyDeductions(entries []MetaEntry) error {
	if p.Status != PayoutStatusEstimated {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot deduct from payout in %s status", p.Status))
	}

	total := decimal.Zero
	for _, e := range entries {
		if !e.Amount.IsNegative() {
			return shared.NewDomainError("INVALID_AMOUNT", "Batched deduction entries must carry negative amounts")
		}
		total = total.Add(e.Amount.Neg())
	}
	total = valueobject.RoundAmount(total)
	if total.GreaterThan(p.Amount) {
		return shared.NewDomainError("EXCEEDS_AMOUNT",
			fmt.Sprintf("Batched deduction %s exceeds payout amount %s", total.StringFixed(2), p.Amount.StringFixed(2)))
	}

	p.Meta = append(p.Meta, entries...)
	p.Amount = valueobject.RoundAmount(p.Amount.Sub(total))
	p.UpdatedAt = time.Now()
	return nil
}

// MarkCompleted transitions an exhausted payout to its terminal state
func (p *Payout) MarkCompleted() error {
	if p.Status != PayoutStatusEstimated {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot complete payout in %s status", p.Status))
	}
	if !p.Amount.IsZero() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot complete payout with nonzero amount %s", p.Amount.StringFixed(2)))
	}

	now := time.Now()
	p.Status = PayoutStatusCompleted
	p.PaymentStatus = PaymentStatusBalanced
	p.CompletedAt = &now
	p.UpdatedAt = now

	p.AddDomainEvent(NewPayoutCompletedEvent(p))
	return nil
}

// Validate checks the payout is well-formed at reconciliation entry
func (p *Payout) Validate(contractID, partnerID uuid.UUID) error {
	if p.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Payout is missing an ID")
	}
	if !p.SameScope(contractID, partnerID) {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Payout %s belongs to a different scope", p.PayoutNumber))
	}
	return nil
}

// Clone returns a deep copy so allocation can work on immutable values
func (p *Payout) Clone() *Payout {
	cp := *p
	cp.Meta = make(MetaEntries, len(p.Meta))
	copy(cp.Meta, p.Meta)
	cp.ClearDomainEvents()
	return &cp
}
