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

// ClaimStatus represents the balancing status of a claim
type ClaimStatus string

const (
	ClaimStatusPending           ClaimStatus = "PENDING"            // No payout amount matched yet
	ClaimStatusPartiallyBalanced ClaimStatus = "PARTIALLY_BALANCED" // Some amount matched, remainder outstanding
	ClaimStatusBalanced          ClaimStatus = "BALANCED"           // Fully matched, remaining balance zero
	ClaimStatusCancelled         ClaimStatus = "CANCELLED"          // Final settlement cancelled, balance re-derived
)

// IsValid checks if the status is a valid ClaimStatus
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusPartiallyBalanced, ClaimStatusBalanced, ClaimStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ClaimStatus
func (s ClaimStatus) String() string {
	return string(s)
}

// PayoutContribution records a single payout amount matched into the claim.
// It is one side of the bidirectional audit trail; the payout carries the
// mirror entry in its meta list.
type PayoutContribution struct {
	PayoutID          uuid.UUID       `json:"payout_id"`
	Amount            decimal.Decimal `json:"amount"`
	IsFinalSettlement bool            `json:"is_final_settlement"`
	AppliedAt         time.Time       `json:"applied_at"`
}

// PayoutContributions is a JSONB-persisted list of contributions
type PayoutContributions []PayoutContribution

// Value implements driver.Valuer for JSONB storage
func (c PayoutContributions) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB storage
func (c *PayoutContributions) Scan(value interface{}) error {
	if value == nil {
		*c = PayoutContributions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for PayoutContributions: %T", value)
	}
	return json.Unmarshal(data, c)
}

// UUIDList is a JSONB-persisted list of UUIDs
type UUIDList []uuid.UUID

// Value implements driver.Valuer for JSONB storage
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB storage
func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = UUIDList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for UUIDList: %T", value)
	}
	return json.Unmarshal(data, l)
}

// Contains reports whether the list contains the given ID
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Claim is a landlord invoice flagged as part of final settlement, carrying a
// remaining balance to be matched against payouts. Aggregate root; invariant:
// RemainingBalance = InvoiceTotal - TotalPaid - TotalBalanced, never negative
// while unresolved, exactly zero once fully balanced.
type Claim struct {
	shared.ScopedAggregateRoot
	ClaimNumber       string              `json:"claim_number"`
	SerialID          int64               `json:"serial_id"` // Monotonic per partner scope, FIFO ordering key
	InvoiceTotal      decimal.Decimal     `json:"invoice_total"`
	TotalPaid         decimal.Decimal     `json:"total_paid"`     // Paid by tenant outside settlement
	TotalBalanced     decimal.Decimal     `json:"total_balanced"` // Cumulative amount matched to payouts
	RemainingBalance  decimal.Decimal     `json:"remaining_balance"`
	IsPayable         bool                `json:"is_payable"`
	IsFinalSettlement bool                `json:"is_final_settlement"`
	Status            ClaimStatus         `json:"status"`
	Contributions     PayoutContributions `json:"contributions"`
	PayoutIDs         UUIDList            `json:"payout_ids"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason      string              `json:"cancel_reason,omitempty"`
}

var _ shared.AggregateRoot = (*Claim)(nil)

// NewClaim creates a new final-settlement claim from a landlord invoice.
// SerialID must come from the scope's serial sequence; the claim only consumes
// the ordering, it never generates it.
func NewClaim(
	contractID, partnerID uuid.UUID,
	claimNumber string,
	serialID int64,
	invoiceTotal valueobject.Money,
	totalPaid valueobject.Money,
) (*Claim, error) {
	if contractID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CONTRACT", "Contract ID cannot be empty")
	}
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if claimNumber == "" {
		return nil, shared.NewDomainError("INVALID_CLAIM_NUMBER", "Claim number cannot be empty")
	}
	if serialID <= 0 {
		return nil, shared.NewDomainError("INVALID_SERIAL", "Serial ID must be positive")
	}
	if invoiceTotal.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice total must be positive")
	}
	if totalPaid.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total paid cannot be negative")
	}
	if totalPaid.Amount().GreaterThan(invoiceTotal.Amount()) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total paid cannot exceed invoice total")
	}

	remaining := valueobject.RoundAmount(invoiceTotal.Amount().Sub(totalPaid.Amount()))
	c := &Claim{
		ScopedAggregateRoot: shared.NewScopedAggregateRoot(contractID, partnerID),
		ClaimNumber:         claimNumber,
		SerialID:            serialID,
		InvoiceTotal:        valueobject.RoundAmount(invoiceTotal.Amount()),
		TotalPaid:           valueobject.RoundAmount(totalPaid.Amount()),
		TotalBalanced:       decimal.Zero,
		RemainingBalance:    remaining,
		IsPayable:           true,
		IsFinalSettlement:   true,
		Status:              ClaimStatusPending,
		Contributions:       make(PayoutContributions, 0),
		PayoutIDs:           make(UUIDList, 0),
	}

	c.AddDomainEvent(NewClaimCreatedEvent(c))
	return c, nil
}

// NeedsBalancing reports whether the claim still has an unmatched remainder
func (c *Claim) NeedsBalancing() bool {
	return c.IsPayable && c.IsFinalSettlement && !c.RemainingBalance.IsZero()
}

// ApplyAllocation moves amount from the given payout into the claim,
// recording the contribution on the audit trail. The amount must already be
// clamped to min(remaining, payout amount) by the allocator; anything larger
// is rejected here as an overshoot.
func (c *Claim) ApplyAllocation(payoutID uuid.UUID, amount decimal.Decimal, isFinalSettlement bool) error {
	if payoutID == uuid.Nil {
		return shared.NewDomainError("INVALID_PAYOUT", "Payout ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.GreaterThan(c.RemainingBalance) {
		return shared.NewDomainError("EXCEEDS_REMAINING",
			fmt.Sprintf("Allocation %s exceeds remaining balance %s", amount.StringFixed(2), c.RemainingBalance.StringFixed(2)))
	}

	amount = valueobject.RoundAmount(amount)
	c.TotalBalanced = valueobject.RoundAmount(c.TotalBalanced.Add(amount))
	c.RemainingBalance = valueobject.RoundAmount(c.RemainingBalance.Sub(amount))

	c.Contributions = append(c.Contributions, PayoutContribution{
		PayoutID:          payoutID,
		Amount:            amount,
		IsFinalSettlement: isFinalSettlement,
		AppliedAt:         time.Now(),
	})
	if !c.PayoutIDs.Contains(payoutID) {
		c.PayoutIDs = append(c.PayoutIDs, payoutID)
	}

	if c.RemainingBalance.IsZero() {
		c.Status = ClaimStatusBalanced
		c.AddDomainEvent(NewClaimBalancedEvent(c))
	} else if c.Status == ClaimStatusPending {
		c.Status = ClaimStatusPartiallyBalanced
	}

	c.UpdatedAt = time.Now()
	return nil
}

// Cancel marks the claim cancelled and re-derives the remaining balance from
// invoice total minus what the tenant actually paid. The claim stays payable:
// a later reconciliation pass settles the re-derived remainder instead of
// reversing prior allocations step by step.
func (c *Claim) Cancel(reason string) error {
	if c.Status == ClaimStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Claim is already cancelled")
	}

	now := time.Now()
	c.Status = ClaimStatusCancelled
	c.RemainingBalance = valueobject.RoundAmount(c.InvoiceTotal.Sub(c.TotalPaid))
	c.TotalBalanced = decimal.Zero
	c.CancelledAt = &now
	c.CancelReason = reason
	c.UpdatedAt = now

	c.AddDomainEvent(NewClaimCancelledEvent(c))
	return nil
}

// Validate checks the claim is well-formed at reconciliation entry.
// A negative remaining balance or missing scope indicates a caller bug.
func (c *Claim) Validate(contractID, partnerID uuid.UUID) error {
	if c.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Claim is missing an ID")
	}
	if !c.SameScope(contractID, partnerID) {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Claim %s belongs to a different scope", c.ClaimNumber))
	}
	if c.RemainingBalance.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Claim %s has negative remaining balance %s", c.ClaimNumber, c.RemainingBalance.StringFixed(2)))
	}
	return nil
}

// Clone returns a deep copy so allocation can work on immutable values
func (c *Claim) Clone() *Claim {
	cp := *c
	cp.Contributions = make(PayoutContributions, len(c.Contributions))
	copy(cp.Contributions, c.Contributions)
	cp.PayoutIDs = make(UUIDList, len(c.PayoutIDs))
	copy(cp.PayoutIDs, c.PayoutIDs)
	cp.ClearDomainEvents()
	return &cp
}
