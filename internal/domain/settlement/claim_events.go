package settlement

import (
	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ClaimCreatedEvent is raised when a landlord invoice becomes a settlement claim
type ClaimCreatedEvent struct {
	shared.BaseDomainEvent
	ClaimID          uuid.UUID       `json:"claim_id"`
	ClaimNumber      string          `json:"claim_number"`
	SerialID         int64           `json:"serial_id"`
	InvoiceTotal     decimal.Decimal `json:"invoice_total"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// EventType returns the event type name
func (e *ClaimCreatedEvent) EventType() string {
	return "SettlementClaimCreated"
}

// NewClaimCreatedEvent creates a new ClaimCreatedEvent
func NewClaimCreatedEvent(c *Claim) *ClaimCreatedEvent {
	return &ClaimCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("SettlementClaimCreated", "Claim", c.ID, c.ContractID, c.PartnerID),
		ClaimID:          c.ID,
		ClaimNumber:      c.ClaimNumber,
		SerialID:         c.SerialID,
		InvoiceTotal:     c.InvoiceTotal,
		RemainingBalance: c.RemainingBalance,
	}
}

// ClaimBalancedEvent is raised when a claim's remaining balance reaches zero
type ClaimBalancedEvent struct {
	shared.BaseDomainEvent
	ClaimID       uuid.UUID       `json:"claim_id"`
	ClaimNumber   string          `json:"claim_number"`
	TotalBalanced decimal.Decimal `json:"total_balanced"`
	PayoutIDs     []uuid.UUID     `json:"payout_ids"`
}

// EventType returns the event type name
func (e *ClaimBalancedEvent) EventType() string {
	return "SettlementClaimBalanced"
}

// NewClaimBalancedEvent creates a new ClaimBalancedEvent
func NewClaimBalancedEvent(c *Claim) *ClaimBalancedEvent {
	ids := make([]uuid.UUID, len(c.PayoutIDs))
	copy(ids, c.PayoutIDs)
	return &ClaimBalancedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SettlementClaimBalanced", "Claim", c.ID, c.ContractID, c.PartnerID),
		ClaimID:         c.ID,
		ClaimNumber:     c.ClaimNumber,
		TotalBalanced:   c.TotalBalanced,
		PayoutIDs:       ids,
	}
}

// ClaimCancelledEvent is raised when a final settlement is cancelled and the
// claim's remaining balance is re-derived
type ClaimCancelledEvent struct {
	shared.BaseDomainEvent
	ClaimID          uuid.UUID       `json:"claim_id"`
	ClaimNumber      string          `json:"claim_number"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
}

// EventType returns the event type name
func (e *ClaimCancelledEvent) EventType() string {
	return "SettlementClaimCancelled"
}

// NewClaimCancelledEvent creates a new ClaimCancelledEvent
func NewClaimCancelledEvent(c *Claim) *ClaimCancelledEvent {
	return &ClaimCancelledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("SettlementClaimCancelled", "Claim", c.ID, c.ContractID, c.PartnerID),
		ClaimID:          c.ID,
		ClaimNumber:      c.ClaimNumber,
		RemainingBalance: c.RemainingBalance,
		CancelReason:     c.CancelReason,
	}
}
