package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PayoutCreatedEvent is raised when a new estimated payout is created
type PayoutCreatedEvent struct {
	shared.BaseDomainEvent
	PayoutID          uuid.UUID       `json:"payout_id"`
	PayoutNumber      string          `json:"payout_number"`
	SerialID          int64           `json:"serial_id"`
	Amount            decimal.Decimal `json:"amount"`
	IsFinalSettlement bool            `json:"is_final_settlement"`
}

// EventType returns the event type name
func (e *PayoutCreatedEvent) EventType() string {
	return "PayoutCreated"
}

// NewPayoutCreatedEvent creates a new PayoutCreatedEvent
func NewPayoutCreatedEvent(p *Payout) *PayoutCreatedEvent {
	return &PayoutCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("PayoutCreated", "Payout", p.ID, p.ContractID, p.PartnerID),
		PayoutID:          p.ID,
		PayoutNumber:      p.PayoutNumber,
		SerialID:          p.SerialID,
		Amount:            p.Amount,
		IsFinalSettlement: p.IsFinalSettlement,
	}
}

// PayoutCompletedEvent is raised when a payout transitions to its terminal
// state. Downstream accounting and notification hooks subscribe to this;
// delivery is best-effort and never rolls back the reconciliation pass.
type PayoutCompletedEvent struct {
	shared.BaseDomainEvent
	PayoutID     uuid.UUID   `json:"payout_id"`
	PayoutNumber string      `json:"payout_number"`
	Meta         MetaEntries `json:"meta"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// EventType returns the event type name
func (e *PayoutCompletedEvent) EventType() string {
	return "PayoutCompleted"
}

// NewPayoutCompletedEvent creates a new PayoutCompletedEvent
func NewPayoutCompletedEvent(p *Payout) *PayoutCompletedEvent {
	completedAt := time.Now()
	if p.CompletedAt != nil {
		completedAt = *p.CompletedAt
	}
	meta := make(MetaEntries, len(p.Meta))
	copy(meta, p.Meta)
	return &PayoutCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PayoutCompleted", "Payout", p.ID, p.ContractID, p.PartnerID),
		PayoutID:        p.ID,
		PayoutNumber:    p.PayoutNumber,
		Meta:            meta,
		CompletedAt:     completedAt,
	}
}
