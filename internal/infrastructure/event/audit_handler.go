package event

import (
	"context"

	"github.com/rentward/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// SettlementAuditHandler writes an audit log line for every settlement
// lifecycle event. It subscribes to the terminal transitions only; the
// per-allocation detail already lives on the aggregates themselves.
type SettlementAuditHandler struct {
	logger *zap.Logger
}

// NewSettlementAuditHandler creates a new audit handler
func NewSettlementAuditHandler(logger *zap.Logger) *SettlementAuditHandler {
	return &SettlementAuditHandler{logger: logger}
}

// Handle logs the event with its scope for audit trails
func (h *SettlementAuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info("settlement event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("contract_id", event.ContractID().String()),
		zap.String("partner_id", event.PartnerID().String()),
	)
	return nil
}

// EventTypes returns the settlement transitions worth auditing
func (h *SettlementAuditHandler) EventTypes() []string {
	return []string{
		"SettlementClaimBalanced",
		"SettlementClaimCancelled",
		"PayoutCompleted",
	}
}

var _ shared.EventHandler = (*SettlementAuditHandler)(nil)
