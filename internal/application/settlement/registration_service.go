package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/rentward/backoffice/internal/infrastructure/logger"
	"github.com/rentward/backoffice/internal/infrastructure/telemetry"
)

// RegistrationService feeds the reconciliation engine: it registers the
// claims and payouts a scope accumulates before a pass runs, and removes
// records that were entered by mistake and never touched by allocation.
type RegistrationService struct {
	claimRepo  settlement.ClaimRepository
	payoutRepo settlement.PayoutRepository
	uow        UnitOfWork
	events     shared.EventPublisher
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(
	claimRepo settlement.ClaimRepository,
	payoutRepo settlement.PayoutRepository,
	uow UnitOfWork,
	events shared.EventPublisher,
) *RegistrationService {
	return &RegistrationService{
		claimRepo:  claimRepo,
		payoutRepo: payoutRepo,
		uow:        uow,
		events:     events,
	}
}

// RegisterClaim records a landlord invoice as a final-settlement claim. The
// serial ID is drawn from the scope's sequence inside the same transaction
// as the insert, so claim ordering matches registration order.
func (s *RegistrationService) RegisterClaim(
	ctx context.Context,
	contractID, partnerID uuid.UUID,
	claimNumber string,
	invoiceTotal, totalPaid decimal.Decimal,
) (*settlement.Claim, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "register_claim")
	defer span.End()

	existing, err := s.claimRepo.FindByClaimNumber(ctx, claimNumber)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check claim number: %w", err)
	}
	if existing != nil {
		err := shared.NewDomainError("DUPLICATE",
			fmt.Sprintf("Claim %s already exists", claimNumber))
		telemetry.RecordError(span, err)
		return nil, err
	}

	var claim *settlement.Claim
	err = s.uow.Execute(ctx, func(claims settlement.ClaimRepository, _ settlement.PayoutRepository, serials settlement.SerialSequenceRepository) error {
		serial, err := serials.Next(ctx, contractID, partnerID)
		if err != nil {
			return fmt.Errorf("failed to draw serial: %w", err)
		}
		claim, err = settlement.NewClaim(
			contractID, partnerID,
			claimNumber,
			serial,
			valueobject.NewMoneyNOK(invoiceTotal),
			valueobject.NewMoneyNOK(totalPaid),
		)
		if err != nil {
			return err
		}
		return claims.Save(ctx, claim)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, claim.GetDomainEvents())
	claim.ClearDomainEvents()

	logger.L(ctx).Info("claim registered",
		zap.String("contract_id", contractID.String()),
		zap.String("partner_id", partnerID.String()),
		zap.String("claim_number", claim.ClaimNumber),
		zap.Int64("serial_id", claim.SerialID),
		zap.String("remaining_balance", claim.RemainingBalance.String()),
	)
	telemetry.SetOK(span)
	return claim, nil
}

// RegisterPayout records a scheduled landlord payment as an estimated payout
// available for allocation.
func (s *RegistrationService) RegisterPayout(
	ctx context.Context,
	contractID, partnerID uuid.UUID,
	payoutNumber string,
	amount decimal.Decimal,
	isFinalSettlement bool,
) (*settlement.Payout, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "register_payout")
	defer span.End()

	var payout *settlement.Payout
	err := s.uow.Execute(ctx, func(_ settlement.ClaimRepository, payouts settlement.PayoutRepository, serials settlement.SerialSequenceRepository) error {
		serial, err := serials.Next(ctx, contractID, partnerID)
		if err != nil {
			return fmt.Errorf("failed to draw serial: %w", err)
		}
		payout, err = settlement.NewPayout(
			contractID, partnerID,
			payoutNumber,
			serial,
			valueobject.NewMoneyNOK(amount),
			isFinalSettlement,
		)
		if err != nil {
			return err
		}
		return payouts.Save(ctx, payout)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, payout.GetDomainEvents())
	payout.ClearDomainEvents()

	logger.L(ctx).Info("payout registered",
		zap.String("contract_id", contractID.String()),
		zap.String("partner_id", partnerID.String()),
		zap.String("payout_number", payout.PayoutNumber),
		zap.Int64("serial_id", payout.SerialID),
		zap.String("amount", payout.Amount.String()),
	)
	telemetry.SetOK(span)
	return payout, nil
}

// RemoveClaim deletes a claim that has never received an allocation. A claim
// with matched amount is part of the audit trail and cannot be removed.
func (s *RegistrationService) RemoveClaim(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "remove_claim")
	defer span.End()

	claim, err := s.claimRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !claim.TotalBalanced.IsZero() || len(claim.Contributions) > 0 {
		err := shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Claim %s has allocations and cannot be removed", claim.ClaimNumber))
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.claimRepo.Delete(ctx, id); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	logger.L(ctx).Info("claim removed",
		zap.String("claim_id", id.String()),
		zap.String("claim_number", claim.ClaimNumber),
	)
	telemetry.SetOK(span)
	return nil
}

// RemovePayout deletes an estimated payout that has never contributed to an
// allocation.
func (s *RegistrationService) RemovePayout(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "remove_payout")
	defer span.End()

	payout, err := s.payoutRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if payout.Status != settlement.PayoutStatusEstimated || len(payout.Meta) > 0 {
		err := shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Payout %s has been allocated and cannot be removed", payout.PayoutNumber))
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.payoutRepo.Delete(ctx, id); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	logger.L(ctx).Info("payout removed",
		zap.String("payout_id", id.String()),
		zap.String("payout_number", payout.PayoutNumber),
	)
	telemetry.SetOK(span)
	return nil
}

// publishEvents mirrors the best-effort publication of the settlement service
func (s *RegistrationService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("failed to publish registration events", zap.Error(err))
	}
}
