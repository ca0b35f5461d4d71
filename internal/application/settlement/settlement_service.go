package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/rentward/backoffice/internal/infrastructure/cache"
	"github.com/rentward/backoffice/internal/infrastructure/logger"
	"github.com/rentward/backoffice/internal/infrastructure/telemetry"
)

// UnitOfWork runs repository operations inside one transaction
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(claims settlement.ClaimRepository, payouts settlement.PayoutRepository, serials settlement.SerialSequenceRepository) error) error
}

// SettlementService orchestrates reconciliation passes over a scope: take
// the scope lock, load the unbalanced claims and estimated payouts, run the
// domain reconciler, persist the updated aggregates all-or-nothing, then
// publish the collected domain events.
type SettlementService struct {
	claimRepo        settlement.ClaimRepository
	payoutRepo       settlement.PayoutRepository
	reconciler       *settlement.Reconciler
	uow              UnitOfWork
	scopeLock        cache.ScopeLock
	events           shared.EventPublisher
	shortfallEnabled bool
}

// SettlementServiceOption configures optional behavior
type SettlementServiceOption func(*SettlementService)

// WithShortfallPayouts enables creating a covering payout when the scope's
// estimated payouts cannot absorb all claims
func WithShortfallPayouts(enabled bool) SettlementServiceOption {
	return func(s *SettlementService) {
		s.shortfallEnabled = enabled
	}
}

// WithScopeLock overrides the default in-memory scope lock
func WithScopeLock(lock cache.ScopeLock) SettlementServiceOption {
	return func(s *SettlementService) {
		if lock != nil {
			s.scopeLock = lock
		}
	}
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	claimRepo settlement.ClaimRepository,
	payoutRepo settlement.PayoutRepository,
	reconciler *settlement.Reconciler,
	uow UnitOfWork,
	events shared.EventPublisher,
	opts ...SettlementServiceOption,
) *SettlementService {
	s := &SettlementService{
		claimRepo:  claimRepo,
		payoutRepo: payoutRepo,
		reconciler: reconciler,
		uow:        uow,
		scopeLock:  cache.NewInMemoryScopeLock(0),
		events:     events,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileResult is the application-level view of one reconciliation pass
type ReconcileResult struct {
	ContractID           uuid.UUID               `json:"contract_id"`
	PartnerID            uuid.UUID               `json:"partner_id"`
	Allocations          []settlement.Allocation `json:"allocations"`
	TotalMoved           decimal.Decimal         `json:"total_moved"`
	CompletedPayoutIDs   []uuid.UUID             `json:"completed_payout_ids"`
	ShortfallRemaining   decimal.Decimal         `json:"shortfall_remaining"`
	ShortfallPayoutID    *uuid.UUID              `json:"shortfall_payout_id,omitempty"`
	ClaimsBalanced       int                     `json:"claims_balanced"`
	ClaimsPartial        int                     `json:"claims_partial"`
	NeedsShortfallPayout bool                    `json:"needs_shortfall_payout"`
}

// ReconcileClaimsAgainstPayouts runs a full pass over every unbalanced claim
// and every estimated payout of the scope, oldest serial first on both sides
func (s *SettlementService) ReconcileClaimsAgainstPayouts(ctx context.Context, contractID, partnerID uuid.UUID) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "reconcile_scope")
	defer span.End()

	return s.runPass(ctx, contractID, partnerID, func(claims []*settlement.Claim, payouts []*settlement.Payout) (*settlement.ReconcileResult, error) {
		return s.reconciler.Reconcile(ctx, contractID, partnerID, claims, payouts)
	})
}

// ReconcileClaimsAgainstLastPayout runs a pass that deducts every unbalanced
// claim from the scope's newest estimated payout only. The payout is written
// once with the combined deduction trail.
func (s *SettlementService) ReconcileClaimsAgainstLastPayout(ctx context.Context, contractID, partnerID uuid.UUID) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "reconcile_last_payout")
	defer span.End()

	return s.runPass(ctx, contractID, partnerID, func(claims []*settlement.Claim, _ []*settlement.Payout) (*settlement.ReconcileResult, error) {
		last, err := s.payoutRepo.FindLastEstimated(ctx, contractID, partnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load last estimated payout: %w", err)
		}
		return s.reconciler.ReconcileAgainstLastPayout(ctx, contractID, partnerID, claims, last)
	})
}

// CancelResult describes the outcome of a settlement cancellation
type CancelResult struct {
	ContractID uuid.UUID   `json:"contract_id"`
	PartnerID  uuid.UUID   `json:"partner_id"`
	ClaimIDs   []uuid.UUID `json:"claim_ids"`
}

// CancelFinalSettlement cancels every final-settlement claim in the scope.
// Each claim's remaining balance is re-derived from its invoice totals so a
// later pass can settle it again from scratch.
func (s *SettlementService) CancelFinalSettlement(ctx context.Context, contractID, partnerID uuid.UUID, reason string) (*CancelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "cancel_final_settlement")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrContractID, contractID.String(),
		telemetry.SpanAttrPartnerID, partnerID.String(),
	)

	release, err := s.scopeLock.Acquire(ctx, contractID, partnerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	claims, err := s.claimRepo.FindFinalSettlementClaims(ctx, contractID, partnerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load settlement claims: %w", err)
	}
	if len(claims) == 0 {
		return &CancelResult{ContractID: contractID, PartnerID: partnerID, ClaimIDs: []uuid.UUID{}}, nil
	}

	cancelled, err := s.reconciler.CancelClaims(claims, reason)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.uow.Execute(ctx, func(claimRepo settlement.ClaimRepository, _ settlement.PayoutRepository, _ settlement.SerialSequenceRepository) error {
		for _, claim := range cancelled {
			claim.IncrementVersion()
			if err := claimRepo.SaveWithLock(ctx, claim); err != nil {
				return fmt.Errorf("failed to save claim %s: %w", claim.ClaimNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, claimEvents(cancelled))

	result := &CancelResult{
		ContractID: contractID,
		PartnerID:  partnerID,
		ClaimIDs:   make([]uuid.UUID, 0, len(cancelled)),
	}
	for _, claim := range cancelled {
		result.ClaimIDs = append(result.ClaimIDs, claim.ID)
	}

	logger.L(ctx).Info("final settlement cancelled",
		zap.String("contract_id", contractID.String()),
		zap.String("partner_id", partnerID.String()),
		zap.Int("claims_cancelled", len(cancelled)),
	)
	telemetry.SetOK(span)
	return result, nil
}

// runPass is the shared orchestration for both reconciliation modes
func (s *SettlementService) runPass(
	ctx context.Context,
	contractID, partnerID uuid.UUID,
	reconcile func(claims []*settlement.Claim, payouts []*settlement.Payout) (*settlement.ReconcileResult, error),
) (*ReconcileResult, error) {
	span := telemetry.SpanFromContext(ctx)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrContractID, contractID.String(),
		telemetry.SpanAttrPartnerID, partnerID.String(),
	)

	release, err := s.scopeLock.Acquire(ctx, contractID, partnerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	claims, err := s.claimRepo.FindUnbalanced(ctx, contractID, partnerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unbalanced claims: %w", err)
	}
	payouts, err := s.payoutRepo.FindEstimatedOrderedBySerial(ctx, contractID, partnerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load estimated payouts: %w", err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClaimCount, len(claims),
		telemetry.SpanAttrPayoutCount, len(payouts),
	)

	outcome, err := reconcile(claims, payouts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ReconcileResult{
		ContractID:           contractID,
		PartnerID:            partnerID,
		Allocations:          outcome.Allocations,
		TotalMoved:           outcome.TotalMoved,
		CompletedPayoutIDs:   outcome.CompletedPayoutIDs,
		ShortfallRemaining:   outcome.ShortfallRemaining,
		NeedsShortfallPayout: outcome.NeedsShortfallPayout,
	}
	for _, claim := range outcome.Claims {
		switch claim.Status {
		case settlement.ClaimStatusBalanced:
			result.ClaimsBalanced++
		case settlement.ClaimStatusPartiallyBalanced:
			result.ClaimsPartial++
		}
	}

	touchedClaims := touchedClaimSet(outcome)
	touchedPayouts := touchedPayoutSet(outcome)

	var shortfallPayout *settlement.Payout
	if outcome.HasChanges() || (s.shortfallEnabled && outcome.NeedsShortfallPayout) {
		err = s.uow.Execute(ctx, func(claimRepo settlement.ClaimRepository, payoutRepo settlement.PayoutRepository, serialRepo settlement.SerialSequenceRepository) error {
			for _, claim := range outcome.Claims {
				if !touchedClaims[claim.ID] {
					continue
				}
				claim.IncrementVersion()
				if err := claimRepo.SaveWithLock(ctx, claim); err != nil {
					return fmt.Errorf("failed to save claim %s: %w", claim.ClaimNumber, err)
				}
			}
			for _, payout := range outcome.Payouts {
				if !touchedPayouts[payout.ID] {
					continue
				}
				payout.IncrementVersion()
				if err := payoutRepo.SaveWithLock(ctx, payout); err != nil {
					return fmt.Errorf("failed to save payout %s: %w", payout.PayoutNumber, err)
				}
			}

			if s.shortfallEnabled && outcome.NeedsShortfallPayout {
				created, err := s.createShortfallPayout(ctx, contractID, partnerID, outcome.ShortfallRemaining, payoutRepo, serialRepo)
				if err != nil {
					return err
				}
				shortfallPayout = created
			}
			return nil
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if shortfallPayout != nil {
		result.ShortfallPayoutID = &shortfallPayout.ID
	}

	events := claimEvents(outcome.Claims)
	events = append(events, payoutEvents(outcome.Payouts)...)
	if shortfallPayout != nil {
		events = append(events, shortfallPayout.GetDomainEvents()...)
	}
	s.publishEvents(ctx, events)

	logger.L(ctx).Info("reconciliation pass completed",
		zap.String("contract_id", contractID.String()),
		zap.String("partner_id", partnerID.String()),
		zap.Int("allocations", len(result.Allocations)),
		zap.String("total_moved", result.TotalMoved.StringFixed(2)),
		zap.Int("payouts_completed", len(result.CompletedPayoutIDs)),
		zap.String("shortfall_remaining", result.ShortfallRemaining.StringFixed(2)),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrTotalMoved, result.TotalMoved.StringFixed(2))
	telemetry.SetOK(span)
	return result, nil
}

// createShortfallPayout materializes a final-settlement payout covering the
// claim amount the scope's existing payouts could not absorb
func (s *SettlementService) createShortfallPayout(
	ctx context.Context,
	contractID, partnerID uuid.UUID,
	amount decimal.Decimal,
	payoutRepo settlement.PayoutRepository,
	serialRepo settlement.SerialSequenceRepository,
) (*settlement.Payout, error) {
	serial, err := serialRepo.Next(ctx, contractID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate payout serial: %w", err)
	}

	payout, err := settlement.NewPayout(
		contractID, partnerID,
		fmt.Sprintf("FS-PAYOUT-%06d", serial),
		serial,
		valueobject.NewMoneyNOK(amount),
		true,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shortfall payout: %w", err)
	}

	if err := payoutRepo.Save(ctx, payout); err != nil {
		return nil, fmt.Errorf("failed to save shortfall payout: %w", err)
	}
	return payout, nil
}

// publishEvents delivers the collected domain events. Delivery is best
// effort and never fails the pass.
func (s *SettlementService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("failed to publish settlement events", zap.Error(err))
	}
}

func touchedClaimSet(outcome *settlement.ReconcileResult) map[uuid.UUID]bool {
	touched := make(map[uuid.UUID]bool, len(outcome.Allocations))
	for _, alloc := range outcome.Allocations {
		touched[alloc.ClaimID] = true
	}
	return touched
}

func touchedPayoutSet(outcome *settlement.ReconcileResult) map[uuid.UUID]bool {
	touched := make(map[uuid.UUID]bool, len(outcome.Allocations)+len(outcome.CompletedPayoutIDs))
	for _, alloc := range outcome.Allocations {
		touched[alloc.PayoutID] = true
	}
	for _, id := range outcome.CompletedPayoutIDs {
		touched[id] = true
	}
	return touched
}

func claimEvents(claims []*settlement.Claim) []shared.DomainEvent {
	events := make([]shared.DomainEvent, 0)
	for _, claim := range claims {
		events = append(events, claim.GetDomainEvents()...)
		claim.ClearDomainEvents()
	}
	return events
}

func payoutEvents(payouts []*settlement.Payout) []shared.DomainEvent {
	events := make([]shared.DomainEvent, 0)
	for _, payout := range payouts {
		events = append(events, payout.GetDomainEvents()...)
		payout.ClearDomainEvents()
	}
	return events
}
