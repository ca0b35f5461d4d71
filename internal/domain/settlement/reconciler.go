package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FinalSettlementChecker decides whether a final-settlement payout whose
// amount reached zero may complete, or whether a remaining settlement
// obligation blocks it. Provided by the host system.
type FinalSettlementChecker interface {
	WillComplete(ctx context.Context, payout *Payout, openClaims []*Claim) (bool, error)
}

// OutstandingClaimsChecker is the default FinalSettlementChecker: a
// final-settlement payout completes once no claim in the scope still needs
// balancing.
type OutstandingClaimsChecker struct{}

// WillComplete reports whether the payout may transition to completed
func (OutstandingClaimsChecker) WillComplete(_ context.Context, _ *Payout, openClaims []*Claim) (bool, error) {
	for _, c := range openClaims {
		if c.NeedsBalancing() {
			return false, nil
		}
	}
	return true, nil
}

// InvoiceStatusEvaluator recomputes a claim's invoice status whenever its
// balanced total changes. The reconciler supplies the previous and updated
// values and applies whatever the evaluator decides; it never derives the
// status itself.
type InvoiceStatusEvaluator interface {
	Evaluate(previous, updated *Claim) ClaimStatus
}

// TotalsStatusEvaluator is the default InvoiceStatusEvaluator, deriving the
// status from the balanced and paid totals against the invoice total.
type TotalsStatusEvaluator struct{}

// Evaluate returns the status the updated claim should carry
func (TotalsStatusEvaluator) Evaluate(previous, updated *Claim) ClaimStatus {
	if updated.Status == ClaimStatusCancelled {
		return ClaimStatusCancelled
	}
	covered := valueobject.RoundAmount(updated.TotalPaid.Add(updated.TotalBalanced))
	switch {
	case covered.GreaterThanOrEqual(updated.InvoiceTotal):
		return ClaimStatusBalanced
	case updated.TotalBalanced.GreaterThan(decimal.Zero):
		return ClaimStatusPartiallyBalanced
	default:
		return ClaimStatusPending
	}
}

// ReconcileResult is the outcome of one reconciliation pass
type ReconcileResult struct {
	Claims               []*Claim        // Updated copies of all input claims, input order
	Payouts              []*Payout       // Updated copies of all input payouts, input order
	Allocations          []Allocation    // One record per matching step
	TotalMoved           decimal.Decimal // Conserved sum moved across the pass
	CompletedPayoutIDs   []uuid.UUID     // Payouts that transitioned to COMPLETED
	ShortfallRemaining   decimal.Decimal // Claim amount still unbalanced after the pass
	NeedsShortfallPayout bool            // True when no estimated payout can cover the remainder
}

// HasChanges reports whether the pass touched any aggregate
func (r *ReconcileResult) HasChanges() bool {
	return len(r.Allocations) > 0 || len(r.CompletedPayoutIDs) > 0
}

// Reconciler coordinates one reconciliation pass: validate the selected
// claims and payouts, allocate greedily in serial order, then finalize
// terminal transitions. It is pure and never persists; all-or-nothing
// persistence of the returned values is the caller's responsibility.
type Reconciler struct {
	allocator       *Allocator
	checker         FinalSettlementChecker
	statusEvaluator InvoiceStatusEvaluator
}

// ReconcilerOption is a functional option for configuring Reconciler
type ReconcilerOption func(*Reconciler)

// WithFinalSettlementChecker overrides the completion check for
// final-settlement payouts
func WithFinalSettlementChecker(c FinalSettlementChecker) ReconcilerOption {
	return func(r *Reconciler) {
		if c != nil {
			r.checker = c
		}
	}
}

// WithInvoiceStatusEvaluator overrides the invoice status collaborator
func WithInvoiceStatusEvaluator(e InvoiceStatusEvaluator) ReconcilerOption {
	return func(r *Reconciler) {
		if e != nil {
			r.statusEvaluator = e
		}
	}
}

// NewReconciler creates a new Reconciler with optional configuration
func NewReconciler(opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		allocator:       NewAllocator(),
		checker:         OutstandingClaimsChecker{},
		statusEvaluator: TotalsStatusEvaluator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs the multi-payout mode over the scope's unbalanced claims and
// estimated payouts. Empty claims or payouts is success with zero
// allocations, never an error.
func (r *Reconciler) Reconcile(ctx context.Context, contractID, partnerID uuid.UUID, claims []*Claim, payouts []*Payout) (*ReconcileResult, error) {
	if err := r.validateInputs(contractID, partnerID, claims, payouts); err != nil {
		return nil, err
	}

	outcome, err := r.allocator.AllocateAcrossPayouts(claims, payouts)
	if err != nil {
		return nil, err
	}
	if err := VerifyConservation(claims, payouts, outcome); err != nil {
		return nil, err
	}

	return r.finalize(ctx, outcome)
}

// ReconcileAgainstLastPayout runs the single-payout mode against the scope's
// most recent estimated payout. A nil payout is a no-op pass.
func (r *Reconciler) ReconcileAgainstLastPayout(ctx context.Context, contractID, partnerID uuid.UUID, claims []*Claim, payout *Payout) (*ReconcileResult, error) {
	var payouts []*Payout
	if payout != nil {
		payouts = []*Payout{payout}
	}
	if err := r.validateInputs(contractID, partnerID, claims, payouts); err != nil {
		return nil, err
	}

	outcome, err := r.allocator.AllocateAgainstPayout(claims, payout)
	if err != nil {
		return nil, err
	}
	if err := VerifyConservation(claims, payouts, outcome); err != nil {
		return nil, err
	}

	return r.finalize(ctx, outcome)
}

// CancelClaims re-derives each claim's remaining balance for a cancelled
// final settlement. The returned copies carry status CANCELLED and
// remainingBalance = round(invoiceTotal - totalPaid, 2); a subsequent
// reconciliation pass settles the fresh remainder with the same algorithm.
func (r *Reconciler) CancelClaims(claims []*Claim, reason string) ([]*Claim, error) {
	cancelled := cloneClaims(claims)
	for _, c := range cancelled {
		if err := c.Cancel(reason); err != nil {
			return nil, err
		}
	}
	return cancelled, nil
}

// finalize applies the settlement finalizer to an allocation outcome:
// payouts whose amount reached zero transition to completed (final-settlement
// payouts only after the collaborator check), claim statuses are re-evaluated
// through the invoice-status collaborator, and a shortfall is flagged when
// claims remain unbalanced with no allocatable payout left.
func (r *Reconciler) finalize(ctx context.Context, outcome *AllocationOutcome) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Claims:             outcome.Claims,
		Payouts:            outcome.Payouts,
		Allocations:        outcome.Allocations,
		TotalMoved:         outcome.TotalMoved,
		CompletedPayoutIDs: make([]uuid.UUID, 0),
	}

	for _, payout := range result.Payouts {
		if payout.Status != PayoutStatusEstimated || !payout.Amount.IsZero() {
			continue
		}
		if payout.IsFinalSettlement {
			ok, err := r.checker.WillComplete(ctx, payout, result.Claims)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if err := payout.MarkCompleted(); err != nil {
			return nil, err
		}
		result.CompletedPayoutIDs = append(result.CompletedPayoutIDs, payout.ID)
	}

	for _, claim := range result.Claims {
		if claim.TotalBalanced.Equal(decimal.Zero) && claim.Status == ClaimStatusPending {
			continue
		}
		claim.Status = r.statusEvaluator.Evaluate(nil, claim)
	}

	remaining := decimal.Zero
	for _, claim := range result.Claims {
		if claim.NeedsBalancing() {
			remaining = remaining.Add(claim.RemainingBalance)
		}
	}
	result.ShortfallRemaining = valueobject.RoundAmount(remaining)
	if result.ShortfallRemaining.GreaterThan(decimal.Zero) {
		allocatable := false
		for _, payout := range result.Payouts {
			if payout.CanAllocate() {
				allocatable = true
				break
			}
		}
		result.NeedsShortfallPayout = !allocatable
	}

	return result, nil
}

// validateInputs rejects malformed inputs before any mutation. Missing scope
// identifiers or negative balances indicate caller bugs, not steady states.
func (r *Reconciler) validateInputs(contractID, partnerID uuid.UUID, claims []*Claim, payouts []*Payout) error {
	if contractID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Contract ID cannot be empty")
	}
	if partnerID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Partner ID cannot be empty")
	}
	for _, c := range claims {
		if err := c.Validate(contractID, partnerID); err != nil {
			return err
		}
	}
	for _, p := range payouts {
		if err := p.Validate(contractID, partnerID); err != nil {
			return err
		}
	}
	return nil
}
