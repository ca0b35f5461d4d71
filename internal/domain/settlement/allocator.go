package settlement

import (
	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Allocation is a single movement of money from one payout to one claim
// during a reconciliation pass. Ephemeral: it drives the symmetric audit-trail
// updates on both aggregates but is not persisted as its own entity.
type Allocation struct {
	PayoutID          uuid.UUID       `json:"payout_id"`
	ClaimID           uuid.UUID       `json:"claim_id"`
	Amount            decimal.Decimal `json:"amount"`
	IsFinalSettlement bool            `json:"is_final_settlement"`
}

// AllocationOutcome carries the updated aggregate values produced by one
// allocation pass. Inputs are never mutated; Claims and Payouts hold deep
// copies, updated where touched, in the input order.
type AllocationOutcome struct {
	Claims      []*Claim
	Payouts     []*Payout
	Allocations []Allocation
	TotalMoved  decimal.Decimal
}

// ClaimDelta returns the total increase of TotalBalanced across claims
func (o *AllocationOutcome) ClaimDelta(before []*Claim) decimal.Decimal {
	delta := decimal.Zero
	for i := range o.Claims {
		delta = delta.Add(o.Claims[i].TotalBalanced.Sub(before[i].TotalBalanced))
	}
	return valueobject.RoundAmount(delta)
}

// PayoutDelta returns the total decrease of Amount across payouts
func (o *AllocationOutcome) PayoutDelta(before []*Payout) decimal.Decimal {
	delta := decimal.Zero
	for i := range o.Payouts {
		delta = delta.Add(before[i].Amount.Sub(o.Payouts[i].Amount))
	}
	return valueobject.RoundAmount(delta)
}

// Allocator walks claims and payouts in serial order, greedily moving amount
// from a payout into a claim until either the claim is fully balanced or the
// payout is exhausted. Claims are committed FIFO: once a claim reaches zero it
// is never revisited within the pass, even if a later payout still holds
// amount.
type Allocator struct{}

// NewAllocator creates a new Allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// allocateStep computes the clamped amount for one claim/payout pairing.
// Returns zero when either side has nothing to move.
func allocateStep(claim *Claim, payout *Payout) decimal.Decimal {
	if claim.RemainingBalance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if payout.Amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return valueobject.RoundAmount(decimal.Min(payout.Amount, claim.RemainingBalance))
}

// AllocateAcrossPayouts runs the multi-payout mode: for each claim in FIFO
// order, scan payouts in FIFO order and move amount until the claim is
// balanced or all payouts are exhausted. Empty claims or payouts is a
// legitimate steady state, returned as a zero-allocation outcome.
func (a *Allocator) AllocateAcrossPayouts(claims []*Claim, payouts []*Payout) (*AllocationOutcome, error) {
	outcome := &AllocationOutcome{
		Claims:      cloneClaims(claims),
		Payouts:     clonePayouts(payouts),
		Allocations: make([]Allocation, 0),
		TotalMoved:  decimal.Zero,
	}
	if len(claims) == 0 || len(payouts) == 0 {
		return outcome, nil
	}

	for _, claim := range outcome.Claims {
		if !claim.NeedsBalancing() {
			continue
		}
		for _, payout := range outcome.Payouts {
			if !payout.CanAllocate() {
				continue
			}

			amount := allocateStep(claim, payout)
			if amount.LessThanOrEqual(decimal.Zero) {
				continue
			}

			if err := payout.ApplyDeduction(claim.ID, amount); err != nil {
				return nil, err
			}
			if err := claim.ApplyAllocation(payout.ID, amount, true); err != nil {
				return nil, err
			}

			outcome.Allocations = append(outcome.Allocations, Allocation{
				PayoutID:          payout.ID,
				ClaimID:           claim.ID,
				Amount:            amount,
				IsFinalSettlement: true,
			})
			outcome.TotalMoved = valueobject.RoundAmount(outcome.TotalMoved.Add(amount))

			if claim.RemainingBalance.IsZero() {
				// Claim exhausted: break, not continue. A fully balanced
				// claim never receives further allocation in the same pass.
				break
			}
		}
	}

	return outcome, nil
}

// AllocateAgainstPayout runs the single-payout mode: the same per-claim
// accumulation against one fixed payout, iterating claims in FIFO order until
// all claims are zeroed or the payout is exhausted. Claim updates happen
// inside the loop; the payout's meta and amount are written once, as a single
// batched update at the end.
func (a *Allocator) AllocateAgainstPayout(claims []*Claim, payout *Payout) (*AllocationOutcome, error) {
	outcome := &AllocationOutcome{
		Claims:      cloneClaims(claims),
		Payouts:     []*Payout{},
		Allocations: make([]Allocation, 0),
		TotalMoved:  decimal.Zero,
	}
	if payout == nil {
		return outcome, nil
	}
	updated := payout.Clone()
	outcome.Payouts = []*Payout{updated}
	if len(claims) == 0 || !updated.CanAllocate() {
		return outcome, nil
	}

	// Track the shrinking pool locally; the payout itself is updated once.
	available := updated.Amount
	pending := make([]MetaEntry, 0)

	for _, claim := range outcome.Claims {
		if !claim.NeedsBalancing() {
			continue
		}
		if available.LessThanOrEqual(decimal.Zero) {
			break
		}

		amount := valueobject.RoundAmount(decimal.Min(available, claim.RemainingBalance))
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		if err := claim.ApplyAllocation(updated.ID, amount, true); err != nil {
			return nil, err
		}
		pending = append(pending, MetaEntry{
			Type:      MetaTypeFinalSettlementClaim,
			ClaimID:   claim.ID,
			Amount:    amount.Neg(),
			AppliedAt: claim.UpdatedAt,
		})
		available = valueobject.RoundAmount(available.Sub(amount))

		outcome.Allocations = append(outcome.Allocations, Allocation{
			PayoutID:          updated.ID,
			ClaimID:           claim.ID,
			Amount:            amount,
			IsFinalSettlement: true,
		})
		outcome.TotalMoved = valueobject.RoundAmount(outcome.TotalMoved.Add(amount))
	}

	if len(pending) > 0 {
		if err := updated.ApplyDeductions(pending); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

// VerifyConservation checks that the amount moved out of payouts equals the
// amount moved into claims, to 2 decimal places. Inputs are the pre-pass
// values in the same order the allocator received them. A mismatch means the
// pass must not be persisted.
func VerifyConservation(claimsBefore []*Claim, payoutsBefore []*Payout, outcome *AllocationOutcome) error {
	claimDelta := outcome.ClaimDelta(claimsBefore)
	payoutDelta := outcome.PayoutDelta(payoutsBefore)
	if !claimDelta.Equal(payoutDelta) {
		return shared.ErrConservationViolation
	}
	if !claimDelta.Equal(outcome.TotalMoved) {
		return shared.ErrConservationViolation
	}
	return nil
}

func cloneClaims(claims []*Claim) []*Claim {
	out := make([]*Claim, len(claims))
	for i, c := range claims {
		out[i] = c.Clone()
	}
	return out
}

func clonePayouts(payouts []*Payout) []*Payout {
	out := make([]*Payout, len(payouts))
	for i, p := range payouts {
		out[i] = p.Clone()
	}
	return out
}
