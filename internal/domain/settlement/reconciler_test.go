package settlement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alwaysBlockChecker struct{}

func (alwaysBlockChecker) WillComplete(context.Context, *Payout, []*Claim) (bool, error) {
	return false, nil
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	contractID, partnerID := newTestScope(t)

	t.Run("drained payout completes", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		payout := newTestPayout(t, contractID, partnerID, 1, "100.00", true)

		result, err := NewReconciler().Reconcile(ctx, contractID, partnerID, []*Claim{claim}, []*Payout{payout})
		require.NoError(t, err)

		require.Len(t, result.CompletedPayoutIDs, 1)
		assert.Equal(t, payout.ID, result.CompletedPayoutIDs[0])
		assert.Equal(t, PayoutStatusCompleted, result.Payouts[0].Status)
		assert.Equal(t, ClaimStatusBalanced, result.Claims[0].Status)
		assert.False(t, result.NeedsShortfallPayout)
		assert.True(t, result.HasChanges())
	})

	t.Run("final-settlement payout stays estimated while claims remain open", func(t *testing.T) {
		c1 := newTestClaim(t, contractID, partnerID, 1, "60.00", "0")
		c2 := newTestClaim(t, contractID, partnerID, 2, "80.00", "0")
		payout := newTestPayout(t, contractID, partnerID, 1, "60.00", true)

		result, err := NewReconciler().Reconcile(ctx, contractID, partnerID, []*Claim{c1, c2}, []*Payout{payout})
		require.NoError(t, err)

		// The pool hit zero but the scope still owes on the second claim.
		assert.Empty(t, result.CompletedPayoutIDs)
		assert.Equal(t, PayoutStatusEstimated, result.Payouts[0].Status)
		assert.True(t, result.ShortfallRemaining.Equal(decimal.RequireFromString("80.00")))
		assert.True(t, result.NeedsShortfallPayout)
	})

	t.Run("non-final-settlement payout completes regardless of open claims", func(t *testing.T) {
		c1 := newTestClaim(t, contractID, partnerID, 1, "60.00", "0")
		c2 := newTestClaim(t, contractID, partnerID, 2, "80.00", "0")
		payout := newTestPayout(t, contractID, partnerID, 1, "60.00", false)

		result, err := NewReconciler().Reconcile(ctx, contractID, partnerID, []*Claim{c1, c2}, []*Payout{payout})
		require.NoError(t, err)

		require.Len(t, result.CompletedPayoutIDs, 1)
		assert.Equal(t, PayoutStatusCompleted, result.Payouts[0].Status)
	})

	t.Run("checker can hold back completion", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		payout := newTestPayout(t, contractID, partnerID, 1, "100.00", true)

		reconciler := NewReconciler(WithFinalSettlementChecker(alwaysBlockChecker{}))
		result, err := reconciler.Reconcile(ctx, contractID, partnerID, []*Claim{claim}, []*Payout{payout})
		require.NoError(t, err)

		assert.Empty(t, result.CompletedPayoutIDs)
		assert.Equal(t, PayoutStatusEstimated, result.Payouts[0].Status)
		assert.True(t, result.Payouts[0].Amount.IsZero())
	})

	t.Run("empty inputs succeed with no changes", func(t *testing.T) {
		result, err := NewReconciler().Reconcile(ctx, contractID, partnerID, nil, nil)
		require.NoError(t, err)
		assert.False(t, result.HasChanges())
		assert.True(t, result.TotalMoved.IsZero())
	})

	t.Run("running twice over a settled scope changes nothing", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "50.00", "0")
		payout := newTestPayout(t, contractID, partnerID, 1, "50.00", true)

		reconciler := NewReconciler()
		first, err := reconciler.Reconcile(ctx, contractID, partnerID, []*Claim{claim}, []*Payout{payout})
		require.NoError(t, err)
		require.True(t, first.HasChanges())

		second, err := reconciler.Reconcile(ctx, contractID, partnerID, first.Claims, first.Payouts)
		require.NoError(t, err)
		assert.False(t, second.HasChanges())
		assert.True(t, second.TotalMoved.IsZero())
	})

	t.Run("rejects an empty scope", func(t *testing.T) {
		_, err := NewReconciler().Reconcile(ctx, uuid.Nil, partnerID, nil, nil)
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_INPUT", derr.Code)
	})

	t.Run("rejects a claim from another scope", func(t *testing.T) {
		foreign := newTestClaim(t, uuid.New(), partnerID, 1, "10.00", "0")
		_, err := NewReconciler().Reconcile(ctx, contractID, partnerID, []*Claim{foreign}, nil)
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_INPUT", derr.Code)
	})
}

func TestReconcileAgainstLastPayout(t *testing.T) {
	ctx := context.Background()
	contractID, partnerID := newTestScope(t)

	t.Run("settles claims against the single payout pool", func(t *testing.T) {
		c1 := newTestClaim(t, contractID, partnerID, 1, "30.00", "0")
		c2 := newTestClaim(t, contractID, partnerID, 2, "50.00", "0")
		payout := newTestPayout(t, contractID, partnerID, 1, "100.00", true)

		result, err := NewReconciler().ReconcileAgainstLastPayout(ctx, contractID, partnerID, []*Claim{c1, c2}, payout)
		require.NoError(t, err)

		assert.True(t, result.Payouts[0].Amount.Equal(decimal.RequireFromString("20.00")))
		assert.True(t, result.TotalMoved.Equal(decimal.RequireFromString("80.00")))
		assert.Len(t, result.Payouts[0].Meta, 2)
		assert.Empty(t, result.CompletedPayoutIDs)
	})

	t.Run("nil payout is a no-op", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "30.00", "0")

		result, err := NewReconciler().ReconcileAgainstLastPayout(ctx, contractID, partnerID, []*Claim{claim}, nil)
		require.NoError(t, err)
		assert.False(t, result.HasChanges())
	})
}

func TestCancelClaims(t *testing.T) {
	ctx := context.Background()
	contractID, partnerID := newTestScope(t)

	t.Run("cancelled claims re-enter settlement with the re-derived remainder", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "20.00")
		require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("80.00"), true))

		reconciler := NewReconciler()
		cancelled, err := reconciler.CancelClaims([]*Claim{claim}, "settlement voided")
		require.NoError(t, err)

		require.Len(t, cancelled, 1)
		assert.True(t, cancelled[0].RemainingBalance.Equal(decimal.RequireFromString("80.00")))
		// Original untouched
		assert.True(t, claim.RemainingBalance.IsZero())

		payout := newTestPayout(t, contractID, partnerID, 2, "90.00", true)
		result, err := reconciler.Reconcile(ctx, contractID, partnerID, cancelled, []*Payout{payout})
		require.NoError(t, err)

		assert.True(t, result.Claims[0].RemainingBalance.IsZero())
		assert.True(t, result.Payouts[0].Amount.Equal(decimal.RequireFromString("10.00")))
		assert.Empty(t, result.CompletedPayoutIDs)
	})

	t.Run("fails when a claim is already cancelled", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		reconciler := NewReconciler()

		once, err := reconciler.CancelClaims([]*Claim{claim}, "first")
		require.NoError(t, err)
		_, err = reconciler.CancelClaims(once, "second")
		assert.Error(t, err)
	})
}

func TestTotalsStatusEvaluator(t *testing.T) {
	contractID, partnerID := newTestScope(t)
	evaluator := TotalsStatusEvaluator{}

	t.Run("fully covered claim is balanced", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "40.00")
		require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("60.00"), true))
		assert.Equal(t, ClaimStatusBalanced, evaluator.Evaluate(nil, claim))
	})

	t.Run("partly covered claim is partially balanced", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("10.00"), true))
		assert.Equal(t, ClaimStatusPartiallyBalanced, evaluator.Evaluate(nil, claim))
	})

	t.Run("cancelled status is preserved", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		require.NoError(t, claim.Cancel("void"))
		assert.Equal(t, ClaimStatusCancelled, evaluator.Evaluate(nil, claim))
	})
}
