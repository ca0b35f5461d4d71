package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaim(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("valid claim starts pending with the full remainder", func(t *testing.T) {
		claim, err := NewClaim(contractID, partnerID, "CLM-001", 1,
			valueobject.NewMoneyNOK(decimal.RequireFromString("100.00")),
			valueobject.NewMoneyNOK(decimal.RequireFromString("20.00")))
		require.NoError(t, err)

		assert.Equal(t, ClaimStatusPending, claim.Status)
		assert.True(t, claim.RemainingBalance.Equal(decimal.RequireFromString("80.00")))
		assert.True(t, claim.TotalBalanced.IsZero())
		assert.True(t, claim.IsPayable)
		assert.True(t, claim.IsFinalSettlement)
		assert.Len(t, claim.GetDomainEvents(), 1)
	})

	t.Run("invoice total is rounded to two decimals", func(t *testing.T) {
		claim, err := NewClaim(contractID, partnerID, "CLM-002", 2,
			valueobject.NewMoneyNOK(decimal.RequireFromString("100.005")),
			valueobject.ZeroNOK())
		require.NoError(t, err)
		assert.True(t, claim.InvoiceTotal.Equal(decimal.RequireFromString("100.01")))
		assert.True(t, claim.RemainingBalance.Equal(decimal.RequireFromString("100.01")))
	})

	t.Run("rejects empty scope", func(t *testing.T) {
		_, err := NewClaim(uuid.Nil, partnerID, "CLM-003", 3,
			valueobject.NewMoneyNOK(decimal.RequireFromString("10.00")),
			valueobject.ZeroNOK())
		assert.Error(t, err)
	})

	t.Run("rejects paid amount above invoice total", func(t *testing.T) {
		_, err := NewClaim(contractID, partnerID, "CLM-004", 4,
			valueobject.NewMoneyNOK(decimal.RequireFromString("10.00")),
			valueobject.NewMoneyNOK(decimal.RequireFromString("15.00")))
		assert.Error(t, err)
	})

	t.Run("rejects non-positive serial", func(t *testing.T) {
		_, err := NewClaim(contractID, partnerID, "CLM-005", 0,
			valueobject.NewMoneyNOK(decimal.RequireFromString("10.00")),
			valueobject.ZeroNOK())
		assert.Error(t, err)
	})
}

func TestClaimApplyAllocation(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("partial allocation leaves the claim partially balanced", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		payoutID := uuid.New()

		require.NoError(t, claim.ApplyAllocation(payoutID, decimal.RequireFromString("40.00"), true))

		assert.Equal(t, ClaimStatusPartiallyBalanced, claim.Status)
		assert.True(t, claim.RemainingBalance.Equal(decimal.RequireFromString("60.00")))
		assert.True(t, claim.TotalBalanced.Equal(decimal.RequireFromString("40.00")))
		require.Len(t, claim.Contributions, 1)
		assert.Equal(t, payoutID, claim.Contributions[0].PayoutID)
		assert.True(t, claim.PayoutIDs.Contains(payoutID))
	})

	t.Run("balancing the remainder is terminal", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		claim.ClearDomainEvents()

		require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("100.00"), true))

		assert.Equal(t, ClaimStatusBalanced, claim.Status)
		assert.True(t, claim.RemainingBalance.IsZero())
		assert.False(t, claim.NeedsBalancing())
		assert.Len(t, claim.GetDomainEvents(), 1)

		err := claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("1.00"), true)
		assert.Error(t, err)
	})

	t.Run("rejects overshoot", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "50.00", "0")
		err := claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("50.01"), true)
		assert.Error(t, err)
		assert.True(t, claim.RemainingBalance.Equal(decimal.RequireFromString("50.00")))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "50.00", "0")
		assert.Error(t, claim.ApplyAllocation(uuid.New(), decimal.Zero, true))
		assert.Error(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("-1.00"), true))
	})

	t.Run("same payout contributing twice is recorded once in the ID list", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		payoutID := uuid.New()

		require.NoError(t, claim.ApplyAllocation(payoutID, decimal.RequireFromString("30.00"), true))
		require.NoError(t, claim.ApplyAllocation(payoutID, decimal.RequireFromString("30.00"), true))

		assert.Len(t, claim.Contributions, 2)
		assert.Len(t, claim.PayoutIDs, 1)
	})
}

func TestClaimCancel(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("cancellation re-derives the remainder from invoice minus paid", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "20.00")
		require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("80.00"), true))
		require.True(t, claim.RemainingBalance.IsZero())

		require.NoError(t, claim.Cancel("contract terminated"))

		assert.Equal(t, ClaimStatusCancelled, claim.Status)
		assert.True(t, claim.RemainingBalance.Equal(decimal.RequireFromString("80.00")))
		assert.True(t, claim.TotalBalanced.IsZero())
		assert.True(t, claim.NeedsBalancing())
		require.NotNil(t, claim.CancelledAt)
		assert.Equal(t, "contract terminated", claim.CancelReason)
	})

	t.Run("cancelling twice fails", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
		require.NoError(t, claim.Cancel("first"))
		assert.Error(t, claim.Cancel("second"))
	})

	t.Run("cancelled claim settles again through the allocator", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "20.00")
		require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("80.00"), true))
		require.NoError(t, claim.Cancel("re-settle"))

		payout := newTestPayout(t, contractID, partnerID, 2, "90.00", true)
		outcome, err := NewAllocator().AllocateAcrossPayouts([]*Claim{claim}, []*Payout{payout})
		require.NoError(t, err)

		assert.True(t, outcome.Claims[0].RemainingBalance.IsZero())
		assert.True(t, outcome.Payouts[0].Amount.Equal(decimal.RequireFromString("10.00")))
	})
}

func TestClaimValidate(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("accepts a claim belonging to the scope", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "10.00", "0")
		assert.NoError(t, claim.Validate(contractID, partnerID))
	})

	t.Run("rejects a claim from another scope", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "10.00", "0")
		assert.Error(t, claim.Validate(uuid.New(), partnerID))
	})

	t.Run("rejects negative remaining balance", func(t *testing.T) {
		claim := newTestClaim(t, contractID, partnerID, 1, "10.00", "0")
		claim.RemainingBalance = decimal.RequireFromString("-0.01")
		assert.Error(t, claim.Validate(contractID, partnerID))
	})
}

func TestClaimClone(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	claim := newTestClaim(t, contractID, partnerID, 1, "100.00", "0")
	require.NoError(t, claim.ApplyAllocation(uuid.New(), decimal.RequireFromString("25.00"), true))

	clone := claim.Clone()
	require.NoError(t, clone.ApplyAllocation(uuid.New(), decimal.RequireFromString("75.00"), true))

	assert.True(t, claim.RemainingBalance.Equal(decimal.RequireFromString("75.00")))
	assert.True(t, clone.RemainingBalance.IsZero())
	assert.Len(t, claim.Contributions, 1)
	assert.Len(t, clone.Contributions, 2)
}
