package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayout(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("valid payout starts estimated and unbalanced", func(t *testing.T) {
		payout, err := NewPayout(contractID, partnerID, "PAY-001", 1,
			valueobject.NewMoneyNOK(decimal.RequireFromString("120.00")), true)
		require.NoError(t, err)

		assert.Equal(t, PayoutStatusEstimated, payout.Status)
		assert.Equal(t, PaymentStatusUnbalanced, payout.PaymentStatus)
		assert.True(t, payout.CanAllocate())
		assert.Empty(t, payout.Meta)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPayout(contractID, partnerID, "PAY-002", 2, valueobject.ZeroNOK(), true)
		assert.Error(t, err)
	})
}

func TestPayoutApplyDeduction(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("deduction lowers the amount and records a negative meta entry", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "120.00", true)
		claimID := uuid.New()

		require.NoError(t, payout.ApplyDeduction(claimID, decimal.RequireFromString("45.50")))

		assert.True(t, payout.Amount.Equal(decimal.RequireFromString("74.50")))
		require.Len(t, payout.Meta, 1)
		entry := payout.Meta[0]
		assert.Equal(t, MetaTypeFinalSettlementClaim, entry.Type)
		assert.Equal(t, claimID, entry.ClaimID)
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("-45.50")))
	})

	t.Run("rejects deduction beyond the available amount", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "30.00", true)
		err := payout.ApplyDeduction(uuid.New(), decimal.RequireFromString("30.01"))
		assert.Error(t, err)
		assert.True(t, payout.Amount.Equal(decimal.RequireFromString("30.00")))
	})

	t.Run("rejects deduction on a completed payout", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "30.00", true)
		require.NoError(t, payout.ApplyDeduction(uuid.New(), decimal.RequireFromString("30.00")))
		require.NoError(t, payout.MarkCompleted())

		err := payout.ApplyDeduction(uuid.New(), decimal.RequireFromString("1.00"))
		assert.Error(t, err)
	})
}

func TestPayoutApplyDeductions(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("batch applies all entries in one update", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "100.00", true)
		entries := []MetaEntry{
			NewMetaEntry(uuid.New(), decimal.RequireFromString("-60.00")),
			NewMetaEntry(uuid.New(), decimal.RequireFromString("-40.00")),
		}

		require.NoError(t, payout.ApplyDeductions(entries))

		assert.True(t, payout.Amount.IsZero())
		assert.Len(t, payout.Meta, 2)
	})

	t.Run("rejects a batch exceeding the available amount", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "50.00", true)
		entries := []MetaEntry{
			NewMetaEntry(uuid.New(), decimal.RequireFromString("-30.00")),
			NewMetaEntry(uuid.New(), decimal.RequireFromString("-30.00")),
		}

		err := payout.ApplyDeductions(entries)
		assert.Error(t, err)
		assert.True(t, payout.Amount.Equal(decimal.RequireFromString("50.00")))
		assert.Empty(t, payout.Meta)
	})

	t.Run("rejects positive entries", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "50.00", true)
		err := payout.ApplyDeductions([]MetaEntry{NewMetaEntry(uuid.New(), decimal.RequireFromString("10.00"))})
		assert.Error(t, err)
	})
}

func TestPayoutMarkCompleted(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("completes once the amount reaches zero", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "25.00", true)
		require.NoError(t, payout.ApplyDeduction(uuid.New(), decimal.RequireFromString("25.00")))
		payout.ClearDomainEvents()

		require.NoError(t, payout.MarkCompleted())

		assert.Equal(t, PayoutStatusCompleted, payout.Status)
		assert.Equal(t, PaymentStatusBalanced, payout.PaymentStatus)
		assert.False(t, payout.CanAllocate())
		assert.Len(t, payout.GetDomainEvents(), 1)
	})

	t.Run("rejects completion with funds still available", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "25.00", true)
		assert.Error(t, payout.MarkCompleted())
	})

	t.Run("completing twice fails", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "25.00", true)
		require.NoError(t, payout.ApplyDeduction(uuid.New(), decimal.RequireFromString("25.00")))
		require.NoError(t, payout.MarkCompleted())
		assert.Error(t, payout.MarkCompleted())
	})
}

func TestPayoutValidate(t *testing.T) {
	contractID, partnerID := newTestScope(t)

	t.Run("rejects a payout from another scope", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "10.00", true)
		assert.Error(t, payout.Validate(contractID, uuid.New()))
	})

	t.Run("rejects a negative amount", func(t *testing.T) {
		payout := newTestPayout(t, contractID, partnerID, 1, "10.00", true)
		payout.Amount = decimal.RequireFromString("-5.00")
		assert.Error(t, payout.Validate(contractID, partnerID))
	})
}
