package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentward/backoffice/internal/domain/shared"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns asc", "", "asc"},
		{"asc lowercase returns asc", "asc", "asc"},
		{"ASC uppercase returns asc", "ASC", "asc"},
		{"desc lowercase returns desc", "desc", "desc"},
		{"DESC uppercase returns desc", "DESC", "desc"},
		{"invalid value returns asc", "INVALID", "asc"},
		{"sql injection attempt returns asc", "asc; DROP TABLE claims;--", "asc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validateSortOrder(tt.input))
		})
	}
}

func TestValidateClaimSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns serial_id", "", "serial_id"},
		{"allowed field returns field", "claim_number", "claim_number"},
		{"allowed field remaining_balance", "remaining_balance", "remaining_balance"},
		{"unknown field returns serial_id", "partner_id", "serial_id"},
		{"sql injection attempt returns serial_id", "id; DROP TABLE claims;--", "serial_id"},
		{"subquery injection returns serial_id", "(SELECT COUNT(*) FROM payouts)", "serial_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validateClaimSortField(tt.input))
		})
	}
}

func TestValidatePayoutSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns serial_id", "", "serial_id"},
		{"allowed field returns field", "amount", "amount"},
		{"unknown field returns serial_id", "contract_id", "serial_id"},
		{"sql injection attempt returns serial_id", "amount'--", "serial_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validatePayoutSortField(tt.input))
		})
	}
}

func TestListRejectsHostileOrderBy(t *testing.T) {
	db := setupSettlementTestDB(t)
	ctx := context.Background()
	contractID := uuid.New()
	partnerID := uuid.New()

	t.Run("claim list falls back to serial order", func(t *testing.T) {
		repo := NewGormClaimRepository(db)
		persistedClaim(t, repo, contractID, partnerID, "CLM-002", 2, "20.00")
		persistedClaim(t, repo, contractID, partnerID, "CLM-001", 1, "10.00")

		filter := shared.DefaultFilter()
		filter.OrderBy = "(SELECT CASE WHEN (SELECT COUNT(*) FROM payouts) >= 0 THEN serial_id ELSE invoice_total END)"
		filter.OrderDir = "asc; DROP TABLE claims;--"

		page, err := repo.List(ctx, contractID, partnerID, filter)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "CLM-001", page.Items[0].ClaimNumber)
		assert.Equal(t, "CLM-002", page.Items[1].ClaimNumber)

		// The claims table must have survived the attempted drop
		var count int64
		require.NoError(t, db.Table("claims").Count(&count).Error)
		assert.EqualValues(t, 2, count)
	})

	t.Run("payout list falls back to serial order", func(t *testing.T) {
		repo := NewGormPayoutRepository(db)
		persistedPayout(t, repo, contractID, partnerID, "PAY-002", 2, "50.00")
		persistedPayout(t, repo, contractID, partnerID, "PAY-001", 1, "30.00")

		filter := shared.DefaultFilter()
		filter.OrderBy = "payout_number'--"

		page, err := repo.List(ctx, contractID, partnerID, filter)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "PAY-001", page.Items[0].PayoutNumber)
		assert.Equal(t, "PAY-002", page.Items[1].PayoutNumber)
	})
}
