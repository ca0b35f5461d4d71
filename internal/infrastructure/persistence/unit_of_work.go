package persistence

import (
	"context"

	"github.com/rentward/backoffice/internal/domain/settlement"
	"gorm.io/gorm"
)

// SettlementUnitOfWork runs settlement repository operations inside a single
// database transaction so a reconciliation pass persists all or nothing.
type SettlementUnitOfWork struct {
	db *gorm.DB
}

// NewSettlementUnitOfWork creates a unit of work over the given connection
func NewSettlementUnitOfWork(db *gorm.DB) *SettlementUnitOfWork {
	return &SettlementUnitOfWork{db: db}
}

// Execute runs fn with transaction-bound repositories. Any error rolls the
// whole transaction back, including optimistic lock conflicts.
func (u *SettlementUnitOfWork) Execute(
	ctx context.Context,
	fn func(claims settlement.ClaimRepository, payouts settlement.PayoutRepository, serials settlement.SerialSequenceRepository) error,
) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(
			NewGormClaimRepository(tx),
			NewGormPayoutRepository(tx),
			NewGormSerialSequenceRepository(tx),
		)
	})
}
