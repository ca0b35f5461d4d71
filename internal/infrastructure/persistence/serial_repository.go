package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSerialSequenceRepository implements settlement.SerialSequenceRepository
// using a per-scope counter row. The row is locked for the duration of the
// increment so concurrent callers never observe the same serial.
type GormSerialSequenceRepository struct {
	db *gorm.DB
}

// NewGormSerialSequenceRepository creates a new GormSerialSequenceRepository
func NewGormSerialSequenceRepository(db *gorm.DB) *GormSerialSequenceRepository {
	return &GormSerialSequenceRepository{db: db}
}

// Next returns the next serial ID for the scope, creating the counter row on
// first use
func (r *GormSerialSequenceRepository) Next(ctx context.Context, contractID, partnerID uuid.UUID) (int64, error) {
	var serial int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq models.SerialSequenceModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("contract_id = ? AND partner_id = ?", contractID, partnerID).
			First(&seq).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			seq = models.SerialSequenceModel{
				ContractID: contractID,
				PartnerID:  partnerID,
				NextValue:  1,
			}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
		}

		serial = seq.NextValue
		return tx.Model(&models.SerialSequenceModel{}).
			Where("contract_id = ? AND partner_id = ?", contractID, partnerID).
			Update("next_value", seq.NextValue+1).Error
	})
	if err != nil {
		return 0, err
	}
	return serial, nil
}
