package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPayoutRepository implements settlement.PayoutRepository using GORM
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewGormPayoutRepository creates a new GormPayoutRepository
func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// FindByID finds a payout by its ID
func (r *GormPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Payout, error) {
	var model models.PayoutModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindEstimatedOrderedBySerial returns the scope's estimated payouts with a
// positive amount, in serial order
func (r *GormPayoutRepository) FindEstimatedOrderedBySerial(ctx context.Context, contractID, partnerID uuid.UUID) ([]*settlement.Payout, error) {
	var payoutModels []models.PayoutModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND partner_id = ? AND status = ? AND amount > 0",
			contractID, partnerID, settlement.PayoutStatusEstimated).
		Order("serial_id ASC").
		Find(&payoutModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayouts(payoutModels), nil
}

// FindLastEstimated returns the scope's most recent estimated payout, or nil
// when the scope has none
func (r *GormPayoutRepository) FindLastEstimated(ctx context.Context, contractID, partnerID uuid.UUID) (*settlement.Payout, error) {
	var model models.PayoutModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND partner_id = ? AND status = ?",
			contractID, partnerID, settlement.PayoutStatusEstimated).
		Order("serial_id DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a filtered page of payouts
func (r *GormPayoutRepository) List(ctx context.Context, contractID, partnerID uuid.UUID, filter shared.Filter) (*shared.Paginated[*settlement.Payout], error) {
	var payoutModels []models.PayoutModel
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PayoutModel{}).
		Where("contract_id = ? AND partner_id = ?", contractID, partnerID)
	if filter.Search != "" {
		query = query.Where("payout_number LIKE ?", "%"+filter.Search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	// Sort fields are allow-listed to keep user input out of the ORDER BY clause
	orderBy := validatePayoutSortField(filter.OrderBy)
	orderDir := validateSortOrder(filter.OrderDir)
	if err := query.
		Order(orderBy + " " + orderDir).
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&payoutModels).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(toDomainPayouts(payoutModels), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Save creates or updates a payout
func (r *GormPayoutRepository) Save(ctx context.Context, payout *settlement.Payout) error {
	model := models.PayoutModelFromDomain(payout)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormPayoutRepository) SaveWithLock(ctx context.Context, payout *settlement.Payout) error {
	model := models.PayoutModelFromDomain(payout)
	// Select("*") forces zero-valued columns through; a fully drained payout
	// must persist amount = 0.
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", payout.ID, payout.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete removes a payout
func (r *GormPayoutRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PayoutModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDomainPayouts(payoutModels []models.PayoutModel) []*settlement.Payout {
	payouts := make([]*settlement.Payout, len(payoutModels))
	for i := range payoutModels {
		payouts[i] = payoutModels[i].ToDomain()
	}
	return payouts
}
