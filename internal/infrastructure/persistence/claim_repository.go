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

// GormClaimRepository implements settlement.ClaimRepository using GORM
type GormClaimRepository struct {
	db *gorm.DB
}

// NewGormClaimRepository creates a new GormClaimRepository
func NewGormClaimRepository(db *gorm.DB) *GormClaimRepository {
	return &GormClaimRepository{db: db}
}

// FindByID finds a claim by its ID
func (r *GormClaimRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Claim, error) {
	var model models.ClaimModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByClaimNumber finds a claim by its human-readable number
func (r *GormClaimRepository) FindByClaimNumber(ctx context.Context, claimNumber string) (*settlement.Claim, error) {
	var model models.ClaimModel
	if err := r.db.WithContext(ctx).
		Where("claim_number = ?", claimNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnbalanced returns the scope's payable final-settlement claims that
// still carry a remaining balance, in serial order
func (r *GormClaimRepository) FindUnbalanced(ctx context.Context, contractID, partnerID uuid.UUID) ([]*settlement.Claim, error) {
	var claimModels []models.ClaimModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND partner_id = ? AND is_payable = ? AND is_final_settlement = ? AND remaining_balance <> 0",
			contractID, partnerID, true, true).
		Order("serial_id ASC").
		Find(&claimModels).Error; err != nil {
		return nil, err
	}
	return toDomainClaims(claimModels), nil
}

// FindAllForScope returns every claim in the scope, in serial order
func (r *GormClaimRepository) FindAllForScope(ctx context.Context, contractID, partnerID uuid.UUID) ([]*settlement.Claim, error) {
	var claimModels []models.ClaimModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND partner_id = ?", contractID, partnerID).
		Order("serial_id ASC").
		Find(&claimModels).Error; err != nil {
		return nil, err
	}
	return toDomainClaims(claimModels), nil
}

// FindFinalSettlementClaims returns the scope's final-settlement claims, in serial order
func (r *GormClaimRepository) FindFinalSettlementClaims(ctx context.Context, contractID, partnerID uuid.UUID) ([]*settlement.Claim, error) {
	var claimModels []models.ClaimModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND partner_id = ? AND is_final_settlement = ?", contractID, partnerID, true).
		Order("serial_id ASC").
		Find(&claimModels).Error; err != nil {
		return nil, err
	}
	return toDomainClaims(claimModels), nil
}

// List returns a filtered page of claims
func (r *GormClaimRepository) List(ctx context.Context, contractID, partnerID uuid.UUID, filter shared.Filter) (*shared.Paginated[*settlement.Claim], error) {
	var claimModels []models.ClaimModel
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ClaimModel{}).
		Where("contract_id = ? AND partner_id = ?", contractID, partnerID)
	if filter.Search != "" {
		query = query.Where("claim_number LIKE ?", "%"+filter.Search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	// Sort fields are allow-listed to keep user input out of the ORDER BY clause
	orderBy := validateClaimSortField(filter.OrderBy)
	orderDir := validateSortOrder(filter.OrderDir)
	if err := query.
		Order(orderBy + " " + orderDir).
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&claimModels).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(toDomainClaims(claimModels), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Save creates or updates a claim
func (r *GormClaimRepository) Save(ctx context.Context, claim *settlement.Claim) error {
	model := models.ClaimModelFromDomain(claim)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. The domain increments the
// version before save; the update only lands if the stored row still carries
// the previous version.
func (r *GormClaimRepository) SaveWithLock(ctx context.Context, claim *settlement.Claim) error {
	model := models.ClaimModelFromDomain(claim)
	// Select("*") forces zero-valued columns through; a balanced claim must
	// persist remaining_balance = 0.
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", claim.ID, claim.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete removes a claim
func (r *GormClaimRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ClaimModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDomainClaims(claimModels []models.ClaimModel) []*settlement.Claim {
	claims := make([]*settlement.Claim, len(claimModels))
	for i := range claimModels {
		claims[i] = claimModels[i].ToDomain()
	}
	return claims
}
