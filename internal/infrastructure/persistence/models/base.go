package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ScopedAggregateModel provides common persistence fields for aggregates that
// belong to a (contract, partner) reconciliation scope.
type ScopedAggregateModel struct {
	AggregateModel
	ContractID uuid.UUID `gorm:"type:uuid;not null;index"`
	PartnerID  uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainScopedAggregateRoot populates ScopedAggregateModel from domain ScopedAggregateRoot
func (m *ScopedAggregateModel) FromDomainScopedAggregateRoot(s shared.ScopedAggregateRoot) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.ContractID = s.ContractID
	m.PartnerID = s.PartnerID
}

// ToDomainScopedAggregateRoot rebuilds a domain ScopedAggregateRoot from the model
func (m *ScopedAggregateModel) ToDomainScopedAggregateRoot() shared.ScopedAggregateRoot {
	return shared.ScopedAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		ContractID: m.ContractID,
		PartnerID:  m.PartnerID,
	}
}
