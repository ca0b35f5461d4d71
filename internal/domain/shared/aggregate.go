package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// ScopedAggregateRoot extends BaseAggregateRoot with the (contract, partner)
// scope every settlement aggregate lives in. All queries and mutations are
// keyed by this pair.
type ScopedAggregateRoot struct {
	BaseAggregateRoot
	ContractID uuid.UUID `gorm:"type:uuid;not null;index"`
	PartnerID  uuid.UUID `gorm:"type:uuid;not null;index"`
}

// NewScopedAggregateRoot creates a new scope-bound aggregate root
func NewScopedAggregateRoot(contractID, partnerID uuid.UUID) ScopedAggregateRoot {
	return ScopedAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		ContractID:        contractID,
		PartnerID:         partnerID,
	}
}

// SameScope reports whether the aggregate belongs to the given scope.
func (s *ScopedAggregateRoot) SameScope(contractID, partnerID uuid.UUID) bool {
	return s.ContractID == contractID && s.PartnerID == partnerID
}
