package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentward/backoffice/internal/domain/settlement"
)

// ClaimModel is the persistence model for the Claim aggregate root.
type ClaimModel struct {
	ScopedAggregateModel
	ClaimNumber       string                         `gorm:"type:varchar(50);not null;uniqueIndex"`
	SerialID          int64                          `gorm:"not null;index"`
	InvoiceTotal      decimal.Decimal                `gorm:"type:decimal(18,2);not null"`
	TotalPaid         decimal.Decimal                `gorm:"type:decimal(18,2);not null"`
	TotalBalanced     decimal.Decimal                `gorm:"type:decimal(18,2);not null"`
	RemainingBalance  decimal.Decimal                `gorm:"type:decimal(18,2);not null;index"`
	IsPayable         bool                           `gorm:"not null;default:true"`
	IsFinalSettlement bool                           `gorm:"not null;default:true;index"`
	Status            settlement.ClaimStatus         `gorm:"type:varchar(30);not null;default:'PENDING';index"`
	Contributions     settlement.PayoutContributions `gorm:"type:jsonb;default:'[]'"`
	PayoutIDs         settlement.UUIDList            `gorm:"type:jsonb;default:'[]'"`
	CancelledAt       *time.Time
	CancelReason      string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ClaimModel) TableName() string {
	return "claims"
}

// ToDomain converts the persistence model to a domain Claim entity.
func (m *ClaimModel) ToDomain() *settlement.Claim {
	return &settlement.Claim{
		ScopedAggregateRoot: m.ToDomainScopedAggregateRoot(),
		ClaimNumber:         m.ClaimNumber,
		SerialID:            m.SerialID,
		InvoiceTotal:        m.InvoiceTotal,
		TotalPaid:           m.TotalPaid,
		TotalBalanced:       m.TotalBalanced,
		RemainingBalance:    m.RemainingBalance,
		IsPayable:           m.IsPayable,
		IsFinalSettlement:   m.IsFinalSettlement,
		Status:              m.Status,
		Contributions:       m.Contributions,
		PayoutIDs:           m.PayoutIDs,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Claim entity.
func (m *ClaimModel) FromDomain(c *settlement.Claim) {
	m.FromDomainScopedAggregateRoot(c.ScopedAggregateRoot)
	m.ClaimNumber = c.ClaimNumber
	m.SerialID = c.SerialID
	m.InvoiceTotal = c.InvoiceTotal
	m.TotalPaid = c.TotalPaid
	m.TotalBalanced = c.TotalBalanced
	m.RemainingBalance = c.RemainingBalance
	m.IsPayable = c.IsPayable
	m.IsFinalSettlement = c.IsFinalSettlement
	m.Status = c.Status
	m.Contributions = c.Contributions
	m.PayoutIDs = c.PayoutIDs
	m.CancelledAt = c.CancelledAt
	m.CancelReason = c.CancelReason
}

// ClaimModelFromDomain creates a new persistence model from a domain Claim.
func ClaimModelFromDomain(c *settlement.Claim) *ClaimModel {
	m := &ClaimModel{}
	m.FromDomain(c)
	return m
}

// PayoutModel is the persistence model for the Payout aggregate root.
type PayoutModel struct {
	ScopedAggregateModel
	PayoutNumber      string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	SerialID          int64                    `gorm:"not null;index"`
	Amount            decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	IsFinalSettlement bool                     `gorm:"not null;default:false;index"`
	Status            settlement.PayoutStatus  `gorm:"type:varchar(20);not null;default:'ESTIMATED';index"`
	PaymentStatus     settlement.PaymentStatus `gorm:"type:varchar(20);not null;default:'UNBALANCED'"`
	Meta              settlement.MetaEntries   `gorm:"type:jsonb;default:'[]'"`
	CompletedAt       *time.Time
}

// TableName returns the table name for GORM
func (PayoutModel) TableName() string {
	return "payouts"
}

// ToDomain converts the persistence model to a domain Payout entity.
func (m *PayoutModel) ToDomain() *settlement.Payout {
	return &settlement.Payout{
		ScopedAggregateRoot: m.ToDomainScopedAggregateRoot(),
		PayoutNumber:        m.PayoutNumber,
		SerialID:            m.SerialID,
		Amount:              m.Amount,
		IsFinalSettlement:   m.IsFinalSettlement,
		Status:              m.Status,
		PaymentStatus:       m.PaymentStatus,
		Meta:                m.Meta,
		CompletedAt:         m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain Payout entity.
func (m *PayoutModel) FromDomain(p *settlement.Payout) {
	m.FromDomainScopedAggregateRoot(p.ScopedAggregateRoot)
	m.PayoutNumber = p.PayoutNumber
	m.SerialID = p.SerialID
	m.Amount = p.Amount
	m.IsFinalSettlement = p.IsFinalSettlement
	m.Status = p.Status
	m.PaymentStatus = p.PaymentStatus
	m.Meta = p.Meta
	m.CompletedAt = p.CompletedAt
}

// PayoutModelFromDomain creates a new persistence model from a domain Payout.
func PayoutModelFromDomain(p *settlement.Payout) *PayoutModel {
	m := &PayoutModel{}
	m.FromDomain(p)
	return m
}

// SerialSequenceModel backs the per-scope monotonic serial counter.
type SerialSequenceModel struct {
	ContractID uuid.UUID `gorm:"type:uuid;primaryKey"`
	PartnerID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	NextValue  int64     `gorm:"not null;default:1"`
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM
func (SerialSequenceModel) TableName() string {
	return "serial_sequences"
}
