package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/shopspring/decimal"
)

// ClaimResponse is the API view of a settlement claim
type ClaimResponse struct {
	ID                uuid.UUID                      `json:"id"`
	ContractID        uuid.UUID                      `json:"contract_id"`
	PartnerID         uuid.UUID                      `json:"partner_id"`
	ClaimNumber       string                         `json:"claim_number"`
	SerialID          int64                          `json:"serial_id"`
	InvoiceTotal      decimal.Decimal                `json:"invoice_total"`
	TotalPaid         decimal.Decimal                `json:"total_paid"`
	TotalBalanced     decimal.Decimal                `json:"total_balanced"`
	RemainingBalance  decimal.Decimal                `json:"remaining_balance"`
	IsPayable         bool                           `json:"is_payable"`
	IsFinalSettlement bool                           `json:"is_final_settlement"`
	Status            settlement.ClaimStatus         `json:"status"`
	Contributions     settlement.PayoutContributions `json:"contributions"`
	PayoutIDs         settlement.UUIDList            `json:"payout_ids"`
	CancelledAt       *time.Time                     `json:"cancelled_at,omitempty"`
	CancelReason      string                         `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`
}

// ToClaimResponse converts a domain claim to its API view
func ToClaimResponse(c *settlement.Claim) ClaimResponse {
	return ClaimResponse{
		ID:                c.ID,
		ContractID:        c.ContractID,
		PartnerID:         c.PartnerID,
		ClaimNumber:       c.ClaimNumber,
		SerialID:          c.SerialID,
		InvoiceTotal:      c.InvoiceTotal,
		TotalPaid:         c.TotalPaid,
		TotalBalanced:     c.TotalBalanced,
		RemainingBalance:  c.RemainingBalance,
		IsPayable:         c.IsPayable,
		IsFinalSettlement: c.IsFinalSettlement,
		Status:            c.Status,
		Contributions:     c.Contributions,
		PayoutIDs:         c.PayoutIDs,
		CancelledAt:       c.CancelledAt,
		CancelReason:      c.CancelReason,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ToClaimResponses converts a slice of domain claims
func ToClaimResponses(claims []*settlement.Claim) []ClaimResponse {
	responses := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		responses = append(responses, ToClaimResponse(c))
	}
	return responses
}

// PayoutResponse is the API view of a payout
type PayoutResponse struct {
	ID                uuid.UUID                `json:"id"`
	ContractID        uuid.UUID                `json:"contract_id"`
	PartnerID         uuid.UUID                `json:"partner_id"`
	PayoutNumber      string                   `json:"payout_number"`
	SerialID          int64                    `json:"serial_id"`
	Amount            decimal.Decimal          `json:"amount"`
	IsFinalSettlement bool                     `json:"is_final_settlement"`
	Status            settlement.PayoutStatus  `json:"status"`
	PaymentStatus     settlement.PaymentStatus `json:"payment_status"`
	Meta              settlement.MetaEntries   `json:"meta"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// ToPayoutResponse converts a domain payout to its API view
func ToPayoutResponse(p *settlement.Payout) PayoutResponse {
	return PayoutResponse{
		ID:                p.ID,
		ContractID:        p.ContractID,
		PartnerID:         p.PartnerID,
		PayoutNumber:      p.PayoutNumber,
		SerialID:          p.SerialID,
		Amount:            p.Amount,
		IsFinalSettlement: p.IsFinalSettlement,
		Status:            p.Status,
		PaymentStatus:     p.PaymentStatus,
		Meta:              p.Meta,
		CompletedAt:       p.CompletedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// ToPayoutResponses converts a slice of domain payouts
func ToPayoutResponses(payouts []*settlement.Payout) []PayoutResponse {
	responses := make([]PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		responses = append(responses, ToPayoutResponse(p))
	}
	return responses
}

// ScopeStatementResponse is the API view of a scope's full claim ledger
type ScopeStatementResponse struct {
	ContractID     uuid.UUID       `json:"contract_id"`
	PartnerID      uuid.UUID       `json:"partner_id"`
	Claims         []ClaimResponse `json:"claims"`
	InvoiceTotal   decimal.Decimal `json:"invoice_total"`
	TotalBalanced  decimal.Decimal `json:"total_balanced"`
	RemainingTotal decimal.Decimal `json:"remaining_total"`
}
