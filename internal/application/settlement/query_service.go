package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/rentward/backoffice/internal/domain/shared"
)

// OpenBalance summarizes what a scope still owes its settlement claims
type OpenBalance struct {
	ContractID     uuid.UUID       `json:"contract_id"`
	PartnerID      uuid.UUID       `json:"partner_id"`
	ClaimCount     int             `json:"claim_count"`
	RemainingTotal decimal.Decimal `json:"remaining_total"`
}

// SettlementQueryService serves read-only views of claims and payouts
type SettlementQueryService struct {
	claimRepo  settlement.ClaimRepository
	payoutRepo settlement.PayoutRepository
}

// NewSettlementQueryService creates a new SettlementQueryService
func NewSettlementQueryService(claimRepo settlement.ClaimRepository, payoutRepo settlement.PayoutRepository) *SettlementQueryService {
	return &SettlementQueryService{
		claimRepo:  claimRepo,
		payoutRepo: payoutRepo,
	}
}

// GetClaim returns a single claim by ID
func (s *SettlementQueryService) GetClaim(ctx context.Context, id uuid.UUID) (*settlement.Claim, error) {
	return s.claimRepo.FindByID(ctx, id)
}

// GetPayout returns a single payout by ID
func (s *SettlementQueryService) GetPayout(ctx context.Context, id uuid.UUID) (*settlement.Payout, error) {
	return s.payoutRepo.FindByID(ctx, id)
}

// ListClaims returns a page of claims for the scope
func (s *SettlementQueryService) ListClaims(ctx context.Context, contractID, partnerID uuid.UUID, filter shared.Filter) (*shared.Paginated[*settlement.Claim], error) {
	page, err := s.claimRepo.List(ctx, contractID, partnerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	return page, nil
}

// ListPayouts returns a page of payouts for the scope
func (s *SettlementQueryService) ListPayouts(ctx context.Context, contractID, partnerID uuid.UUID, filter shared.Filter) (*shared.Paginated[*settlement.Payout], error) {
	page, err := s.payoutRepo.List(ctx, contractID, partnerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return page, nil
}

// ScopeStatement is the full claim ledger of a scope: every claim in serial
// order with the aggregate totals a back-office review needs.
type ScopeStatement struct {
	ContractID     uuid.UUID           `json:"contract_id"`
	PartnerID      uuid.UUID           `json:"partner_id"`
	Claims         []*settlement.Claim `json:"claims"`
	InvoiceTotal   decimal.Decimal     `json:"invoice_total"`
	TotalBalanced  decimal.Decimal     `json:"total_balanced"`
	RemainingTotal decimal.Decimal     `json:"remaining_total"`
}

// GetScopeStatement returns every claim of the scope with summed totals
func (s *SettlementQueryService) GetScopeStatement(ctx context.Context, contractID, partnerID uuid.UUID) (*ScopeStatement, error) {
	claims, err := s.claimRepo.FindAllForScope(ctx, contractID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope claims: %w", err)
	}

	statement := &ScopeStatement{
		ContractID: contractID,
		PartnerID:  partnerID,
		Claims:     claims,
	}
	for _, claim := range claims {
		statement.InvoiceTotal = statement.InvoiceTotal.Add(claim.InvoiceTotal)
		statement.TotalBalanced = statement.TotalBalanced.Add(claim.TotalBalanced)
		statement.RemainingTotal = statement.RemainingTotal.Add(claim.RemainingBalance)
	}
	return statement, nil
}

// GetOpenBalance sums the remaining balances of the scope's unbalanced claims
func (s *SettlementQueryService) GetOpenBalance(ctx context.Context, contractID, partnerID uuid.UUID) (*OpenBalance, error) {
	claims, err := s.claimRepo.FindUnbalanced(ctx, contractID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unbalanced claims: %w", err)
	}

	balance := &OpenBalance{
		ContractID: contractID,
		PartnerID:  partnerID,
		ClaimCount: len(claims),
	}
	for _, claim := range claims {
		balance.RemainingTotal = balance.RemainingTotal.Add(claim.RemainingBalance)
	}
	return balance, nil
}
