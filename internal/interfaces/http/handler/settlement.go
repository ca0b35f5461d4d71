package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	settlementapp "github.com/rentward/backoffice/internal/application/settlement"
	"github.com/rentward/backoffice/internal/domain/shared"
	"github.com/rentward/backoffice/internal/interfaces/http/dto"
	"github.com/rentward/backoffice/internal/interfaces/http/middleware"
)

// SettlementHandler exposes reconciliation, registration and settlement
// queries over HTTP
type SettlementHandler struct {
	BaseHandler
	service      *settlementapp.SettlementService
	registration *settlementapp.RegistrationService
	query        *settlementapp.SettlementQueryService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(
	service *settlementapp.SettlementService,
	registration *settlementapp.RegistrationService,
	query *settlementapp.SettlementQueryService,
) *SettlementHandler {
	return &SettlementHandler{service: service, registration: registration, query: query}
}

// RegisterRoutes registers the settlement routes on the given group
func (h *SettlementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	scope := rg.Group("/contracts/:contract_id/partners/:partner_id")
	{
		scope.POST("/reconcile", h.Reconcile)
		scope.POST("/reconcile-last-payout", h.ReconcileLastPayout)
		scope.POST("/cancel-settlement", h.CancelSettlement)
		scope.POST("/claims", h.RegisterClaim)
		scope.POST("/payouts", h.RegisterPayout)
		scope.GET("/claims", h.ListClaims)
		scope.GET("/payouts", h.ListPayouts)
		scope.GET("/open-balance", h.OpenBalance)
		scope.GET("/statement", h.ScopeStatement)
	}
	rg.GET("/claims/:id", h.GetClaim)
	rg.GET("/payouts/:id", h.GetPayout)
	rg.DELETE("/claims/:id", h.RemoveClaim)
	rg.DELETE("/payouts/:id", h.RemovePayout)
}

// RegisterClaim records a landlord invoice as a final-settlement claim
func (h *SettlementHandler) RegisterClaim(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	var req dto.RegisterClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	invoiceTotal, err := decimal.NewFromString(req.InvoiceTotal)
	if err != nil {
		h.BadRequest(c, "Invalid invoice total: "+req.InvoiceTotal)
		return
	}
	totalPaid := decimal.Zero
	if req.TotalPaid != "" {
		if totalPaid, err = decimal.NewFromString(req.TotalPaid); err != nil {
			h.BadRequest(c, "Invalid total paid: "+req.TotalPaid)
			return
		}
	}

	claim, err := h.registration.RegisterClaim(c.Request.Context(), contractID, partnerID, req.ClaimNumber, invoiceTotal, totalPaid)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToClaimResponse(claim))
}

// RegisterPayout records a scheduled landlord payment as an estimated payout
func (h *SettlementHandler) RegisterPayout(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	var req dto.RegisterPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount: "+req.Amount)
		return
	}

	payout, err := h.registration.RegisterPayout(c.Request.Context(), contractID, partnerID, req.PayoutNumber, amount, req.IsFinalSettlement)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToPayoutResponse(payout))
}

// RemoveClaim deletes a claim that has never been allocated against
func (h *SettlementHandler) RemoveClaim(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.registration.RemoveClaim(c.Request.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Claim not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"deleted": id})
}

// RemovePayout deletes an estimated payout that has never contributed
func (h *SettlementHandler) RemovePayout(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.registration.RemovePayout(c.Request.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Payout not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"deleted": id})
}

// ScopeStatement returns the scope's full claim ledger with summed totals
func (h *SettlementHandler) ScopeStatement(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	statement, err := h.query.GetScopeStatement(c.Request.Context(), contractID, partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ScopeStatementResponse{
		ContractID:     statement.ContractID,
		PartnerID:      statement.PartnerID,
		Claims:         ToClaimResponses(statement.Claims),
		InvoiceTotal:   statement.InvoiceTotal,
		TotalBalanced:  statement.TotalBalanced,
		RemainingTotal: statement.RemainingTotal,
	})
}

// Reconcile runs a full reconciliation pass over the scope
func (h *SettlementHandler) Reconcile(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	result, err := h.service.ReconcileClaimsAgainstPayouts(c.Request.Context(), contractID, partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReconcileLastPayout deducts the scope's claims from its newest estimated payout
func (h *SettlementHandler) ReconcileLastPayout(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	result, err := h.service.ReconcileClaimsAgainstLastPayout(c.Request.Context(), contractID, partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CancelSettlement cancels the scope's final settlement
func (h *SettlementHandler) CancelSettlement(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	var req dto.CancelSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.CancelFinalSettlement(c.Request.Context(), contractID, partnerID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListClaims returns a page of the scope's claims
func (h *SettlementHandler) ListClaims(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	filter, ok := bindListFilter(c)
	if !ok {
		return
	}

	page, err := h.query.ListClaims(c.Request.Context(), contractID, partnerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, ToClaimResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// ListPayouts returns a page of the scope's payouts
func (h *SettlementHandler) ListPayouts(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	filter, ok := bindListFilter(c)
	if !ok {
		return
	}

	page, err := h.query.ListPayouts(c.Request.Context(), contractID, partnerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, ToPayoutResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// OpenBalance returns what the scope still owes its settlement claims
func (h *SettlementHandler) OpenBalance(c *gin.Context) {
	contractID, partnerID, ok := bindScope(c)
	if !ok {
		return
	}

	balance, err := h.query.GetOpenBalance(c.Request.Context(), contractID, partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// GetClaim returns a single claim by ID
func (h *SettlementHandler) GetClaim(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	claim, err := h.query.GetClaim(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Claim not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToClaimResponse(claim))
}

// GetPayout returns a single payout by ID
func (h *SettlementHandler) GetPayout(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	payout, err := h.query.GetPayout(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Payout not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToPayoutResponse(payout))
}

// bindID parses and validates the ID path parameter
func bindID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// bindListFilter parses pagination query parameters into a domain filter
func bindListFilter(c *gin.Context) (shared.Filter, bool) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return shared.Filter{}, false
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search
	return filter, true
}
