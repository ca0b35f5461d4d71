package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	settlementapp "github.com/rentward/backoffice/internal/application/settlement"
	"github.com/rentward/backoffice/internal/domain/settlement"
	"github.com/rentward/backoffice/internal/domain/shared/valueobject"
	"github.com/rentward/backoffice/internal/infrastructure/persistence"
	"github.com/rentward/backoffice/internal/infrastructure/persistence/models"
	"github.com/rentward/backoffice/internal/interfaces/http/dto"
	"github.com/rentward/backoffice/internal/interfaces/http/middleware"
)

type handlerFixture struct {
	engine     *gin.Engine
	claimRepo  settlement.ClaimRepository
	payoutRepo settlement.PayoutRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ClaimModel{},
		&models.PayoutModel{},
		&models.SerialSequenceModel{},
	))

	claimRepo := persistence.NewGormClaimRepository(db)
	payoutRepo := persistence.NewGormPayoutRepository(db)
	service := settlementapp.NewSettlementService(
		claimRepo,
		payoutRepo,
		settlement.NewReconciler(),
		persistence.NewSettlementUnitOfWork(db),
		nil,
	)
	registration := settlementapp.NewRegistrationService(
		claimRepo,
		payoutRepo,
		persistence.NewSettlementUnitOfWork(db),
		nil,
	)
	query := settlementapp.NewSettlementQueryService(claimRepo, payoutRepo)

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1")
	NewSettlementHandler(service, registration, query).RegisterRoutes(api)

	return &handlerFixture{engine: engine, claimRepo: claimRepo, payoutRepo: payoutRepo}
}

func (f *handlerFixture) seedClaim(t *testing.T, contractID, partnerID uuid.UUID, number string, serial int64, total string) *settlement.Claim {
	t.Helper()
	claim, err := settlement.NewClaim(
		contractID, partnerID, number, serial,
		valueobject.NewMoneyNOK(decimal.RequireFromString(total)),
		valueobject.ZeroNOK(),
	)
	require.NoError(t, err)
	require.NoError(t, f.claimRepo.Save(context.Background(), claim))
	return claim
}

func (f *handlerFixture) seedPayout(t *testing.T, contractID, partnerID uuid.UUID, number string, serial int64, amount string) *settlement.Payout {
	t.Helper()
	payout, err := settlement.NewPayout(
		contractID, partnerID, number, serial,
		valueobject.NewMoneyNOK(decimal.RequireFromString(amount)),
		true,
	)
	require.NoError(t, err)
	require.NoError(t, f.payoutRepo.Save(context.Background(), payout))
	return payout
}

func (f *handlerFixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func scopePath(contractID, partnerID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/api/v1/contracts/%s/partners/%s/%s", contractID, partnerID, suffix)
}

func TestSettlementHandler_Reconcile(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	f.seedClaim(t, contractID, partnerID, "CLM-001", 1, "100.00")
	f.seedPayout(t, contractID, partnerID, "PAY-001", 1, "100.00")

	rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "reconcile"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "100", data["total_moved"])
	assert.Len(t, data["allocations"], 1)
}

func TestSettlementHandler_Reconcile_InvalidScope(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/contracts/not-a-uuid/partners/"+uuid.NewString()+"/reconcile", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestSettlementHandler_CancelSettlement(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	f.seedClaim(t, contractID, partnerID, "CLM-001", 1, "80.00")

	rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "cancel-settlement"),
		`{"reason":"tenant disputed the invoice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Len(t, data["claim_ids"], 1)
}

func TestSettlementHandler_ListClaims(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	f.seedClaim(t, contractID, partnerID, "CLM-001", 1, "10.00")
	f.seedClaim(t, contractID, partnerID, "CLM-002", 2, "20.00")

	rec := f.do(t, http.MethodGet, scopePath(contractID, partnerID, "claims?page=1&page_size=1"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	assert.Len(t, resp.Data, 1)
}

func TestSettlementHandler_GetClaim(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	claim := f.seedClaim(t, contractID, partnerID, "CLM-001", 1, "10.00")

	rec := f.do(t, http.MethodGet, "/api/v1/claims/"+claim.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "CLM-001", data["claim_number"])
}

func TestSettlementHandler_GetClaim_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/claims/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestSettlementHandler_RegisterClaim(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()

	rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "claims"),
		`{"claim_number":"CLM-001","invoice_total":"150.00","total_paid":"50.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "CLM-001", data["claim_number"])
	assert.Equal(t, float64(1), data["serial_id"])
	assert.Equal(t, "100", data["remaining_balance"])
}

func TestSettlementHandler_RegisterClaim_Duplicate(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	body := `{"claim_number":"CLM-001","invoice_total":"10.00"}`

	rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "claims"), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, scopePath(contractID, partnerID, "claims"), body)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeConflict, resp.Error.Code)
}

func TestSettlementHandler_RegisterClaim_BadAmount(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()

	rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "claims"),
		`{"claim_number":"CLM-001","invoice_total":"ten kroner"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
}

func TestSettlementHandler_RegisterPayout(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()

	rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "payouts"),
		`{"payout_number":"PAY-001","amount":"200.00","is_final_settlement":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "PAY-001", data["payout_number"])
	assert.Equal(t, float64(1), data["serial_id"])
	assert.Equal(t, "ESTIMATED", data["status"])
}

func TestSettlementHandler_RemoveClaim(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()

	t.Run("unallocated claim is removed", func(t *testing.T) {
		claim := f.seedClaim(t, contractID, partnerID, "CLM-100", 10, "10.00")

		rec := f.do(t, http.MethodDelete, "/api/v1/claims/"+claim.ID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/v1/claims/"+claim.ID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("allocated claim is refused", func(t *testing.T) {
		claim := f.seedClaim(t, contractID, partnerID, "CLM-200", 20, "50.00")
		f.seedPayout(t, contractID, partnerID, "PAY-200", 21, "50.00")
		rec := f.do(t, http.MethodPost, scopePath(contractID, partnerID, "reconcile"), "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodDelete, "/api/v1/claims/"+claim.ID.String(), "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})
}

func TestSettlementHandler_RemovePayout(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	payout := f.seedPayout(t, contractID, partnerID, "PAY-001", 1, "30.00")

	rec := f.do(t, http.MethodDelete, "/api/v1/payouts/"+payout.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/payouts/"+payout.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettlementHandler_ScopeStatement(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	f.seedClaim(t, contractID, partnerID, "CLM-001", 1, "100.00")
	f.seedClaim(t, contractID, partnerID, "CLM-002", 2, "50.00")

	rec := f.do(t, http.MethodGet, scopePath(contractID, partnerID, "statement"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Len(t, data["claims"], 2)
	assert.Equal(t, "150", data["invoice_total"])
	assert.Equal(t, "150", data["remaining_total"])
	assert.Equal(t, "0", data["total_balanced"])
}

func TestSettlementHandler_OpenBalance(t *testing.T) {
	f := newHandlerFixture(t)
	contractID, partnerID := uuid.New(), uuid.New()
	f.seedClaim(t, contractID, partnerID, "CLM-001", 1, "40.00")
	f.seedClaim(t, contractID, partnerID, "CLM-002", 2, "60.00")

	rec := f.do(t, http.MethodGet, scopePath(contractID, partnerID, "open-balance"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["claim_count"])
	assert.Equal(t, "100", data["remaining_total"])
}
