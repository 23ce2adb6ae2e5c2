package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cachemem "github.com/smartcycle/discounts/internal/cache/memory"
	"github.com/smartcycle/discounts/internal/catalog"
	catalogmem "github.com/smartcycle/discounts/internal/catalog/memory"
	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/engine/compiler"
	"github.com/smartcycle/discounts/internal/engine/resolver"
	"github.com/smartcycle/discounts/internal/event"
	"github.com/smartcycle/discounts/internal/repository"
	"github.com/smartcycle/discounts/internal/service"
	"github.com/smartcycle/discounts/internal/validation"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
	"github.com/smartcycle/discounts/pkg/health"
)

// ============================================================================
// Mock repository
// ============================================================================

type mockCampaignRepository struct {
	mock.Mock
}

func (m *mockCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *mockCampaignRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Campaign, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Campaign), args.Error(1)
}

func (m *mockCampaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	args := m.Called(ctx, campaign)
	if args.Error(0) == nil {
		campaign.Version++
	}
	return args.Error(0)
}

func (m *mockCampaignRepository) UpdateStatus(ctx context.Context, id, status string, expectedVersion uint64) error {
	args := m.Called(ctx, id, status, expectedVersion)
	return args.Error(0)
}

func (m *mockCampaignRepository) UpdateCompiled(ctx context.Context, id string, compiled *domain.CompiledSelection, sourceVersion uint64) error {
	args := m.Called(ctx, id, compiled, sourceVersion)
	return args.Error(0)
}

func (m *mockCampaignRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ============================================================================
// setup
// ============================================================================

func setupHandler(t *testing.T) (*mockCampaignRepository, http.Handler) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &mockCampaignRepository{}
	cat := catalogmem.NewWithItems(
		catalog.Item{ID: "item-1", Name: "Trail Runner", Price: 89.99, InStock: true, Category: "shoes"},
		catalog.Item{ID: "item-2", Name: "Wool Beanie", Price: 24.50, InStock: true, Category: "hats"},
	)

	svc := service.NewCampaignService(
		repo,
		cachemem.New(),
		compiler.New(cat, log),
		validation.New(validation.DefaultWeights()),
		resolver.New(log),
		event.NoopPublisher{},
		log,
	)
	return repo, NewRouter(svc, health.NewHandler(), log)
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeResponse(t, rec)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %s", rec.Body.String())
	return errObj["code"].(string)
}

func handlerCampaign(status string, version uint64) *domain.Campaign {
	end := time.Now().Add(30 * 24 * time.Hour)
	return &domain.Campaign{
		ID:            "cmp-1",
		Name:          "Summer Clearance",
		Status:        status,
		Priority:      3,
		SelectionMode: domain.SelectionModeAllItems,
		Window:        domain.Window{EndDate: &end},
		DiscountSpec:  json.RawMessage(`{"type":"percentage","amount":15}`),
		Version:       version,
	}
}

// ============================================================================
// tests
// ============================================================================

func TestCreateCampaign_Created(t *testing.T) {
	repo, handler := setupHandler(t)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Campaign")).Return(nil)
	repo.On("UpdateCompiled", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*domain.CompiledSelection"), uint64(1)).Return(nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/campaigns", map[string]any{
		"name":           "Summer Clearance",
		"priority":       3,
		"selection_mode": "all_items",
		"discount_spec":  map[string]any{"type": "percentage", "amount": 15},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeResponse(t, rec)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "draft", data["status"])
	repo.AssertExpectations(t)
}

func TestCreateCampaign_ValidationError(t *testing.T) {
	_, handler := setupHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/campaigns", map[string]any{
		"priority":       9,
		"selection_mode": "all_items",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestCreateCampaign_MalformedBody(t *testing.T) {
	_, handler := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestGetCampaign_OK(t *testing.T) {
	repo, handler := setupHandler(t)
	repo.On("GetByID", mock.Anything, "cmp-1").Return(handlerCampaign("draft", 1), nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/campaigns/cmp-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]any)
	assert.Equal(t, "cmp-1", data["id"])
}

func TestGetCampaign_NotFound(t *testing.T) {
	repo, handler := setupHandler(t)
	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("campaign", "missing"))

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/campaigns/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestListCampaigns_OK(t *testing.T) {
	repo, handler := setupHandler(t)
	repo.On("List", mock.Anything, repository.ListFilter{Status: "active", Limit: 10}).
		Return([]*domain.Campaign{handlerCampaign("active", 2)}, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/campaigns?status=active&limit=10", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].([]any)
	assert.Len(t, data, 1)
}

func TestUpdateCampaign_VersionConflict(t *testing.T) {
	repo, handler := setupHandler(t)
	repo.On("GetByID", mock.Anything, "cmp-1").Return(handlerCampaign("draft", 5), nil)

	rec := doRequest(t, handler, http.MethodPut, "/api/v1/campaigns/cmp-1", map[string]any{
		"name":             "Renamed",
		"expected_version": 4,
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", errorCode(t, rec))
}

func TestTransitionCampaign_OK(t *testing.T) {
	repo, handler := setupHandler(t)

	repo.On("GetByID", mock.Anything, "cmp-1").Return(handlerCampaign("draft", 1), nil)
	repo.On("UpdateStatus", mock.Anything, "cmp-1", "active", uint64(1)).Return(nil)
	repo.On("UpdateCompiled", mock.Anything, "cmp-1", mock.AnythingOfType("*domain.CompiledSelection"), uint64(2)).Return(nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/campaigns/cmp-1/transition", map[string]any{
		"target":           "active",
		"expected_version": 1,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeResponse(t, rec)["data"].(map[string]any)
	assert.Equal(t, "active", data["status"])
	repo.AssertExpectations(t)
}

func TestTransitionCampaign_InvalidMove(t *testing.T) {
	repo, handler := setupHandler(t)
	repo.On("GetByID", mock.Anything, "cmp-1").Return(handlerCampaign("active", 1), nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/campaigns/cmp-1/transition", map[string]any{
		"target":           "scheduled",
		"expected_version": 1,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, rec))
}

func TestTransitionCampaign_BlockedWithIssueList(t *testing.T) {
	repo, handler := setupHandler(t)

	blocked := handlerCampaign("draft", 1)
	blocked.DiscountSpec = nil
	repo.On("GetByID", mock.Anything, "cmp-1").Return(blocked, nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/campaigns/cmp-1/transition", map[string]any{
		"target":           "active",
		"expected_version": 1,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeResponse(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_BLOCKED", errObj["code"])
	assert.NotEmpty(t, errObj["details"])
}

func TestTransitionCampaign_StaleVersionConflicts(t *testing.T) {
	repo, handler := setupHandler(t)
	repo.On("GetByID", mock.Anything, "cmp-1").Return(handlerCampaign("draft", 3), nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/campaigns/cmp-1/transition", map[string]any{
		"target":           "active",
		"expected_version": 2,
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", errorCode(t, rec))
	repo.AssertNotCalled(t, "UpdateStatus")
}

func TestTransitionCampaign_OversizedBodyRejected(t *testing.T) {
	_, handler := setupHandler(t)

	body := bytes.NewReader(make([]byte, 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/cmp-1/transition", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestGetCampaignIssues_OK(t *testing.T) {
	repo, handler := setupHandler(t)

	stored := handlerCampaign("draft", 1)
	stored.Name = ""
	repo.On("GetByID", mock.Anything, "cmp-1").Return(stored, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/campaigns/cmp-1/issues", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]any)
	assert.NotEmpty(t, data["issues"])
	assert.Greater(t, data["score"].(float64), float64(0))
}

func TestDeleteCampaign_NoContent(t *testing.T) {
	repo, handler := setupHandler(t)

	repo.On("GetByID", mock.Anything, "cmp-1").Return(handlerCampaign("draft", 1), nil)
	repo.On("Delete", mock.Anything, "cmp-1").Return(nil)

	rec := doRequest(t, handler, http.MethodDelete, "/api/v1/campaigns/cmp-1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertExpectations(t)
}

func TestResolveItemDiscount_NoWinner(t *testing.T) {
	_, handler := setupHandler(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/eligibility/items/item-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]any)
	assert.Equal(t, "item-1", data["item_id"])
	assert.Equal(t, false, data["eligible"])
}

func TestHealthEndpoints(t *testing.T) {
	_, handler := setupHandler(t)

	rec := doRequest(t, handler, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
