// Package http exposes the campaign engine over a JSON HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/engine/compiler"
	"github.com/smartcycle/discounts/internal/repository"
	"github.com/smartcycle/discounts/internal/service"
	"github.com/smartcycle/discounts/internal/validation"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
	"github.com/smartcycle/discounts/pkg/validator"
)

// CampaignHandler handles HTTP requests for campaign endpoints.
type CampaignHandler struct {
	service *service.CampaignService
	logger  *slog.Logger
}

// NewCampaignHandler creates a new campaign HTTP handler.
func NewCampaignHandler(svc *service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ConditionRequest is one selection condition in a request body.
type ConditionRequest struct {
	Property string `json:"property" validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    string `json:"value"`
	Value2   string `json:"value2"`
	Mode     string `json:"mode" validate:"required,oneof=include exclude"`
}

// WindowRequest is the temporal window in a request body. Dates are
// RFC3339.
type WindowRequest struct {
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	Recurrence *RecurrenceRequest `json:"recurrence"`
}

// RecurrenceRequest restricts a window to recurring slots.
type RecurrenceRequest struct {
	Frequency string `json:"frequency" validate:"required,oneof=daily weekly"`
	Weekdays  []int  `json:"weekdays" validate:"dive,gte=0,lte=6"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CreateCampaignRequest is the JSON request body for creating a campaign.
type CreateCampaignRequest struct {
	Name            string             `json:"name" validate:"required,min=1,max=255"`
	Description     string             `json:"description"`
	Priority        int                `json:"priority" validate:"required,gte=1,lte=5"`
	SelectionMode   string             `json:"selection_mode" validate:"required,oneof=all_items explicit_list random_n condition_filtered"`
	ExplicitItemIDs []string           `json:"explicit_item_ids"`
	RandomCount     int                `json:"random_count" validate:"gte=0"`
	ConditionLogic  string             `json:"condition_logic" validate:"omitempty,oneof=all any"`
	Conditions      []ConditionRequest `json:"conditions" validate:"dive"`
	Window          *WindowRequest     `json:"window"`
	DiscountSpec    json.RawMessage    `json:"discount_spec"`
}

// UpdateCampaignRequest is the JSON request body for updating a campaign.
// ExpectedVersion carries the version the client last read.
type UpdateCampaignRequest struct {
	Name            *string            `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string            `json:"description"`
	Priority        *int               `json:"priority" validate:"omitempty,gte=1,lte=5"`
	SelectionMode   *string            `json:"selection_mode" validate:"omitempty,oneof=all_items explicit_list random_n condition_filtered"`
	ExplicitItemIDs []string           `json:"explicit_item_ids"`
	RandomCount     *int               `json:"random_count" validate:"omitempty,gte=0"`
	ConditionLogic  *string            `json:"condition_logic" validate:"omitempty,oneof=all any"`
	Conditions      []ConditionRequest `json:"conditions" validate:"dive"`
	Window          *WindowRequest     `json:"window"`
	DiscountSpec    json.RawMessage    `json:"discount_spec"`
	ExpectedVersion uint64             `json:"expected_version" validate:"required,gte=1"`
}

// TransitionRequest is the JSON request body for a status transition.
type TransitionRequest struct {
	Target          string `json:"target" validate:"required,oneof=draft scheduled active paused expired archived"`
	ExpectedVersion uint64 `json:"expected_version" validate:"required,gte=1"`
}

// --- Response envelope ---

type response struct {
	Data     any            `json:"data,omitempty"`
	Warnings any            `json:"warnings,omitempty"`
	Error    *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details any               `json:"details,omitempty"`
}

type issuesResponse struct {
	Issues any `json:"issues"`
	Score  int `json:"score"`
}

type eligibilityResponse struct {
	ItemID     string `json:"item_id"`
	Eligible   bool   `json:"eligible"`
	Resolution any    `json:"resolution,omitempty"`
}

// --- Handlers ---

// CreateCampaign handles POST /api/v1/campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	window, err := parseWindow(req.Window)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
		})
		return
	}

	input := service.CreateCampaignInput{
		Name:            req.Name,
		Description:     req.Description,
		Priority:        req.Priority,
		SelectionMode:   req.SelectionMode,
		ExplicitItemIDs: req.ExplicitItemIDs,
		RandomCount:     req.RandomCount,
		ConditionLogic:  req.ConditionLogic,
		Conditions:      toConditions(req.Conditions),
		Window:          window,
		DiscountSpec:    req.DiscountSpec,
	}

	campaign, warnings, err := h.service.CreateCampaign(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: campaign, Warnings: nonEmpty(warnings)})
}

// ListCampaigns handles GET /api/v1/campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := repository.ListFilter{
		Status: r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	campaigns, err := h.service.ListCampaigns(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []*domain.Campaign{}
	}

	writeJSON(w, http.StatusOK, response{Data: campaigns})
}

// GetCampaign handles GET /api/v1/campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := h.service.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: campaign})
}

// UpdateCampaign handles PUT /api/v1/campaigns/{id}
func (h *CampaignHandler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	input := service.UpdateCampaignInput{
		Name:            req.Name,
		Description:     req.Description,
		Priority:        req.Priority,
		SelectionMode:   req.SelectionMode,
		ExplicitItemIDs: req.ExplicitItemIDs,
		RandomCount:     req.RandomCount,
		ConditionLogic:  req.ConditionLogic,
		DiscountSpec:    req.DiscountSpec,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.Conditions != nil {
		input.Conditions = toConditions(req.Conditions)
	}
	if req.Window != nil {
		window, err := parseWindow(req.Window)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
			})
			return
		}
		input.Window = &window
	}

	campaign, warnings, err := h.service.UpdateCampaign(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: campaign, Warnings: nonEmpty(warnings)})
}

// DeleteCampaign handles DELETE /api/v1/campaigns/{id}
func (h *CampaignHandler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteCampaign(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TransitionCampaign handles POST /api/v1/campaigns/{id}/transition
func (h *CampaignHandler) TransitionCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	campaign, err := h.service.TransitionCampaign(r.Context(), id, req.Target, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: campaign})
}

// CompileCampaign handles POST /api/v1/campaigns/{id}/compile
func (h *CampaignHandler) CompileCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, warnings, err := h.service.CompileCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: campaign, Warnings: nonEmpty(warnings)})
}

// GetCampaignIssues handles GET /api/v1/campaigns/{id}/issues
func (h *CampaignHandler) GetCampaignIssues(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	issues, score, err := h.service.CampaignIssues(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if issues == nil {
		issues = []validation.Issue{}
	}

	writeJSON(w, http.StatusOK, response{Data: issuesResponse{Issues: issues, Score: score}})
}

// ResolveItemDiscount handles GET /api/v1/eligibility/items/{itemId}
func (h *CampaignHandler) ResolveItemDiscount(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	resolution, err := h.service.ResolveDiscount(r.Context(), itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := eligibilityResponse{ItemID: itemID, Eligible: resolution != nil}
	if resolution != nil {
		out.Resolution = resolution
	}
	writeJSON(w, http.StatusOK, response{Data: out})
}

// --- helpers ---

func toConditions(in []ConditionRequest) []domain.Condition {
	if in == nil {
		return nil
	}
	out := make([]domain.Condition, 0, len(in))
	for _, c := range in {
		out = append(out, domain.Condition{
			Property: c.Property,
			Operator: c.Operator,
			Value:    c.Value,
			Value2:   c.Value2,
			Mode:     c.Mode,
		})
	}
	return out
}

func parseWindow(req *WindowRequest) (domain.Window, error) {
	var window domain.Window
	if req == nil {
		return window, nil
	}

	if req.StartDate != "" {
		start, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			return window, apperrors.InvalidInput("start_date must be in RFC3339 format")
		}
		window.StartDate = start
	}
	if req.EndDate != "" {
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return window, apperrors.InvalidInput("end_date must be in RFC3339 format")
		}
		window.EndDate = &end
	}
	if req.Recurrence != nil {
		rule := &domain.RecurrenceRule{
			Frequency: req.Recurrence.Frequency,
			StartTime: req.Recurrence.StartTime,
			EndTime:   req.Recurrence.EndTime,
		}
		for _, d := range req.Recurrence.Weekdays {
			rule.Weekdays = append(rule.Weekdays, time.Weekday(d))
		}
		window.Recurrence = rule
	}
	return window, nil
}

func nonEmpty(warnings []compiler.Warning) any {
	if len(warnings) == 0 {
		return nil
	}
	return warnings
}

func (h *CampaignHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, response{
			Error: &errorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		})
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path))
	writeJSON(w, http.StatusInternalServerError, response{
		Error: &errorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
	})
}

func (h *CampaignHandler) writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
