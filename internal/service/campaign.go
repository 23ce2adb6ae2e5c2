// Package service implements the campaign lifecycle business logic:
// CRUD, compilation, state transitions, and discount resolution.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartcycle/discounts/internal/cache"
	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/engine/compiler"
	"github.com/smartcycle/discounts/internal/engine/resolver"
	"github.com/smartcycle/discounts/internal/event"
	"github.com/smartcycle/discounts/internal/repository"
	"github.com/smartcycle/discounts/internal/validation"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// CampaignService implements the business logic for campaign
// operations. It is the single owner of eligibility-cache writes: each
// successful campaign write invalidates or refreshes the cache exactly
// once.
type CampaignService struct {
	repo      repository.CampaignRepository
	cache     cache.Store
	compiler  *compiler.Compiler
	validator *validation.Validator
	resolver  *resolver.Resolver
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCampaignService creates a new campaign service.
func NewCampaignService(
	repo repository.CampaignRepository,
	store cache.Store,
	comp *compiler.Compiler,
	validator *validation.Validator,
	res *resolver.Resolver,
	publisher event.Publisher,
	logger *slog.Logger,
) *CampaignService {
	return &CampaignService{
		repo:      repo,
		cache:     store,
		compiler:  comp,
		validator: validator,
		resolver:  res,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCampaignInput holds the parameters for creating a campaign.
type CreateCampaignInput struct {
	Name            string
	Description     string
	Priority        int
	SelectionMode   string
	ExplicitItemIDs []string
	RandomCount     int
	ConditionLogic  string
	Conditions      []domain.Condition
	Window          domain.Window
	DiscountSpec    []byte
}

// UpdateCampaignInput holds the parameters for updating a campaign.
// Nil fields are left unchanged. ExpectedVersion is the version the
// caller loaded; the write fails with ConcurrentModification if the
// stored campaign has moved on.
type UpdateCampaignInput struct {
	Name            *string
	Description     *string
	Priority        *int
	SelectionMode   *string
	ExplicitItemIDs []string
	RandomCount     *int
	ConditionLogic  *string
	Conditions      []domain.Condition
	Window          *domain.Window
	DiscountSpec    []byte
	ExpectedVersion uint64
}

// CreateCampaign creates a draft campaign and compiles its selection.
// A compilation failure does not fail creation; the campaign starts
// without a compiled set and compiles lazily later.
func (s *CampaignService) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, []compiler.Warning, error) {
	campaign := &domain.Campaign{
		ID:              uuid.NewString(),
		Name:            input.Name,
		Description:     input.Description,
		Status:          domain.CampaignStatusDraft,
		Priority:        input.Priority,
		SelectionMode:   input.SelectionMode,
		ExplicitItemIDs: input.ExplicitItemIDs,
		RandomCount:     input.RandomCount,
		ConditionLogic:  input.ConditionLogic,
		Conditions:      input.Conditions,
		Window:          input.Window,
		DiscountSpec:    input.DiscountSpec,
		Version:         1,
	}
	if campaign.ConditionLogic == "" {
		campaign.ConditionLogic = domain.ConditionLogicAll
	}

	if err := s.checkStructure(campaign); err != nil {
		return nil, nil, err
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, nil, err
	}

	warnings := s.recompile(ctx, campaign)

	s.publisher.PublishCampaignEvent(ctx, event.TypeCampaignCreated, campaign)
	s.logger.InfoContext(ctx, "campaign created",
		slog.String("campaign_id", campaign.ID),
		slog.String("selection_mode", campaign.SelectionMode))
	return campaign, warnings, nil
}

// GetCampaign loads a campaign by id.
func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

// ListCampaigns lists campaigns, optionally filtered by status.
func (s *CampaignService) ListCampaigns(ctx context.Context, filter repository.ListFilter) ([]*domain.Campaign, error) {
	if filter.Status != "" && !domain.IsValidStatus(filter.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", filter.Status))
	}
	return s.repo.List(ctx, filter)
}

// UpdateCampaign applies the input on top of the stored campaign under
// compare-and-swap, then recompiles the selection. A compilation
// failure does not roll back the write: the previous compiled set is
// retained, marked stale, and a compilation-failure event is
// published.
func (s *CampaignService) UpdateCampaign(ctx context.Context, id string, input UpdateCampaignInput) (*domain.Campaign, []compiler.Warning, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if campaign.Version != input.ExpectedVersion {
		return nil, nil, apperrors.ConcurrentModification("campaign", id, input.ExpectedVersion)
	}

	applyUpdate(campaign, input)
	if campaign.ConditionLogic == "" {
		// Same default as creation; rows written before a logic was
		// chosen stay updatable.
		campaign.ConditionLogic = domain.ConditionLogicAll
	}
	if err := s.checkStructure(campaign); err != nil {
		return nil, nil, err
	}

	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, nil, err
	}

	warnings := s.recompile(ctx, campaign)
	if campaign.Status == domain.CampaignStatusActive {
		if err := s.cache.AddActive(ctx, campaign.ID, campaign.Priority); err != nil {
			s.logger.ErrorContext(ctx, "failed to refresh active index",
				slog.String("campaign_id", campaign.ID),
				slog.String("error", err.Error()))
		}
	}

	s.publisher.PublishCampaignEvent(ctx, event.TypeCampaignUpdated, campaign)
	return campaign, warnings, nil
}

// DeleteCampaign removes a campaign and every cache trace of it.
func (s *CampaignService) DeleteCampaign(ctx context.Context, id string) error {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to drop cached selection",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()))
	}
	if err := s.cache.RemoveActive(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to drop active index entry",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()))
	}

	s.publisher.PublishCampaignEvent(ctx, event.TypeCampaignDeleted, campaign)
	s.logger.InfoContext(ctx, "campaign deleted", slog.String("campaign_id", id))
	return nil
}

// CampaignIssues validates the campaign and returns its issues with
// the weighted score.
func (s *CampaignService) CampaignIssues(ctx context.Context, id string) ([]validation.Issue, int, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	issues := s.validator.Validate(campaign)
	return issues, s.validator.Score(issues), nil
}

// checkStructure rejects configurations the engine cannot store or
// evaluate: unknown modes, out-of-range priorities, malformed
// conditions. Softer concerns are left to the severity validator.
func (s *CampaignService) checkStructure(c *domain.Campaign) error {
	if c.Name == "" {
		return apperrors.InvalidInput("campaign name is required")
	}
	if !domain.IsValidPriority(c.Priority) {
		return apperrors.InvalidInput(fmt.Sprintf("priority must be between %d and %d", domain.PriorityMin, domain.PriorityMax))
	}
	if !domain.IsValidSelectionMode(c.SelectionMode) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown selection mode %q", c.SelectionMode))
	}
	if !domain.IsValidConditionLogic(c.ConditionLogic) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown condition logic %q", c.ConditionLogic))
	}
	for i, cond := range c.Conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i+1, err)
		}
	}
	if c.Window.StartDate.IsZero() && c.Window.EndDate != nil && c.Window.EndDate.Before(s.now()) {
		return apperrors.InvalidInput("window end date is in the past")
	}
	return nil
}

func applyUpdate(c *domain.Campaign, input UpdateCampaignInput) {
	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.Description != nil {
		c.Description = *input.Description
	}
	if input.Priority != nil {
		c.Priority = *input.Priority
	}
	if input.SelectionMode != nil {
		c.SelectionMode = *input.SelectionMode
	}
	if input.ExplicitItemIDs != nil {
		c.ExplicitItemIDs = input.ExplicitItemIDs
	}
	if input.RandomCount != nil {
		c.RandomCount = *input.RandomCount
	}
	if input.ConditionLogic != nil {
		c.ConditionLogic = *input.ConditionLogic
	}
	if input.Conditions != nil {
		c.Conditions = input.Conditions
	}
	if input.Window != nil {
		c.Window = *input.Window
	}
	if input.DiscountSpec != nil {
		c.DiscountSpec = input.DiscountSpec
	}
}
