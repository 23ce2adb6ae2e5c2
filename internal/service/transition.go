package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/event"
	"github.com/smartcycle/discounts/internal/validation"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// TransitionCampaign moves a campaign to the target status.
//
// The caller states the version it decided against; a mismatch with
// the stored campaign fails before any status check runs. The write is
// then compare-and-swap gated on that same version, so a concurrent
// writer cannot slip between check and commit. Moves into active or
// scheduled are blocked while the campaign has critical validation
// issues and refresh the compiled selection when it no longer matches
// the campaign version.
func (s *CampaignService) TransitionCampaign(ctx context.Context, id, target string, expectedVersion uint64) (*domain.Campaign, error) {
	if !domain.IsValidStatus(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", target))
	}

	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Version != expectedVersion {
		return nil, apperrors.ConcurrentModification("campaign", id, expectedVersion)
	}

	from := campaign.Status
	if !domain.CanTransition(from, target) {
		return nil, apperrors.InvalidTransition(from, target)
	}

	if domain.RequiresActivationGate(target) {
		issues := s.validator.Validate(campaign)
		if validation.HasCritical(issues) {
			return nil, apperrors.ValidationBlocked(validation.Messages(validation.Criticals(issues)))
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, target, expectedVersion); err != nil {
		return nil, err
	}
	campaign.Status = target
	campaign.Version = expectedVersion + 1

	if domain.RequiresActivationGate(target) && !campaign.Compiled.FreshFor(campaign.Version) {
		// Failure here retains the previous set marked stale; the
		// transition itself has already committed.
		s.recompile(ctx, campaign)
	}

	s.syncActiveIndex(ctx, campaign, from)
	s.publishTransition(ctx, campaign)

	s.logger.InfoContext(ctx, "campaign transitioned",
		slog.String("campaign_id", id),
		slog.String("from", from),
		slog.String("to", target))
	return campaign, nil
}

// TransitionCampaignWithRetry is the path automated callers use: on a
// lost version race it reloads and retries once; a second conflict is
// terminal.
func (s *CampaignService) TransitionCampaignWithRetry(ctx context.Context, id, target string, expectedVersion uint64) (*domain.Campaign, error) {
	campaign, err := s.TransitionCampaign(ctx, id, target, expectedVersion)
	if !errors.Is(err, apperrors.ErrConcurrentModification) {
		return campaign, err
	}

	fresh, loadErr := s.repo.GetByID(ctx, id)
	if loadErr != nil {
		return nil, loadErr
	}

	s.logger.WarnContext(ctx, "transition lost version race, retrying",
		slog.String("campaign_id", id),
		slog.String("to", target))
	return s.TransitionCampaign(ctx, id, target, fresh.Version)
}

func (s *CampaignService) syncActiveIndex(ctx context.Context, campaign *domain.Campaign, from string) {
	var err error
	switch {
	case campaign.Status == domain.CampaignStatusActive:
		err = s.cache.AddActive(ctx, campaign.ID, campaign.Priority)
	case from == domain.CampaignStatusActive:
		err = s.cache.RemoveActive(ctx, campaign.ID)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to sync active index",
			slog.String("campaign_id", campaign.ID),
			slog.String("status", campaign.Status),
			slog.String("error", err.Error()))
	}
}

func (s *CampaignService) publishTransition(ctx context.Context, campaign *domain.Campaign) {
	switch campaign.Status {
	case domain.CampaignStatusActive:
		s.publisher.PublishCampaignEvent(ctx, event.TypeCampaignActivated, campaign)
	case domain.CampaignStatusExpired:
		s.publisher.PublishCampaignEvent(ctx, event.TypeCampaignExpired, campaign)
	default:
		s.publisher.PublishCampaignEvent(ctx, event.TypeCampaignUpdated, campaign)
	}
}
