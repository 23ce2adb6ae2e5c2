package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/engine/resolver"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// ResolveDiscount returns the single winning campaign for the item, or
// nil when no active campaign covers it.
//
// Candidates come from the active-campaign index. A candidate whose
// compiled set no longer matches its version is recompiled before it
// is considered; one that cannot be recompiled is skipped for this
// read rather than trusted.
func (s *CampaignService) ResolveDiscount(ctx context.Context, itemID string) (*resolver.Resolution, error) {
	entries, err := s.cache.ActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.Campaign, 0, len(entries))
	for _, entry := range entries {
		campaign, err := s.candidateCampaign(ctx, entry.CampaignID)
		if err != nil {
			s.logger.ErrorContext(ctx, "skipping unresolvable candidate",
				slog.String("campaign_id", entry.CampaignID),
				slog.String("error", err.Error()))
			continue
		}
		if campaign != nil {
			candidates = append(candidates, campaign)
		}
	}

	return s.resolver.Resolve(itemID, s.now(), candidates), nil
}

// candidateCampaign loads one candidate with a trustworthy compiled
// set, triggering lazy recompilation when the cached set is stale or
// built from an older version. A nil campaign means the candidate
// dropped out (deleted, or stale with compilation still failing).
func (s *CampaignService) candidateCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Index entry outlived the campaign; drop it.
		if rmErr := s.cache.RemoveActive(ctx, id); rmErr != nil {
			s.logger.ErrorContext(ctx, "failed to prune active index",
				slog.String("campaign_id", id),
				slog.String("error", rmErr.Error()))
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Prefer the cached copy; fall back to the persisted one.
	if cached, err := s.cache.Get(ctx, id); err == nil && cached.FreshFor(campaign.Version) {
		campaign.Compiled = cached
		return campaign, nil
	}
	if campaign.Compiled.FreshFor(campaign.Version) {
		return campaign, nil
	}

	compiled, _, err := s.compiler.Compile(ctx, campaign)
	if err != nil {
		s.retainStale(ctx, campaign, err)
		return nil, nil
	}
	if err := s.storeCompiled(ctx, campaign, compiled); err != nil {
		if errors.Is(err, apperrors.ErrConcurrentModification) {
			return nil, nil
		}
		return nil, err
	}
	return campaign, nil
}
