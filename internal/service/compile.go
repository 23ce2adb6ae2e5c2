package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/engine/compiler"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// CompileCampaign recompiles the campaign's selection on demand and
// returns the refreshed campaign.
func (s *CampaignService) CompileCampaign(ctx context.Context, id string) (*domain.Campaign, []compiler.Warning, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	compiled, warnings, err := s.compiler.Compile(ctx, campaign)
	if err != nil {
		return nil, warnings, err
	}
	if err := s.storeCompiled(ctx, campaign, compiled); err != nil {
		return nil, warnings, err
	}
	return campaign, warnings, nil
}

// recompile compiles the campaign's current selection and persists the
// result. Failures never propagate: the previous compiled set is
// retained marked stale, a compilation-failure event goes out, and the
// outcome is reported through the returned warnings.
func (s *CampaignService) recompile(ctx context.Context, campaign *domain.Campaign) []compiler.Warning {
	compiled, warnings, err := s.compiler.Compile(ctx, campaign)
	if err != nil {
		s.retainStale(ctx, campaign, err)
		return append(warnings, compiler.Warning{
			Code:    "COMPILATION_FAILED",
			Message: err.Error(),
		})
	}

	if err := s.storeCompiled(ctx, campaign, compiled); err != nil {
		if errors.Is(err, apperrors.ErrConcurrentModification) {
			// The configuration moved on while compiling; the next
			// read compiles against the newer version.
			s.logger.InfoContext(ctx, "discarding superseded compilation",
				slog.String("campaign_id", campaign.ID),
				slog.Uint64("source_version", compiled.SourceVersion))
			return warnings
		}
		s.retainStale(ctx, campaign, err)
		return append(warnings, compiler.Warning{
			Code:    "COMPILATION_FAILED",
			Message: err.Error(),
		})
	}
	return warnings
}

// storeCompiled persists a compilation result to the repository and
// the eligibility cache as one logical write.
func (s *CampaignService) storeCompiled(ctx context.Context, campaign *domain.Campaign, compiled *domain.CompiledSelection) error {
	if err := s.repo.UpdateCompiled(ctx, campaign.ID, compiled, compiled.SourceVersion); err != nil {
		return err
	}
	campaign.Compiled = compiled

	if err := s.cache.Put(ctx, campaign.ID, compiled); err != nil {
		// The repository holds the authoritative copy; a cache write
		// failure only costs the next reader a recompilation.
		s.logger.ErrorContext(ctx, "failed to cache compiled selection",
			slog.String("campaign_id", campaign.ID),
			slog.String("error", err.Error()))
	}
	return nil
}

// retainStale keeps the last-known-good compiled set, marked stale,
// after a failed compilation.
func (s *CampaignService) retainStale(ctx context.Context, campaign *domain.Campaign, cause error) {
	if err := s.cache.MarkStale(ctx, campaign.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark cached selection stale",
			slog.String("campaign_id", campaign.ID),
			slog.String("error", err.Error()))
	}
	if campaign.Compiled != nil {
		campaign.Compiled.Stale = true
	}

	s.publisher.PublishCompilationFailed(ctx, campaign, cause.Error())
	s.logger.ErrorContext(ctx, "selection compilation failed",
		slog.String("campaign_id", campaign.ID),
		slog.String("selection_mode", campaign.SelectionMode),
		slog.String("error", cause.Error()))
}

