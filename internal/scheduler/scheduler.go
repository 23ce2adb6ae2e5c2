// Package scheduler reconciles campaign status against the clock:
// scheduled campaigns whose window has opened become active, active
// campaigns whose window has closed expire.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/repository"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// TransitionService is the slice of the campaign service the scheduler
// drives. It uses the same optimistic-concurrency path as manual
// edits.
type TransitionService interface {
	ListCampaigns(ctx context.Context, filter repository.ListFilter) ([]*domain.Campaign, error)
	TransitionCampaignWithRetry(ctx context.Context, id, target string, expectedVersion uint64) (*domain.Campaign, error)
}

// Scheduler periodically sweeps time-driven transitions.
type Scheduler struct {
	svc      TransitionService
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a scheduler ticking at the given interval.
func New(svc TransitionService, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduler started",
		slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Failures on individual campaigns
// are logged and do not stop the pass.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	s.activateDue(ctx, now)
	s.expireElapsed(ctx, now)
}

func (s *Scheduler) activateDue(ctx context.Context, now time.Time) {
	scheduled, err := s.svc.ListCampaigns(ctx, repository.ListFilter{Status: domain.CampaignStatusScheduled})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list scheduled campaigns",
			slog.String("error", err.Error()))
		return
	}

	for _, c := range scheduled {
		if now.Before(c.Window.StartDate) {
			continue
		}
		if c.Window.EndDate != nil && now.After(*c.Window.EndDate) {
			// The window closed before the campaign ever ran. There is
			// no direct scheduled-to-expired move, so park the campaign
			// first and expire from there.
			paused, ok := s.transition(ctx, c.ID, domain.CampaignStatusPaused, c.Version)
			if ok {
				s.transition(ctx, c.ID, domain.CampaignStatusExpired, paused.Version)
			}
			continue
		}
		s.transition(ctx, c.ID, domain.CampaignStatusActive, c.Version)
	}
}

func (s *Scheduler) expireElapsed(ctx context.Context, now time.Time) {
	active, err := s.svc.ListCampaigns(ctx, repository.ListFilter{Status: domain.CampaignStatusActive})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list active campaigns",
			slog.String("error", err.Error()))
		return
	}

	for _, c := range active {
		if c.Window.EndDate == nil || now.Before(*c.Window.EndDate) {
			continue
		}
		s.transition(ctx, c.ID, domain.CampaignStatusExpired, c.Version)
	}
}

func (s *Scheduler) transition(ctx context.Context, id, target string, expectedVersion uint64) (*domain.Campaign, bool) {
	updated, err := s.svc.TransitionCampaignWithRetry(ctx, id, target, expectedVersion)
	if err != nil {
		// A validation-blocked activation stays scheduled until an
		// operator resolves the issues; everything else is unexpected.
		level := slog.LevelError
		if errors.Is(err, apperrors.ErrValidationBlocked) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "scheduled transition failed",
			slog.String("campaign_id", id),
			slog.String("target", target),
			slog.String("error", err.Error()))
		return nil, false
	}
	s.logger.InfoContext(ctx, "scheduled transition applied",
		slog.String("campaign_id", id),
		slog.String("target", target))
	return updated, true
}
