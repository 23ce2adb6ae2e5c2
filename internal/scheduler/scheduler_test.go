package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/repository"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

type mockTransitionService struct {
	mock.Mock
}

func (m *mockTransitionService) ListCampaigns(ctx context.Context, filter repository.ListFilter) ([]*domain.Campaign, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Campaign), args.Error(1)
}

func (m *mockTransitionService) TransitionCampaignWithRetry(ctx context.Context, id, target string, expectedVersion uint64) (*domain.Campaign, error) {
	args := m.Called(ctx, id, target, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func newTestScheduler(svc TransitionService, now time.Time) *Scheduler {
	s := New(svc, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func campaignWithWindow(id, status string, start time.Time, end *time.Time) *domain.Campaign {
	return &domain.Campaign{
		ID:      id,
		Status:  status,
		Version: 2,
		Window:  domain.Window{StartDate: start, EndDate: end},
	}
}

func TestSweep_ActivatesDueScheduledCampaigns(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockTransitionService{}

	due := campaignWithWindow("cmp-due", domain.CampaignStatusScheduled, now.Add(-time.Hour), nil)
	future := campaignWithWindow("cmp-future", domain.CampaignStatusScheduled, now.Add(time.Hour), nil)

	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusScheduled}).
		Return([]*domain.Campaign{due, future}, nil)
	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusActive}).
		Return([]*domain.Campaign{}, nil)
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-due", domain.CampaignStatusActive, uint64(2)).
		Return(due, nil)

	newTestScheduler(svc, now).Sweep(context.Background())

	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "TransitionCampaignWithRetry", mock.Anything, "cmp-future", mock.Anything, mock.Anything)
}

func TestSweep_ExpiresElapsedActiveCampaigns(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockTransitionService{}

	ended := now.Add(-time.Minute)
	running := now.Add(time.Hour)
	elapsed := campaignWithWindow("cmp-elapsed", domain.CampaignStatusActive, now.Add(-48*time.Hour), &ended)
	current := campaignWithWindow("cmp-current", domain.CampaignStatusActive, now.Add(-48*time.Hour), &running)
	openEnded := campaignWithWindow("cmp-open", domain.CampaignStatusActive, now.Add(-48*time.Hour), nil)

	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusScheduled}).
		Return([]*domain.Campaign{}, nil)
	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusActive}).
		Return([]*domain.Campaign{elapsed, current, openEnded}, nil)
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-elapsed", domain.CampaignStatusExpired, uint64(2)).
		Return(elapsed, nil)

	newTestScheduler(svc, now).Sweep(context.Background())

	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "TransitionCampaignWithRetry", mock.Anything, "cmp-current", mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "TransitionCampaignWithRetry", mock.Anything, "cmp-open", mock.Anything, mock.Anything)
}

func TestSweep_ScheduledCampaignWhoseWindowClosedExpires(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockTransitionService{}

	ended := now.Add(-time.Hour)
	missed := campaignWithWindow("cmp-missed", domain.CampaignStatusScheduled, now.Add(-48*time.Hour), &ended)

	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusScheduled}).
		Return([]*domain.Campaign{missed}, nil)
	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusActive}).
		Return([]*domain.Campaign{}, nil)
	paused := campaignWithWindow("cmp-missed", domain.CampaignStatusPaused, missed.Window.StartDate, &ended)
	paused.Version = 3
	expired := campaignWithWindow("cmp-missed", domain.CampaignStatusExpired, missed.Window.StartDate, &ended)
	expired.Version = 4

	// No direct scheduled-to-expired edge exists; the sweep goes
	// through paused and must chain the versions across both hops.
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-missed", domain.CampaignStatusPaused, uint64(2)).
		Return(paused, nil)
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-missed", domain.CampaignStatusExpired, uint64(3)).
		Return(expired, nil)

	newTestScheduler(svc, now).Sweep(context.Background())
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "TransitionCampaignWithRetry", mock.Anything, "cmp-missed", domain.CampaignStatusActive, mock.Anything)
}

func TestSweep_MissedWindowFirstHopFailureSkipsExpiry(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockTransitionService{}

	ended := now.Add(-time.Hour)
	missed := campaignWithWindow("cmp-missed", domain.CampaignStatusScheduled, now.Add(-48*time.Hour), &ended)

	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusScheduled}).
		Return([]*domain.Campaign{missed}, nil)
	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusActive}).
		Return([]*domain.Campaign{}, nil)
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-missed", domain.CampaignStatusPaused, uint64(2)).
		Return(nil, apperrors.ConcurrentModification("campaign", "cmp-missed", 2))

	newTestScheduler(svc, now).Sweep(context.Background())
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "TransitionCampaignWithRetry", mock.Anything, "cmp-missed", domain.CampaignStatusExpired, mock.Anything)
}

func TestSweep_BlockedActivationDoesNotStopThePass(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockTransitionService{}

	blocked := campaignWithWindow("cmp-blocked", domain.CampaignStatusScheduled, now.Add(-time.Hour), nil)
	due := campaignWithWindow("cmp-due", domain.CampaignStatusScheduled, now.Add(-time.Hour), nil)

	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusScheduled}).
		Return([]*domain.Campaign{blocked, due}, nil)
	svc.On("ListCampaigns", mock.Anything, repository.ListFilter{Status: domain.CampaignStatusActive}).
		Return([]*domain.Campaign{}, nil)
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-blocked", domain.CampaignStatusActive, uint64(2)).
		Return(nil, apperrors.ValidationBlocked([]string{"MISSING_DISCOUNT_SPEC: campaign has no discount configured"}))
	svc.On("TransitionCampaignWithRetry", mock.Anything, "cmp-due", domain.CampaignStatusActive, uint64(2)).
		Return(due, nil)

	newTestScheduler(svc, now).Sweep(context.Background())
	svc.AssertExpectations(t)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	svc := &mockTransitionService{}
	s := New(svc, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc.On("ListCampaigns", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil).Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
