// Package event connects the campaign engine to Kafka: it publishes
// campaign lifecycle events and consumes catalog change events.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/pkg/kafka"
	"github.com/smartcycle/discounts/pkg/logger"
)

// Campaign lifecycle event types.
const (
	TypeCampaignCreated   = "campaign.created"
	TypeCampaignUpdated   = "campaign.updated"
	TypeCampaignDeleted   = "campaign.deleted"
	TypeCampaignActivated = "campaign.activated"
	TypeCampaignExpired   = "campaign.expired"
	TypeCompilationFailed = "campaign.compilation_failed"
)

const (
	aggregateType = "campaign"
	eventSource   = "discounts-service"
)

// CampaignPayload is the data section of campaign lifecycle events.
type CampaignPayload struct {
	CampaignID    string    `json:"campaign_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Priority      int       `json:"priority"`
	SelectionMode string    `json:"selection_mode"`
	Version       uint64    `json:"version"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CompilationFailedPayload is the data section of compilation-failure
// events.
type CompilationFailedPayload struct {
	CampaignID string    `json:"campaign_id"`
	Version    uint64    `json:"version"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits campaign events. Consumers are read-only observers;
// nothing flows back into engine state.
type Publisher interface {
	PublishCampaignEvent(ctx context.Context, eventType string, campaign *domain.Campaign)
	PublishCompilationFailed(ctx context.Context, campaign *domain.Campaign, reason string)
}

// KafkaPublisher publishes to a single campaign events topic.
// Publishing is fire-and-forget: failures are logged, never surfaced
// to the operation that triggered the event.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to the given topic.
func NewKafkaPublisher(producer *kafka.Producer, topic string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: log}
}

func (p *KafkaPublisher) PublishCampaignEvent(ctx context.Context, eventType string, campaign *domain.Campaign) {
	payload := CampaignPayload{
		CampaignID:    campaign.ID,
		Name:          campaign.Name,
		Status:        campaign.Status,
		Priority:      campaign.Priority,
		SelectionMode: campaign.SelectionMode,
		Version:       campaign.Version,
		OccurredAt:    time.Now().UTC(),
	}
	p.publish(ctx, eventType, campaign.ID, payload)
}

func (p *KafkaPublisher) PublishCompilationFailed(ctx context.Context, campaign *domain.Campaign, reason string) {
	payload := CompilationFailedPayload{
		CampaignID: campaign.ID,
		Version:    campaign.Version,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	p.publish(ctx, TypeCompilationFailed, campaign.ID, payload)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, campaignID string, payload any) {
	evt, err := kafka.NewEvent(eventType, campaignID, aggregateType, eventSource, payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()))
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt = evt.WithCorrelationID(id)
	}

	if err := p.producer.Publish(ctx, p.topic, evt); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()))
	}
}

// NoopPublisher discards all events, used when Kafka is not
// configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishCampaignEvent(context.Context, string, *domain.Campaign) {}

func (NoopPublisher) PublishCompilationFailed(context.Context, *domain.Campaign, string) {}
