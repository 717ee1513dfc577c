// Package notify turns queued storefront events into push campaigns.
package notify

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
)

const (
	DefaultBatchSize = 20
	MaxBatchSize     = 100
)

// BatchResult reports one pass: Queued events were claimed, Processed of
// them succeeded.
type BatchResult struct {
	Processed int `json:"processed"`
	Queued    int `json:"queued"`
}

type Processor struct {
	repo       Repository
	dispatcher Dispatcher
}

func NewProcessor(repo Repository, dispatcher Dispatcher) *Processor {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &Processor{repo: repo, dispatcher: dispatcher}
}

// NewProcessorFromDB creates a processor with the GORM repository.
func NewProcessorFromDB(db *gorm.DB, dispatcher Dispatcher) *Processor {
	return NewProcessor(NewRepository(db), dispatcher)
}

// ProcessBatch claims up to maxItems queued events, oldest first, and handles
// them one after the other. Overlapping passes never share an event. A
// failing event is marked failed and the batch continues; only the claim can
// fail the whole call.
func (p *Processor) ProcessBatch(ctx context.Context, maxItems int) (*BatchResult, error) {
	if maxItems <= 0 {
		maxItems = DefaultBatchSize
	}
	if maxItems > MaxBatchSize {
		maxItems = MaxBatchSize
	}

	events, err := p.repo.ClaimQueued(ctx, maxItems)
	if err != nil {
		return nil, fmt.Errorf("claim queued notification events: %w", err)
	}

	result := &BatchResult{Queued: len(events)}
	for i := range events {
		ev := &events[i]
		if err := p.processEvent(ctx, ev); err != nil {
			log.Warnf("[NotifyQueue] Event %d (%s) failed: %v", ev.ID, ev.EventType, err)
			if mErr := p.repo.MarkFailed(ctx, ev.ID, err.Error()); mErr != nil {
				log.Errorf("[NotifyQueue] Failed to mark event %d failed: %v", ev.ID, mErr)
			}
			continue
		}
		if err := p.repo.MarkProcessed(ctx, ev.ID); err != nil {
			log.Errorf("[NotifyQueue] Failed to mark event %d processed: %v", ev.ID, err)
			continue
		}
		result.Processed++
	}

	if result.Queued > 0 {
		log.Infof("[NotifyQueue] Processed %d/%d events", result.Processed, result.Queued)
	}
	return result, nil
}

func (p *Processor) processEvent(ctx context.Context, ev *models.NotificationEvent) error {
	data, err := decodePayload(ev.Payload)
	if err != nil {
		return err
	}

	msg := MessageFor(ev.EventType, data)
	eventID := ev.ID
	campaign := &models.NotificationCampaign{
		Title:         msg.Title,
		Body:          msg.Body,
		Audience:      AudienceFor(ev.EventType),
		SourceEventID: &eventID,
		Status:        models.CampaignStatusCreated,
	}
	if err := p.repo.CreateCampaign(ctx, campaign); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}

	if err := p.dispatcher.Dispatch(ctx, campaign); err != nil {
		return fmt.Errorf("dispatch campaign %s: %w", campaign.ID, err)
	}

	if err := p.repo.MarkCampaignDispatched(ctx, campaign.ID); err != nil {
		log.Warnf("[NotifyQueue] Campaign %s dispatched but status update failed: %v", campaign.ID, err)
	}
	return nil
}
