package worker

import (
	"context"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/mq"

	"go.uber.org/zap"
)

// OutboxProcessor periodically claims outbox messages and relays them to the broker.
type OutboxProcessor struct {
	outboxRepo repository.OutboxRepository
	publisher  mq.Publisher
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
}

func NewOutboxProcessor(outboxRepo repository.OutboxRepository, publisher mq.Publisher, logger *zap.Logger, cfg *conf.WorkerConfig) *OutboxProcessor {
	p := &OutboxProcessor{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger.Named("OutboxProcessor"),
		interval:   5 * time.Second,
		batchSize:  100,
	}
	if cfg != nil {
		p.interval = seconds(cfg.Outbox.IntervalSeconds, p.interval)
		if cfg.Outbox.BatchSize > 0 {
			p.batchSize = cfg.Outbox.BatchSize
		}
	}
	return p
}

// Start begins the polling loop. It respects the context for graceful shutdown.
func (p *OutboxProcessor) Start(ctx context.Context) {
	p.logger.Info("Outbox processor started", zap.Duration("interval", p.interval), zap.Int("batchSize", p.batchSize))
	tick(ctx, p.interval, p.logger, func(ctx context.Context) { p.ProcessEvents(ctx) })
}

// ProcessEvents claims one batch and publishes it. It returns how many were published.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) int {
	// 1. Claim a batch of pending events.
	claimed, err := p.outboxRepo.ClaimAndFetchEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to claim outbox events", zap.Error(err))
		return 0
	}
	if len(claimed) > 0 {
		p.logger.Info("Claimed events for processing", zap.Int("count", len(claimed)))
	}

	published := 0
	for _, event := range claimed {
		// 2. Publish with the outbox message id so consumers can drop redeliveries.
		err := p.publisher.Publish(ctx, &mq.Message{ID: event.MessageID, Topic: event.Topic, Body: []byte(event.Payload)})
		if err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("event_id", event.ID.Hex()),
				zap.String("topic", event.Topic),
				zap.Error(err),
			)
			if err := p.outboxRepo.IncrementRetry(ctx, event.ID, err.Error()); err != nil {
				p.logger.Error("Failed to increment retry for event", zap.String("event_id", event.ID.Hex()), zap.Error(err))
			}
			continue
		}

		// 3. Mark the event as processed.
		if err := p.outboxRepo.MarkAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error("Failed to mark event as processed",
				zap.String("event_id", event.ID.Hex()),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published
}

var _ Worker = (*OutboxProcessor)(nil)
