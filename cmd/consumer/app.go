package main

import (
	"context"

	"github.com/lltxwdk/minimars-server/cmd/consumer/handlers"
	"github.com/lltxwdk/minimars-server/internal/mq/rabbitmq"
	"github.com/lltxwdk/minimars-server/internal/worker"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConsumerApp holds the components of the consumer application.
type ConsumerApp struct {
	consumer *rabbitmq.Consumer
	workers  []worker.Worker
	logger   *zap.Logger
}

// NewConsumerApp creates a new consumer application and registers all handlers.
func NewConsumerApp(consumer *rabbitmq.Consumer, workers []worker.Worker, logger *zap.Logger, handlers []handlers.MessageHandler) *ConsumerApp {
	for _, h := range handlers {
		logger.Info("Registering handler", zap.String("queue", h.QueueName()), zap.String("routingKey", h.RoutingKey()))
		consumer.RegisterHandler(h.QueueName(), h.RoutingKey(), h.Handle)
	}

	return &ConsumerApp{
		consumer: consumer,
		workers:  workers,
		logger:   logger,
	}
}

// Run starts all background workers and blocks until the context is cancelled or a worker fails.
func (a *ConsumerApp) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting RabbitMQ consumer")
		return a.consumer.Start(gCtx)
	})

	// 排程任務跑到 context 取消為止
	for _, w := range a.workers {
		g.Go(func() error {
			w.Start(gCtx)
			return nil
		})
	}

	return g.Wait()
}
