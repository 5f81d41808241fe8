package main

import (
	"github.com/lltxwdk/minimars-server/cmd/consumer/handlers"
	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/mq/rabbitmq"
	"github.com/lltxwdk/minimars-server/internal/worker"

	"go.uber.org/zap"
)

// provideHandlers collects all individual MessageHandlers into a slice.
func provideHandlers(refunds *handlers.RefundRetryHandler, paid *handlers.BookingPaidHandler) []handlers.MessageHandler {
	return []handlers.MessageHandler{
		refunds,
		paid,
	}
}

// provideWorkers 排程清理與對帳
func provideWorkers(bookings *worker.BookingSweeper, cards *worker.CardSweeper, balances *worker.BalanceVerifier) []worker.Worker {
	return []worker.Worker{bookings, cards, balances}
}

func provideConsumer(cfg *conf.RabbitMQConfig, logger *zap.Logger) (*rabbitmq.Consumer, func(), error) {
	c, err := rabbitmq.NewConsumer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
