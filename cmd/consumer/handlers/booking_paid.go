package handlers

import (
	"context"
	"encoding/json"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/logic"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// BookingPaidHandler records paid bookings for downstream consumers.
type BookingPaidHandler struct {
	logger *zap.Logger
	cfg    *conf.RabbitMQConfig
}

func NewBookingPaidHandler(logger *zap.Logger, cfg *conf.RabbitMQConfig) *BookingPaidHandler {
	return &BookingPaidHandler{logger: logger.Named("BookingPaidHandler"), cfg: cfg}
}

func (h *BookingPaidHandler) QueueName() string {
	return h.cfg.BookingPaidQueue
}

func (h *BookingPaidHandler) RoutingKey() string {
	return constants.TopicBookingPaid.String()
}

func (h *BookingPaidHandler) Handle(_ context.Context, d amqp.Delivery) error {
	var payload logic.BookingEvent
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		h.logger.Error("Failed to unmarshal message body", zap.Error(err), zap.ByteString("body", d.Body))
		return nil
	}
	h.logger.Info("Booking paid",
		zap.String("messageID", d.MessageId),
		zap.String("bookingID", payload.BookingID),
		zap.String("customerID", payload.CustomerID),
		zap.String("type", payload.Type),
		zap.String("price", payload.Price.String()),
	)
	return nil
}
