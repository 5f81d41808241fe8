package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/logic"
	"github.com/lltxwdk/minimars-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultRetryDelay = 30 * time.Second

// RefundRetrier is implemented by *logic.BookingLogic.
type RefundRetrier interface {
	RetryRefund(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error
}

// RefundRetryHandler re-requests refunds that a provider rejected with a transient error.
type RefundRetryHandler struct {
	bookings   RefundRetrier
	logger     *zap.Logger
	cfg        *conf.RabbitMQConfig
	retryDelay time.Duration
}

func NewRefundRetryHandler(bookings RefundRetrier, logger *zap.Logger, cfg *conf.RabbitMQConfig) *RefundRetryHandler {
	return &RefundRetryHandler{
		bookings:   bookings,
		logger:     logger.Named("RefundRetryHandler"),
		cfg:        cfg,
		retryDelay: defaultRetryDelay,
	}
}

func (h *RefundRetryHandler) QueueName() string {
	return h.cfg.RefundRetryQueue
}

func (h *RefundRetryHandler) RoutingKey() string {
	return constants.TopicRefundPending.String()
}

// Handle processes one refund.pending event.
func (h *RefundRetryHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	// 1. Parse the message payload.
	var payload logic.BookingEvent
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		h.logger.Error("Failed to unmarshal message body", zap.Error(err), zap.ByteString("body", d.Body))
		return nil // Poison pill, ACK and remove.
	}

	bid, err := primitive.ObjectIDFromHex(payload.BookingID)
	if err != nil {
		h.logger.Error("Invalid BookingID format in message", zap.Error(err), zap.String("booking_id", payload.BookingID))
		return nil
	}

	// 2. The provider accepted the refund and will call back.
	if payload.Reason == "processing" {
		h.logger.Info("Refund is processing at the provider", zap.Stringer("bookingID", bid))
		return nil
	}

	// 3. Request the open reversals again.
	err = h.bookings.RetryRefund(ctx, bid, models.SystemOperator)
	if err == nil {
		h.logger.Info("Refund retried", zap.Stringer("bookingID", bid), zap.String("reason", payload.Reason))
		return nil
	}

	if e, ok := logic.AsError(err); ok && !e.Retryable() {
		h.logger.Error("Refund retry rejected, needs staff", zap.Error(err), zap.Stringer("bookingID", bid))
		return nil
	}

	// 供應商暫時失敗：等一下再重新排隊
	h.logger.Warn("Refund retry failed, will requeue", zap.Error(err), zap.Stringer("bookingID", bid))
	select {
	case <-ctx.Done():
	case <-time.After(h.retryDelay):
	}
	return err
}
