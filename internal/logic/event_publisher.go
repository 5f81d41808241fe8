package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingEvent is the body of booking.* and refund.pending messages.
type BookingEvent struct {
	BookingID  string       `json:"booking_id"`
	CustomerID string       `json:"customer_id"`
	Type       string       `json:"type"`
	Status     string       `json:"status"`
	Price      money.Amount `json:"price"`
	Reason     string       `json:"reason,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventPublisher creates outbox messages for booking lifecycle events.
// It writes with the caller's context so the message commits with the state change.
type EventPublisher struct {
	outboxRepo repository.OutboxRepository
}

func NewEventPublisher(outboxRepo repository.OutboxRepository) *EventPublisher {
	return &EventPublisher{outboxRepo: outboxRepo}
}

func (p *EventPublisher) PublishBookingEvent(ctx context.Context, topic constants.EventTopic, booking *models.Booking, reason string) error {
	payload := BookingEvent{
		BookingID:  booking.ID.Hex(),
		CustomerID: booking.Customer.Hex(),
		Type:       booking.Type.String(),
		Status:     booking.Status,
		Price:      booking.Price,
		Reason:     reason,
		OccurredAt: time.Now(),
	}
	return p.publish(ctx, topic, booking.ID, payload)
}

func (p *EventPublisher) publish(ctx context.Context, topic constants.EventTopic, aggregateID primitive.ObjectID, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	outboxMsg := &models.OutboxMessage{
		ID:          primitive.NewObjectID(),
		MessageID:   uuid.NewString(),
		Topic:       topic.String(),
		AggregateID: aggregateID,
		Payload:     string(payloadBytes),
		Status:      models.OutboxStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := p.outboxRepo.Create(ctx, outboxMsg); err != nil {
		return fmt.Errorf("failed to create %s outbox message: %w", topic, err)
	}
	return nil
}

// CardEvent is the body of card.* messages.
type CardEvent struct {
	CardID     string       `json:"card_id"`
	CustomerID string       `json:"customer_id"`
	Slug       string       `json:"slug"`
	Type       string       `json:"type"`
	Status     string       `json:"status"`
	Balance    money.Amount `json:"balance"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func (p *EventPublisher) PublishCardEvent(ctx context.Context, topic constants.EventTopic, card *models.Card) error {
	payload := CardEvent{
		CardID:     card.ID.Hex(),
		CustomerID: card.Customer.Hex(),
		Slug:       card.Slug,
		Type:       card.Type.String(),
		Status:     card.Status.String(),
		Balance:    card.Balance,
		OccurredAt: time.Now(),
	}
	return p.publish(ctx, topic, card.ID, payload)
}
