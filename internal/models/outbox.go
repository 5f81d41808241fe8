package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OutboxStatus tracks a domain event on its way to the broker.
// pending → processing → processed, or back to pending on a failed publish until
// the retry budget turns it into dead_letter.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusDeadLetter OutboxStatus = "dead_letter"
)

// OutboxMessage is written in the same transaction as the booking or card change it announces.
type OutboxMessage struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`
	// MessageID travels with the published message so consumers can drop redeliveries.
	MessageID   string             `bson:"message_id"`
	Topic       string             `bson:"topic"`
	AggregateID primitive.ObjectID `bson:"aggregate_id"` // booking or card id
	Payload     string             `bson:"payload"`
	Status      OutboxStatus       `bson:"status"`
	Retries     int                `bson:"retries"`
	ClaimID     primitive.ObjectID `bson:"claim_id,omitempty"`
	Error       string             `bson:"error,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   *time.Time         `bson:"updated_at,omitempty"`
	ProcessedAt *time.Time         `bson:"processed_at,omitempty"`
}
