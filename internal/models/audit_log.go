package models

import (
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditLog records one staff or system action on a booking.
type AuditLog struct {
	ID        primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Operator  Operator              `bson:"operator" json:"operator"`
	Action    constants.AuditAction `bson:"action" json:"action"`
	BookingID primitive.ObjectID    `bson:"booking" json:"booking"`
	From      string                `bson:"from,omitempty" json:"from,omitempty"`
	To        string                `bson:"to,omitempty" json:"to,omitempty"`
	Reason    string                `bson:"reason,omitempty" json:"reason,omitempty"`
	// Snapshot keeps a deleted booking, since the document itself is gone.
	Snapshot        *Booking  `bson:"snapshot,omitempty" json:"snapshot,omitempty"`
	PaymentsRemoved int64     `bson:"payments_removed,omitempty" json:"payments_removed,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}
