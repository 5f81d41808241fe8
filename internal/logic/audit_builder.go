package logic

import (
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type auditOption func(*models.AuditLog)

func withReason(reason string) auditOption {
	return func(log *models.AuditLog) {
		log.Reason = reason
	}
}

// withSnapshot keeps the booking as it was before deletion.
func withSnapshot(b *models.Booking, paymentsRemoved int64) auditOption {
	return func(log *models.AuditLog) {
		snap := *b
		log.Snapshot = &snap
		log.PaymentsRemoved = paymentsRemoved
	}
}

// newBookingAudit builds the audit entry for a booking status change. A nil operator is the system.
func newBookingAudit(operator *models.Operator, action constants.AuditAction, bookingID primitive.ObjectID, from, to string, opts ...auditOption) *models.AuditLog {
	if operator == nil {
		operator = models.SystemOperator
	}
	log := &models.AuditLog{
		ID:        primitive.NewObjectID(),
		Operator:  *operator,
		Action:    action,
		BookingID: bookingID,
		From:      from,
		To:        to,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(log)
	}
	return log
}
