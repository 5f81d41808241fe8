package constants

// EventTopic defines the outbox topics published by the settlement engine.
// Using a dedicated type enhances type safety.
type EventTopic string

const (
	TopicBookingPaid     EventTopic = "booking.paid"
	TopicBookingCanceled EventTopic = "booking.canceled"
	TopicRefundPending   EventTopic = "refund.pending"
	TopicCardActivated   EventTopic = "card.activated"
)

// String returns the string representation of the EventTopic.
func (t EventTopic) String() string {
	return string(t)
}

// AuditAction names staff actions written to the audit log.
type AuditAction string

const (
	AuditCheckIn       AuditAction = "booking.check_in"
	AuditCheckout      AuditAction = "booking.checkout"
	AuditCancel        AuditAction = "booking.cancel"
	AuditCancelRequest AuditAction = "booking.cancel_request"
	AuditCancelReview  AuditAction = "booking.cancel_review"
	AuditDelete        AuditAction = "booking.delete"
	AuditRefundRetry   AuditAction = "booking.refund_retry"
	AuditUpgrade       AuditAction = "booking.upgrade"
)

// Operator roles carried in the access token.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleReviewer = "reviewer"
)
