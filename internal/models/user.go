package models

import (
	"github.com/lltxwdk/minimars-server/internal/constants"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SystemOperator represents an operator for actions performed by sweepers and callbacks.
var SystemOperator = &Operator{
	UserID: primitive.NilObjectID,
	Name:   "System",
	Role:   constants.RoleReviewer,
}

// Operator is the authenticated caller of a booking operation.
type Operator struct {
	UserID primitive.ObjectID `json:"user_id" bson:"user_id"`
	Name   string             `json:"name" bson:"name"`
	Role   string             `json:"role" bson:"role"`
}

// IsStaff reports whether the operator works at a venue. Staff bookings are made at reception.
func (o *Operator) IsStaff() bool {
	return o != nil && (o.Role == constants.RoleStaff || o.Role == constants.RoleReviewer)
}

// CanReviewCancel reports whether the operator may approve or reject cancellations.
func (o *Operator) CanReviewCancel() bool {
	return o != nil && o.Role == constants.RoleReviewer
}
