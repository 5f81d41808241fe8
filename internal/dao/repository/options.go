package repository

import (
	"time"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ------------------- UpdateOptions -------------------

// UpdateOptions is an exported struct that holds the fields for a MongoDB update operation.
// It is used with the Functional Options pattern.
type UpdateOptions struct {
	SetFields bson.M
	IncFields bson.M
}

// NewUpdateOptions creates a new instance of UpdateOptions.
func NewUpdateOptions() *UpdateOptions {
	return &UpdateOptions{
		SetFields: bson.M{},
		IncFields: bson.M{},
	}
}

// UpdateOption defines a function that can modify the UpdateOptions.
type UpdateOption func(*UpdateOptions)

// BuildUpdate turns the options into an update document and always bumps updated_at.
func BuildUpdate(now time.Time, opts ...UpdateOption) bson.M {
	o := NewUpdateOptions()
	for _, opt := range opts {
		opt(o)
	}
	if _, ok := o.SetFields[fields.FieldUpdatedAt]; !ok {
		o.SetFields[fields.FieldUpdatedAt] = now
	}
	update := bson.M{"$set": o.SetFields}
	if len(o.IncFields) > 0 {
		update["$inc"] = o.IncFields
	}
	return update
}

// WithStatus is an option to update the status field.
func WithStatus(status string) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldStatus] = status
	}
}

// WithBookingCard attaches the times card a booking was upgraded to.
func WithBookingCard(card primitive.ObjectID) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldBookingCard] = card
	}
}

// WithStatusWas records (or clears, with "") the status a cancellation request started from.
func WithStatusWas(status string) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldBookingStatusWas] = status
	}
}

func WithPrice(price money.Amount) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldBookingPrice] = price
	}
}

func WithInventoryHeld(held bool) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldBookingInventoryHeld] = held
	}
}

func WithCheckInAt(t time.Time) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldBookingCheckInAt] = t
	}
}

func WithCheckOutAt(t time.Time) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldBookingCheckOutAt] = t
	}
}

// WithCardStart sets the activation window of a card.
func WithCardStart(start time.Time) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldCardStart] = start
	}
}

// WithUpdatedAt is an option to update the updated_at field.
func WithUpdatedAt(t time.Time) UpdateOption {
	return func(o *UpdateOptions) {
		o.SetFields[fields.FieldUpdatedAt] = t
	}
}
