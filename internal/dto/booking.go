// Package dto holds the JSON request bodies of the HTTP API and their validation.
package dto

import (
	"fmt"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/logic"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateBookingRequest is the body of POST /bookings and POST /bookings/price.
type CreateBookingRequest struct {
	Type        string        `json:"type" validate:"required,oneof=play party event gift food"`
	Customer    string        `json:"customer" validate:"omitempty,objectid"`
	Store       string        `json:"store" validate:"omitempty,objectid"`
	Date        string        `json:"date" validate:"required,booking_date"`
	CheckInTime string        `json:"check_in_time" validate:"omitempty,clock"`
	KidsCount   int           `json:"kids_count" validate:"gte=0,lte=50"`
	AdultsCount int           `json:"adults_count" validate:"gte=0,lte=100"`
	SocksCount  int           `json:"socks_count" validate:"gte=0,lte=100"`
	Quantity    int           `json:"quantity" validate:"gte=0,lte=100"`
	Card        string        `json:"card" validate:"omitempty,objectid"`
	Coupon      string        `json:"coupon" validate:"omitempty,objectid"`
	Event       string        `json:"event" validate:"omitempty,objectid"`
	Gift        string        `json:"gift" validate:"omitempty,objectid"`
	Gateway     string        `json:"payment_gateway" validate:"omitempty,gateway"`
	UseBalance  bool          `json:"use_balance"`
	Price       *money.Amount `json:"price"`
	Remarks     string        `json:"remarks" validate:"max=500"`
}

// ToInput converts the validated request into the booking logic input.
func (r *CreateBookingRequest) ToInput() (*logic.CreateBookingInput, error) {
	in := &logic.CreateBookingInput{
		Type:        constants.BookingType(r.Type),
		Date:        r.Date,
		CheckInTime: r.CheckInTime,
		KidsCount:   r.KidsCount,
		AdultsCount: r.AdultsCount,
		SocksCount:  r.SocksCount,
		Quantity:    r.Quantity,
		Gateway:     constants.PaymentGateway(r.Gateway),
		UseBalance:  r.UseBalance,
		Price:       r.Price,
		Remarks:     r.Remarks,
	}

	refs := []struct {
		name string
		hex  string
		dst  **primitive.ObjectID
	}{
		{"customer", r.Customer, &in.Customer},
		{"store", r.Store, &in.Store},
		{"card", r.Card, &in.Card},
		{"coupon", r.Coupon, &in.Coupon},
		{"event", r.Event, &in.Event},
		{"gift", r.Gift, &in.Gift},
	}
	for _, ref := range refs {
		id, err := optionalObjectID(ref.hex)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ref.name, err)
		}
		*ref.dst = id
	}
	return in, nil
}

// ReasonRequest is the body of cancel and cancel-request calls.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// ReviewCancelRequest is the body of a cancel review.
type ReviewCancelRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Reason  string `json:"reason" validate:"max=200"`
}

// UpgradeBookingRequest names the times card a paid ticket is switched to.
type UpgradeBookingRequest struct {
	Card string `json:"card" validate:"required,objectid"`
}

// PurchaseCardRequest is the body of POST /cards.
type PurchaseCardRequest struct {
	Slug     string `json:"slug" validate:"required,max=64"`
	Customer string `json:"customer" validate:"omitempty,objectid"`
	Gateway  string `json:"payment_gateway" validate:"required,gateway"`
}

func (r *PurchaseCardRequest) ToInput() (*logic.PurchaseCardInput, error) {
	customer, err := optionalObjectID(r.Customer)
	if err != nil {
		return nil, fmt.Errorf("invalid customer: %w", err)
	}
	return &logic.PurchaseCardInput{
		Slug:     r.Slug,
		Customer: customer,
		Gateway:  constants.PaymentGateway(r.Gateway),
	}, nil
}

// BookingListQuery is read from the query string of GET /bookings.
type BookingListQuery struct {
	Customer string   `validate:"omitempty,objectid"`
	Store    string   `validate:"omitempty,objectid"`
	Date     string   `validate:"omitempty,booking_date"`
	Status   []string `validate:"dive,booking_status"`
	Type     string   `validate:"omitempty,oneof=play party event gift food"`
}

func optionalObjectID(hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
