package dto

import (
	"testing"

	"github.com/lltxwdk/minimars-server/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidate_CreateBookingRequest(t *testing.T) {
	card := primitive.NewObjectID().Hex()
	valid := func() CreateBookingRequest {
		return CreateBookingRequest{Type: "play", Date: "2030-06-03", CheckInTime: "10:00:00", KidsCount: 1, Gateway: "wechatpay"}
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateBookingRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*CreateBookingRequest) {}},
		{name: "unknown type", mutate: func(r *CreateBookingRequest) { r.Type = "spa" }, wantErr: "Type failed on oneof"},
		{name: "bad date", mutate: func(r *CreateBookingRequest) { r.Date = "03/06/2030" }, wantErr: "Date failed on booking_date"},
		{name: "bad clock", mutate: func(r *CreateBookingRequest) { r.CheckInTime = "25:00" }, wantErr: "CheckInTime failed on clock"},
		{name: "bad gateway", mutate: func(r *CreateBookingRequest) { r.Gateway = "paypal" }, wantErr: "Gateway failed on gateway"},
		{name: "bad card id", mutate: func(r *CreateBookingRequest) { r.Card = "xyz" }, wantErr: "Card failed on objectid"},
		{name: "event without event", mutate: func(r *CreateBookingRequest) { r.Type = "event" }, wantErr: "Event failed on required_for_event"},
		{name: "gift without quantity", mutate: func(r *CreateBookingRequest) {
			r.Type = "gift"
			r.Gift = primitive.NewObjectID().Hex()
		}, wantErr: "Quantity failed on required_for_gift"},
		{name: "card and coupon", mutate: func(r *CreateBookingRequest) {
			r.Card = card
			r.Coupon = primitive.NewObjectID().Hex()
		}, wantErr: "Coupon failed on excluded_with_card"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := Validate(&r)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateBookingRequest_ToInput(t *testing.T) {
	card := primitive.NewObjectID()
	r := &CreateBookingRequest{Type: "play", Date: "2030-06-03", KidsCount: 2, Card: card.Hex(), Gateway: "balance", UseBalance: true}

	in, err := r.ToInput()
	require.NoError(t, err)
	assert.Equal(t, constants.BookingTypePlay, in.Type)
	assert.Equal(t, constants.GatewayBalance, in.Gateway)
	require.NotNil(t, in.Card)
	assert.Equal(t, card, *in.Card)
	assert.Nil(t, in.Coupon)
	assert.Nil(t, in.Customer)

	r.Store = "not-an-id"
	_, err = r.ToInput()
	assert.ErrorContains(t, err, "invalid store")
}

func TestValidate_ReviewAndPurchase(t *testing.T) {
	assert.ErrorIs(t, Validate(&ReviewCancelRequest{}), ErrInvalidRequest)
	no := false
	assert.NoError(t, Validate(&ReviewCancelRequest{Approve: &no}))

	assert.NoError(t, Validate(&PurchaseCardRequest{Slug: "gold", Gateway: "cash"}))
	assert.ErrorIs(t, Validate(&PurchaseCardRequest{Slug: "gold"}), ErrInvalidRequest)

	assert.NoError(t, Validate(&BookingListQuery{Status: []string{"booked", "pending_refund"}}))
	assert.ErrorIs(t, Validate(&BookingListQuery{Status: []string{"unknown"}}), ErrInvalidRequest)
}
