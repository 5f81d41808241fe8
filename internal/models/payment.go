package models

import (
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Payment struct {
	ID                 primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	Customer           *primitive.ObjectID      `bson:"customer,omitempty" json:"customer,omitempty"`
	Store              *primitive.ObjectID      `bson:"store,omitempty" json:"store,omitempty"`
	Title              string                   `bson:"title" json:"title"`
	Amount             money.Amount             `bson:"amount" json:"amount"`
	AmountForceDeposit money.Amount             `bson:"amount_force_deposit" json:"amount_force_deposit"`
	AmountDeposit      money.Amount             `bson:"amount_deposit" json:"amount_deposit"`
	AmountInPoints     int64                    `bson:"amount_in_points,omitempty" json:"amount_in_points,omitempty"`
	Paid               bool                     `bson:"paid" json:"paid"`
	PaidAt             *time.Time               `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	Gateway            constants.PaymentGateway `bson:"gateway" json:"gateway"`
	GatewayData        GatewayData              `bson:"gateway_data" json:"gateway_data"`
	Attach             Attach                   `bson:"attach" json:"attach"`
	Original           *primitive.ObjectID      `bson:"original,omitempty" json:"original,omitempty"`
	Assets             money.Amount             `bson:"assets" json:"assets"`
	Debt               money.Amount             `bson:"debt" json:"debt"`
	Revenue            money.Amount             `bson:"revenue" json:"revenue"`
	Scene              constants.Scene          `bson:"scene" json:"scene"`
	CreatedAt          time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time                `bson:"updated_at" json:"updated_at"`
}

// IsReversal reports whether the payment reverses an earlier one.
func (p *Payment) IsReversal() bool {
	return p.Original != nil || p.Amount.IsNegative() || p.AmountInPoints < 0
}

// Attach is a typed reference to the document a payment pays for.
type Attach struct {
	Kind constants.AttachKind `bson:"kind" json:"kind"`
	ID   primitive.ObjectID   `bson:"id" json:"id"`
}

func BookingAttach(id primitive.ObjectID) Attach {
	return Attach{Kind: constants.AttachBooking, ID: id}
}

func CardAttach(id primitive.ObjectID) Attach {
	return Attach{Kind: constants.AttachCard, ID: id}
}

func (a Attach) String() string {
	return fmt.Sprintf("%s %s", a.Kind, a.ID.Hex())
}

// GatewayData is the per-gateway state of a payment.
type GatewayData struct {
	BookingID        *primitive.ObjectID `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	CardID           *primitive.ObjectID `bson:"card_id,omitempty" json:"card_id,omitempty"`
	Times            int                 `bson:"times,omitempty" json:"times,omitempty"`
	CardRefund       bool                `bson:"card_refund,omitempty" json:"card_refund,omitempty"`
	AtReception      bool                `bson:"at_reception,omitempty" json:"at_reception,omitempty"`
	OutTradeNo       string              `bson:"out_trade_no,omitempty" json:"out_trade_no,omitempty"`
	OutRefundNo      string              `bson:"out_refund_no,omitempty" json:"out_refund_no,omitempty"`
	ProviderOrderID  string              `bson:"provider_order_id,omitempty" json:"provider_order_id,omitempty"`
	ProviderRefundID string              `bson:"provider_refund_id,omitempty" json:"provider_refund_id,omitempty"`
	CodeURL          string              `bson:"code_url,omitempty" json:"code_url,omitempty"`
	PayArgs          map[string]string   `bson:"pay_args,omitempty" json:"pay_args,omitempty"`
	RefundStatus     string              `bson:"refund_status,omitempty" json:"refund_status,omitempty"`
}
