package models

import (
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayout is the layout of Booking.Date and the holiday calendar.
const DateLayout = "2006-01-02"

type Booking struct {
	ID            primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Type          constants.BookingType `bson:"type" json:"type"`
	Customer      primitive.ObjectID    `bson:"customer" json:"customer"`
	Store         *primitive.ObjectID   `bson:"store,omitempty" json:"store,omitempty"`
	Date          string                `bson:"date" json:"date"`
	CheckInTime   string                `bson:"check_in_time" json:"check_in_time"`
	KidsCount     int                   `bson:"kids_count" json:"kids_count"`
	AdultsCount   int                   `bson:"adults_count" json:"adults_count"`
	SocksCount    int                   `bson:"socks_count" json:"socks_count"`
	Quantity      int                   `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Status        string                `bson:"status" json:"status"`
	StatusWas     string                `bson:"status_was,omitempty" json:"status_was,omitempty"` // 取消待審核時的原狀態
	Price         money.Amount          `bson:"price" json:"price"`
	PriceInPoints int64                 `bson:"price_in_points,omitempty" json:"price_in_points,omitempty"`
	Card          *primitive.ObjectID   `bson:"card,omitempty" json:"card,omitempty"`
	Coupon        *primitive.ObjectID   `bson:"coupon,omitempty" json:"coupon,omitempty"`
	Event         *primitive.ObjectID   `bson:"event,omitempty" json:"event,omitempty"`
	Gift          *primitive.ObjectID   `bson:"gift,omitempty" json:"gift,omitempty"`
	Payments      []primitive.ObjectID  `bson:"payments" json:"payments"`
	Remarks       string                `bson:"remarks,omitempty" json:"remarks,omitempty"`
	AtReception   bool                  `bson:"at_reception" json:"at_reception"`
	InventoryHeld bool                  `bson:"inventory_held" json:"-"`
	CheckInAt     *time.Time            `bson:"check_in_at,omitempty" json:"check_in_at,omitempty"`
	CheckOutAt    *time.Time            `bson:"check_out_at,omitempty" json:"check_out_at,omitempty"`
	CreatedBy     primitive.ObjectID    `bson:"created_by,omitempty" json:"-"`
	CreatedAt     time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time             `bson:"updated_at" json:"updated_at"`
}

func (b *Booking) StatusValue() constants.BookingStatus {
	return constants.ParseBookingStatus(b.Status)
}

// IsToday reports whether the booking date is the current local date.
func (b *Booking) IsToday(now time.Time) bool {
	return b.Date == now.Format(DateLayout)
}

// Units is the count the booking's price scales with.
func (b *Booking) Units() int {
	if b.Type == constants.BookingTypeGift {
		return b.Quantity
	}
	return b.KidsCount
}
