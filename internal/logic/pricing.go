package logic

import (
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PricingInput is everything the calculator needs, already loaded.
type PricingInput struct {
	Type        constants.BookingType
	KidsCount   int
	AdultsCount int
	SocksCount  int
	Quantity    int

	Settings *models.Settings
	Store    *models.Store

	Card *models.Card
	// CouponID is set when the booking references a coupon; Coupon is nil if it could not be loaded.
	CouponID *primitive.ObjectID
	Coupon   *models.Coupon
	Event    *models.Event
	Gift     *models.Gift

	// StaffPrice is the price entered by staff for food and party bookings.
	StaffPrice *money.Amount
}

type PriceResult struct {
	Price         money.Amount
	PriceInPoints int64
	// Computed is false when the template the price depends on is missing.
	Computed bool
}

type unitPrices struct {
	kid               money.Amount
	extraParent       money.Amount
	sock              money.Amount
	freeParentsPerKid int
}

func resolveUnitPrices(settings *models.Settings, store *models.Store) unitPrices {
	u := unitPrices{}
	if settings != nil {
		u.kid = settings.KidFullDayPrice
		u.extraParent = settings.ExtraParentFullDayPrice
		u.sock = settings.SockPrice
		u.freeParentsPerKid = settings.FreeParentsPerKid
	}
	if store != nil {
		if store.KidFullDayPrice != nil {
			u.kid = *store.KidFullDayPrice
		}
		if store.ExtraParentFullDayPrice != nil {
			u.extraParent = *store.ExtraParentFullDayPrice
		}
		if store.FreeParentsPerKid != nil {
			u.freeParentsPerKid = *store.FreeParentsPerKid
		}
	}
	return u
}

// Price computes the money and points price of a booking. It has no side effects.
func Price(in *PricingInput) (*PriceResult, error) {
	switch in.Type {
	case constants.BookingTypePlay:
		return pricePlay(in)
	case constants.BookingTypeEvent:
		if in.Event == nil {
			return &PriceResult{}, nil
		}
		return &PriceResult{
			Price:         in.Event.Price.MulInt(in.KidsCount).Round2(),
			PriceInPoints: in.Event.PriceInPoints * int64(in.KidsCount),
			Computed:      true,
		}, nil
	case constants.BookingTypeGift:
		if in.Gift == nil {
			return &PriceResult{}, nil
		}
		return &PriceResult{
			Price:         in.Gift.Price.MulInt(in.Quantity).Round2(),
			PriceInPoints: in.Gift.PriceInPoints * int64(in.Quantity),
			Computed:      true,
		}, nil
	case constants.BookingTypeFood, constants.BookingTypeParty:
		if in.StaffPrice == nil {
			if in.Type == constants.BookingTypeFood {
				return nil, ErrMissingPrice
			}
			return &PriceResult{}, nil
		}
		if in.StaffPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
		return &PriceResult{Price: in.StaffPrice.Round2(), Computed: true}, nil
	default:
		return nil, ErrInvalidBookingType
	}
}

func pricePlay(in *PricingInput) (*PriceResult, error) {
	if in.CouponID != nil && in.Coupon == nil {
		return nil, ErrCouponNotFound
	}
	u := resolveUnitPrices(in.Settings, in.Store)

	kids, adults := in.KidsCount, in.AdultsCount
	kidsToPay := kids
	extraAdults := max(0, adults-kids*u.freeParentsPerKid)
	price := money.Zero

	switch {
	case in.Coupon != nil:
		kidsToPay = 0
		extraAdults = max(0, adults-kids*in.Coupon.FreeParentsPerKid)
		if in.Coupon.Price.IsPositive() {
			price = price.Add(in.Coupon.Price.MulInt(kids))
		}
	case in.Card != nil && in.Card.Type != constants.CardTypeBalance:
		kidsToPay = 0
		if in.Card.MaxKids > 0 {
			kidsToPay = max(0, kids-in.Card.MaxKids)
		}
		covered := kids - kidsToPay
		extraAdults = max(0, adults-covered*in.Card.FreeParentsPerKid-kidsToPay*u.freeParentsPerKid)
	}

	price = price.
		Add(u.extraParent.MulInt(extraAdults)).
		Add(u.kid.MulInt(kidsToPay)).
		Add(u.sock.MulInt(in.SocksCount))

	return &PriceResult{Price: price.Round2(), Computed: true}, nil
}
