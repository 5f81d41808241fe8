package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidRequest wraps every validation failure so handlers can map it to 400.
var ErrInvalidRequest = errors.New("invalid request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	_ = v.RegisterValidation("booking_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.TimeOnly, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("gateway", func(fl validator.FieldLevel) bool {
		switch constants.PaymentGateway(fl.Field().String()) {
		case constants.GatewayBalance, constants.GatewayPoints, constants.GatewayCard, constants.GatewayCoupon,
			constants.GatewayScan, constants.GatewayPos, constants.GatewayCash, constants.GatewayWechatPay,
			constants.GatewayOmise, constants.GatewayAlipay, constants.GatewayUnionPay:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return constants.ParseBookingStatus(fl.Field().String()) != constants.BookingStatusUnknown
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(CreateBookingRequest)
		switch constants.BookingType(r.Type) {
		case constants.BookingTypeEvent:
			if r.Event == "" {
				sl.ReportError(r.Event, "Event", "event", "required_for_event", "")
			}
		case constants.BookingTypeGift:
			if r.Gift == "" {
				sl.ReportError(r.Gift, "Gift", "gift", "required_for_gift", "")
			}
			if r.Quantity < 1 {
				sl.ReportError(r.Quantity, "Quantity", "quantity", "required_for_gift", "")
			}
		}
		if r.Card != "" && r.Coupon != "" {
			sl.ReportError(r.Coupon, "Coupon", "coupon", "excluded_with_card", "")
		}
	}, CreateBookingRequest{})

	return v
}

// Validate checks a request struct. The error lists every failed field and wraps ErrInvalidRequest.
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}
