package logic

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so callers can tell "fix and resubmit" from "try again later".
type ErrorKind string

const (
	KindPricing                ErrorKind = "pricing_error"
	KindInstrumentRejected     ErrorKind = "instrument_rejected"
	KindInsufficientFunds      ErrorKind = "insufficient_funds"
	KindGatewayData            ErrorKind = "gateway_data_error"
	KindUnsupportedGateway     ErrorKind = "unsupported_gateway"
	KindExternalProvider       ErrorKind = "external_provider_error"
	KindInvalidStateTransition ErrorKind = "invalid_state_transition"
)

// Composer stages reported on Error.Stage.
const (
	StageCard    = "card"
	StageCoupon  = "coupon"
	StageBalance = "balance"
	StagePoints  = "points"
	StageGateway = "gateway"
)

// Error is a domain error with a stable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Stage   string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Code)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage %s)", msg, e.Stage)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable is true only for provider-side failures.
func (e *Error) Retryable() bool {
	return e.Kind == KindExternalProvider
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// WithStage returns a copy tagged with the composer stage.
func (e *Error) WithStage(stage string) *Error {
	c := e.clone()
	c.Stage = stage
	return c
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	c := e.clone()
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// Wrap returns a copy that keeps cause in the chain.
func (e *Error) Wrap(cause error) *Error {
	c := e.clone()
	c.Err = cause
	if c.Message == "" && cause != nil {
		c.Message = cause.Error()
	}
	return c
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// AsError extracts the domain error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// withStage tags a domain error with stage and passes other errors through.
func withStage(err error, stage string) error {
	if e, ok := AsError(err); ok && e.Stage == "" {
		return e.WithStage(stage)
	}
	return err
}

var (
	// pricing
	ErrMissingPrice        = newError(KindPricing, "missing_price", "price is required")
	ErrInvalidPrice        = newError(KindPricing, "invalid_price", "price must not be negative")
	ErrCouponNotFound      = newError(KindPricing, "coupon_not_found", "coupon not found")
	ErrTemplateNotFound    = newError(KindPricing, "template_not_found", "event or gift not found")
	ErrInvalidBookingType  = newError(KindPricing, "invalid_booking_type", "unknown booking type")
	ErrMissingBookingStore = newError(KindPricing, "missing_booking_store", "play booking needs a store")
	ErrEmptyHeadcount      = newError(KindPricing, "empty_headcount", "kids and adults cannot both be 0")

	// card
	ErrCardOwnerMismatch = newError(KindInstrumentRejected, "card_owner_mismatch", "card belongs to another customer")
	ErrCardNotActivated  = newError(KindInstrumentRejected, "card_not_activated", "card is not activated")
	ErrCardNotStarted    = newError(KindInstrumentRejected, "card_not_started", "card is not yet valid")
	ErrCardExpired       = newError(KindInstrumentRejected, "card_expired", "card has expired")
	ErrStoreNotAllowed   = newError(KindInstrumentRejected, "store_not_allowed", "not valid at this store")
	ErrKidsBelowMinimum  = newError(KindInstrumentRejected, "kids_below_minimum", "too few kids for this card")
	ErrCardOnDaysOnly    = newError(KindInstrumentRejected, "card_on_days_only", "card is valid on working days only")
	ErrCardOffDaysOnly   = newError(KindInstrumentRejected, "card_off_days_only", "card is valid on weekends and holidays only")
	ErrCardQuotaExceeded = newError(KindInstrumentRejected, "card_quota_exceeded", "card kids quota for the day is used up")
	ErrInvalidCard       = newError(KindInstrumentRejected, "invalid_card", "card is not usable")
	ErrCardNotForSale    = newError(KindInstrumentRejected, "card_not_for_sale", "card type is not open for sale")
	ErrUpgradeNotAllowed = newError(KindInstrumentRejected, "upgrade_not_allowed", "only a paid play ticket can be upgraded to a times card")

	// coupon
	ErrCouponDisabled      = newError(KindInstrumentRejected, "coupon_disabled", "coupon is disabled")
	ErrCouponNotStarted    = newError(KindInstrumentRejected, "coupon_not_started", "coupon is not yet valid")
	ErrCouponExpired       = newError(KindInstrumentRejected, "coupon_expired", "coupon has expired")
	ErrCouponKidsCountSize = newError(KindInstrumentRejected, "coupon_kids_count_not_match", "kids count does not match the coupon")

	// event and gift
	ErrEventKidsNotEnough = newError(KindInstrumentRejected, "event_kids_count_not_enough", "event has not enough places left")
	ErrEventDatePassed    = newError(KindInstrumentRejected, "event_date_passed", "event date has passed")
	ErrGiftOutOfStock     = newError(KindInstrumentRejected, "gift_out_of_stock", "gift is out of stock")
	ErrGiftQuantityLimit  = newError(KindInstrumentRejected, "gift_quantity_limit", "gift redemption limit reached")

	// funds
	ErrInsufficientBalance   = newError(KindInsufficientFunds, "insufficient_balance", "balance is not enough")
	ErrInsufficientCardTimes = newError(KindInsufficientFunds, "insufficient_card_times", "card has not enough times left")
	ErrInsufficientPoints    = newError(KindInsufficientFunds, "insufficient_points", "points are not enough")

	// gateway data
	ErrInvalidCardPaymentData     = newError(KindGatewayData, "invalid_card_payment_gateway_data", "card payment needs booking, card and times")
	ErrNoCustomerOpenID           = newError(KindGatewayData, "no_customer_openid", "customer has no wechat openid")
	ErrPaymentNotFound            = newError(KindGatewayData, "payment_not_found", "payment not found for notification")
	ErrInvalidNotification        = newError(KindGatewayData, "invalid_notification", "provider notification could not be verified")
	ErrNotificationAmountMismatch = newError(KindGatewayData, "notification_amount_mismatch", "notified amount does not match the payment")

	// gateways
	ErrMissingGateway     = newError(KindUnsupportedGateway, "missing_gateway", "a payment gateway is required for the remaining amount")
	ErrUnsupportedGateway = newError(KindUnsupportedGateway, "unsupported_gateway", "payment gateway is not supported")

	// provider
	ErrMerchantBalanceInsufficient = newError(KindExternalProvider, "wechat_account_insufficient_balance", "merchant account balance is not enough to refund")
	ErrProviderRejected            = newError(KindExternalProvider, "provider_rejected", "payment provider rejected the request")
	ErrProviderUnavailable         = newError(KindExternalProvider, "provider_unavailable", "payment provider is unavailable")

	// state
	ErrInvalidStateTransition = newError(KindInvalidStateTransition, "invalid_state_transition", "booking status does not allow this operation")
	ErrCancelNotRequested     = newError(KindInvalidStateTransition, "cancel_not_requested", "booking has no pending cancel request")
)

// ErrPermissionDenied is returned when the operator's role may not perform an action.
var ErrPermissionDenied = errors.New("permission denied")
