package fields

const (
	FieldObjectId  = "_id"
	FieldCreatedAt = "created_at"
	FieldCreatedBy = "created_by"
	FieldUpdatedAt = "updated_at"
	FieldStatus    = "status"
	FieldCustomer  = "customer"
	FieldStore     = "store"
	FieldDate      = "date"
	FieldPayments  = "payments"
	FieldKey       = "key"

	FieldAuditBooking = "booking"

	FieldBookingType          = "type"
	FieldBookingStatusWas     = "status_was"
	FieldBookingCard          = "card"
	FieldBookingGift          = "gift"
	FieldBookingKidsCount     = "kids_count"
	FieldBookingQuantity      = "quantity"
	FieldBookingPrice         = "price"
	FieldBookingInventoryHeld = "inventory_held"
	FieldBookingCheckInAt     = "check_in_at"
	FieldBookingCheckOutAt    = "check_out_at"

	FieldPaymentPaid          = "paid"
	FieldPaymentPaidAt        = "paid_at"
	FieldPaymentGateway       = "gateway"
	FieldPaymentGatewayData   = "gateway_data"
	FieldPaymentAttachKind    = "attach.kind"
	FieldPaymentAttachID      = "attach.id"
	FieldPaymentOriginal      = "original"
	FieldPaymentAmount        = "amount"
	FieldPaymentAmountDeposit = "amount_deposit"
	FieldPaymentAssets        = "assets"
	FieldPaymentDebt          = "debt"
	FieldPaymentRevenue       = "revenue"
	FieldPaymentOutTradeNo    = "gateway_data.out_trade_no"
	FieldPaymentOutRefundNo   = "gateway_data.out_refund_no"

	FieldCustomerBalanceDeposit = "balance_deposit"
	FieldCustomerBalanceReward  = "balance_reward"
	FieldCustomerPoints         = "points"
	FieldCustomerTags           = "tags"

	FieldCardTimesLeft           = "times_left"
	FieldCardType                = "type"
	FieldCardBalance             = "balance"
	FieldCardStart               = "start"
	FieldCardExpiresAt           = "expires_at"
	FieldCardRewardedFromBooking = "rewarded_from_booking"
	FieldCardSlug                = "slug"

	FieldEventKidsCountLeft = "kids_count_left"
	FieldGiftQuantity       = "quantity"
)
