package constants

// PaymentGateway identifies how a payment is settled.
type PaymentGateway string

const (
	GatewayBalance   PaymentGateway = "balance"
	GatewayPoints    PaymentGateway = "points"
	GatewayCard      PaymentGateway = "card"
	GatewayCoupon    PaymentGateway = "coupon"
	GatewayScan      PaymentGateway = "scan"
	GatewayPos       PaymentGateway = "pos"
	GatewayCash      PaymentGateway = "cash"
	GatewayWechatPay PaymentGateway = "wechatpay"
	GatewayOmise     PaymentGateway = "omise"
	GatewayAlipay    PaymentGateway = "alipay"
	GatewayUnionPay  PaymentGateway = "unionpay"
)

func (g PaymentGateway) String() string {
	return string(g)
}

// IsInstrument reports whether the gateway draws on a stored customer instrument.
func (g PaymentGateway) IsInstrument() bool {
	return g == GatewayBalance || g == GatewayCard || g == GatewayPoints
}

// IsAsync reports whether confirmation arrives through a provider callback.
func (g PaymentGateway) IsAsync() bool {
	return g == GatewayWechatPay || g == GatewayOmise
}

// SettlesOnSite reports gateways collected at the counter that settle immediately.
func (g PaymentGateway) SettlesOnSite() bool {
	switch g {
	case GatewayCoupon, GatewayScan, GatewayPos, GatewayCash:
		return true
	}
	return false
}

// AttachKind is the kind of document a payment pays for.
type AttachKind string

const (
	AttachBooking AttachKind = "booking"
	AttachCard    AttachKind = "card"
)

// Scene groups payments for reporting.
type Scene string

const (
	ScenePlay    Scene = "play"
	SceneParty   Scene = "party"
	SceneEvent   Scene = "event"
	SceneGift    Scene = "gift"
	SceneFood    Scene = "food"
	SceneCard    Scene = "card"
	SceneBalance Scene = "balance"
)

// SceneOf maps a booking type to its reporting scene.
func SceneOf(t BookingType) Scene {
	switch t {
	case BookingTypeParty:
		return SceneParty
	case BookingTypeEvent:
		return SceneEvent
	case BookingTypeGift:
		return SceneGift
	case BookingTypeFood:
		return SceneFood
	default:
		return ScenePlay
	}
}
