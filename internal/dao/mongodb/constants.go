package mongodb

const (
	CollectionBookings  = "bookings"
	CollectionPayments  = "payments"
	CollectionCustomers = "customers"
	CollectionCards     = "cards"
	CollectionCardTypes = "card_types"
	CollectionCoupons   = "coupons"
	CollectionEvents    = "events"
	CollectionGifts     = "gifts"
	CollectionStores    = "stores"
	CollectionConfigs   = "configs"
	CollectionOutbox    = "outbox"
	CollectionAuditLogs = "audit_logs"
)
