package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
	"github.com/lltxwdk/minimars-server/pkg/pagination"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConditionNotMet is returned when a conditional update matched no document.
	ErrConditionNotMet = errors.New("update condition not met")
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) (primitive.ObjectID, error)
	GetBookingByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id primitive.ObjectID) error
	AppendPayment(ctx context.Context, bookingID, paymentID primitive.ObjectID) error
	UpdateBooking(ctx context.Context, id primitive.ObjectID, opts ...UpdateOption) error
	// TransitionStatus applies opts only while the booking is in one of the from statuses.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []string, opts ...UpdateOption) error
	SumKidsOnCard(ctx context.Context, params *CardQuotaParams) (int, error)
	SumGiftQuantity(ctx context.Context, customerID, giftID primitive.ObjectID, statuses []string) (int, error)
	ListBookings(ctx context.Context, filter *BookingFilter, page *pagination.PageRequest) ([]*models.Booking, int64, error)
	FindStaleBookings(ctx context.Context, params *StaleBookingsParams) ([]*models.Booking, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) (primitive.ObjectID, error)
	GetPaymentByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	GetPaymentByOutTradeNo(ctx context.Context, outTradeNo string) (*models.Payment, error)
	GetPaymentByOutRefundNo(ctx context.Context, outRefundNo string) (*models.Payment, error)
	ListPaymentsByAttach(ctx context.Context, attach models.Attach) ([]*models.Payment, error)
	// MarkPaid flips paid from false to true. It returns false when the payment was already paid.
	MarkPaid(ctx context.Context, id primitive.ObjectID, params *MarkPaidParams) (bool, error)
	UpdateGatewayData(ctx context.Context, id primitive.ObjectID, data models.GatewayData) error
	DeleteUnpaidByAttach(ctx context.Context, attach models.Attach) (int64, error)
	SumPaidAmount(ctx context.Context, customerID primitive.ObjectID, gateway constants.PaymentGateway) (money.Amount, error)
}

type CustomerRepository interface {
	GetCustomerByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error)
	// DebitBalance decrements both sub-balances only if each covers its part.
	DebitBalance(ctx context.Context, id primitive.ObjectID, deposit, reward money.Amount) error
	CreditBalance(ctx context.Context, id primitive.ObjectID, deposit, reward money.Amount) error
	DebitPoints(ctx context.Context, id primitive.ObjectID, points int64) error
	CreditPoints(ctx context.Context, id primitive.ObjectID, points int64) error
	AddTag(ctx context.Context, id primitive.ObjectID, tag string) error
	ListCustomers(ctx context.Context, afterID primitive.ObjectID, limit int) ([]*models.Customer, error)
}

type CardRepository interface {
	CreateCard(ctx context.Context, card *models.Card) (primitive.ObjectID, error)
	GetCardByID(ctx context.Context, id primitive.ObjectID) (*models.Card, error)
	// ConsumeTimes decrements times_left on an activated card holding at least times.
	ConsumeTimes(ctx context.Context, id primitive.ObjectID, times int) error
	RestoreTimes(ctx context.Context, id primitive.ObjectID, times int) error
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []constants.CardStatus, opts ...UpdateOption) error
	UpdateStatusByRewardBooking(ctx context.Context, bookingID primitive.ObjectID, from []constants.CardStatus, to constants.CardStatus) (int64, error)
	AppendPayment(ctx context.Context, cardID, paymentID primitive.ObjectID) error
	CancelPendingBefore(ctx context.Context, before time.Time) (int64, error)
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
	SumActivatedBalance(ctx context.Context, customerID primitive.ObjectID) (money.Amount, error)
}

type CardTypeRepository interface {
	GetCardTypeBySlug(ctx context.Context, slug string) (*models.CardType, error)
}

type CouponRepository interface {
	GetCouponByID(ctx context.Context, id primitive.ObjectID) (*models.Coupon, error)
}

type EventRepository interface {
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	// AdjustKidsCountLeft adds delta; a negative delta never drives the count below zero.
	AdjustKidsCountLeft(ctx context.Context, id primitive.ObjectID, delta int) error
}

type GiftRepository interface {
	GetGiftByID(ctx context.Context, id primitive.ObjectID) (*models.Gift, error)
	AdjustQuantity(ctx context.Context, id primitive.ObjectID, delta int) error
}

type StoreRepository interface {
	ListStores(ctx context.Context) ([]*models.Store, error)
}

type SettingsRepository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	// EnsureSettings inserts defaults when no settings document exists.
	EnsureSettings(ctx context.Context, defaults *models.Settings) error
}

type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	// ListByBooking returns the entries of one booking, oldest first.
	ListByBooking(ctx context.Context, bookingID primitive.ObjectID) ([]*models.AuditLog, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, message *models.OutboxMessage) error
	ClaimAndFetchEvents(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	MarkAsProcessed(ctx context.Context, id primitive.ObjectID) error
	IncrementRetry(ctx context.Context, id primitive.ObjectID, errorMessage string) error
}
