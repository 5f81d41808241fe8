package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/db"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/lock"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
	"github.com/lltxwdk/minimars-server/pkg/pagination"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateBookingInput is a booking request after transport validation.
type CreateBookingInput struct {
	Type        constants.BookingType
	// Customer is only honored for staff operators; customers always book for themselves.
	Customer    *primitive.ObjectID
	Store       *primitive.ObjectID
	Date        string
	CheckInTime string
	KidsCount   int
	AdultsCount int
	SocksCount  int
	Quantity    int
	Card        *primitive.ObjectID
	Coupon      *primitive.ObjectID
	Event       *primitive.ObjectID
	Gift        *primitive.ObjectID
	Gateway     constants.PaymentGateway
	UseBalance  bool
	Price       *money.Amount
	Remarks     string
}

type CreateBookingResult struct {
	Booking  *models.Booking
	Payments []*models.Payment
	// Order is set when the booking waits on an external provider.
	Order *gateway.Order
}

// BookingLogic is the entry point for booking operations. It loads snapshots, prices,
// validates instruments and hands the owed total to the composer.
type BookingLogic struct {
	bookingRepo  repository.BookingRepository
	paymentRepo  repository.PaymentRepository
	customerRepo repository.CustomerRepository
	cardRepo     repository.CardRepository
	couponRepo   repository.CouponRepository
	eventRepo    repository.EventRepository
	giftRepo     repository.GiftRepository
	settingsRepo repository.SettingsRepository
	auditLogRepo repository.AuditLogRepository
	stores       *StoreDirectory
	resolver     *InstrumentResolver
	composer     *Composer
	states       *BookingStateMachine
	refunds      *RefundOrchestrator
	locker       lock.Locker
	txManager    db.TransactionManager
	lockTTL      time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewBookingLogic(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	customerRepo repository.CustomerRepository,
	cardRepo repository.CardRepository,
	couponRepo repository.CouponRepository,
	eventRepo repository.EventRepository,
	giftRepo repository.GiftRepository,
	settingsRepo repository.SettingsRepository,
	auditLogRepo repository.AuditLogRepository,
	stores *StoreDirectory,
	resolver *InstrumentResolver,
	composer *Composer,
	states *BookingStateMachine,
	refunds *RefundOrchestrator,
	locker lock.Locker,
	txManager db.TransactionManager,
	lockCfg *conf.LockConfig,
	logger *zap.Logger,
) *BookingLogic {
	l := &BookingLogic{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		cardRepo:     cardRepo,
		couponRepo:   couponRepo,
		eventRepo:    eventRepo,
		giftRepo:     giftRepo,
		settingsRepo: settingsRepo,
		auditLogRepo: auditLogRepo,
		stores:       stores,
		resolver:     resolver,
		composer:     composer,
		states:       states,
		refunds:      refunds,
		locker:       locker,
		txManager:    txManager,
		lockTTL:      10 * time.Second,
		logger:       logger.Named("BookingLogic"),
		now:          time.Now,
	}
	if lockCfg != nil && lockCfg.TTL() > 0 {
		l.lockTTL = lockCfg.TTL()
	}
	return l
}

// bookingSnapshot holds everything CreateBooking loaded before pricing.
type bookingSnapshot struct {
	settings *models.Settings
	store    *models.Store
	customer *models.Customer
	card     *models.Card
	coupon   *models.Coupon
	event    *models.Event
	gift     *models.Gift
}

func (l *BookingLogic) loadSnapshot(ctx context.Context, customerID primitive.ObjectID, in *CreateBookingInput) (*bookingSnapshot, error) {
	s := &bookingSnapshot{}
	var err error

	if s.settings, err = l.settingsRepo.GetSettings(ctx); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if in.Store != nil {
		if s.store, err = l.stores.Get(ctx, *in.Store); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}
	if s.customer, err = l.customerRepo.GetCustomerByID(ctx, customerID); err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	if in.Card != nil {
		if s.card, err = l.cardRepo.GetCardByID(ctx, *in.Card); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrInvalidCard.WithMessage("card %s not found", in.Card.Hex())
			}
			return nil, fmt.Errorf("failed to load card: %w", err)
		}
	}
	// 優惠券不存在時交給定價回報 coupon_not_found
	if in.Coupon != nil {
		if s.coupon, err = l.couponRepo.GetCouponByID(ctx, *in.Coupon); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load coupon: %w", err)
		}
	}
	if in.Event != nil {
		if s.event, err = l.eventRepo.GetEventByID(ctx, *in.Event); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load event: %w", err)
		}
	}
	if in.Gift != nil {
		if s.gift, err = l.giftRepo.GetGiftByID(ctx, *in.Gift); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load gift: %w", err)
		}
	}
	return s, nil
}

// CreateBooking prices and saves a pending booking, then composes and settles its payments.
// When composition fails nothing stays half paid: unpaid bookings are removed, paid parts are refunded.
func (l *BookingLogic) CreateBooking(ctx context.Context, in *CreateBookingInput, operator *models.Operator) (*CreateBookingResult, error) {
	if !in.Type.Valid() {
		return nil, ErrInvalidBookingType
	}
	if err := checkHeadcount(in); err != nil {
		return nil, err
	}
	atReception := operator.IsStaff()
	customerID := operator.UserID
	if atReception && in.Customer != nil {
		customerID = *in.Customer
	}

	// 1. Snapshots
	snap, err := l.loadSnapshot(ctx, customerID, in)
	if err != nil {
		return nil, err
	}
	now := l.now()

	// 2. Coupon, event and gift rules
	if snap.coupon != nil {
		if err := l.resolver.CheckCoupon(ctx, &CouponCheck{Coupon: snap.coupon, Store: in.Store, Date: in.Date, KidsCount: in.KidsCount}); err != nil {
			return nil, err
		}
	}
	if in.Type == constants.BookingTypeEvent && snap.event != nil {
		if err := l.resolver.CheckEvent(ctx, snap.event, in.KidsCount, now); err != nil {
			return nil, err
		}
	}
	if in.Type == constants.BookingTypeGift && snap.gift != nil {
		if err := l.resolver.CheckGift(ctx, snap.gift, customerID, in.Quantity); err != nil {
			return nil, err
		}
	}

	// 3. Card rules, quota check and booking save under the card/day lock
	if snap.card == nil {
		return l.priceAndCompose(ctx, in, snap, customerID, operator, atReception)
	}
	var res *CreateBookingResult
	err = lock.WithLock(ctx, l.locker, lock.CardDayKey(snap.card.ID, in.Date), l.lockTTL, func() error {
		err := l.resolver.CheckCard(ctx, &CardCheck{
			Card:      snap.card,
			Customer:  customerID,
			Store:     in.Store,
			Date:      in.Date,
			KidsCount: in.KidsCount,
			Calendar:  NewHolidayCalendar(snap.settings),
		})
		if err != nil {
			return err
		}
		res, err = l.priceAndCompose(ctx, in, snap, customerID, operator, atReception)
		return err
	})
	return res, err
}

// checkHeadcount rejects play bookings with no store or nobody coming.
func checkHeadcount(in *CreateBookingInput) error {
	if in.Type != constants.BookingTypePlay {
		return nil
	}
	if in.Store == nil {
		return ErrMissingBookingStore
	}
	if in.KidsCount <= 0 && in.AdultsCount <= 0 {
		return ErrEmptyHeadcount
	}
	return nil
}

func (l *BookingLogic) priceAndCompose(ctx context.Context, in *CreateBookingInput, snap *bookingSnapshot,
	customerID primitive.ObjectID, operator *models.Operator, atReception bool) (*CreateBookingResult, error) {
	// 1. Price
	priced, err := Price(&PricingInput{
		Type:        in.Type,
		KidsCount:   in.KidsCount,
		AdultsCount: in.AdultsCount,
		SocksCount:  in.SocksCount,
		Quantity:    in.Quantity,
		Settings:    snap.settings,
		Store:       snap.store,
		Card:        snap.card,
		CouponID:    in.Coupon,
		Coupon:      snap.coupon,
		Event:       snap.event,
		Gift:        snap.gift,
		StaffPrice:  in.Price,
	})
	if err != nil {
		return nil, err
	}
	if !priced.Computed {
		if in.Type == constants.BookingTypeParty {
			return nil, ErrMissingPrice
		}
		return nil, ErrTemplateNotFound
	}

	price := priced.Price.
		Add(CardTimesAmount(snap.card, in.KidsCount)).
		Add(CouponThirdPartyAmount(snap.coupon, in.KidsCount))
	var priceInPoints int64
	if in.Gateway == constants.GatewayPoints {
		if priced.PriceInPoints <= 0 {
			return nil, ErrUnsupportedGateway.WithMessage("%s booking has no points price", in.Type)
		}
		price, priceInPoints = money.Zero, priced.PriceInPoints
	}

	// 2. Pending booking
	now := l.now()
	b := &models.Booking{
		Type:          in.Type,
		Customer:      customerID,
		Store:         in.Store,
		Date:          in.Date,
		CheckInTime:   in.CheckInTime,
		KidsCount:     in.KidsCount,
		AdultsCount:   in.AdultsCount,
		SocksCount:    in.SocksCount,
		Quantity:      in.Quantity,
		Status:        constants.BookingStatusPending.String(),
		Price:         price,
		PriceInPoints: priceInPoints,
		Card:          in.Card,
		Coupon:        in.Coupon,
		Event:         in.Event,
		Gift:          in.Gift,
		Payments:      []primitive.ObjectID{},
		Remarks:       in.Remarks,
		AtReception:   atReception,
		CreatedBy:     operator.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if b.Date == "" {
		b.Date = now.Format(models.DateLayout)
	}
	id, err := l.bookingRepo.CreateBooking(ctx, b)
	if err != nil {
		l.logger.Error("CreateBooking: CreateBooking failed", zap.Error(err))
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}
	b.ID = id

	// 3. Payments
	storeName := ""
	if snap.store != nil {
		storeName = snap.store.Name
	}
	useBalance := in.UseBalance
	if in.Type == constants.BookingTypeGift && snap.gift != nil && !snap.gift.UseBalance {
		useBalance = false
	}
	composed, err := l.composer.Compose(ctx, &ComposeInput{
		Booking:       b,
		Total:         price,
		PriceInPoints: priceInPoints,
		Customer:      snap.customer,
		Card:          snap.card,
		Coupon:        snap.coupon,
		Gateway:       in.Gateway,
		UseBalance:    useBalance,
		AtReception:   atReception,
		Title:         BookingTitle(b, storeName, snap.event, snap.gift),
		SockPrice:     resolveUnitPrices(snap.settings, snap.store).sock,
	})
	if err != nil {
		l.compensate(ctx, b, composed)
		return nil, err
	}

	// reload for the confirmed status
	if fresh, gerr := l.bookingRepo.GetBookingByID(ctx, b.ID); gerr == nil {
		b = fresh
	}
	return &CreateBookingResult{Booking: b, Payments: composed.Payments, Order: composed.Order}, nil
}

// compensate undoes a booking whose composition failed part way.
func (l *BookingLogic) compensate(ctx context.Context, b *models.Booking, composed *ComposeResult) {
	ctx = context.WithoutCancel(ctx)
	if composed == nil || !composed.PaidAny {
		if _, err := l.paymentRepo.DeleteUnpaidByAttach(ctx, models.BookingAttach(b.ID)); err != nil {
			l.logger.Error("compensate: DeleteUnpaidByAttach failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		}
		if err := l.bookingRepo.DeleteBooking(ctx, b.ID); err != nil {
			l.logger.Error("compensate: DeleteBooking failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		}
		return
	}
	// 已有付款成功：走取消退款流程
	if err := l.Cancel(ctx, b.ID, models.SystemOperator, "payment composition failed"); err != nil {
		l.logger.Error("compensate: Cancel failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
	}
}

func (l *BookingLogic) GetBooking(ctx context.Context, id primitive.ObjectID, operator *models.Operator) (*models.Booking, error) {
	b, err := l.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !operator.IsStaff() && b.Customer != operator.UserID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

// ListBookings scopes customers to their own bookings.
func (l *BookingLogic) ListBookings(ctx context.Context, filter *repository.BookingFilter, page *pagination.PageRequest, operator *models.Operator) (*pagination.PageResult[*models.Booking], error) {
	if filter == nil {
		filter = &repository.BookingFilter{}
	}
	if !operator.IsStaff() {
		own := operator.UserID
		filter.Customer = &own
	}
	items, total, err := l.bookingRepo.ListBookings(ctx, filter, page)
	if err != nil {
		l.logger.Error("ListBookings: ListBookings failed", zap.Error(err))
		return nil, err
	}
	return pagination.NewPageResult(items, total, page), nil
}

// ListPayments returns the payment trail of a booking.
func (l *BookingLogic) ListPayments(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator) ([]*models.Payment, error) {
	if _, err := l.GetBooking(ctx, bookingID, operator); err != nil {
		return nil, err
	}
	return l.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(bookingID))
}

// ListAuditLogs returns the staff trail of a booking. Customers cannot read it.
func (l *BookingLogic) ListAuditLogs(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator) ([]*models.AuditLog, error) {
	if !operator.IsStaff() {
		return nil, ErrPermissionDenied
	}
	return l.auditLogRepo.ListByBooking(ctx, bookingID)
}

func hasPaid(payments []*models.Payment) bool {
	for _, p := range payments {
		if p.Paid && !p.IsReversal() {
			return true
		}
	}
	return false
}

// Cancel cancels a booking. Unpaid bookings are canceled at once; paid ones go through
// pending_refund and the refund orchestrator.
func (l *BookingLogic) Cancel(ctx context.Context, id primitive.ObjectID, operator *models.Operator, reason string) error {
	b, err := l.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	status := b.StatusValue()
	switch status {
	case constants.BookingStatusCanceled, constants.BookingStatusPendingRefund:
		return nil
	case constants.BookingStatusFinished:
		return ErrInvalidStateTransition.WithMessage("finished booking cannot be canceled")
	}

	payments, err := l.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return fmt.Errorf("failed to list booking payments: %w", err)
	}
	paid := hasPaid(payments)

	owner := b.Customer == operator.UserID
	if !(operator.CanReviewCancel() || (owner && !paid)) {
		return ErrPermissionDenied
	}
	return l.cancel(ctx, b, paid, operator, reason)
}

func (l *BookingLogic) cancel(ctx context.Context, b *models.Booking, paid bool, operator *models.Operator, reason string) error {
	status := b.StatusValue()
	l.refunds.CloseOpenOrders(ctx, b.ID)

	// 1. Unpaid: cancel directly
	if !paid {
		err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return l.states.finishCancel(txCtx, b, []string{b.Status}, reason)
		})
		if err != nil {
			return err
		}
		l.audit(ctx, operator, constants.AuditCancel, b.ID, status.String(), constants.BookingStatusCanceled.String(), reason)
		return nil
	}

	// 2. Paid: pending_refund then reversals
	err := l.bookingRepo.TransitionStatus(ctx, b.ID, []string{b.Status},
		repository.WithStatus(constants.BookingStatusPendingRefund.String()),
		repository.WithStatusWas(""),
	)
	if errors.Is(err, repository.ErrConditionNotMet) {
		return ErrInvalidStateTransition.WithMessage("booking changed concurrently")
	}
	if err != nil {
		return fmt.Errorf("failed to start refund: %w", err)
	}
	b.Status = constants.BookingStatusPendingRefund.String()
	b.StatusWas = ""
	l.audit(ctx, operator, constants.AuditCancel, b.ID, status.String(), b.Status, reason)

	return l.refunds.Refund(ctx, b)
}

// RequestCancel lets the owner or staff ask for a paid booking to be canceled.
// Reviewers skip the request and cancel at once.
func (l *BookingLogic) RequestCancel(ctx context.Context, id primitive.ObjectID, operator *models.Operator, reason string) error {
	b, err := l.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	if !operator.IsStaff() && b.Customer != operator.UserID {
		return ErrPermissionDenied
	}
	status := b.StatusValue()
	switch status {
	case constants.BookingStatusCanceled, constants.BookingStatusPendingRefund:
		return nil
	case constants.BookingStatusFinished:
		return ErrInvalidStateTransition.WithMessage("finished booking cannot be canceled")
	}

	payments, err := l.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return fmt.Errorf("failed to list booking payments: %w", err)
	}
	if !hasPaid(payments) {
		return l.cancel(ctx, b, false, operator, reason)
	}
	if operator.CanReviewCancel() {
		return l.cancel(ctx, b, true, operator, reason)
	}

	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		err := l.bookingRepo.TransitionStatus(txCtx, b.ID, []string{b.Status},
			repository.WithStatus(constants.BookingStatusPendingRefund.String()),
			repository.WithStatusWas(b.Status),
		)
		if errors.Is(err, repository.ErrConditionNotMet) {
			return ErrInvalidStateTransition.WithMessage("booking changed concurrently")
		}
		if err != nil {
			return fmt.Errorf("failed to request cancel: %w", err)
		}
		// 前台申請時先凍結此單贈送的卡
		if operator.IsStaff() {
			if _, err := l.cardRepo.UpdateStatusByRewardBooking(txCtx, b.ID,
				[]constants.CardStatus{constants.CardStatusActivated}, constants.CardStatusPending); err != nil {
				return fmt.Errorf("failed to suspend reward cards: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.audit(ctx, operator, constants.AuditCancelRequest, b.ID, status.String(), constants.BookingStatusPendingRefund.String(), reason)
	return nil
}

// ReviewCancel approves or rejects a pending cancel request.
func (l *BookingLogic) ReviewCancel(ctx context.Context, id primitive.ObjectID, approve bool, operator *models.Operator, reason string) error {
	if !operator.CanReviewCancel() {
		return ErrPermissionDenied
	}
	b, err := l.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	if b.StatusValue() != constants.BookingStatusPendingRefund || b.StatusWas == "" {
		return ErrCancelNotRequested
	}
	statusWas := b.StatusWas
	pendingRefund := []string{constants.BookingStatusPendingRefund.String()}

	if !approve {
		err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			err := l.bookingRepo.TransitionStatus(txCtx, b.ID, pendingRefund,
				repository.WithStatus(statusWas),
				repository.WithStatusWas(""),
			)
			if err != nil {
				return fmt.Errorf("failed to restore booking: %w", err)
			}
			if _, err := l.cardRepo.UpdateStatusByRewardBooking(txCtx, b.ID,
				[]constants.CardStatus{constants.CardStatusPending}, constants.CardStatusActivated); err != nil {
				return fmt.Errorf("failed to reactivate reward cards: %w", err)
			}
			// 審核期間補付的款項此時才確認
			if statusWas == constants.BookingStatusPending.String() {
				return l.states.OnPaymentSuccess(txCtx, b.ID, b.AtReception)
			}
			return nil
		})
		if err != nil {
			return err
		}
		l.audit(ctx, operator, constants.AuditCancelReview, b.ID, b.Status, statusWas, "rejected: "+reason)
		return nil
	}

	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := l.cardRepo.UpdateStatusByRewardBooking(txCtx, b.ID,
			[]constants.CardStatus{constants.CardStatusActivated, constants.CardStatusPending}, constants.CardStatusCanceled); err != nil {
			return fmt.Errorf("failed to cancel reward cards: %w", err)
		}
		if err := l.bookingRepo.TransitionStatus(txCtx, b.ID, pendingRefund, repository.WithStatusWas("")); err != nil {
			return fmt.Errorf("failed to approve cancel: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.StatusWas = ""
	l.audit(ctx, operator, constants.AuditCancelReview, b.ID, statusWas, b.Status, "approved: "+reason)
	l.refunds.CloseOpenOrders(ctx, b.ID)
	return l.refunds.Refund(ctx, b)
}

// CheckIn and Checkout are staff transitions owned by the state machine.
func (l *BookingLogic) CheckIn(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error {
	return l.states.CheckIn(ctx, id, operator)
}

func (l *BookingLogic) Checkout(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error {
	return l.states.Checkout(ctx, id, operator)
}

// RetryRefund lets staff push a stuck refund again.
func (l *BookingLogic) RetryRefund(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error {
	if !operator.IsStaff() {
		return ErrPermissionDenied
	}
	if err := l.refunds.RetryRefund(ctx, id); err != nil {
		return err
	}
	l.audit(ctx, operator, constants.AuditRefundRetry, id, constants.BookingStatusPendingRefund.String(), "", "")
	return nil
}

// DeleteBooking removes a booking with no paid payment together with its payments.
func (l *BookingLogic) DeleteBooking(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error {
	if !operator.IsStaff() {
		return ErrPermissionDenied
	}
	b, err := l.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	payments, err := l.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return fmt.Errorf("failed to list booking payments: %w", err)
	}
	for _, p := range payments {
		if p.Paid {
			return ErrInvalidStateTransition.WithMessage("booking has paid payments")
		}
	}

	var removed int64
	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if removed, err = l.paymentRepo.DeleteUnpaidByAttach(txCtx, models.BookingAttach(b.ID)); err != nil {
			return fmt.Errorf("failed to delete payments: %w", err)
		}
		return l.bookingRepo.DeleteBooking(txCtx, b.ID)
	})
	if err != nil {
		l.logger.Error("DeleteBooking: transaction failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		return err
	}

	if err := l.auditLogRepo.Create(ctx, newBookingAudit(operator, constants.AuditDelete, b.ID, b.Status, "", withSnapshot(b, removed))); err != nil {
		l.logger.Error("DeleteBooking: Failed to create audit log", zap.Error(err), zap.Stringer("bookingID", b.ID))
	}
	return nil
}

func (l *BookingLogic) audit(ctx context.Context, operator *models.Operator, action constants.AuditAction, id primitive.ObjectID, from, to, reason string) {
	if err := l.auditLogRepo.Create(ctx, newBookingAudit(operator, action, id, from, to, withReason(reason))); err != nil {
		l.logger.Error("audit: Failed to create audit log", zap.Error(err), zap.Stringer("bookingID", id), zap.String("action", string(action)))
	}
}
