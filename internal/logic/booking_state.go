package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// BookingStateMachine owns the booking status transitions fired by settlement and by staff.
type BookingStateMachine struct {
	bookingRepo  repository.BookingRepository
	paymentRepo  repository.PaymentRepository
	customerRepo repository.CustomerRepository
	cardRepo     repository.CardRepository
	cardTypeRepo repository.CardTypeRepository
	eventRepo    repository.EventRepository
	giftRepo     repository.GiftRepository
	auditLogRepo repository.AuditLogRepository
	publisher    *EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

var _ BookingHooks = (*BookingStateMachine)(nil)

func NewBookingStateMachine(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	customerRepo repository.CustomerRepository,
	cardRepo repository.CardRepository,
	cardTypeRepo repository.CardTypeRepository,
	eventRepo repository.EventRepository,
	giftRepo repository.GiftRepository,
	auditLogRepo repository.AuditLogRepository,
	publisher *EventPublisher,
	logger *zap.Logger,
) *BookingStateMachine {
	return &BookingStateMachine{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		cardRepo:     cardRepo,
		cardTypeRepo: cardTypeRepo,
		eventRepo:    eventRepo,
		giftRepo:     giftRepo,
		auditLogRepo: auditLogRepo,
		publisher:    publisher,
		logger:       logger.Named("BookingStateMachine"),
		now:          time.Now,
	}
}

// latePaymentReason tags the refund.pending event of a payment confirmed after cancel.
const latePaymentReason = "late_payment"

// paidStatus is the status a pending booking moves to once it is fully paid.
func paidStatus(b *models.Booking, atReception bool, now time.Time) constants.BookingStatus {
	switch {
	case b.Type == constants.BookingTypeFood:
		return constants.BookingStatusFinished
	case b.Type == constants.BookingTypeGift:
		if atReception {
			return constants.BookingStatusFinished
		}
		return constants.BookingStatusBooked
	case atReception && b.IsToday(now):
		return constants.BookingStatusInService
	default:
		return constants.BookingStatusBooked
	}
}

// Covered reports whether every composed payment is paid and the paid total reaches the price.
func Covered(b *models.Booking, payments []*models.Payment) bool {
	paid := money.Zero
	for _, p := range payments {
		if p.IsReversal() {
			continue
		}
		if !p.Paid {
			return false
		}
		paid = paid.Add(p.Amount)
	}
	return paid.GreaterOrEqual(b.Price.Sub(money.Cent))
}

// OnPaymentSuccess confirms a pending booking once its payments cover the price.
// A payment that lands after the booking was canceled reopens it for refund.
// It runs inside the settlement transaction of the payment that was just flipped.
func (m *BookingStateMachine) OnPaymentSuccess(ctx context.Context, bookingID primitive.ObjectID, atReception bool) error {
	b, err := m.bookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	switch b.StatusValue() {
	case constants.BookingStatusPending:
	case constants.BookingStatusCanceled, constants.BookingStatusPendingRefund:
		return m.reopenForRefund(ctx, b)
	default:
		return nil
	}

	payments, err := m.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return fmt.Errorf("failed to list booking payments: %w", err)
	}
	if !Covered(b, payments) {
		return nil
	}

	next := paidStatus(b, atReception, m.now())
	holdsInventory := b.Type == constants.BookingTypeEvent || b.Type == constants.BookingTypeGift

	// 1. Status, guarded by the pending filter so the hook fires its effects once.
	err = m.bookingRepo.TransitionStatus(ctx, b.ID, []string{constants.BookingStatusPending.String()},
		repository.WithStatus(next.String()),
		repository.WithInventoryHeld(holdsInventory),
	)
	if errors.Is(err, repository.ErrConditionNotMet) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	b.Status = next.String()

	// 2. Inventory and gift side effects.
	held, err := m.takeInventory(ctx, b)
	if err != nil {
		return err
	}
	if holdsInventory && !held {
		if err := m.bookingRepo.UpdateBooking(ctx, b.ID, repository.WithInventoryHeld(false)); err != nil {
			return fmt.Errorf("failed to clear inventory hold: %w", err)
		}
	}

	// 3. Event.
	if err := m.publisher.PublishBookingEvent(ctx, constants.TopicBookingPaid, b, ""); err != nil {
		m.logger.Error("OnPaymentSuccess: publish failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		return err
	}
	m.logger.Info("booking paid", zap.Stringer("bookingID", b.ID), zap.String("status", b.Status))
	return nil
}

// takeInventory reports whether the booking now holds event places or gift stock.
// The money is already in, so a sold-out event or gift is accepted as oversold
// and the booking holds nothing that a cancel would give back.
func (m *BookingStateMachine) takeInventory(ctx context.Context, b *models.Booking) (bool, error) {
	switch {
	case b.Type == constants.BookingTypeEvent && b.Event != nil:
		event, err := m.eventRepo.GetEventByID(ctx, *b.Event)
		if err != nil {
			return false, fmt.Errorf("failed to load event: %w", err)
		}
		if !event.Limited() {
			return true, nil
		}
		if err := m.eventRepo.AdjustKidsCountLeft(ctx, event.ID, -b.KidsCount); err != nil {
			if !errors.Is(err, repository.ErrConditionNotMet) {
				return false, fmt.Errorf("failed to take event places: %w", err)
			}
			m.logger.Warn("takeInventory: event oversold", zap.Stringer("bookingID", b.ID),
				zap.Stringer("eventID", event.ID), zap.Int("kids", b.KidsCount))
			return false, nil
		}
	case b.Type == constants.BookingTypeGift && b.Gift != nil:
		gift, err := m.giftRepo.GetGiftByID(ctx, *b.Gift)
		if err != nil {
			return false, fmt.Errorf("failed to load gift: %w", err)
		}
		held := true
		if gift.Limited() {
			if err := m.giftRepo.AdjustQuantity(ctx, gift.ID, -b.Quantity); err != nil {
				if !errors.Is(err, repository.ErrConditionNotMet) {
					return false, fmt.Errorf("failed to take gift stock: %w", err)
				}
				m.logger.Warn("takeInventory: gift oversold", zap.Stringer("bookingID", b.ID),
					zap.Stringer("giftID", gift.ID), zap.Int("quantity", b.Quantity))
				held = false
			}
		}
		if gift.TagCustomer != "" {
			if err := m.customerRepo.AddTag(ctx, b.Customer, gift.TagCustomer); err != nil {
				return false, fmt.Errorf("failed to tag customer: %w", err)
			}
		}
		if gift.RewardCardType != "" {
			if err := m.issueRewardCard(ctx, b, gift.RewardCardType); err != nil {
				return false, err
			}
		}
		return held, nil
	}
	return true, nil
}

// reopenForRefund moves a canceled booking that just received money back to pending_refund,
// so the refund orchestrator reverses the late payment. A booking already in pending_refund
// is left alone; its open reversals are settled by the same retry.
func (m *BookingStateMachine) reopenForRefund(ctx context.Context, b *models.Booking) error {
	// 審核中的取消申請由審核結果決定
	if b.StatusWas != "" {
		return nil
	}
	if b.StatusValue() == constants.BookingStatusCanceled {
		err := m.bookingRepo.TransitionStatus(ctx, b.ID, []string{constants.BookingStatusCanceled.String()},
			repository.WithStatus(constants.BookingStatusPendingRefund.String()),
			repository.WithStatusWas(""),
		)
		if errors.Is(err, repository.ErrConditionNotMet) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to reopen booking for refund: %w", err)
		}
		b.Status = constants.BookingStatusPendingRefund.String()
	}

	if err := m.publisher.PublishBookingEvent(ctx, constants.TopicRefundPending, b, latePaymentReason); err != nil {
		m.logger.Error("reopenForRefund: publish failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		return err
	}
	m.logger.Warn("payment arrived after cancel, refunding", zap.Stringer("bookingID", b.ID))
	return nil
}

// issueRewardCard gives the customer an activated card tied to the booking that earned it.
func (m *BookingStateMachine) issueRewardCard(ctx context.Context, b *models.Booking, slug string) error {
	cardType, err := m.cardTypeRepo.GetCardTypeBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("failed to load reward card type %s: %w", slug, err)
	}
	now := m.now()
	card := cardType.Issue(b.Customer, now)
	card.Status = constants.CardStatusActivated
	card.Start = &now
	card.RewardedFromBooking = &b.ID
	if _, err := m.cardRepo.CreateCard(ctx, card); err != nil {
		return fmt.Errorf("failed to issue reward card: %w", err)
	}
	return nil
}

// OnRefundSuccess cancels a pending_refund booking once every reversal is paid.
func (m *BookingStateMachine) OnRefundSuccess(ctx context.Context, bookingID primitive.ObjectID) error {
	b, err := m.bookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	// 待審核的取消申請不在這裡結案
	if b.StatusValue() != constants.BookingStatusPendingRefund || b.StatusWas != "" {
		return nil
	}

	payments, err := m.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return fmt.Errorf("failed to list booking payments: %w", err)
	}
	for _, p := range payments {
		if p.IsReversal() && !p.Paid {
			return nil
		}
	}

	return m.finishCancel(ctx, b, []string{constants.BookingStatusPendingRefund.String()}, "")
}

// finishCancel moves the booking to canceled and gives back inventory it held.
func (m *BookingStateMachine) finishCancel(ctx context.Context, b *models.Booking, from []string, reason string) error {
	err := m.bookingRepo.TransitionStatus(ctx, b.ID, from,
		repository.WithStatus(constants.BookingStatusCanceled.String()),
		repository.WithStatusWas(""),
		repository.WithInventoryHeld(false),
	)
	if errors.Is(err, repository.ErrConditionNotMet) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if b.InventoryHeld {
		if err := m.releaseInventory(ctx, b); err != nil {
			return err
		}
	}
	if b.Type == constants.BookingTypeGift {
		if _, err := m.cardRepo.UpdateStatusByRewardBooking(ctx, b.ID,
			[]constants.CardStatus{constants.CardStatusActivated, constants.CardStatusPending, constants.CardStatusValid},
			constants.CardStatusCanceled); err != nil {
			return fmt.Errorf("failed to cancel reward cards: %w", err)
		}
	}
	b.Status = constants.BookingStatusCanceled.String()

	if err := m.publisher.PublishBookingEvent(ctx, constants.TopicBookingCanceled, b, reason); err != nil {
		m.logger.Error("finishCancel: publish failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		return err
	}
	m.logger.Info("booking canceled", zap.Stringer("bookingID", b.ID))
	return nil
}

func (m *BookingStateMachine) releaseInventory(ctx context.Context, b *models.Booking) error {
	switch {
	case b.Type == constants.BookingTypeEvent && b.Event != nil:
		event, err := m.eventRepo.GetEventByID(ctx, *b.Event)
		if err != nil {
			return fmt.Errorf("failed to load event: %w", err)
		}
		if event.Limited() {
			if err := m.eventRepo.AdjustKidsCountLeft(ctx, event.ID, b.KidsCount); err != nil {
				return fmt.Errorf("failed to release event places: %w", err)
			}
		}
	case b.Type == constants.BookingTypeGift && b.Gift != nil:
		gift, err := m.giftRepo.GetGiftByID(ctx, *b.Gift)
		if err != nil {
			return fmt.Errorf("failed to load gift: %w", err)
		}
		if gift.Limited() {
			if err := m.giftRepo.AdjustQuantity(ctx, gift.ID, b.Quantity); err != nil {
				return fmt.Errorf("failed to release gift stock: %w", err)
			}
		}
	}
	return nil
}

// CheckIn moves a booked booking into service.
func (m *BookingStateMachine) CheckIn(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator) error {
	now := m.now()
	return m.staffTransition(ctx, bookingID, operator, constants.AuditCheckIn,
		constants.BookingStatusBooked, constants.BookingStatusInService,
		repository.WithCheckInAt(now))
}

// Checkout finishes a booking in service.
func (m *BookingStateMachine) Checkout(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator) error {
	now := m.now()
	return m.staffTransition(ctx, bookingID, operator, constants.AuditCheckout,
		constants.BookingStatusInService, constants.BookingStatusFinished,
		repository.WithCheckOutAt(now))
}

func (m *BookingStateMachine) staffTransition(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator,
	action constants.AuditAction, from, to constants.BookingStatus, opts ...repository.UpdateOption) error {
	if !operator.IsStaff() {
		return ErrPermissionDenied
	}

	opts = append(opts, repository.WithStatus(to.String()))
	err := m.bookingRepo.TransitionStatus(ctx, bookingID, []string{from.String()}, opts...)
	if errors.Is(err, repository.ErrConditionNotMet) {
		return ErrInvalidStateTransition.WithMessage("booking is not %s", from)
	}
	if err != nil {
		return err
	}

	if err := m.auditLogRepo.Create(ctx, newBookingAudit(operator, action, bookingID, from.String(), to.String())); err != nil {
		m.logger.Error("staffTransition: Failed to create audit log", zap.Error(err), zap.Stringer("bookingID", bookingID))
	}
	return nil
}
