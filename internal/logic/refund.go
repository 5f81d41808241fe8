package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/db"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RefundOrchestrator emits reversal payments for a booking in pending_refund and drives it to canceled.
type RefundOrchestrator struct {
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	settler     PaymentSettler
	states      BookingHooks
	publisher   *EventPublisher
	txManager   db.TransactionManager
	logger      *zap.Logger
	now         func() time.Time
}

func NewRefundOrchestrator(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	settler PaymentSettler,
	states BookingHooks,
	publisher *EventPublisher,
	txManager db.TransactionManager,
	logger *zap.Logger,
) *RefundOrchestrator {
	return &RefundOrchestrator{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		settler:     settler,
		states:      states,
		publisher:   publisher,
		txManager:   txManager,
		logger:      logger.Named("RefundOrchestrator"),
		now:         time.Now,
	}
}

// reversalFor builds the reversal of a paid payment, or nil when nothing needs reversing.
func reversalFor(p *models.Payment, now time.Time) *models.Payment {
	rev := &models.Payment{
		Customer:  p.Customer,
		Store:     p.Store,
		Gateway:   p.Gateway,
		Attach:    p.Attach,
		Original:  &p.ID,
		Scene:     p.Scene,
		CreatedAt: now,
		UpdatedAt: now,
		GatewayData: models.GatewayData{
			AtReception: p.GatewayData.AtReception,
		},
	}

	switch p.Gateway {
	case constants.GatewayBalance, constants.GatewayCard:
		if p.Amount.IsNegative() {
			return nil
		}
		rev.Title = refundPrefix + p.Title
		rev.Amount = p.Amount.Neg()
		rev.AmountDeposit = p.AmountDeposit.Neg()
		rev.AmountForceDeposit = p.AmountForceDeposit.Neg()
		if p.Gateway == constants.GatewayCard {
			rev.GatewayData.BookingID = p.GatewayData.BookingID
			rev.GatewayData.CardID = p.GatewayData.CardID
			rev.GatewayData.Times = p.GatewayData.Times
			rev.GatewayData.CardRefund = true
		}
	case constants.GatewayPoints:
		if p.AmountInPoints <= 0 {
			return nil
		}
		rev.Title = pointsPrefix + p.Title
		rev.Amount = money.Zero
		rev.AmountInPoints = -p.AmountInPoints
	case constants.GatewayWechatPay, constants.GatewayOmise,
		constants.GatewayCash, constants.GatewayScan, constants.GatewayPos, constants.GatewayCoupon:
		if !p.Amount.IsPositive() {
			return nil
		}
		rev.Title = refundPrefix + p.Title
		rev.Amount = p.Amount.Neg()
	default:
		return nil
	}
	return rev
}

// Refund reverses every paid payment of the booking that has no reversal yet and settles
// the unpaid reversals. Calling it again only retries what is still open.
// Provider failures leave the booking in pending_refund and publish refund.pending.
func (o *RefundOrchestrator) Refund(ctx context.Context, b *models.Booking) error {
	open, err := o.settleReversals(ctx, b)
	if err != nil {
		if e, ok := AsError(err); ok && e.Retryable() {
			if perr := o.publisher.PublishBookingEvent(ctx, constants.TopicRefundPending, b, e.Code); perr != nil {
				o.logger.Error("Refund: publish refund.pending failed", zap.Error(perr), zap.Stringer("bookingID", b.ID))
			}
		}
		return err
	}
	if open > 0 {
		// 供應商處理中，等回呼
		o.logger.Info("Refund: waiting for provider", zap.Stringer("bookingID", b.ID), zap.Int("open", open))
		return o.publisher.PublishBookingEvent(ctx, constants.TopicRefundPending, b, refundStatusProcessing)
	}
	return nil
}

// RetryRefund re-requests the open reversals of a pending_refund booking. It publishes nothing;
// the queue consumer owns the retry schedule.
func (o *RefundOrchestrator) RetryRefund(ctx context.Context, bookingID primitive.ObjectID) error {
	b, err := o.bookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if b.StatusValue() != constants.BookingStatusPendingRefund || b.StatusWas != "" {
		return nil
	}
	_, err = o.settleReversals(ctx, b)
	return err
}

// ReversePaid reverses the paid payments of a booking that stays open, as when its ticket is
// replaced by card times. It returns how many reversals still wait on the provider.
func (o *RefundOrchestrator) ReversePaid(ctx context.Context, b *models.Booking) (int, error) {
	return o.settleReversals(ctx, b)
}

// settleReversals returns how many reversals are still waiting on the provider.
func (o *RefundOrchestrator) settleReversals(ctx context.Context, b *models.Booking) (int, error) {
	payments, err := o.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to list booking payments: %w", err)
	}

	byID := make(map[primitive.ObjectID]*models.Payment, len(payments))
	reversed := map[primitive.ObjectID]bool{}
	var unpaid []*models.Payment
	for _, p := range payments {
		byID[p.ID] = p
		if p.Original != nil {
			reversed[*p.Original] = true
			if !p.Paid {
				unpaid = append(unpaid, p)
			}
		}
	}

	// 1. New reversals for paid payments.
	for _, p := range payments {
		if !p.Paid || p.IsReversal() || reversed[p.ID] {
			continue
		}
		rev := reversalFor(p, o.now())
		if rev == nil {
			continue
		}
		id, err := o.paymentRepo.CreatePayment(ctx, rev)
		if err != nil {
			return 0, fmt.Errorf("failed to create reversal: %w", err)
		}
		rev.ID = id
		if err := o.bookingRepo.AppendPayment(ctx, b.ID, rev.ID); err != nil {
			return 0, fmt.Errorf("failed to link reversal: %w", err)
		}
		unpaid = append(unpaid, rev)
	}

	// 2. Settle every open reversal; keep going past provider failures.
	open := 0
	var firstErr error
	for _, rev := range unpaid {
		opts := &SettleOptions{Reason: refundPrefix + b.ID.Hex()}
		if rev.Original != nil {
			opts.Original = byID[*rev.Original]
		}
		res, err := o.settler.Settle(ctx, rev, opts)
		if err != nil {
			o.logger.Error("settleReversals: Settle failed", zap.Error(err),
				zap.Stringer("bookingID", b.ID), zap.Stringer("paymentID", rev.ID))
			open++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !res.Paid {
			open++
		}
	}
	if firstErr != nil {
		return open, firstErr
	}

	// 3. Nothing open: close the booking. A booking whose payments needed no reversal ends here too.
	if open == 0 {
		err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return o.states.OnRefundSuccess(txCtx, b.ID)
		})
		if err != nil {
			return 0, err
		}
	}
	return open, nil
}

// CloseOpenOrders asks the providers to close the unpaid charges of a booking being canceled.
// Failures are logged; a charge that still lands is refunded by the payment hook.
func (o *RefundOrchestrator) CloseOpenOrders(ctx context.Context, bookingID primitive.ObjectID) int {
	payments, err := o.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(bookingID))
	if err != nil {
		o.logger.Error("CloseOpenOrders: ListPaymentsByAttach failed", zap.Error(err), zap.Stringer("bookingID", bookingID))
		return 0
	}
	closed := 0
	for _, p := range payments {
		if p.Paid || p.IsReversal() || !p.Gateway.IsAsync() || p.GatewayData.OutTradeNo == "" {
			continue
		}
		if err := o.settler.CloseOrder(ctx, p); err != nil {
			o.logger.Warn("CloseOpenOrders: CloseOrder failed", zap.Error(err),
				zap.Stringer("bookingID", bookingID), zap.Stringer("paymentID", p.ID))
			continue
		}
		closed++
	}
	return closed
}
