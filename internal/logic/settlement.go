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
	"github.com/lltxwdk/minimars-server/internal/tracing"
	"github.com/lltxwdk/minimars-server/pkg/money"
	"github.com/lltxwdk/minimars-server/pkg/snowflake"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	outTradeNoPrefix  = "MP"
	outRefundNoPrefix = "MR"

	refundStatusSucceeded  = "succeeded"
	refundStatusProcessing = "processing"
	refundStatusFailed     = "failed"

	defaultDebitRetries = 3
)

// errAlreadyPaid aborts a settlement transaction whose payment was flipped by someone else.
var errAlreadyPaid = errors.New("payment already paid")

// BookingHooks is fired by the caller that flips a booking payment to paid.
type BookingHooks interface {
	OnPaymentSuccess(ctx context.Context, bookingID primitive.ObjectID, atReception bool) error
	OnRefundSuccess(ctx context.Context, bookingID primitive.ObjectID) error
}

// CardHooks is fired by the caller that flips a card purchase payment to paid.
type CardHooks interface {
	OnCardPaid(ctx context.Context, cardID primitive.ObjectID) error
}

type SettleOptions struct {
	// Customer is the payer snapshot; it is loaded when nil and needed.
	Customer    *models.Customer
	Description string
	// Original is the payment a negative external payment refunds; loaded from payment.Original when nil.
	Original *models.Payment
	Reason   string
}

type SettleResult struct {
	Paid bool
	// Order is set for external payments waiting on the provider.
	Order *gateway.Order
}

// Settler finalizes payments: it applies the instrument side effect and flips paid exactly once.
type Settler struct {
	paymentRepo  repository.PaymentRepository
	customerRepo repository.CustomerRepository
	cardRepo     repository.CardRepository
	txManager    db.TransactionManager
	locker       lock.Locker
	gateways     *gateway.Registry
	idGenerator  *snowflake.Generator
	bookingHooks BookingHooks
	cardHooks    CardHooks
	lockTTL      time.Duration
	debitRetries int
	logger       *zap.Logger
	now          func() time.Time
}

func NewSettler(
	paymentRepo repository.PaymentRepository,
	customerRepo repository.CustomerRepository,
	cardRepo repository.CardRepository,
	txManager db.TransactionManager,
	locker lock.Locker,
	gateways *gateway.Registry,
	idGenerator *snowflake.Generator,
	bookingHooks BookingHooks,
	cardHooks CardHooks,
	lockCfg *conf.LockConfig,
	logger *zap.Logger,
) *Settler {
	s := &Settler{
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		cardRepo:     cardRepo,
		txManager:    txManager,
		locker:       locker,
		gateways:     gateways,
		idGenerator:  idGenerator,
		bookingHooks: bookingHooks,
		cardHooks:    cardHooks,
		lockTTL:      10 * time.Second,
		debitRetries: defaultDebitRetries,
		logger:       logger.Named("Settler"),
		now:          time.Now,
	}
	if lockCfg != nil {
		if lockCfg.TTL() > 0 {
			s.lockTTL = lockCfg.TTL()
		}
		if lockCfg.DebitRetries > 0 {
			s.debitRetries = lockCfg.DebitRetries
		}
	}
	return s
}

// SplitBalance divides a balance payment between the deposit and reward sub-balances.
// The deposit part is the forced deposit plus a proportional share of the rest, never
// less than 0.01 while deposit holds at least 0.01. The result always satisfies
// dep+rew == amount, 0 <= dep <= deposit and 0 <= rew <= reward when amount <= deposit+reward.
func SplitBalance(amount, force, deposit, reward money.Amount, preset *money.Amount) (dep, rew money.Amount) {
	if preset != nil {
		dep = *preset
	} else {
		balance := deposit.Add(reward)
		if balance.IsPositive() {
			dep = force.Add(amount.Sub(force).Mul(deposit).Div(balance)).Round2()
		}
		if deposit.AtLeastCent() && dep.LessThan(money.Cent) {
			dep = money.Cent
		}
	}

	dep = money.Max(money.Zero, money.Min(dep, money.Min(amount, deposit)))
	rew = amount.Sub(dep)
	if rew.GreaterThan(reward) {
		rew = reward
		dep = amount.Sub(rew)
	}
	return dep, rew
}

// Settle applies the payment's side effect. Instrument and on-site gateways flip paid
// inside one transaction together with the instrument mutation and the attach hook.
// External gateways create a provider order (or refund) and usually stay unpaid until the callback.
// A rejected settlement persists nothing.
func (s *Settler) Settle(ctx context.Context, p *models.Payment, opts *SettleOptions) (*SettleResult, error) {
	if opts == nil {
		opts = &SettleOptions{}
	}
	ctx, span := tracing.Tracer().Start(ctx, "settlement.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", p.ID.Hex()),
		attribute.String("payment.gateway", p.Gateway.String()),
		attribute.String("payment.amount", p.Amount.String()),
	)

	if p.Paid {
		return &SettleResult{Paid: true}, nil
	}

	var err error
	switch p.Gateway {
	case constants.GatewayBalance:
		err = s.settleBalance(ctx, p)
	case constants.GatewayCard:
		err = s.settleCard(ctx, p)
	case constants.GatewayPoints:
		err = s.settlePoints(ctx, p)
	case constants.GatewayCoupon, constants.GatewayCash, constants.GatewayScan, constants.GatewayPos:
		err = s.flipInTransaction(ctx, p, nil)
	case constants.GatewayWechatPay, constants.GatewayOmise:
		return s.settleExternal(ctx, p, opts)
	default:
		return nil, ErrUnsupportedGateway.WithMessage("gateway %q", p.Gateway)
	}

	if errors.Is(err, errAlreadyPaid) {
		return &SettleResult{Paid: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &SettleResult{Paid: true}, nil
}

func (s *Settler) settleBalance(ctx context.Context, p *models.Payment) error {
	if p.Customer == nil {
		return ErrInsufficientBalance.WithMessage("payment has no customer")
	}
	customerID := *p.Customer

	return lock.WithLock(ctx, s.locker, lock.CustomerKey(customerID), s.lockTTL, func() error {
		var lastErr error
		for attempt := 0; attempt < s.debitRetries; attempt++ {
			lastErr = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
				// 退款：負數金額回補 deposit 與 reward
				if p.Amount.IsNegative() {
					deposit := p.AmountDeposit.Neg()
					reward := p.Amount.Neg().Sub(deposit)
					if err := s.customerRepo.CreditBalance(txCtx, customerID, deposit, reward); err != nil {
						return fmt.Errorf("failed to credit balance: %w", err)
					}
					return s.flip(txCtx, p, nil)
				}

				customer, err := s.customerRepo.GetCustomerByID(txCtx, customerID)
				if err != nil {
					return fmt.Errorf("failed to load customer: %w", err)
				}
				if p.Amount.GreaterThan(customer.Balance()) {
					return ErrInsufficientBalance.WithMessage("balance %s, required %s", customer.Balance(), p.Amount)
				}

				var preset *money.Amount
				if !p.AmountDeposit.IsZero() {
					preset = &p.AmountDeposit
				}
				dep, rew := SplitBalance(p.Amount, p.AmountForceDeposit, customer.BalanceDeposit, customer.BalanceReward, preset)
				if err := s.customerRepo.DebitBalance(txCtx, customerID, dep, rew); err != nil {
					return err
				}
				p.AmountDeposit = dep
				return s.flip(txCtx, p, nil)
			})
			if !errors.Is(lastErr, repository.ErrConditionNotMet) {
				return lastErr
			}
			s.logger.Warn("settleBalance: balance changed concurrently, retrying",
				zap.Stringer("paymentID", p.ID), zap.Int("attempt", attempt+1))
		}
		return ErrInsufficientBalance.Wrap(lastErr)
	})
}

func (s *Settler) settleCard(ctx context.Context, p *models.Payment) error {
	gd := p.GatewayData
	if gd.BookingID == nil || gd.CardID == nil || gd.Times <= 0 {
		return ErrInvalidCardPaymentData
	}
	cardID := *gd.CardID

	if gd.CardRefund {
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.cardRepo.RestoreTimes(txCtx, cardID, gd.Times); err != nil {
				return fmt.Errorf("failed to restore card times: %w", err)
			}
			return s.flip(txCtx, p, nil)
		})
	}

	card, err := s.cardRepo.GetCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCard.Wrap(err)
		}
		return fmt.Errorf("failed to load card: %w", err)
	}
	if err := s.checkCardUsable(card, gd); err != nil {
		return err
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.cardRepo.ConsumeTimes(txCtx, cardID, gd.Times); err != nil {
			if !errors.Is(err, repository.ErrConditionNotMet) {
				return fmt.Errorf("failed to consume card times: %w", err)
			}
			// 條件更新沒有命中，重讀卡片決定錯誤類型
			fresh, rerr := s.cardRepo.GetCardByID(txCtx, cardID)
			if rerr != nil {
				return ErrInvalidCard.Wrap(rerr)
			}
			if cerr := s.checkCardUsable(fresh, gd); cerr != nil {
				return cerr
			}
			return ErrInsufficientCardTimes
		}
		return s.flip(txCtx, p, nil)
	})
}

func (s *Settler) checkCardUsable(card *models.Card, gd models.GatewayData) error {
	if card.Status != constants.CardStatusActivated {
		return ErrInvalidCard.WithMessage("card status %s", card.Status)
	}
	if card.ExpiresAt != nil && card.ExpiresAt.Before(s.now()) && !gd.AtReception {
		return ErrCardExpired
	}
	if card.TimesLeft < gd.Times {
		return ErrInsufficientCardTimes.WithMessage("%d times left, %d required", card.TimesLeft, gd.Times)
	}
	return nil
}

func (s *Settler) settlePoints(ctx context.Context, p *models.Payment) error {
	if p.Customer == nil {
		return ErrInsufficientPoints.WithMessage("payment has no customer")
	}
	customerID := *p.Customer

	return lock.WithLock(ctx, s.locker, lock.CustomerKey(customerID), s.lockTTL, func() error {
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			switch {
			case p.AmountInPoints > 0:
				if err := s.customerRepo.DebitPoints(txCtx, customerID, p.AmountInPoints); err != nil {
					if errors.Is(err, repository.ErrConditionNotMet) {
						return ErrInsufficientPoints.WithMessage("%d points required", p.AmountInPoints)
					}
					return fmt.Errorf("failed to debit points: %w", err)
				}
			case p.AmountInPoints < 0:
				if err := s.customerRepo.CreditPoints(txCtx, customerID, -p.AmountInPoints); err != nil {
					return fmt.Errorf("failed to credit points: %w", err)
				}
			}
			return s.flip(txCtx, p, nil)
		})
	})
}

func (s *Settler) settleExternal(ctx context.Context, p *models.Payment, opts *SettleOptions) (*SettleResult, error) {
	adapter, err := s.gateways.Get(p.Gateway)
	if err != nil {
		return nil, ErrUnsupportedGateway.Wrap(err)
	}
	if p.Amount.IsNegative() {
		return s.refundExternal(ctx, adapter, p, opts)
	}

	// 1. Payer identity for mini program payments.
	openID := ""
	if p.Gateway == constants.GatewayWechatPay && !p.GatewayData.AtReception {
		customer := opts.Customer
		if customer == nil && p.Customer != nil {
			if customer, err = s.customerRepo.GetCustomerByID(ctx, *p.Customer); err != nil {
				return nil, fmt.Errorf("failed to load customer: %w", err)
			}
		}
		if customer == nil || customer.OpenID == "" {
			return nil, ErrNoCustomerOpenID
		}
		openID = customer.OpenID
	}

	// 2. Merchant serial, persisted before calling out so the callback can find the payment.
	if p.GatewayData.OutTradeNo == "" {
		serial, err := s.idGenerator.NextSerial(outTradeNoPrefix)
		if err != nil {
			return nil, err
		}
		p.GatewayData.OutTradeNo = serial
		if err := s.paymentRepo.UpdateGatewayData(ctx, p.ID, p.GatewayData); err != nil {
			return nil, fmt.Errorf("failed to save out trade no: %w", err)
		}
	}

	// 3. Provider order, no lock held.
	description := opts.Description
	if description == "" {
		description = p.Title
	}
	order, err := adapter.CreateOrder(ctx, &gateway.OrderRequest{
		Payment:     p,
		Description: description,
		OpenID:      openID,
		AtReception: p.GatewayData.AtReception,
	})
	if err != nil {
		s.logger.Error("settleExternal: CreateOrder failed", zap.Error(err), zap.Stringer("paymentID", p.ID))
		return nil, mapGatewayError(err)
	}

	p.GatewayData.ProviderOrderID = order.ProviderOrderID
	p.GatewayData.CodeURL = order.CodeURL
	p.GatewayData.PayArgs = order.PayArgs
	if err := s.paymentRepo.UpdateGatewayData(ctx, p.ID, p.GatewayData); err != nil {
		return nil, fmt.Errorf("failed to save provider order: %w", err)
	}
	return &SettleResult{Order: order}, nil
}

func (s *Settler) refundExternal(ctx context.Context, adapter gateway.Adapter, p *models.Payment, opts *SettleOptions) (*SettleResult, error) {
	original := opts.Original
	if original == nil {
		if p.Original == nil {
			return nil, ErrPaymentNotFound.WithMessage("refund payment has no original")
		}
		var err error
		if original, err = s.paymentRepo.GetPaymentByID(ctx, *p.Original); err != nil {
			return nil, ErrPaymentNotFound.Wrap(err)
		}
	}

	// out_refund_no 重試時沿用，供應商以此去重
	if p.GatewayData.OutRefundNo == "" {
		serial, err := s.idGenerator.NextSerial(outRefundNoPrefix)
		if err != nil {
			return nil, err
		}
		p.GatewayData.OutRefundNo = serial
		if err := s.paymentRepo.UpdateGatewayData(ctx, p.ID, p.GatewayData); err != nil {
			return nil, fmt.Errorf("failed to save out refund no: %w", err)
		}
	}

	res, err := adapter.Refund(ctx, &gateway.RefundRequest{Original: original, Refund: p, Reason: opts.Reason})
	if err != nil {
		s.logger.Error("refundExternal: Refund failed", zap.Error(err), zap.Stringer("paymentID", p.ID))
		return nil, mapGatewayError(err)
	}

	p.GatewayData.ProviderRefundID = res.ProviderRefundID
	if res.Status != gateway.RefundSucceeded {
		p.GatewayData.RefundStatus = refundStatusProcessing
		if err := s.paymentRepo.UpdateGatewayData(ctx, p.ID, p.GatewayData); err != nil {
			return nil, fmt.Errorf("failed to save refund status: %w", err)
		}
		return &SettleResult{}, nil
	}

	p.GatewayData.RefundStatus = refundStatusSucceeded
	gd := p.GatewayData
	if err := s.flipInTransaction(ctx, p, &gd); err != nil && !errors.Is(err, errAlreadyPaid) {
		return nil, err
	}
	return &SettleResult{Paid: true}, nil
}

// ConfirmExternal applies a verified provider callback. Duplicate callbacks are no-ops.
func (s *Settler) ConfirmExternal(ctx context.Context, g constants.PaymentGateway, n *gateway.Notification) error {
	ctx, span := tracing.Tracer().Start(ctx, "settlement.ConfirmExternal")
	defer span.End()
	span.SetAttributes(attribute.String("gateway", g.String()), attribute.String("kind", string(n.Kind)))

	var (
		p   *models.Payment
		err error
	)
	if n.Kind == gateway.NotifyRefunded {
		p, err = s.paymentRepo.GetPaymentByOutRefundNo(ctx, n.OutRefundNo)
	} else {
		p, err = s.paymentRepo.GetPaymentByOutTradeNo(ctx, n.OutTradeNo)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPaymentNotFound.WithMessage("trade %s refund %s", n.OutTradeNo, n.OutRefundNo)
		}
		return fmt.Errorf("failed to load payment for notification: %w", err)
	}
	if p.Gateway != g {
		return ErrPaymentNotFound.WithMessage("payment %s belongs to %s", p.ID.Hex(), p.Gateway)
	}
	if p.Paid {
		s.logger.Info("ConfirmExternal: payment already paid", zap.Stringer("paymentID", p.ID))
		return nil
	}

	gd := p.GatewayData
	if n.Kind == gateway.NotifyRefunded {
		if n.ProviderID != "" {
			gd.ProviderRefundID = n.ProviderID
		}
		if !n.Succeeded {
			gd.RefundStatus = refundStatusFailed
			s.logger.Warn("ConfirmExternal: refund not successful", zap.Stringer("paymentID", p.ID))
			return s.paymentRepo.UpdateGatewayData(ctx, p.ID, gd)
		}
		gd.RefundStatus = refundStatusSucceeded
	} else {
		if !n.Succeeded {
			s.logger.Warn("ConfirmExternal: charge not successful", zap.Stringer("paymentID", p.ID))
			return nil
		}
		if n.Amount.Fen() != gateway.Fen(p.Amount) {
			s.logger.Error("ConfirmExternal: amount mismatch", zap.Stringer("paymentID", p.ID),
				zap.String("expected", p.Amount.String()), zap.String("notified", n.Amount.String()))
			return ErrNotificationAmountMismatch.WithMessage("payment %s expects %d, notified %d", p.ID.Hex(), gateway.Fen(p.Amount), n.Amount.Fen())
		}
		if n.ProviderID != "" {
			gd.ProviderOrderID = n.ProviderID
		}
	}

	if err := s.flipInTransaction(ctx, p, &gd); err != nil && !errors.Is(err, errAlreadyPaid) {
		return err
	}
	return nil
}

// CloseOrder closes the provider order of an unpaid external charge. Payments that never
// reached the provider have nothing to close.
func (s *Settler) CloseOrder(ctx context.Context, p *models.Payment) error {
	if p.Paid || !p.Amount.IsPositive() || !p.Gateway.IsAsync() || p.GatewayData.OutTradeNo == "" {
		return nil
	}
	adapter, err := s.gateways.Get(p.Gateway)
	if err != nil {
		return ErrUnsupportedGateway.Wrap(err)
	}
	if err := adapter.CloseOrder(ctx, p); err != nil {
		s.logger.Error("CloseOrder: close failed", zap.Error(err), zap.Stringer("paymentID", p.ID))
		return mapGatewayError(err)
	}
	s.logger.Info("CloseOrder: provider order closed", zap.Stringer("paymentID", p.ID), zap.String("outTradeNo", p.GatewayData.OutTradeNo))
	return nil
}

func (s *Settler) flipInTransaction(ctx context.Context, p *models.Payment, gd *models.GatewayData) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.flip(txCtx, p, gd)
	})
}

// flip marks the payment paid and, if this call did the flip, fires the attach hook.
func (s *Settler) flip(ctx context.Context, p *models.Payment, gd *models.GatewayData) error {
	if gd != nil {
		p.GatewayData = *gd
	}
	applyReport(p)
	now := s.now()

	params := &repository.MarkPaidParams{
		PaidAt:  now,
		Assets:  p.Assets,
		Debt:    p.Debt,
		Revenue: p.Revenue,
	}
	if gd != nil {
		params.GatewayData = gd
	}
	if p.Gateway == constants.GatewayBalance {
		dep := p.AmountDeposit
		params.AmountDeposit = &dep
	}

	flipped, err := s.paymentRepo.MarkPaid(ctx, p.ID, params)
	if err != nil {
		return fmt.Errorf("failed to mark payment paid: %w", err)
	}
	if !flipped {
		return errAlreadyPaid
	}
	p.Paid = true
	p.PaidAt = &now

	switch p.Attach.Kind {
	case constants.AttachBooking:
		if p.IsReversal() {
			return s.bookingHooks.OnRefundSuccess(ctx, p.Attach.ID)
		}
		return s.bookingHooks.OnPaymentSuccess(ctx, p.Attach.ID, p.GatewayData.AtReception)
	case constants.AttachCard:
		return s.cardHooks.OnCardPaid(ctx, p.Attach.ID)
	}
	return nil
}

// mapGatewayError turns adapter failures into domain errors.
func mapGatewayError(err error) error {
	var pe *gateway.ProviderError
	switch {
	case errors.As(err, &pe):
		switch {
		case pe.Code == gateway.CodeInsufficientMerchantBalance:
			return ErrMerchantBalanceInsufficient.Wrap(err)
		case pe.Retryable:
			return ErrProviderUnavailable.Wrap(err)
		default:
			return ErrProviderRejected.Wrap(err)
		}
	case errors.Is(err, gateway.ErrMissingPayer):
		return ErrNoCustomerOpenID
	case errors.Is(err, gateway.ErrUnsupported):
		return ErrUnsupportedGateway.Wrap(err)
	default:
		return ErrProviderUnavailable.Wrap(err)
	}
}
