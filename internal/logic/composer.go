package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/db"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.uber.org/zap"
)

// PaymentSettler is the part of Settler the composer and the refund orchestrator drive.
type PaymentSettler interface {
	Settle(ctx context.Context, p *models.Payment, opts *SettleOptions) (*SettleResult, error)
	CloseOrder(ctx context.Context, p *models.Payment) error
}

var _ PaymentSettler = (*Settler)(nil)

type ComposeInput struct {
	Booking *models.Booking
	// Total is the gross owed amount: price plus card-covered value plus coupon third-party value.
	Total         money.Amount
	PriceInPoints int64
	Customer      *models.Customer
	Card          *models.Card
	Coupon        *models.Coupon
	Gateway       constants.PaymentGateway
	UseBalance    bool
	AtReception   bool
	Title         string
	SockPrice     money.Amount
}

type ComposeResult struct {
	// Payments are in creation order: card, coupon, balance, points or external.
	Payments  []*models.Payment
	Remaining money.Amount
	// Pending is the external payment waiting on the provider, with its Order.
	Pending *models.Payment
	Order   *gateway.Order
	// PaidAny is true once any payment was flipped to paid; compensation depends on it.
	PaidAny bool
}

// Composer decomposes the owed total into ordered payments and settles each in turn.
type Composer struct {
	paymentRepo repository.PaymentRepository
	bookingRepo repository.BookingRepository
	settler     PaymentSettler
	hooks       BookingHooks
	txManager   db.TransactionManager
	logger      *zap.Logger
	now         func() time.Time
}

func NewComposer(
	paymentRepo repository.PaymentRepository,
	bookingRepo repository.BookingRepository,
	settler PaymentSettler,
	hooks BookingHooks,
	txManager db.TransactionManager,
	logger *zap.Logger,
) *Composer {
	return &Composer{
		paymentRepo: paymentRepo,
		bookingRepo: bookingRepo,
		settler:     settler,
		hooks:       hooks,
		txManager:   txManager,
		logger:      logger.Named("Composer"),
		now:         time.Now,
	}
}

// CardTimesAmount is the value a times card covers: price per time times covered kids.
func CardTimesAmount(card *models.Card, kids int) money.Amount {
	if card == nil || card.Type != constants.CardTypeTimes || card.Times <= 0 {
		return money.Zero
	}
	return card.Price.DivInt(card.Times).MulInt(card.CoveredKids(kids)).Round2()
}

// CouponThirdPartyAmount is what the coupon issuer owes for a booking.
func CouponThirdPartyAmount(coupon *models.Coupon, kids int) money.Amount {
	if coupon == nil {
		return money.Zero
	}
	return coupon.PriceThirdParty.MulInt(kids).Round2()
}

// Compose runs the stages in order. The result is returned even on error so the caller can compensate.
func (c *Composer) Compose(ctx context.Context, in *ComposeInput) (*ComposeResult, error) {
	b := in.Booking
	res := &ComposeResult{Remaining: in.Total}

	// 1. Card times, skipped when the card covers no kid
	if in.Card != nil && in.Card.Type == constants.CardTypeTimes && in.Card.CoveredKids(b.KidsCount) > 0 {
		p := c.cardPayment(in, in.Card, in.Title)
		if err := c.runStage(ctx, in, res, p, StageCard); err != nil {
			return res, err
		}
	}

	// 2. Coupon
	if in.Coupon != nil {
		amount := CouponThirdPartyAmount(in.Coupon, b.KidsCount)
		if amount.IsPositive() {
			p := c.newPayment(in, constants.GatewayCoupon, amount, in.Coupon.Title+" "+in.Title)
			if err := c.runStage(ctx, in, res, p, StageCoupon); err != nil {
				return res, err
			}
		}
	}

	// 3. Balance
	if res.Remaining.AtLeastCent() && in.Gateway != constants.GatewayPoints {
		balanceOnly := in.Gateway == constants.GatewayBalance
		hasBalance := in.Customer != nil && in.Customer.Balance().IsPositive()
		if balanceOnly || (in.UseBalance && hasBalance) {
			amount := res.Remaining
			if !balanceOnly {
				amount = money.Min(amount, in.Customer.Balance())
			}
			p := c.newPayment(in, constants.GatewayBalance, amount, in.Title)
			p.AmountForceDeposit = money.Min(in.SockPrice.MulInt(b.SocksCount).Round2(), amount)
			if err := c.runStage(ctx, in, res, p, StageBalance); err != nil {
				return res, err
			}
		}
	}

	// 4. Points or the external remainder
	switch {
	case in.Gateway == constants.GatewayPoints && in.PriceInPoints > 0:
		p := c.newPayment(in, constants.GatewayPoints, money.Zero, in.Title)
		p.AmountInPoints = in.PriceInPoints
		if err := c.runStage(ctx, in, res, p, StagePoints); err != nil {
			return res, err
		}
	case res.Remaining.AtLeastCent():
		switch {
		case in.Gateway == "":
			return res, ErrMissingGateway.WithStage(StageGateway)
		case in.Gateway.IsAsync() || in.Gateway.SettlesOnSite():
		default:
			return res, ErrUnsupportedGateway.WithMessage("gateway %q", in.Gateway).WithStage(StageGateway)
		}
		p := c.newPayment(in, in.Gateway, res.Remaining, in.Title)
		if err := c.runStage(ctx, in, res, p, StageGateway); err != nil {
			return res, err
		}
	}

	if res.Pending != nil {
		return res, nil
	}

	// 全部付清（或零元預約）時確認預約；重複觸發由 pending 條件擋下
	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return c.hooks.OnPaymentSuccess(txCtx, b.ID, in.AtReception)
	})
	if err != nil {
		return res, fmt.Errorf("failed to confirm booking: %w", err)
	}
	return res, nil
}

// SettleCard writes off card times for a booking that is already confirmed.
func (c *Composer) SettleCard(ctx context.Context, b *models.Booking, card *models.Card, title string) (*models.Payment, error) {
	in := &ComposeInput{Booking: b, Card: card, AtReception: true, Title: title}
	res := &ComposeResult{}
	if err := c.runStage(ctx, in, res, c.cardPayment(in, card, title), StageCard); err != nil {
		return nil, err
	}
	return res.Payments[0], nil
}

// cardPayment writes off one card time per covered kid.
func (c *Composer) cardPayment(in *ComposeInput, card *models.Card, title string) *models.Payment {
	b := in.Booking
	p := c.newPayment(in, constants.GatewayCard, CardTimesAmount(card, b.KidsCount), title)
	p.GatewayData.BookingID = &b.ID
	p.GatewayData.CardID = &card.ID
	p.GatewayData.Times = card.CoveredKids(b.KidsCount)
	return p
}

func (c *Composer) newPayment(in *ComposeInput, g constants.PaymentGateway, amount money.Amount, title string) *models.Payment {
	b := in.Booking
	now := c.now()
	customer := b.Customer
	return &models.Payment{
		Customer:    &customer,
		Store:       b.Store,
		Title:       title,
		Amount:      amount,
		Gateway:     g,
		GatewayData: models.GatewayData{AtReception: in.AtReception},
		Attach:      models.BookingAttach(b.ID),
		Scene:       constants.SceneOf(b.Type),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// runStage inserts the payment, links it to the booking and settles it.
func (c *Composer) runStage(ctx context.Context, in *ComposeInput, res *ComposeResult, p *models.Payment, stage string) error {
	id, err := c.paymentRepo.CreatePayment(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to create %s payment: %w", stage, err)
	}
	p.ID = id
	res.Payments = append(res.Payments, p)

	if err := c.bookingRepo.AppendPayment(ctx, in.Booking.ID, p.ID); err != nil {
		return fmt.Errorf("failed to link %s payment: %w", stage, err)
	}
	in.Booking.Payments = append(in.Booking.Payments, p.ID)

	settled, err := c.settler.Settle(ctx, p, &SettleOptions{Customer: in.Customer, Description: in.Title})
	if err != nil {
		c.logger.Warn("Compose: stage failed", zap.String("stage", stage), zap.Error(err), zap.Stringer("bookingID", in.Booking.ID))
		return withStage(err, stage)
	}

	res.Remaining = res.Remaining.Sub(p.Amount)
	if settled.Paid {
		res.PaidAny = true
	} else {
		res.Pending = p
		res.Order = settled.Order
	}
	return nil
}
