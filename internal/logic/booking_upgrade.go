package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/lock"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UpgradeResult is the booking after an upgrade with the payments the upgrade added.
type UpgradeResult struct {
	Booking *models.Booking
	// Payments holds the card payment followed by the reversals of the replaced ticket.
	Payments []*models.Payment
	// Open counts reversals the provider has not confirmed yet.
	Open int
}

// UpgradeToCard replaces the paid ticket of a play booking with times of the customer's card.
// The ticket payments are reversed to their instruments and one card payment writes off a time per kid.
func (l *BookingLogic) UpgradeToCard(ctx context.Context, bookingID, cardID primitive.ObjectID, operator *models.Operator) (*UpgradeResult, error) {
	if !operator.IsStaff() {
		return nil, ErrPermissionDenied
	}
	b, err := l.bookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	card, err := l.cardRepo.GetCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCard.WithMessage("card %s not found", cardID.Hex())
		}
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	if err := checkUpgrade(b, card); err != nil {
		return nil, err
	}
	settings, err := l.settingsRepo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var res *UpgradeResult
	err = lock.WithLock(ctx, l.locker, lock.CardDayKey(card.ID, b.Date), l.lockTTL, func() error {
		// 1. Same card rules as a new booking, without counting this booking
		err := l.resolver.CheckCard(ctx, &CardCheck{
			Card:      card,
			Customer:  b.Customer,
			Store:     b.Store,
			Date:      b.Date,
			KidsCount: b.KidsCount,
			Calendar:  NewHolidayCalendar(settings),
			Exclude:   &b.ID,
		})
		if err != nil {
			return err
		}
		res, err = l.upgrade(ctx, b, card)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.audit(ctx, operator, constants.AuditUpgrade, b.ID, b.Status, b.Status, card.Title)
	return res, nil
}

// checkUpgrade holds the rules that do not depend on other bookings.
func checkUpgrade(b *models.Booking, card *models.Card) error {
	if b.Type != constants.BookingTypePlay || b.Card != nil || b.KidsCount <= 0 {
		return ErrUpgradeNotAllowed
	}
	switch b.StatusValue() {
	case constants.BookingStatusBooked, constants.BookingStatusInService:
	default:
		return ErrUpgradeNotAllowed.WithMessage("booking is %s", b.Status)
	}
	if card.Type != constants.CardTypeTimes || card.Times <= 0 {
		return ErrUpgradeNotAllowed.WithMessage("card %s is not a times card", card.Title)
	}
	if card.TimesLeft < b.KidsCount {
		return ErrInsufficientCardTimes
	}
	if card.MaxKids > 0 && card.MaxKids < b.KidsCount {
		return ErrUpgradeNotAllowed.WithMessage("card admits at most %d kids", card.MaxKids)
	}
	if card.FreeParentsPerKid > 0 && card.FreeParentsPerKid*b.KidsCount < b.AdultsCount {
		return ErrUpgradeNotAllowed.WithMessage("card admits at most %d free adults per kid", card.FreeParentsPerKid)
	}
	return nil
}

func (l *BookingLogic) upgrade(ctx context.Context, b *models.Booking, card *models.Card) (*UpgradeResult, error) {
	res := &UpgradeResult{}

	// 2. Reverse the ticket
	open, err := l.refunds.ReversePaid(ctx, b)
	if err != nil {
		l.logger.Error("UpgradeToCard: ReversePaid failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		return nil, err
	}
	res.Open = open

	// 3. Card times, then attach the card
	cardPayment, err := l.composer.SettleCard(ctx, b, card, UpgradeTitle(card))
	if err != nil {
		l.logger.Error("UpgradeToCard: SettleCard failed", zap.Error(err), zap.Stringer("bookingID", b.ID))
		return nil, err
	}
	res.Payments = append(res.Payments, cardPayment)
	if err := l.bookingRepo.UpdateBooking(ctx, b.ID, repository.WithBookingCard(card.ID)); err != nil {
		return nil, fmt.Errorf("failed to attach card: %w", err)
	}

	payments, err := l.paymentRepo.ListPaymentsByAttach(ctx, models.BookingAttach(b.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to list booking payments: %w", err)
	}
	for _, p := range payments {
		if p.IsReversal() {
			res.Payments = append(res.Payments, p)
		}
	}
	if res.Booking, err = l.bookingRepo.GetBookingByID(ctx, b.ID); err != nil {
		return nil, fmt.Errorf("failed to reload booking: %w", err)
	}
	l.logger.Info("booking upgraded to card", zap.Stringer("bookingID", b.ID), zap.Stringer("cardID", card.ID), zap.Int("open", open))
	return res, nil
}

// PricePreview is what CreateBooking would charge, with the value the card and coupon cover.
type PricePreview struct {
	Price         money.Amount `json:"price"`
	PriceInPoints int64        `json:"price_in_points"`
	CardAmount    money.Amount `json:"card_amount"`
	CouponAmount  money.Amount `json:"coupon_amount"`
}

// PreviewPrice runs the pricing and instrument checks of CreateBooking without saving anything.
func (l *BookingLogic) PreviewPrice(ctx context.Context, in *CreateBookingInput, operator *models.Operator) (*PricePreview, error) {
	if !in.Type.Valid() {
		return nil, ErrInvalidBookingType
	}
	if err := checkHeadcount(in); err != nil {
		return nil, err
	}
	customerID := operator.UserID
	if operator.IsStaff() && in.Customer != nil {
		customerID = *in.Customer
	}
	if in.Date == "" {
		in.Date = l.now().Format(models.DateLayout)
	}

	snap, err := l.loadSnapshot(ctx, customerID, in)
	if err != nil {
		return nil, err
	}
	if snap.coupon != nil {
		if err := l.resolver.CheckCoupon(ctx, &CouponCheck{Coupon: snap.coupon, Store: in.Store, Date: in.Date, KidsCount: in.KidsCount}); err != nil {
			return nil, err
		}
	}
	if snap.card != nil {
		err := l.resolver.CheckCard(ctx, &CardCheck{
			Card:      snap.card,
			Customer:  customerID,
			Store:     in.Store,
			Date:      in.Date,
			KidsCount: in.KidsCount,
			Calendar:  NewHolidayCalendar(snap.settings),
		})
		if err != nil {
			return nil, err
		}
	}

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
	return &PricePreview{
		Price:         priced.Price,
		PriceInPoints: priced.PriceInPoints,
		CardAmount:    CardTimesAmount(snap.card, in.KidsCount),
		CouponAmount:  CouponThirdPartyAmount(snap.coupon, in.KidsCount),
	}, nil
}
