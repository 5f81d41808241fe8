package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// InstrumentResolver validates cards, coupons, events and gifts against a booking.
// Every rule violation is an InstrumentRejected error; the checks never write.
type InstrumentResolver struct {
	bookingRepo repository.BookingRepository
	logger      *zap.Logger
}

func NewInstrumentResolver(bookingRepo repository.BookingRepository, logger *zap.Logger) *InstrumentResolver {
	return &InstrumentResolver{
		bookingRepo: bookingRepo,
		logger:      logger.Named("InstrumentResolver"),
	}
}

type CardCheck struct {
	Card      *models.Card
	Customer  primitive.ObjectID
	Store     *primitive.ObjectID
	Date      string
	KidsCount int
	Calendar  *HolidayCalendar
	// Exclude leaves a booking out of the quota sum, e.g. the booking being edited.
	Exclude *primitive.ObjectID
}

func dayOf(t *time.Time) string {
	return t.In(time.Local).Format(models.DateLayout)
}

// CheckCard runs the card rules in order and returns the first violation.
// The caller holds the card:<id>:<date> lock until the booking is saved.
func (r *InstrumentResolver) CheckCard(ctx context.Context, c *CardCheck) error {
	card := c.Card
	if card.Customer != c.Customer {
		return ErrCardOwnerMismatch
	}
	if card.Status != constants.CardStatusActivated {
		return ErrCardNotActivated
	}
	if card.Start != nil && c.Date < dayOf(card.Start) {
		return ErrCardNotStarted
	}
	if card.ExpiresAt != nil && c.Date > dayOf(card.ExpiresAt) {
		return ErrCardExpired
	}
	if !card.AllowsStore(c.Store) {
		return ErrStoreNotAllowed
	}
	if card.MinKids > 0 && c.KidsCount < card.MinKids {
		return ErrKidsBelowMinimum.WithMessage("card requires at least %d kids", card.MinKids)
	}

	if card.DayType != constants.DayTypeAny && c.Calendar != nil {
		off, err := c.Calendar.IsOffDay(c.Date)
		if err != nil {
			return err
		}
		if card.DayType == constants.DayTypeOnDays && off {
			return ErrCardOnDaysOnly
		}
		if card.DayType == constants.DayTypeOffDays && !off {
			return ErrCardOffDaysOnly
		}
	}

	if card.MaxKids > 0 {
		used, err := r.bookingRepo.SumKidsOnCard(ctx, &repository.CardQuotaParams{
			CardID:   card.ID,
			Date:     c.Date,
			Statuses: constants.PaidBookingStatuses,
			Exclude:  c.Exclude,
		})
		if err != nil {
			r.logger.Error("CheckCard: SumKidsOnCard failed", zap.Error(err), zap.Stringer("cardID", card.ID))
			return fmt.Errorf("failed to sum card quota: %w", err)
		}
		if used+c.KidsCount > card.MaxKids {
			return ErrCardQuotaExceeded.WithMessage("%d of %d kids already booked on %s", used, card.MaxKids, c.Date)
		}
	}
	return nil
}

type CouponCheck struct {
	Coupon    *models.Coupon
	Store     *primitive.ObjectID
	Date      string
	KidsCount int
}

func (r *InstrumentResolver) CheckCoupon(_ context.Context, c *CouponCheck) error {
	coupon := c.Coupon
	if !coupon.Enabled {
		return ErrCouponDisabled
	}
	if coupon.Start != nil && c.Date < dayOf(coupon.Start) {
		return ErrCouponNotStarted
	}
	if coupon.End != nil && c.Date > dayOf(coupon.End) {
		return ErrCouponExpired
	}
	if !coupon.AllowsStore(c.Store) {
		return ErrStoreNotAllowed
	}
	if coupon.KidsCount > 0 && c.KidsCount%coupon.KidsCount != 0 {
		return ErrCouponKidsCountSize.WithMessage("kids count must be a multiple of %d", coupon.KidsCount)
	}
	return nil
}

func (r *InstrumentResolver) CheckEvent(_ context.Context, event *models.Event, kids int, now time.Time) error {
	if event.Limited() && event.KidsCountLeft < kids {
		return ErrEventKidsNotEnough.WithMessage("%d places left", event.KidsCountLeft)
	}
	if event.Date != "" && event.Date < now.Format(models.DateLayout) {
		return ErrEventDatePassed
	}
	return nil
}

func (r *InstrumentResolver) CheckGift(ctx context.Context, gift *models.Gift, customer primitive.ObjectID, quantity int) error {
	if gift.Limited() && *gift.Quantity < quantity {
		return ErrGiftOutOfStock
	}
	if gift.MaxQuantityPerCustomer > 0 {
		redeemed, err := r.bookingRepo.SumGiftQuantity(ctx, customer, gift.ID, constants.PaidBookingStatuses)
		if err != nil {
			r.logger.Error("CheckGift: SumGiftQuantity failed", zap.Error(err), zap.Stringer("giftID", gift.ID))
			return fmt.Errorf("failed to sum gift redemptions: %w", err)
		}
		if redeemed+quantity > gift.MaxQuantityPerCustomer {
			return ErrGiftQuantityLimit.WithMessage("limit %d, already redeemed %d", gift.MaxQuantityPerCustomer, redeemed)
		}
	}
	return nil
}
