package worker

import (
	"context"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultPendingTTL = 2 * time.Hour

// StaleBookingFinder is the slice of the booking repository the sweeper reads.
type StaleBookingFinder interface {
	FindStaleBookings(ctx context.Context, params *repository.StaleBookingsParams) ([]*models.Booking, error)
}

// BookingCloser closes bookings through the booking state machine.
type BookingCloser interface {
	Cancel(ctx context.Context, id primitive.ObjectID, operator *models.Operator, reason string) error
	Checkout(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error
}

// BookingSweeper closes bookings nobody will act on any more:
//   - pending bookings whose payment never arrived are canceled,
//   - booked bookings whose date has passed are canceled and refunded,
//   - in-service bookings from an earlier day are finished.
type BookingSweeper struct {
	finder     StaleBookingFinder
	closer     BookingCloser
	logger     *zap.Logger
	interval   time.Duration
	pendingTTL time.Duration
	batchSize  int
	now        func() time.Time
}

func NewBookingSweeper(finder StaleBookingFinder, closer BookingCloser, cfg *conf.WorkerConfig, logger *zap.Logger) *BookingSweeper {
	s := &BookingSweeper{
		finder:     finder,
		closer:     closer,
		logger:     logger.Named("BookingSweeper"),
		interval:   time.Minute,
		pendingTTL: defaultPendingTTL,
		batchSize:  100,
		now:        time.Now,
	}
	if cfg != nil {
		s.interval = seconds(cfg.BookingSweeper.IntervalSeconds, s.interval)
		if cfg.BookingSweeper.PendingTTLMinutes > 0 {
			s.pendingTTL = time.Duration(cfg.BookingSweeper.PendingTTLMinutes) * time.Minute
		}
		if cfg.BookingSweeper.BatchSize > 0 {
			s.batchSize = cfg.BookingSweeper.BatchSize
		}
	}
	return s
}

func (s *BookingSweeper) Start(ctx context.Context) {
	s.logger.Info("Booking sweeper started", zap.Duration("interval", s.interval), zap.Duration("pendingTTL", s.pendingTTL))
	tick(ctx, s.interval, s.logger, func(ctx context.Context) { s.Sweep(ctx) })
}

// Sweep runs one pass and returns how many bookings it closed.
func (s *BookingSweeper) Sweep(ctx context.Context) int {
	now := s.now()
	today := now.Format(models.DateLayout)
	closed := 0

	closed += s.sweep(ctx, &repository.StaleBookingsParams{
		Status:        constants.BookingStatusPending.String(),
		CreatedBefore: now.Add(-s.pendingTTL),
		Limit:         s.batchSize,
	}, func(b *models.Booking) error {
		return s.closer.Cancel(ctx, b.ID, models.SystemOperator, "支付超时")
	})

	closed += s.sweep(ctx, &repository.StaleBookingsParams{
		Status:     constants.BookingStatusBooked.String(),
		DateBefore: today,
		Limit:      s.batchSize,
	}, func(b *models.Booking) error {
		return s.closer.Cancel(ctx, b.ID, models.SystemOperator, "过期未入场")
	})

	closed += s.sweep(ctx, &repository.StaleBookingsParams{
		Status:     constants.BookingStatusInService.String(),
		DateBefore: today,
		Limit:      s.batchSize,
	}, func(b *models.Booking) error {
		return s.closer.Checkout(ctx, b.ID, models.SystemOperator)
	})

	return closed
}

func (s *BookingSweeper) sweep(ctx context.Context, params *repository.StaleBookingsParams, closeFn func(b *models.Booking) error) int {
	bookings, err := s.finder.FindStaleBookings(ctx, params)
	if err != nil {
		s.logger.Error("Sweep: FindStaleBookings failed", zap.Error(err), zap.String("status", params.Status))
		return 0
	}
	if len(bookings) > 0 {
		s.logger.Info("Sweep: closing stale bookings", zap.String("status", params.Status), zap.Int("count", len(bookings)))
	}

	closed := 0
	for _, b := range bookings {
		if err := closeFn(b); err != nil {
			// one broken booking must not block the rest of the batch
			s.logger.Error("Sweep: close failed", zap.Error(err), zap.Stringer("bookingID", b.ID), zap.String("status", params.Status))
			continue
		}
		closed++
	}
	return closed
}

var _ Worker = (*BookingSweeper)(nil)
