package worker

import (
	"context"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"

	"go.uber.org/zap"
)

// CardExpirer is the slice of the card repository the sweeper writes.
type CardExpirer interface {
	CancelPendingBefore(ctx context.Context, before time.Time) (int64, error)
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

// CardSweeper cancels purchases that were never paid and expires cards past expiresAt.
type CardSweeper struct {
	cards      CardExpirer
	logger     *zap.Logger
	interval   time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

func NewCardSweeper(cards CardExpirer, cfg *conf.WorkerConfig, logger *zap.Logger) *CardSweeper {
	s := &CardSweeper{
		cards:      cards,
		logger:     logger.Named("CardSweeper"),
		interval:   10 * time.Minute,
		pendingTTL: defaultPendingTTL,
		now:        time.Now,
	}
	if cfg != nil {
		s.interval = seconds(cfg.CardSweeper.IntervalSeconds, s.interval)
		if cfg.CardSweeper.PendingTTLMinutes > 0 {
			s.pendingTTL = time.Duration(cfg.CardSweeper.PendingTTLMinutes) * time.Minute
		}
	}
	return s
}

func (s *CardSweeper) Start(ctx context.Context) {
	s.logger.Info("Card sweeper started", zap.Duration("interval", s.interval))
	tick(ctx, s.interval, s.logger, func(ctx context.Context) { s.Sweep(ctx) })
}

// Sweep returns the number of canceled and expired cards.
func (s *CardSweeper) Sweep(ctx context.Context) (canceled, expired int64) {
	now := s.now()

	canceled, err := s.cards.CancelPendingBefore(ctx, now.Add(-s.pendingTTL))
	if err != nil {
		s.logger.Error("Sweep: CancelPendingBefore failed", zap.Error(err))
	}

	expired, err = s.cards.ExpireBefore(ctx, now)
	if err != nil {
		s.logger.Error("Sweep: ExpireBefore failed", zap.Error(err))
	}

	if canceled > 0 || expired > 0 {
		s.logger.Info("Sweep: cards closed", zap.Int64("canceled", canceled), zap.Int64("expired", expired))
	}
	return canceled, expired
}

var _ Worker = (*CardSweeper)(nil)
