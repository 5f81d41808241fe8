package worker

import (
	"context"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CustomerLister interface {
	ListCustomers(ctx context.Context, afterID primitive.ObjectID, limit int) ([]*models.Customer, error)
}

type BalanceCardSummer interface {
	SumActivatedBalance(ctx context.Context, customerID primitive.ObjectID) (money.Amount, error)
}

type PaidAmountSummer interface {
	SumPaidAmount(ctx context.Context, customerID primitive.ObjectID, gateway constants.PaymentGateway) (money.Amount, error)
}

// BalanceMismatch is a customer whose stored balance differs from the one rebuilt from the ledger.
type BalanceMismatch struct {
	CustomerID primitive.ObjectID
	Stored     money.Amount
	Expected   money.Amount
}

// BalanceVerifier rebuilds every customer's balance as the face value of their activated
// balance cards minus their paid balance payments, and reports customers that disagree.
// It only reports; nothing is corrected.
type BalanceVerifier struct {
	customers CustomerLister
	cards     BalanceCardSummer
	payments  PaidAmountSummer
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

func NewBalanceVerifier(customers CustomerLister, cards BalanceCardSummer, payments PaidAmountSummer, cfg *conf.WorkerConfig, logger *zap.Logger) *BalanceVerifier {
	v := &BalanceVerifier{
		customers: customers,
		cards:     cards,
		payments:  payments,
		logger:    logger.Named("BalanceVerifier"),
		interval:  24 * time.Hour,
		batchSize: 200,
	}
	if cfg != nil {
		v.interval = seconds(cfg.BalanceVerifier.IntervalSeconds, v.interval)
		if cfg.BalanceVerifier.BatchSize > 0 {
			v.batchSize = cfg.BalanceVerifier.BatchSize
		}
	}
	return v
}

func (v *BalanceVerifier) Start(ctx context.Context) {
	v.logger.Info("Balance verifier started", zap.Duration("interval", v.interval))
	tick(ctx, v.interval, v.logger, func(ctx context.Context) { v.Verify(ctx) })
}

// Verify walks all customers page by page.
func (v *BalanceVerifier) Verify(ctx context.Context) []BalanceMismatch {
	var (
		mismatches []BalanceMismatch
		after      = primitive.NilObjectID
		checked    int
	)
	for {
		page, err := v.customers.ListCustomers(ctx, after, v.batchSize)
		if err != nil {
			v.logger.Error("Verify: ListCustomers failed", zap.Error(err), zap.Stringer("after", after))
			break
		}
		for _, c := range page {
			if m, ok := v.check(ctx, c); ok {
				mismatches = append(mismatches, m)
			}
		}
		checked += len(page)
		if len(page) < v.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	v.logger.Info("Verify: finished", zap.Int("checked", checked), zap.Int("mismatches", len(mismatches)))
	return mismatches
}

func (v *BalanceVerifier) check(ctx context.Context, c *models.Customer) (BalanceMismatch, bool) {
	credited, err := v.cards.SumActivatedBalance(ctx, c.ID)
	if err != nil {
		v.logger.Error("Verify: SumActivatedBalance failed", zap.Error(err), zap.Stringer("customerID", c.ID))
		return BalanceMismatch{}, false
	}
	spent, err := v.payments.SumPaidAmount(ctx, c.ID, constants.GatewayBalance)
	if err != nil {
		v.logger.Error("Verify: SumPaidAmount failed", zap.Error(err), zap.Stringer("customerID", c.ID))
		return BalanceMismatch{}, false
	}

	expected := credited.Sub(spent).Round2()
	stored := c.Balance().Round2()
	if expected.Equal(stored) {
		return BalanceMismatch{}, false
	}
	v.logger.Warn("Verify: balance mismatch",
		zap.Stringer("customerID", c.ID),
		zap.String("mobile", c.Mobile),
		zap.Stringer("stored", stored),
		zap.Stringer("expected", expected),
	)
	return BalanceMismatch{CustomerID: c.ID, Stored: stored, Expected: expected}, true
}

var _ Worker = (*BalanceVerifier)(nil)
