package logic

import (
	"context"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/gateway"

	"go.uber.org/zap"
)

// NotifyLogic confirms provider callbacks. A charge that lands on a booking already
// being refunded is reversed right away instead of waiting for the retry queue.
type NotifyLogic struct {
	paymentRepo repository.PaymentRepository
	settler     *Settler
	refunds     *RefundOrchestrator
	logger      *zap.Logger
}

func NewNotifyLogic(
	paymentRepo repository.PaymentRepository,
	settler *Settler,
	refunds *RefundOrchestrator,
	logger *zap.Logger,
) *NotifyLogic {
	return &NotifyLogic{
		paymentRepo: paymentRepo,
		settler:     settler,
		refunds:     refunds,
		logger:      logger.Named("NotifyLogic"),
	}
}

func (l *NotifyLogic) ConfirmExternal(ctx context.Context, g constants.PaymentGateway, n *gateway.Notification) error {
	if err := l.settler.ConfirmExternal(ctx, g, n); err != nil {
		return err
	}
	if n.Kind != gateway.NotifyPaid || !n.Succeeded {
		return nil
	}

	p, err := l.paymentRepo.GetPaymentByOutTradeNo(ctx, n.OutTradeNo)
	if err != nil {
		l.logger.Error("ConfirmExternal: GetPaymentByOutTradeNo failed", zap.Error(err), zap.String("outTradeNo", n.OutTradeNo))
		return nil
	}
	if p.Attach.Kind != constants.AttachBooking {
		return nil
	}
	// 只有已取消後才付款的預約會在 pending_refund，其餘情況 RetryRefund 不做事
	if err := l.refunds.RetryRefund(ctx, p.Attach.ID); err != nil {
		// the refund.pending event is already queued
		l.logger.Error("ConfirmExternal: RetryRefund failed", zap.Error(err), zap.Stringer("bookingID", p.Attach.ID))
	}
	return nil
}
