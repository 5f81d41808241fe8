package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/logic"

	"go.uber.org/zap"
)

// NotificationConfirmer is implemented by logic.NotifyLogic.
type NotificationConfirmer interface {
	ConfirmExternal(ctx context.Context, g constants.PaymentGateway, n *gateway.Notification) error
}

var _ NotificationConfirmer = (*logic.NotifyLogic)(nil)

// AdapterLookup resolves the adapter that verifies a provider callback.
type AdapterLookup interface {
	Get(g constants.PaymentGateway) (gateway.Adapter, error)
}

// wechatAck is the body WeChat Pay expects from a callback.
type wechatAck struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NotifyHandler receives payment and refund callbacks at /notify/{gateway}.
type NotifyHandler struct {
	adapters AdapterLookup
	settler  NotificationConfirmer
	logger   *zap.Logger
}

func NewNotifyHandler(adapters AdapterLookup, settler NotificationConfirmer, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{adapters: adapters, settler: settler, logger: logger.Named("NotifyHandler")}
}

func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g := constants.PaymentGateway(r.PathValue("gateway"))

	// 1. Verify the callback with the provider's adapter.
	adapter, err := h.adapters.Get(g)
	if err != nil {
		h.logger.Warn("Notify: unknown gateway", zap.String("gateway", g.String()))
		h.reject(w, http.StatusNotFound, "gateway not configured")
		return
	}
	n, err := adapter.ParseNotification(r.Context(), r)
	if err != nil {
		if errors.Is(err, gateway.ErrIgnoredNotify) {
			h.ack(w)
			return
		}
		h.logger.Warn("Notify: ParseNotification failed", zap.Error(err), zap.String("gateway", g.String()))
		h.reject(w, http.StatusBadRequest, "invalid notification")
		return
	}

	// 2. Apply it. Unknown references are acknowledged so the provider stops resending.
	if err := h.settler.ConfirmExternal(r.Context(), g, n); err != nil {
		if errors.Is(err, logic.ErrPaymentNotFound) {
			h.logger.Warn("Notify: payment not found", zap.Error(err), zap.String("outTradeNo", n.OutTradeNo), zap.String("outRefundNo", n.OutRefundNo))
			h.ack(w)
			return
		}
		if errors.Is(err, logic.ErrNotificationAmountMismatch) {
			h.logger.Error("Notify: amount mismatch", zap.Error(err), zap.String("outTradeNo", n.OutTradeNo), zap.String("amount", n.Amount.String()))
			h.reject(w, http.StatusBadRequest, "amount mismatch")
			return
		}
		h.logger.Error("Notify: ConfirmExternal failed", zap.Error(err), zap.String("gateway", g.String()), zap.String("outTradeNo", n.OutTradeNo))
		// provider retries on non-2xx
		h.reject(w, http.StatusInternalServerError, "temporarily unavailable")
		return
	}

	h.logger.Info("Notify: applied", zap.String("gateway", g.String()), zap.String("kind", string(n.Kind)),
		zap.String("outTradeNo", n.OutTradeNo), zap.String("outRefundNo", n.OutRefundNo))
	h.ack(w)
}

func (h *NotifyHandler) ack(w http.ResponseWriter) {
	writeRaw(w, http.StatusOK, wechatAck{Code: "SUCCESS", Message: "OK"})
}

func (h *NotifyHandler) reject(w http.ResponseWriter, status int, message string) {
	writeRaw(w, status, wechatAck{Code: "FAIL", Message: message})
}
