// Package gateway adapts external payment providers to the settlement engine.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
)

var (
	ErrUnsupported   = errors.New("gateway not configured")
	ErrBadNotify     = errors.New("invalid provider notification")
	// ErrIgnoredNotify marks a verified callback that needs no action. Handlers acknowledge it.
	ErrIgnoredNotify = errors.New("notification ignored")
	ErrMissingPayer  = errors.New("payer identity required")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ProviderError is a failure reported by the provider itself.
type ProviderError struct {
	Provider  constants.PaymentGateway
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider codes the settlement engine reacts to.
const (
	CodeInsufficientMerchantBalance = "wechat_account_insufficient_balance"
	CodeProviderRejected            = "provider_rejected"
	CodeProviderUnavailable         = "provider_unavailable"
)

type OrderRequest struct {
	Payment     *models.Payment
	Description string
	OpenID      string
	AtReception bool
}

// Order carries whatever the client needs to complete payment.
type Order struct {
	ProviderOrderID string
	PayArgs         map[string]string
	CodeURL         string
	RedirectURL     string
}

type RefundRequest struct {
	Original *models.Payment
	Refund   *models.Payment
	Reason   string
}

type RefundStatus string

const (
	RefundSucceeded  RefundStatus = "succeeded"
	RefundProcessing RefundStatus = "processing"
)

type RefundResult struct {
	ProviderRefundID string
	Status           RefundStatus
}

type NotificationKind string

const (
	NotifyPaid     NotificationKind = "paid"
	NotifyRefunded NotificationKind = "refunded"
)

// Notification is a verified provider callback.
type Notification struct {
	Kind        NotificationKind
	OutTradeNo  string
	OutRefundNo string
	ProviderID  string
	Amount      money.Amount
	Succeeded   bool
}

// Adapter is one external payment provider.
type Adapter interface {
	Gateway() constants.PaymentGateway
	CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
	// CloseOrder stops the provider from accepting money for an unpaid order.
	CloseOrder(ctx context.Context, p *models.Payment) error
	// ParseNotification verifies and decodes a callback request.
	ParseNotification(ctx context.Context, r *http.Request) (*Notification, error)
}

// Registry resolves the adapter for a gateway.
type Registry struct {
	adapters map[constants.PaymentGateway]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[constants.PaymentGateway]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Gateway()] = a
		}
	}
	return r
}

func (r *Registry) Get(g constants.PaymentGateway) (Adapter, error) {
	if a, ok := r.adapters[g]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, g)
}

// Fen converts an amount to provider minor units. Providers reject zero, so the floor is one unit.
func Fen(a money.Amount) int64 {
	f := a.Abs().Fen()
	if f < 1 {
		return 1
	}
	return f
}
