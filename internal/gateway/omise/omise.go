package omise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/internal/tracing"
	"github.com/lltxwdk/minimars-server/pkg/money"

	omisego "github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	sourcePromptPay     = "promptpay"
	eventChargeComplete = "charge.complete"
	chargeSuccessful    = "successful"

	metaOutTradeNo = "out_trade_no"
	metaPaymentID  = "payment_id"
)

// Adapter implements gateway.Adapter on Omise charges and sources.
// Charges stay pending until the charge.complete webhook; refunds count as settled once accepted.
type Adapter struct {
	cfg    *conf.OmiseConfig
	logger *zap.Logger

	createSource  func(op *operations.CreateSource) (*omisego.Source, error)
	createCharge  func(op *operations.CreateCharge) (*omisego.Charge, error)
	createRefund  func(op *operations.CreateRefund) (*omisego.Refund, error)
	reverseCharge func(op *operations.ReverseCharge) (*omisego.Charge, error)
	retrieveEvent func(op *operations.RetrieveEvent) (*omisego.Event, error)
}

// NewAdapter returns nil when Omise is disabled.
func NewAdapter(cfg *conf.OmiseConfig, logger *zap.Logger) (*Adapter, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	client, err := omisego.NewClient(cfg.PublicKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}

	a := &Adapter{cfg: cfg, logger: logger.Named("Omise")}
	a.createSource = func(op *operations.CreateSource) (*omisego.Source, error) {
		src := &omisego.Source{}
		return src, client.Do(src, op)
	}
	a.createCharge = func(op *operations.CreateCharge) (*omisego.Charge, error) {
		ch := &omisego.Charge{}
		return ch, client.Do(ch, op)
	}
	a.createRefund = func(op *operations.CreateRefund) (*omisego.Refund, error) {
		rf := &omisego.Refund{}
		return rf, client.Do(rf, op)
	}
	a.reverseCharge = func(op *operations.ReverseCharge) (*omisego.Charge, error) {
		ch := &omisego.Charge{}
		return ch, client.Do(ch, op)
	}
	a.retrieveEvent = func(op *operations.RetrieveEvent) (*omisego.Event, error) {
		ev := &omisego.Event{}
		return ev, client.Do(ev, op)
	}
	return a, nil
}

func (a *Adapter) Gateway() constants.PaymentGateway {
	return constants.GatewayOmise
}

func (a *Adapter) currency() string {
	if a.cfg.Currency == "" {
		return "thb"
	}
	return strings.ToLower(a.cfg.Currency)
}

func (a *Adapter) CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.Order, error) {
	_, span := tracing.Tracer().Start(ctx, "omise.CreateOrder")
	defer span.End()

	p := req.Payment
	amount := gateway.Fen(p.Amount)
	outTradeNo := p.GatewayData.OutTradeNo
	span.SetAttributes(attribute.String("out_trade_no", outTradeNo), attribute.Int64("amount", amount))

	// 1. Source
	src, err := a.createSource(&operations.CreateSource{
		Type:     sourcePromptPay,
		Amount:   amount,
		Currency: a.currency(),
	})
	if err != nil {
		a.logger.Error("CreateOrder: create source failed", zap.Error(err), zap.String("outTradeNo", outTradeNo))
		return nil, a.providerError(err)
	}

	// 2. Charge against the source
	ch, err := a.createCharge(&operations.CreateCharge{
		Amount:    amount,
		Currency:  a.currency(),
		Source:    src.ID,
		ReturnURI: a.cfg.ReturnURI,
		Metadata: map[string]interface{}{
			metaOutTradeNo: outTradeNo,
			metaPaymentID:  p.ID.Hex(),
		},
	})
	if err != nil {
		a.logger.Error("CreateOrder: create charge failed", zap.Error(err), zap.String("outTradeNo", outTradeNo))
		return nil, a.providerError(err)
	}

	return &gateway.Order{
		ProviderOrderID: ch.ID,
		RedirectURL:     ch.AuthorizeURI,
	}, nil
}

func (a *Adapter) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	_, span := tracing.Tracer().Start(ctx, "omise.Refund")
	defer span.End()

	chargeID := req.Original.GatewayData.ProviderOrderID
	if chargeID == "" {
		return nil, fmt.Errorf("%w: original payment has no charge id", gateway.ErrBadNotify)
	}
	span.SetAttributes(attribute.String("charge_id", chargeID))

	rf, err := a.createRefund(&operations.CreateRefund{
		ChargeID: chargeID,
		Amount:   gateway.Fen(req.Refund.Amount),
	})
	if err != nil {
		a.logger.Error("Refund: create refund failed", zap.Error(err), zap.String("chargeID", chargeID))
		return nil, a.providerError(err)
	}
	return &gateway.RefundResult{ProviderRefundID: rf.ID, Status: gateway.RefundSucceeded}, nil
}

// CloseOrder reverses the pending charge so it can no longer be paid.
func (a *Adapter) CloseOrder(ctx context.Context, p *models.Payment) error {
	_, span := tracing.Tracer().Start(ctx, "omise.CloseOrder")
	defer span.End()

	chargeID := p.GatewayData.ProviderOrderID
	if chargeID == "" {
		return nil
	}
	span.SetAttributes(attribute.String("charge_id", chargeID))

	if _, err := a.reverseCharge(&operations.ReverseCharge{ChargeID: chargeID}); err != nil {
		a.logger.Error("CloseOrder: reverse charge failed", zap.Error(err), zap.String("chargeID", chargeID))
		return a.providerError(err)
	}
	return nil
}

type webhookBody struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ParseNotification trusts only the event id of the body and re-fetches the event from Omise.
func (a *Adapter) ParseNotification(ctx context.Context, r *http.Request) (*gateway.Notification, error) {
	var body webhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		return nil, fmt.Errorf("%w: malformed webhook body", gateway.ErrBadNotify)
	}

	ev, err := a.retrieveEvent(&operations.RetrieveEvent{EventID: body.ID})
	if err != nil {
		a.logger.Warn("ParseNotification: retrieve event failed", zap.Error(err), zap.String("eventID", body.ID))
		return nil, fmt.Errorf("%w: %v", gateway.ErrBadNotify, err)
	}
	if ev.Key != eventChargeComplete {
		return nil, gateway.ErrIgnoredNotify
	}

	// ev.Data 是 interface{}，先轉回 JSON 再解成 Charge
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrBadNotify, err)
	}
	var ch omisego.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrBadNotify, err)
	}

	outTradeNo, _ := ch.Metadata[metaOutTradeNo].(string)
	if outTradeNo == "" {
		return nil, fmt.Errorf("%w: charge %s has no out_trade_no", gateway.ErrBadNotify, ch.ID)
	}
	return &gateway.Notification{
		Kind:       gateway.NotifyPaid,
		OutTradeNo: outTradeNo,
		ProviderID: ch.ID,
		Amount:     money.FromFen(ch.Amount),
		Succeeded:  string(ch.Status) == chargeSuccessful,
	}, nil
}

func (a *Adapter) providerError(err error) error {
	pe := &gateway.ProviderError{
		Provider:  constants.GatewayOmise,
		Code:      gateway.CodeProviderUnavailable,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
	var oe *omisego.Error
	if errors.As(err, &oe) {
		pe.Code = gateway.CodeProviderRejected
		pe.Message = fmt.Sprintf("%s: %s", oe.Code, oe.Message)
		pe.Retryable = oe.StatusCode >= http.StatusInternalServerError
	}
	return pe
}
