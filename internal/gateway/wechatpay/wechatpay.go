package wechatpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/internal/tracing"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/jsapi"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/services/refunddomestic"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	currencyCNY = "CNY"

	// WeChat error code for an empty merchant refund balance.
	codeNotEnough = "NOT_ENOUGH"
	// 訂單已關閉，重複關單視為成功
	codeOrderClosed = "ORDER_CLOSED"

	eventTransactionSuccess = "TRANSACTION.SUCCESS"
	eventRefundSuccess      = "REFUND.SUCCESS"
)

type jsapiService interface {
	PrepayWithRequestPayment(ctx context.Context, req jsapi.PrepayRequest) (*jsapi.PrepayWithRequestPaymentResponse, *core.APIResult, error)
	CloseOrder(ctx context.Context, req jsapi.CloseOrderRequest) (*core.APIResult, error)
}

type nativeService interface {
	Prepay(ctx context.Context, req native.PrepayRequest) (*native.PrepayResponse, *core.APIResult, error)
	CloseOrder(ctx context.Context, req native.CloseOrderRequest) (*core.APIResult, error)
}

type refundService interface {
	Create(ctx context.Context, req refunddomestic.CreateRequest) (*refunddomestic.Refund, *core.APIResult, error)
}

type notifyParser interface {
	ParseNotifyRequest(ctx context.Context, request *http.Request, content interface{}) (*notify.Request, error)
}

// Adapter implements gateway.Adapter for WeChat Pay API v3.
// JSAPI prepay serves the mini program; native prepay renders a QR code at reception.
type Adapter struct {
	cfg     *conf.WechatPayConfig
	jsapi   jsapiService
	native  nativeService
	refunds refundService
	notify  notifyParser
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewAdapter builds the SDK client. It returns nil when WeChat Pay is disabled.
func NewAdapter(ctx context.Context, cfg *conf.WechatPayConfig, logger *zap.Logger) (*Adapter, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	privateKey, err := utils.LoadPrivateKeyWithPath(cfg.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant private key: %w", err)
	}
	client, err := core.NewClient(ctx, option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.SerialNo, privateKey, cfg.APIv3Key))
	if err != nil {
		return nil, fmt.Errorf("failed to create wechatpay client: %w", err)
	}

	// the auto auth cipher registered the platform certificate downloader for this merchant
	visitor := downloader.MgrInstance().GetCertificateVisitor(cfg.MchID)
	handler, err := notify.NewRSANotifyHandler(cfg.APIv3Key, verifiers.NewSHA256WithRSAVerifier(visitor))
	if err != nil {
		return nil, fmt.Errorf("failed to create wechatpay notify handler: %w", err)
	}

	return newAdapter(cfg,
		&jsapi.JsapiApiService{Client: client},
		&native.NativeApiService{Client: client},
		&refunddomestic.RefundsApiService{Client: client},
		handler,
		logger,
	), nil
}

func newAdapter(cfg *conf.WechatPayConfig, js jsapiService, nt nativeService, rf refundService, np notifyParser, logger *zap.Logger) *Adapter {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Adapter{
		cfg:     cfg,
		jsapi:   js,
		native:  nt,
		refunds: rf,
		notify:  np,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("WechatPay"),
	}
}

func (a *Adapter) Gateway() constants.PaymentGateway {
	return constants.GatewayWechatPay
}

func (a *Adapter) CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.Order, error) {
	ctx, span := tracing.Tracer().Start(ctx, "wechatpay.CreateOrder")
	defer span.End()

	p := req.Payment
	outTradeNo := p.GatewayData.OutTradeNo
	total := gateway.Fen(p.Amount)
	span.SetAttributes(attribute.String("out_trade_no", outTradeNo), attribute.Int64("total", total))

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// 1. Reception: native QR code, no payer identity needed.
	if req.AtReception {
		resp, _, err := a.native.Prepay(ctx, native.PrepayRequest{
			Appid:       core.String(a.cfg.AppID),
			Mchid:       core.String(a.cfg.MchID),
			Description: core.String(req.Description),
			OutTradeNo:  core.String(outTradeNo),
			NotifyUrl:   core.String(a.cfg.NotifyURL),
			Amount:      &native.Amount{Total: core.Int64(total), Currency: core.String(currencyCNY)},
		})
		if err != nil {
			a.logger.Error("CreateOrder: native prepay failed", zap.Error(err), zap.String("outTradeNo", outTradeNo))
			return nil, a.translate(err)
		}
		return &gateway.Order{CodeURL: stringValue(resp.CodeUrl)}, nil
	}

	// 2. Mini program: JSAPI with the payer's openid.
	if req.OpenID == "" {
		return nil, gateway.ErrMissingPayer
	}
	resp, _, err := a.jsapi.PrepayWithRequestPayment(ctx, jsapi.PrepayRequest{
		Appid:       core.String(a.cfg.AppID),
		Mchid:       core.String(a.cfg.MchID),
		Description: core.String(req.Description),
		OutTradeNo:  core.String(outTradeNo),
		NotifyUrl:   core.String(a.cfg.NotifyURL),
		Amount:      &jsapi.Amount{Total: core.Int64(total), Currency: core.String(currencyCNY)},
		Payer:       &jsapi.Payer{Openid: core.String(req.OpenID)},
	})
	if err != nil {
		a.logger.Error("CreateOrder: jsapi prepay failed", zap.Error(err), zap.String("outTradeNo", outTradeNo))
		return nil, a.translate(err)
	}

	return &gateway.Order{
		ProviderOrderID: stringValue(resp.PrepayId),
		PayArgs: map[string]string{
			"appId":     stringValue(resp.Appid),
			"timeStamp": stringValue(resp.TimeStamp),
			"nonceStr":  stringValue(resp.NonceStr),
			"package":   stringValue(resp.Package),
			"signType":  stringValue(resp.SignType),
			"paySign":   stringValue(resp.PaySign),
		},
	}, nil
}

func (a *Adapter) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "wechatpay.Refund")
	defer span.End()

	outTradeNo := req.Original.GatewayData.OutTradeNo
	outRefundNo := req.Refund.GatewayData.OutRefundNo
	span.SetAttributes(attribute.String("out_trade_no", outTradeNo), attribute.String("out_refund_no", outRefundNo))

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	create := refunddomestic.CreateRequest{
		OutTradeNo:  core.String(outTradeNo),
		OutRefundNo: core.String(outRefundNo),
		Reason:      core.String(req.Reason),
		Amount: &refunddomestic.AmountReq{
			Refund:   core.Int64(gateway.Fen(req.Refund.Amount)),
			Total:    core.Int64(gateway.Fen(req.Original.Amount)),
			Currency: core.String(currencyCNY),
		},
	}
	if a.cfg.RefundNotifyURL != "" {
		create.NotifyUrl = core.String(a.cfg.RefundNotifyURL)
	}

	resp, _, err := a.refunds.Create(ctx, create)
	if err != nil {
		a.logger.Error("Refund: create failed", zap.Error(err), zap.String("outTradeNo", outTradeNo), zap.String("outRefundNo", outRefundNo))
		return nil, a.translate(err)
	}

	status := gateway.RefundProcessing
	if resp.Status != nil && *resp.Status == refunddomestic.STATUS_SUCCESS {
		status = gateway.RefundSucceeded
	}
	return &gateway.RefundResult{ProviderRefundID: stringValue(resp.RefundId), Status: status}, nil
}

// CloseOrder closes an unpaid order through the API that created it.
func (a *Adapter) CloseOrder(ctx context.Context, p *models.Payment) error {
	ctx, span := tracing.Tracer().Start(ctx, "wechatpay.CloseOrder")
	defer span.End()

	outTradeNo := p.GatewayData.OutTradeNo
	if outTradeNo == "" {
		return nil
	}
	span.SetAttributes(attribute.String("out_trade_no", outTradeNo))

	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	var err error
	if p.GatewayData.AtReception {
		_, err = a.native.CloseOrder(ctx, native.CloseOrderRequest{
			OutTradeNo: core.String(outTradeNo),
			Mchid:      core.String(a.cfg.MchID),
		})
	} else {
		_, err = a.jsapi.CloseOrder(ctx, jsapi.CloseOrderRequest{
			OutTradeNo: core.String(outTradeNo),
			Mchid:      core.String(a.cfg.MchID),
		})
	}
	if err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeOrderClosed {
			return nil
		}
		a.logger.Error("CloseOrder: close failed", zap.Error(err), zap.String("outTradeNo", outTradeNo))
		return a.translate(err)
	}
	return nil
}

// refundResource is the decrypted body of a REFUND.* notification.
type refundResource struct {
	OutTradeNo   string `json:"out_trade_no"`
	OutRefundNo  string `json:"out_refund_no"`
	RefundID     string `json:"refund_id"`
	RefundStatus string `json:"refund_status"`
	Amount       struct {
		Refund int64 `json:"refund"`
	} `json:"amount"`
}

func (a *Adapter) ParseNotification(ctx context.Context, r *http.Request) (*gateway.Notification, error) {
	var raw json.RawMessage
	req, err := a.notify.ParseNotifyRequest(ctx, r, &raw)
	if err != nil {
		a.logger.Warn("ParseNotification: verify failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", gateway.ErrBadNotify, err)
	}
	return decodeNotification(req.EventType, raw)
}

func decodeNotification(eventType string, raw json.RawMessage) (*gateway.Notification, error) {
	switch eventType {
	case eventTransactionSuccess:
		var tx payments.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrBadNotify, err)
		}
		n := &gateway.Notification{
			Kind:       gateway.NotifyPaid,
			OutTradeNo: stringValue(tx.OutTradeNo),
			ProviderID: stringValue(tx.TransactionId),
			Succeeded:  stringValue(tx.TradeState) == "SUCCESS",
		}
		if tx.Amount != nil && tx.Amount.Total != nil {
			n.Amount = money.FromFen(*tx.Amount.Total)
		}
		return n, nil
	default:
		var rf refundResource
		if err := json.Unmarshal(raw, &rf); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrBadNotify, err)
		}
		if rf.OutRefundNo == "" {
			return nil, fmt.Errorf("%w: unexpected event %s", gateway.ErrBadNotify, eventType)
		}
		return &gateway.Notification{
			Kind:        gateway.NotifyRefunded,
			OutTradeNo:  rf.OutTradeNo,
			OutRefundNo: rf.OutRefundNo,
			ProviderID:  rf.RefundID,
			Amount:      money.FromFen(rf.Amount.Refund),
			Succeeded:   eventType == eventRefundSuccess || rf.RefundStatus == "SUCCESS",
		}, nil
	}
}

// translate turns SDK errors into gateway.ProviderError.
func (a *Adapter) translate(err error) error {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return &gateway.ProviderError{
			Provider:  constants.GatewayWechatPay,
			Code:      gateway.CodeProviderUnavailable,
			Message:   err.Error(),
			Retryable: true,
			Err:       err,
		}
	}
	if apiErr.Code == codeNotEnough {
		return &gateway.ProviderError{
			Provider:  constants.GatewayWechatPay,
			Code:      gateway.CodeInsufficientMerchantBalance,
			Message:   apiErr.Message,
			Retryable: true,
			Err:       err,
		}
	}
	return &gateway.ProviderError{
		Provider:  constants.GatewayWechatPay,
		Code:      gateway.CodeProviderRejected,
		Message:   fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message),
		Retryable: apiErr.StatusCode >= http.StatusInternalServerError,
		Err:       err,
	}
}

// stringValue dereferences an SDK string pointer; wechatpay-go v0.2.21's core
// package provides String but no StringValue counterpart.
func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
