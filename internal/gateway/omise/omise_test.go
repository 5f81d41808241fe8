package omise

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	omisego "github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestAdapter() *Adapter {
	return &Adapter{
		cfg:    &conf.OmiseConfig{Currency: "THB", ReturnURI: "https://app.example.com/paid"},
		logger: zap.NewNop(),
	}
}

func TestAdapter_CreateOrder(t *testing.T) {
	a := newTestAdapter()
	var gotCharge *operations.CreateCharge
	a.createSource = func(op *operations.CreateSource) (*omisego.Source, error) {
		assert.Equal(t, "promptpay", op.Type)
		assert.Equal(t, "thb", op.Currency)
		assert.Equal(t, int64(15000), op.Amount)
		return &omisego.Source{Base: omisego.Base{ID: "src_1"}}, nil
	}
	a.createCharge = func(op *operations.CreateCharge) (*omisego.Charge, error) {
		gotCharge = op
		return &omisego.Charge{Base: omisego.Base{ID: "chrg_1"}, AuthorizeURI: "https://pay.omise.co/auth"}, nil
	}

	p := &models.Payment{
		ID:          primitive.NewObjectID(),
		Amount:      money.MustParse("150"),
		GatewayData: models.GatewayData{OutTradeNo: "T3001"},
	}
	order, err := a.CreateOrder(context.Background(), &gateway.OrderRequest{Payment: p})
	require.NoError(t, err)
	assert.Equal(t, "chrg_1", order.ProviderOrderID)
	assert.Equal(t, "https://pay.omise.co/auth", order.RedirectURL)
	require.NotNil(t, gotCharge)
	assert.Equal(t, "src_1", gotCharge.Source)
	assert.Equal(t, "T3001", gotCharge.Metadata["out_trade_no"])
}

func TestAdapter_CreateOrder_ProviderRejects(t *testing.T) {
	a := newTestAdapter()
	a.createSource = func(*operations.CreateSource) (*omisego.Source, error) {
		return nil, &omisego.Error{StatusCode: http.StatusBadRequest, Code: "invalid_amount", Message: "amount too small"}
	}

	_, err := a.CreateOrder(context.Background(), &gateway.OrderRequest{Payment: &models.Payment{Amount: money.MustParse("1")}})
	var pe *gateway.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, gateway.CodeProviderRejected, pe.Code)
	assert.False(t, pe.Retryable)
}

func TestAdapter_Refund(t *testing.T) {
	a := newTestAdapter()
	a.createRefund = func(op *operations.CreateRefund) (*omisego.Refund, error) {
		assert.Equal(t, "chrg_1", op.ChargeID)
		assert.Equal(t, int64(5000), op.Amount)
		return &omisego.Refund{Base: omisego.Base{ID: "rfnd_1"}}, nil
	}

	res, err := a.Refund(context.Background(), &gateway.RefundRequest{
		Original: &models.Payment{GatewayData: models.GatewayData{ProviderOrderID: "chrg_1"}},
		Refund:   &models.Payment{Amount: money.MustParse("-50")},
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.RefundSucceeded, res.Status)
	assert.Equal(t, "rfnd_1", res.ProviderRefundID)
}

func TestAdapter_CloseOrder(t *testing.T) {
	a := newTestAdapter()
	var reversed []string
	a.reverseCharge = func(op *operations.ReverseCharge) (*omisego.Charge, error) {
		reversed = append(reversed, op.ChargeID)
		return &omisego.Charge{Base: omisego.Base{ID: op.ChargeID}}, nil
	}

	require.NoError(t, a.CloseOrder(context.Background(), &models.Payment{GatewayData: models.GatewayData{ProviderOrderID: "chrg_1"}}))
	// no charge was created, nothing to reverse
	require.NoError(t, a.CloseOrder(context.Background(), &models.Payment{}))
	assert.Equal(t, []string{"chrg_1"}, reversed)
}

func TestAdapter_ParseNotification(t *testing.T) {
	newReq := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/notify/omise", strings.NewReader(body))
	}

	t.Run("charge complete", func(t *testing.T) {
		a := newTestAdapter()
		a.retrieveEvent = func(op *operations.RetrieveEvent) (*omisego.Event, error) {
			assert.Equal(t, "evnt_1", op.EventID)
			return &omisego.Event{
				Key: "charge.complete",
				Data: map[string]interface{}{
					"object":   "charge",
					"id":       "chrg_1",
					"amount":   15000,
					"status":   "successful",
					"metadata": map[string]interface{}{"out_trade_no": "T3001"},
				},
			}, nil
		}

		n, err := a.ParseNotification(context.Background(), newReq(`{"id":"evnt_1","key":"charge.complete"}`))
		require.NoError(t, err)
		assert.Equal(t, gateway.NotifyPaid, n.Kind)
		assert.Equal(t, "T3001", n.OutTradeNo)
		assert.Equal(t, "chrg_1", n.ProviderID)
		assert.Equal(t, "150.00", n.Amount.String())
		assert.True(t, n.Succeeded)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		a := newTestAdapter()
		a.retrieveEvent = func(*operations.RetrieveEvent) (*omisego.Event, error) {
			return &omisego.Event{Key: "customer.create"}, nil
		}
		_, err := a.ParseNotification(context.Background(), newReq(`{"id":"evnt_2"}`))
		assert.ErrorIs(t, err, gateway.ErrIgnoredNotify)
	})

	t.Run("unknown event id", func(t *testing.T) {
		a := newTestAdapter()
		a.retrieveEvent = func(*operations.RetrieveEvent) (*omisego.Event, error) {
			return nil, &omisego.Error{StatusCode: http.StatusNotFound, Code: "not_found"}
		}
		_, err := a.ParseNotification(context.Background(), newReq(`{"id":"evnt_forged"}`))
		assert.ErrorIs(t, err, gateway.ErrBadNotify)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := newTestAdapter().ParseNotification(context.Background(), newReq(`not json`))
		assert.ErrorIs(t, err, gateway.ErrBadNotify)
	})
}
