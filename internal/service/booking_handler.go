package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/dto"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/logic"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/pagination"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// BookingService is implemented by logic.BookingLogic.
type BookingService interface {
	CreateBooking(ctx context.Context, in *logic.CreateBookingInput, operator *models.Operator) (*logic.CreateBookingResult, error)
	GetBooking(ctx context.Context, id primitive.ObjectID, operator *models.Operator) (*models.Booking, error)
	ListBookings(ctx context.Context, filter *repository.BookingFilter, page *pagination.PageRequest, operator *models.Operator) (*pagination.PageResult[*models.Booking], error)
	ListPayments(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator) ([]*models.Payment, error)
	Cancel(ctx context.Context, id primitive.ObjectID, operator *models.Operator, reason string) error
	RequestCancel(ctx context.Context, id primitive.ObjectID, operator *models.Operator, reason string) error
	ReviewCancel(ctx context.Context, id primitive.ObjectID, approve bool, operator *models.Operator, reason string) error
	CheckIn(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error
	Checkout(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error
	RetryRefund(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error
	DeleteBooking(ctx context.Context, id primitive.ObjectID, operator *models.Operator) error
	ListAuditLogs(ctx context.Context, bookingID primitive.ObjectID, operator *models.Operator) ([]*models.AuditLog, error)
	PreviewPrice(ctx context.Context, in *logic.CreateBookingInput, operator *models.Operator) (*logic.PricePreview, error)
	UpgradeToCard(ctx context.Context, bookingID, cardID primitive.ObjectID, operator *models.Operator) (*logic.UpgradeResult, error)
}

var _ BookingService = (*logic.BookingLogic)(nil)

// BookingResponse is returned by booking creation.
type BookingResponse struct {
	Booking  *models.Booking   `json:"booking"`
	Payments []*models.Payment `json:"payments"`
	// Order is set while an external payment waits for the customer.
	Order *OrderResponse `json:"order,omitempty"`
}

type OrderResponse struct {
	ProviderOrderID string            `json:"provider_order_id,omitempty"`
	PayArgs         map[string]string `json:"pay_args,omitempty"`
	CodeURL         string            `json:"code_url,omitempty"`
	RedirectURL     string            `json:"redirect_url,omitempty"`
}

func orderResponse(o *gateway.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{
		ProviderOrderID: o.ProviderOrderID,
		PayArgs:         o.PayArgs,
		CodeURL:         o.CodeURL,
		RedirectURL:     o.RedirectURL,
	}
}

type BookingHandler struct {
	bookings BookingService
	logger   *zap.Logger
}

func NewBookingHandler(bookings BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger.Named("BookingHandler"),
	}
}

// operatorOrFail writes 401 when the request carries no operator.
func (h *BookingHandler) operatorOrFail(w http.ResponseWriter, r *http.Request) (*models.Operator, bool) {
	op, err := OperatorFrom(r.Context())
	if err != nil {
		WriteDomainError(w, h.logger, "operator", err)
		return nil, false
	}
	return op, true
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	var req dto.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteDomainError(w, h.logger, "Create", err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		WriteDomainError(w, h.logger, "Create", fmt.Errorf("%w: %v", dto.ErrInvalidRequest, err))
		return
	}

	res, err := h.bookings.CreateBooking(r.Context(), in, op)
	if err != nil {
		WriteDomainError(w, h.logger, "Create", err)
		return
	}
	WriteJSON(w, http.StatusCreated, &BookingResponse{
		Booking:  res.Booking,
		Payments: res.Payments,
		Order:    orderResponse(res.Order),
	})
}

// Price answers what Create would charge for the same body.
func (h *BookingHandler) Price(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	var req dto.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteDomainError(w, h.logger, "Price", err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		WriteDomainError(w, h.logger, "Price", fmt.Errorf("%w: %v", dto.ErrInvalidRequest, err))
		return
	}

	preview, err := h.bookings.PreviewPrice(r.Context(), in, op)
	if err != nil {
		WriteDomainError(w, h.logger, "Price", err)
		return
	}
	WriteJSON(w, http.StatusOK, preview)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "Get", err)
		return
	}
	b, err := h.bookings.GetBooking(r.Context(), id, op)
	if err != nil {
		WriteDomainError(w, h.logger, "Get", err)
		return
	}
	WriteJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := dto.BookingListQuery{
		Customer: q.Get("customer"),
		Store:    q.Get("store"),
		Date:     q.Get("date"),
		Status:   q["status"],
		Type:     q.Get("type"),
	}
	if err := dto.Validate(&query); err != nil {
		WriteDomainError(w, h.logger, "List", err)
		return
	}

	filter := &repository.BookingFilter{Date: query.Date, Status: query.Status, Type: query.Type}
	if query.Customer != "" {
		id, _ := primitive.ObjectIDFromHex(query.Customer)
		filter.Customer = &id
	}
	if query.Store != "" {
		id, _ := primitive.ObjectIDFromHex(query.Store)
		filter.Store = &id
	}

	page, err := h.bookings.ListBookings(r.Context(), filter, pagination.FromQuery(q), op)
	if err != nil {
		WriteDomainError(w, h.logger, "List", err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *BookingHandler) Payments(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "Payments", err)
		return
	}
	payments, err := h.bookings.ListPayments(r.Context(), id, op)
	if err != nil {
		WriteDomainError(w, h.logger, "Payments", err)
		return
	}
	WriteJSON(w, http.StatusOK, payments)
}

func (h *BookingHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "AuditLogs", err)
		return
	}
	logs, err := h.bookings.ListAuditLogs(r.Context(), id, op)
	if err != nil {
		WriteDomainError(w, h.logger, "AuditLogs", err)
		return
	}
	WriteJSON(w, http.StatusOK, logs)
}

// QRCode renders the native-pay code of the booking's unpaid WeChat payment as a PNG.
func (h *BookingHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "QRCode", err)
		return
	}
	payments, err := h.bookings.ListPayments(r.Context(), id, op)
	if err != nil {
		WriteDomainError(w, h.logger, "QRCode", err)
		return
	}

	var codeURL string
	for _, p := range payments {
		if !p.Paid && p.Gateway == constants.GatewayWechatPay && p.GatewayData.CodeURL != "" {
			codeURL = p.GatewayData.CodeURL
		}
	}
	png, err := gateway.RenderQR(codeURL)
	if err != nil {
		if errors.Is(err, gateway.ErrNoCodeURL) {
			WriteHttpError(w, http.StatusNotFound, "no_code_url", err.Error())
			return
		}
		WriteDomainError(w, h.logger, "QRCode", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.Warn("QRCode: write failed", zap.Error(err))
	}
}

// transition runs a booking operation that only needs the id, the operator and a reason.
func (h *BookingHandler) transition(op string, fn func(ctx context.Context, id primitive.ObjectID, operator *models.Operator, reason string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := h.operatorOrFail(w, r)
		if !ok {
			return
		}
		id, err := pathObjectID(r, "id")
		if err != nil {
			WriteDomainError(w, h.logger, op, err)
			return
		}
		var req dto.ReasonRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteDomainError(w, h.logger, op, err)
			return
		}
		if err := fn(r.Context(), id, operator, req.Reason); err != nil {
			WriteDomainError(w, h.logger, op, err)
			return
		}
		b, err := h.bookings.GetBooking(r.Context(), id, operator)
		if err != nil {
			WriteDomainError(w, h.logger, op, err)
			return
		}
		WriteJSON(w, http.StatusOK, b)
	}
}

func (h *BookingHandler) Cancel() http.HandlerFunc {
	return h.transition("Cancel", h.bookings.Cancel)
}

func (h *BookingHandler) RequestCancel() http.HandlerFunc {
	return h.transition("RequestCancel", h.bookings.RequestCancel)
}

func (h *BookingHandler) CheckIn() http.HandlerFunc {
	return h.transition("CheckIn", func(ctx context.Context, id primitive.ObjectID, op *models.Operator, _ string) error {
		return h.bookings.CheckIn(ctx, id, op)
	})
}

func (h *BookingHandler) Checkout() http.HandlerFunc {
	return h.transition("Checkout", func(ctx context.Context, id primitive.ObjectID, op *models.Operator, _ string) error {
		return h.bookings.Checkout(ctx, id, op)
	})
}

func (h *BookingHandler) RetryRefund() http.HandlerFunc {
	return h.transition("RetryRefund", func(ctx context.Context, id primitive.ObjectID, op *models.Operator, _ string) error {
		return h.bookings.RetryRefund(ctx, id, op)
	})
}

func (h *BookingHandler) ReviewCancel(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "ReviewCancel", err)
		return
	}
	var req dto.ReviewCancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteDomainError(w, h.logger, "ReviewCancel", err)
		return
	}
	if err := h.bookings.ReviewCancel(r.Context(), id, *req.Approve, op, req.Reason); err != nil {
		WriteDomainError(w, h.logger, "ReviewCancel", err)
		return
	}
	b, err := h.bookings.GetBooking(r.Context(), id, op)
	if err != nil {
		WriteDomainError(w, h.logger, "ReviewCancel", err)
		return
	}
	WriteJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "Upgrade", err)
		return
	}
	var req dto.UpgradeBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteDomainError(w, h.logger, "Upgrade", err)
		return
	}
	card, err := primitive.ObjectIDFromHex(req.Card)
	if err != nil {
		WriteDomainError(w, h.logger, "Upgrade", fmt.Errorf("%w: invalid card: %v", dto.ErrInvalidRequest, err))
		return
	}

	res, err := h.bookings.UpgradeToCard(r.Context(), id, card, op)
	if err != nil {
		WriteDomainError(w, h.logger, "Upgrade", err)
		return
	}
	WriteJSON(w, http.StatusOK, &BookingResponse{Booking: res.Booking, Payments: res.Payments})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operatorOrFail(w, r)
	if !ok {
		return
	}
	id, err := pathObjectID(r, "id")
	if err != nil {
		WriteDomainError(w, h.logger, "Delete", err)
		return
	}
	if err := h.bookings.DeleteBooking(r.Context(), id, op); err != nil {
		WriteDomainError(w, h.logger, "Delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
