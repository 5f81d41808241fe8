package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/dto"
	"github.com/lltxwdk/minimars-server/internal/logic"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.uber.org/zap"
)

type CardPurchaser interface {
	Purchase(ctx context.Context, in *logic.PurchaseCardInput, operator *models.Operator) (*logic.PurchaseCardResult, error)
}

var _ CardPurchaser = (*logic.CardPurchase)(nil)

type CardResponse struct {
	Card    *models.Card    `json:"card"`
	Payment *models.Payment `json:"payment"`
	Order   *OrderResponse  `json:"order,omitempty"`
}

type CardHandler struct {
	cards  CardPurchaser
	logger *zap.Logger
}

func NewCardHandler(cards CardPurchaser, logger *zap.Logger) *CardHandler {
	return &CardHandler{cards: cards, logger: logger.Named("CardHandler")}
}

func (h *CardHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	op, err := OperatorFrom(r.Context())
	if err != nil {
		WriteDomainError(w, h.logger, "Purchase", err)
		return
	}
	var req dto.PurchaseCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteDomainError(w, h.logger, "Purchase", err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		WriteDomainError(w, h.logger, "Purchase", fmt.Errorf("%w: %v", dto.ErrInvalidRequest, err))
		return
	}

	res, err := h.cards.Purchase(r.Context(), in, op)
	if err != nil {
		WriteDomainError(w, h.logger, "Purchase", err)
		return
	}
	WriteJSON(w, http.StatusCreated, &CardResponse{Card: res.Card, Payment: res.Payment, Order: orderResponse(res.Order)})
}
