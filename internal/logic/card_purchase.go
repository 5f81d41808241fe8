package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CardLifecycle activates cards once their purchase payment is paid.
type CardLifecycle struct {
	cardRepo     repository.CardRepository
	customerRepo repository.CustomerRepository
	publisher    *EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

var _ CardHooks = (*CardLifecycle)(nil)

func NewCardLifecycle(cardRepo repository.CardRepository, customerRepo repository.CustomerRepository, publisher *EventPublisher, logger *zap.Logger) *CardLifecycle {
	return &CardLifecycle{
		cardRepo:     cardRepo,
		customerRepo: customerRepo,
		publisher:    publisher,
		logger:       logger.Named("CardLifecycle"),
		now:          time.Now,
	}
}

// OnCardPaid runs inside the settlement transaction of the purchase payment.
// A balance card credits its price to the deposit and the bonus to the reward balance.
func (c *CardLifecycle) OnCardPaid(ctx context.Context, cardID primitive.ObjectID) error {
	now := c.now()
	err := c.cardRepo.TransitionStatus(ctx, cardID, []constants.CardStatus{constants.CardStatusPending},
		repository.WithStatus(constants.CardStatusActivated.String()),
		repository.WithCardStart(now),
	)
	if errors.Is(err, repository.ErrConditionNotMet) {
		c.logger.Warn("OnCardPaid: card is not pending", zap.Stringer("cardID", cardID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to activate card: %w", err)
	}

	card, err := c.cardRepo.GetCardByID(ctx, cardID)
	if err != nil {
		return fmt.Errorf("failed to load card: %w", err)
	}

	if card.Type == constants.CardTypeBalance {
		deposit := card.Price
		reward := money.Max(money.Zero, card.Balance.Sub(card.Price))
		if err := c.customerRepo.CreditBalance(ctx, card.Customer, deposit, reward); err != nil {
			return fmt.Errorf("failed to credit card balance: %w", err)
		}
	}

	if err := c.publisher.PublishCardEvent(ctx, constants.TopicCardActivated, card); err != nil {
		c.logger.Error("OnCardPaid: publish failed", zap.Error(err), zap.Stringer("cardID", cardID))
		return err
	}
	c.logger.Info("card activated", zap.Stringer("cardID", cardID), zap.String("type", card.Type.String()))
	return nil
}

type PurchaseCardInput struct {
	Slug string
	// Customer is only honored for staff operators.
	Customer *primitive.ObjectID
	Gateway  constants.PaymentGateway
}

type PurchaseCardResult struct {
	Card    *models.Card
	Payment *models.Payment
	Order   *gateway.Order
}

// CardPurchase issues a pending card from a card type and settles its purchase payment.
type CardPurchase struct {
	cardTypeRepo repository.CardTypeRepository
	cardRepo     repository.CardRepository
	paymentRepo  repository.PaymentRepository
	customerRepo repository.CustomerRepository
	settler      PaymentSettler
	logger       *zap.Logger
	now          func() time.Time
}

func NewCardPurchase(
	cardTypeRepo repository.CardTypeRepository,
	cardRepo repository.CardRepository,
	paymentRepo repository.PaymentRepository,
	customerRepo repository.CustomerRepository,
	settler PaymentSettler,
	logger *zap.Logger,
) *CardPurchase {
	return &CardPurchase{
		cardTypeRepo: cardTypeRepo,
		cardRepo:     cardRepo,
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		settler:      settler,
		logger:       logger.Named("CardPurchase"),
		now:          time.Now,
	}
}

func cardPurchaseGateway(g constants.PaymentGateway) bool {
	return g.IsAsync() || g == constants.GatewayCash || g == constants.GatewayScan || g == constants.GatewayPos
}

func (c *CardPurchase) Purchase(ctx context.Context, in *PurchaseCardInput, operator *models.Operator) (*PurchaseCardResult, error) {
	if in.Gateway == "" {
		return nil, ErrMissingGateway
	}
	if !cardPurchaseGateway(in.Gateway) {
		return nil, ErrUnsupportedGateway.WithMessage("cards cannot be paid with %s", in.Gateway)
	}
	atReception := operator.IsStaff()
	if in.Gateway.SettlesOnSite() && !atReception {
		return nil, ErrPermissionDenied
	}
	customerID := operator.UserID
	if atReception && in.Customer != nil {
		customerID = *in.Customer
	}

	// 1. Template and customer
	cardType, err := c.cardTypeRepo.GetCardTypeBySlug(ctx, in.Slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound.WithMessage("card type %s not found", in.Slug)
		}
		return nil, fmt.Errorf("failed to load card type: %w", err)
	}
	if !cardType.OpenForSale && !atReception {
		return nil, ErrCardNotForSale
	}
	customer, err := c.customerRepo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	// 2. Pending card
	now := c.now()
	card := cardType.Issue(customerID, now)
	if card.ID, err = c.cardRepo.CreateCard(ctx, card); err != nil {
		c.logger.Error("Purchase: CreateCard failed", zap.Error(err), zap.String("slug", in.Slug))
		return nil, fmt.Errorf("failed to issue card: %w", err)
	}

	// 3. Purchase payment
	p := &models.Payment{
		Customer:    &customerID,
		Title:       card.Title,
		Amount:      card.Price,
		Gateway:     in.Gateway,
		GatewayData: models.GatewayData{AtReception: atReception},
		Attach:      models.CardAttach(card.ID),
		Scene:       CardScene(card.Type),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.ID, err = c.paymentRepo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create card payment: %w", err)
	}
	if err := c.cardRepo.AppendPayment(ctx, card.ID, p.ID); err != nil {
		return nil, fmt.Errorf("failed to link card payment: %w", err)
	}
	card.Payments = append(card.Payments, p.ID)

	res, err := c.settler.Settle(ctx, p, &SettleOptions{Customer: customer, Description: card.Title})
	if err != nil {
		c.logger.Warn("Purchase: Settle failed", zap.Error(err), zap.Stringer("cardID", card.ID))
		return nil, err
	}
	if res.Paid {
		card.Status = constants.CardStatusActivated
		card.Start = &now
	}
	return &PurchaseCardResult{Card: card, Payment: p, Order: res.Order}, nil
}
