package logic

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/lock"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
	"github.com/lltxwdk/minimars-server/pkg/pagination"
	"github.com/lltxwdk/minimars-server/pkg/snowflake"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for the Mongo collections. Its transaction manager
// snapshots every collection and restores it when the unit of work fails.
type memStore struct {
	mu        sync.Mutex
	bookings  map[primitive.ObjectID]models.Booking
	payments  map[primitive.ObjectID]models.Payment
	customers map[primitive.ObjectID]models.Customer
	cards     map[primitive.ObjectID]models.Card
	cardTypes map[string]models.CardType
	coupons   map[primitive.ObjectID]models.Coupon
	events    map[primitive.ObjectID]models.Event
	gifts     map[primitive.ObjectID]models.Gift
	stores    []*models.Store
	settings  *models.Settings
	outbox    []*models.OutboxMessage
	audits    []*models.AuditLog
	order     []primitive.ObjectID // payment insertion order
	txDepth   int
}

func newMemStore() *memStore {
	return &memStore{
		bookings:  map[primitive.ObjectID]models.Booking{},
		payments:  map[primitive.ObjectID]models.Payment{},
		customers: map[primitive.ObjectID]models.Customer{},
		cards:     map[primitive.ObjectID]models.Card{},
		cardTypes: map[string]models.CardType{},
		coupons:   map[primitive.ObjectID]models.Coupon{},
		events:    map[primitive.ObjectID]models.Event{},
		gifts:     map[primitive.ObjectID]models.Gift{},
		settings:  &models.Settings{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	bookings  map[primitive.ObjectID]models.Booking
	payments  map[primitive.ObjectID]models.Payment
	customers map[primitive.ObjectID]models.Customer
	cards     map[primitive.ObjectID]models.Card
	events    map[primitive.ObjectID]models.Event
	gifts     map[primitive.ObjectID]models.Gift
	outbox    []*models.OutboxMessage
	order     []primitive.ObjectID
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	s.mu.Lock()
	outer := s.txDepth == 0
	s.txDepth++
	var snap memSnapshot
	if outer {
		snap = memSnapshot{
			bookings:  cloneMap(s.bookings),
			payments:  cloneMap(s.payments),
			customers: cloneMap(s.customers),
			cards:     cloneMap(s.cards),
			events:    cloneMap(s.events),
			gifts:     cloneMap(s.gifts),
			outbox:    slices.Clone(s.outbox),
			order:     slices.Clone(s.order),
		}
	}
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txDepth--
	if err != nil && outer {
		s.bookings, s.payments, s.customers, s.cards = snap.bookings, snap.payments, snap.customers, snap.cards
		s.events, s.gifts, s.outbox, s.order = snap.events, snap.gifts, snap.outbox, snap.order
	}
	return err
}

func applyOpts(set func(key string, v interface{}), opts []repository.UpdateOption) {
	o := repository.NewUpdateOptions()
	for _, opt := range opts {
		opt(o)
	}
	for k, v := range o.SetFields {
		set(k, v)
	}
}

// ----- bookings -----

type memBookingRepo struct{ s *memStore }

func (r memBookingRepo) CreateBooking(_ context.Context, b *models.Booking) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	cp := *b
	cp.Payments = slices.Clone(b.Payments)
	r.s.bookings[b.ID] = cp
	return b.ID, nil
}

func (r memBookingRepo) GetBookingByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b.Payments = slices.Clone(b.Payments)
	return &b, nil
}

func (r memBookingRepo) DeleteBooking(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.bookings, id)
	return nil
}

func (r memBookingRepo) AppendPayment(_ context.Context, bookingID, paymentID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	b.Payments = append(slices.Clone(b.Payments), paymentID)
	r.s.bookings[bookingID] = b
	return nil
}

func setBookingField(b *models.Booking) func(string, interface{}) {
	return func(k string, v interface{}) {
		switch k {
		case fields.FieldStatus:
			b.Status = v.(string)
		case fields.FieldBookingStatusWas:
			b.StatusWas = v.(string)
		case fields.FieldBookingInventoryHeld:
			b.InventoryHeld = v.(bool)
		case fields.FieldBookingPrice:
			b.Price = v.(money.Amount)
		case fields.FieldBookingCheckInAt:
			t := v.(time.Time)
			b.CheckInAt = &t
		case fields.FieldBookingCheckOutAt:
			t := v.(time.Time)
			b.CheckOutAt = &t
		case fields.FieldBookingCard:
			id := v.(primitive.ObjectID)
			b.Card = &id
		case fields.FieldUpdatedAt:
			b.UpdatedAt = v.(time.Time)
		}
	}
}

func (r memBookingRepo) UpdateBooking(_ context.Context, id primitive.ObjectID, opts ...repository.UpdateOption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	applyOpts(setBookingField(&b), opts)
	r.s.bookings[id] = b
	return nil
}

func (r memBookingRepo) TransitionStatus(_ context.Context, id primitive.ObjectID, from []string, opts ...repository.UpdateOption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || !slices.Contains(from, b.Status) {
		return repository.ErrConditionNotMet
	}
	applyOpts(setBookingField(&b), opts)
	r.s.bookings[id] = b
	return nil
}

func (r memBookingRepo) SumKidsOnCard(_ context.Context, p *repository.CardQuotaParams) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := 0
	for _, b := range r.s.bookings {
		if b.Card == nil || *b.Card != p.CardID || b.Date != p.Date || !slices.Contains(p.Statuses, b.Status) {
			continue
		}
		if p.Exclude != nil && *p.Exclude == b.ID {
			continue
		}
		sum += b.KidsCount
	}
	return sum, nil
}

func (r memBookingRepo) SumGiftQuantity(_ context.Context, customerID, giftID primitive.ObjectID, statuses []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := 0
	for _, b := range r.s.bookings {
		if b.Customer == customerID && b.Gift != nil && *b.Gift == giftID && slices.Contains(statuses, b.Status) {
			sum += b.Quantity
		}
	}
	return sum, nil
}

func (r memBookingRepo) ListBookings(_ context.Context, f *repository.BookingFilter, page *pagination.PageRequest) ([]*models.Booking, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Booking
	for _, b := range r.s.bookings {
		if f.Customer != nil && b.Customer != *f.Customer {
			continue
		}
		b := b
		out = append(out, &b)
	}
	return out, int64(len(out)), nil
}

func (r memBookingRepo) FindStaleBookings(_ context.Context, p *repository.StaleBookingsParams) ([]*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Booking
	for _, b := range r.s.bookings {
		if b.Status != p.Status {
			continue
		}
		if !p.CreatedBefore.IsZero() && !b.CreatedAt.Before(p.CreatedBefore) {
			continue
		}
		if p.DateBefore != "" && b.Date >= p.DateBefore {
			continue
		}
		b := b
		out = append(out, &b)
	}
	return out, nil
}

// ----- payments -----

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) CreatePayment(_ context.Context, p *models.Payment) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := primitive.NewObjectID()
	cp := *p
	cp.ID = id
	r.s.payments[id] = cp
	r.s.order = append(r.s.order, id)
	return id, nil
}

func (r memPaymentRepo) GetPaymentByID(_ context.Context, id primitive.ObjectID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPaymentRepo) find(match func(models.Payment) bool) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memPaymentRepo) GetPaymentByOutTradeNo(_ context.Context, no string) (*models.Payment, error) {
	return r.find(func(p models.Payment) bool { return p.GatewayData.OutTradeNo == no && p.Original == nil })
}

func (r memPaymentRepo) GetPaymentByOutRefundNo(_ context.Context, no string) (*models.Payment, error) {
	return r.find(func(p models.Payment) bool { return p.GatewayData.OutRefundNo == no })
}

func (r memPaymentRepo) ListPaymentsByAttach(_ context.Context, attach models.Attach) ([]*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Payment
	for _, id := range r.s.order {
		p, ok := r.s.payments[id]
		if ok && p.Attach == attach {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r memPaymentRepo) MarkPaid(_ context.Context, id primitive.ObjectID, params *repository.MarkPaidParams) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if p.Paid {
		return false, nil
	}
	p.Paid = true
	paidAt := params.PaidAt
	p.PaidAt = &paidAt
	p.Assets, p.Debt, p.Revenue = params.Assets, params.Debt, params.Revenue
	if params.GatewayData != nil {
		p.GatewayData = *params.GatewayData
	}
	if params.AmountDeposit != nil {
		p.AmountDeposit = *params.AmountDeposit
	}
	r.s.payments[id] = p
	return true, nil
}

func (r memPaymentRepo) UpdateGatewayData(_ context.Context, id primitive.ObjectID, data models.GatewayData) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.GatewayData = data
	r.s.payments[id] = p
	return nil
}

func (r memPaymentRepo) DeleteUnpaidByAttach(_ context.Context, attach models.Attach) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.payments {
		if p.Attach == attach && !p.Paid {
			delete(r.s.payments, id)
			n++
		}
	}
	return n, nil
}

func (r memPaymentRepo) SumPaidAmount(_ context.Context, customerID primitive.ObjectID, g constants.PaymentGateway) (money.Amount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := money.Zero
	for _, p := range r.s.payments {
		if p.Paid && p.Gateway == g && p.Customer != nil && *p.Customer == customerID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// ----- customers -----

type memCustomerRepo struct{ s *memStore }

func (r memCustomerRepo) GetCustomerByID(_ context.Context, id primitive.ObjectID) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Tags = slices.Clone(c.Tags)
	return &c, nil
}

func (r memCustomerRepo) update(id primitive.ObjectID, fn func(c *models.Customer) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	r.s.customers[id] = c
	return nil
}

func (r memCustomerRepo) DebitBalance(_ context.Context, id primitive.ObjectID, deposit, reward money.Amount) error {
	return r.update(id, func(c *models.Customer) error {
		if c.BalanceDeposit.LessThan(deposit) || c.BalanceReward.LessThan(reward) {
			return repository.ErrConditionNotMet
		}
		c.BalanceDeposit = c.BalanceDeposit.Sub(deposit)
		c.BalanceReward = c.BalanceReward.Sub(reward)
		return nil
	})
}

func (r memCustomerRepo) CreditBalance(_ context.Context, id primitive.ObjectID, deposit, reward money.Amount) error {
	return r.update(id, func(c *models.Customer) error {
		c.BalanceDeposit = c.BalanceDeposit.Add(deposit)
		c.BalanceReward = c.BalanceReward.Add(reward)
		return nil
	})
}

func (r memCustomerRepo) DebitPoints(_ context.Context, id primitive.ObjectID, points int64) error {
	return r.update(id, func(c *models.Customer) error {
		if c.Points < points {
			return repository.ErrConditionNotMet
		}
		c.Points -= points
		return nil
	})
}

func (r memCustomerRepo) CreditPoints(_ context.Context, id primitive.ObjectID, points int64) error {
	return r.update(id, func(c *models.Customer) error {
		c.Points += points
		return nil
	})
}

func (r memCustomerRepo) AddTag(_ context.Context, id primitive.ObjectID, tag string) error {
	return r.update(id, func(c *models.Customer) error {
		if !slices.Contains(c.Tags, tag) {
			c.Tags = append(slices.Clone(c.Tags), tag)
		}
		return nil
	})
}

func (r memCustomerRepo) ListCustomers(_ context.Context, afterID primitive.ObjectID, limit int) ([]*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Customer
	for _, c := range r.s.customers {
		if afterID.IsZero() || c.ID.Hex() > afterID.Hex() {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ----- cards -----

type memCardRepo struct{ s *memStore }

func (r memCardRepo) CreateCard(_ context.Context, c *models.Card) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.s.cards[c.ID] = *c
	return c.ID, nil
}

func (r memCardRepo) GetCardByID(_ context.Context, id primitive.ObjectID) (*models.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r memCardRepo) update(id primitive.ObjectID, fn func(c *models.Card) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return repository.ErrConditionNotMet
	}
	if err := fn(&c); err != nil {
		return err
	}
	r.s.cards[id] = c
	return nil
}

func (r memCardRepo) ConsumeTimes(_ context.Context, id primitive.ObjectID, times int) error {
	return r.update(id, func(c *models.Card) error {
		if c.Status != constants.CardStatusActivated || c.TimesLeft < times {
			return repository.ErrConditionNotMet
		}
		c.TimesLeft -= times
		return nil
	})
}

func (r memCardRepo) RestoreTimes(_ context.Context, id primitive.ObjectID, times int) error {
	return r.update(id, func(c *models.Card) error {
		c.TimesLeft += times
		return nil
	})
}

func (r memCardRepo) TransitionStatus(_ context.Context, id primitive.ObjectID, from []constants.CardStatus, opts ...repository.UpdateOption) error {
	return r.update(id, func(c *models.Card) error {
		if !slices.Contains(from, c.Status) {
			return repository.ErrConditionNotMet
		}
		applyOpts(func(k string, v interface{}) {
			switch k {
			case fields.FieldStatus:
				c.Status = constants.CardStatus(v.(string))
			case fields.FieldCardStart:
				t := v.(time.Time)
				c.Start = &t
			}
		}, opts)
		return nil
	})
}

func (r memCardRepo) UpdateStatusByRewardBooking(_ context.Context, bookingID primitive.ObjectID, from []constants.CardStatus, to constants.CardStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.cards {
		if c.RewardedFromBooking != nil && *c.RewardedFromBooking == bookingID && slices.Contains(from, c.Status) {
			c.Status = to
			r.s.cards[id] = c
			n++
		}
	}
	return n, nil
}

func (r memCardRepo) AppendPayment(_ context.Context, cardID, paymentID primitive.ObjectID) error {
	return r.update(cardID, func(c *models.Card) error {
		c.Payments = append(slices.Clone(c.Payments), paymentID)
		return nil
	})
}

func (r memCardRepo) CancelPendingBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.cards {
		if c.Status == constants.CardStatusPending && c.CreatedAt.Before(before) {
			c.Status = constants.CardStatusCanceled
			r.s.cards[id] = c
			n++
		}
	}
	return n, nil
}

func (r memCardRepo) ExpireBefore(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.cards {
		if c.Status == constants.CardStatusActivated && c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
			c.Status = constants.CardStatusExpired
			r.s.cards[id] = c
			n++
		}
	}
	return n, nil
}

func (r memCardRepo) SumActivatedBalance(_ context.Context, customerID primitive.ObjectID) (money.Amount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := money.Zero
	for _, c := range r.s.cards {
		if c.Customer == customerID && c.Type == constants.CardTypeBalance && c.Status == constants.CardStatusActivated {
			sum = sum.Add(c.Balance)
		}
	}
	return sum, nil
}

// ----- catalog, settings, stores, outbox, audit -----

type memCatalogRepo struct{ s *memStore }

func (r memCatalogRepo) GetCardTypeBySlug(_ context.Context, slug string) (*models.CardType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.cardTypes[slug]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r memCatalogRepo) GetCouponByID(_ context.Context, id primitive.ObjectID) (*models.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r memCatalogRepo) GetEventByID(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r memCatalogRepo) AdjustKidsCountLeft(_ context.Context, id primitive.ObjectID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok || e.KidsCountLeft+delta < 0 {
		return repository.ErrConditionNotMet
	}
	e.KidsCountLeft += delta
	r.s.events[id] = e
	return nil
}

func (r memCatalogRepo) GetGiftByID(_ context.Context, id primitive.ObjectID) (*models.Gift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if g.Quantity != nil {
		q := *g.Quantity
		g.Quantity = &q
	}
	return &g, nil
}

func (r memCatalogRepo) AdjustQuantity(_ context.Context, id primitive.ObjectID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[id]
	if !ok || g.Quantity == nil || *g.Quantity+delta < 0 {
		return repository.ErrConditionNotMet
	}
	q := *g.Quantity + delta
	g.Quantity = &q
	r.s.gifts[id] = g
	return nil
}

func (r memCatalogRepo) ListStores(context.Context) ([]*models.Store, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.stores, nil
}

func (r memCatalogRepo) GetSettings(context.Context) (*models.Settings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s := *r.s.settings
	return &s, nil
}

func (r memCatalogRepo) EnsureSettings(context.Context, *models.Settings) error { return nil }

type memOutboxRepo struct{ s *memStore }

func (r memOutboxRepo) Create(_ context.Context, m *models.OutboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outbox = append(r.s.outbox, m)
	return nil
}

func (r memOutboxRepo) ClaimAndFetchEvents(context.Context, int) ([]*models.OutboxMessage, error) {
	panic("not implemented")
}

func (r memOutboxRepo) MarkAsProcessed(context.Context, primitive.ObjectID) error {
	panic("not implemented")
}

func (r memOutboxRepo) IncrementRetry(context.Context, primitive.ObjectID, string) error {
	panic("not implemented")
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(_ context.Context, l *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, l)
	return nil
}

func (r memAuditRepo) ListByBooking(_ context.Context, bookingID primitive.ObjectID) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLog
	for _, l := range r.s.audits {
		if l.BookingID == bookingID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ----- gateway -----

// fakeAdapter answers like a provider that accepts every order.
type fakeAdapter struct {
	name         constants.PaymentGateway
	orderErr     error
	refundErr    error
	refundStatus gateway.RefundStatus
	closeErr     error
	orders       []*gateway.OrderRequest
	refunds      []*gateway.RefundRequest
	closed       []string
}

func (a *fakeAdapter) Gateway() constants.PaymentGateway { return a.name }

func (a *fakeAdapter) CreateOrder(_ context.Context, req *gateway.OrderRequest) (*gateway.Order, error) {
	a.orders = append(a.orders, req)
	if a.orderErr != nil {
		return nil, a.orderErr
	}
	return &gateway.Order{ProviderOrderID: "prov-" + req.Payment.GatewayData.OutTradeNo, CodeURL: "weixin://wxpay/bizpayurl?pr=test"}, nil
}

func (a *fakeAdapter) Refund(_ context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	a.refunds = append(a.refunds, req)
	if a.refundErr != nil {
		return nil, a.refundErr
	}
	status := a.refundStatus
	if status == "" {
		status = gateway.RefundSucceeded
	}
	return &gateway.RefundResult{ProviderRefundID: "rf-" + req.Refund.GatewayData.OutRefundNo, Status: status}, nil
}

func (a *fakeAdapter) CloseOrder(_ context.Context, p *models.Payment) error {
	if a.closeErr != nil {
		return a.closeErr
	}
	a.closed = append(a.closed, p.GatewayData.OutTradeNo)
	return nil
}

func (a *fakeAdapter) ParseNotification(context.Context, *http.Request) (*gateway.Notification, error) {
	panic("not implemented")
}

// ----- wiring -----

type engine struct {
	store     *memStore
	wechat    *fakeAdapter
	settler   *Settler
	states    *BookingStateMachine
	composer  *Composer
	refunds   *RefundOrchestrator
	bookings  *BookingLogic
	cards     *CardPurchase
	lifecycle *CardLifecycle
	notify    *NotifyLogic
}

// testStoreID is the store every engine starts with.
var testStoreID = primitive.NewObjectID()

func newEngine(t *testing.T) *engine {
	t.Helper()
	s := newMemStore()
	s.stores = []*models.Store{{ID: testStoreID, Name: "徐汇店"}}
	logger := zap.NewNop()

	bookingRepo := memBookingRepo{s}
	paymentRepo := memPaymentRepo{s}
	customerRepo := memCustomerRepo{s}
	cardRepo := memCardRepo{s}
	catalog := memCatalogRepo{s}
	auditRepo := memAuditRepo{s}

	idGen, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	wechat := &fakeAdapter{name: constants.GatewayWechatPay}
	publisher := NewEventPublisher(memOutboxRepo{s})
	locker := lock.NewLocalLocker(time.Second)

	states := NewBookingStateMachine(bookingRepo, paymentRepo, customerRepo, cardRepo, catalog, catalog, catalog, auditRepo, publisher, logger)
	lifecycle := NewCardLifecycle(cardRepo, customerRepo, publisher, logger)
	settler := NewSettler(paymentRepo, customerRepo, cardRepo, s, locker, gateway.NewRegistry(wechat), idGen, states, lifecycle, nil, logger)
	composer := NewComposer(paymentRepo, bookingRepo, settler, states, s, logger)
	refunds := NewRefundOrchestrator(bookingRepo, paymentRepo, settler, states, publisher, s, logger)
	stores := NewStoreDirectory(catalog, nil, logger)
	resolver := NewInstrumentResolver(bookingRepo, logger)
	bookings := NewBookingLogic(bookingRepo, paymentRepo, customerRepo, cardRepo, catalog, catalog, catalog, catalog, auditRepo,
		stores, resolver, composer, states, refunds, locker, s, nil, logger)
	cards := NewCardPurchase(catalog, cardRepo, paymentRepo, customerRepo, settler, logger)
	notify := NewNotifyLogic(paymentRepo, settler, refunds, logger)

	return &engine{
		store:     s,
		wechat:    wechat,
		settler:   settler,
		states:    states,
		composer:  composer,
		refunds:   refunds,
		bookings:  bookings,
		cards:     cards,
		lifecycle: lifecycle,
		notify:    notify,
	}
}

func (e *engine) addCustomer(deposit, reward string) *models.Customer {
	c := models.Customer{
		ID:             primitive.NewObjectID(),
		Name:           "Lily",
		OpenID:         "o-lily",
		BalanceDeposit: money.MustParse(deposit),
		BalanceReward:  money.MustParse(reward),
	}
	e.store.customers[c.ID] = c
	return &c
}

func (e *engine) addStore(name string) *models.Store {
	st := &models.Store{ID: primitive.NewObjectID(), Name: name}
	e.store.stores = append(e.store.stores, st)
	return st
}

func (e *engine) customer(id primitive.ObjectID) *models.Customer {
	c := e.store.customers[id]
	return &c
}

func (e *engine) booking(id primitive.ObjectID) models.Booking { return e.store.bookings[id] }

func (e *engine) bookingPayments(id primitive.ObjectID) []*models.Payment {
	ps, _ := memPaymentRepo{e.store}.ListPaymentsByAttach(context.Background(), models.BookingAttach(id))
	return ps
}

func (e *engine) topics() []string {
	var out []string
	for _, m := range e.store.outbox {
		out = append(out, m.Topic)
	}
	return out
}

func customerOperator(c *models.Customer) *models.Operator {
	return &models.Operator{UserID: c.ID, Name: c.Name, Role: constants.RoleCustomer}
}

var staffOperator = &models.Operator{UserID: primitive.NewObjectID(), Name: "Front desk", Role: constants.RoleStaff}

var reviewerOperator = &models.Operator{UserID: primitive.NewObjectID(), Name: "Manager", Role: constants.RoleReviewer}
