package logic

import (
	"context"
	"testing"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
	"github.com/lltxwdk/minimars-server/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const bookingDate = "2030-06-03"

func playInput(gw constants.PaymentGateway) *CreateBookingInput {
	return &CreateBookingInput{
		Type:        constants.BookingTypePlay,
		Store:       &testStoreID,
		Date:        bookingDate,
		CheckInTime: "10:00:00",
		KidsCount:   1,
		Gateway:     gw,
	}
}

func paidNotification(p *models.Payment, amount string) *gateway.Notification {
	return &gateway.Notification{Kind: gateway.NotifyPaid, OutTradeNo: p.GatewayData.OutTradeNo, Amount: money.MustParse(amount), Succeeded: true}
}

func (e *engine) setKidPrice(price string) {
	e.store.settings = &models.Settings{KidFullDayPrice: money.MustParse(price), FreeParentsPerKid: 2}
}

func (e *engine) addTimesCard(owner primitive.ObjectID) models.Card {
	card := models.Card{
		ID: primitive.NewObjectID(), Customer: owner, Type: constants.CardTypeTimes, Status: constants.CardStatusActivated,
		Times: 10, TimesLeft: 5, Price: money.MustParse("1000"), FreeParentsPerKid: 2,
	}
	e.store.cards[card.ID] = card
	return card
}

func TestBookingLogic_CreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("card pays three kids", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("0", "0")
		card := e.addTimesCard(c.ID)

		in := playInput("")
		in.KidsCount = 3
		in.Card = &card.ID
		res, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		require.NoError(t, err)

		require.Len(t, res.Payments, 1)
		assert.Equal(t, constants.GatewayCard, res.Payments[0].Gateway)
		assert.Equal(t, "300.00", res.Payments[0].Amount.String())
		assert.Equal(t, 3, res.Payments[0].GatewayData.Times)
		assert.Equal(t, 2, e.store.cards[card.ID].TimesLeft)
		assert.Equal(t, "300.00", res.Booking.Price.String())
		assert.Equal(t, constants.BookingStatusBooked.String(), res.Booking.Status)
	})

	t.Run("card then balance", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("100", "0")
		card := e.addTimesCard(c.ID)
		card.Price = money.MustParse("600")
		card.MaxKids = 1
		e.store.cards[card.ID] = card

		in := playInput("")
		in.KidsCount = 2
		in.Card = &card.ID
		in.UseBalance = true
		res, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		require.NoError(t, err)

		// card covers one kid at 600/10, the second kid pays 100 from balance
		require.Len(t, res.Payments, 2)
		assert.Equal(t, constants.GatewayCard, res.Payments[0].Gateway)
		assert.Equal(t, "60.00", res.Payments[0].Amount.String())
		assert.Equal(t, constants.GatewayBalance, res.Payments[1].Gateway)
		assert.Equal(t, "100.00", res.Payments[1].Amount.String())
		assert.Equal(t, "160.00", res.Booking.Price.String())
		assert.Equal(t, "0.00", e.customer(c.ID).Balance().String())
		assert.Equal(t, constants.BookingStatusBooked.String(), res.Booking.Status)
	})

	t.Run("insufficient balance rolls the booking back", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("50")
		c := e.addCustomer("10", "0")

		_, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayBalance), customerOperator(c))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		de, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindInsufficientFunds, de.Kind)
		assert.Equal(t, StageBalance, de.Stage)

		assert.Empty(t, e.store.bookings)
		assert.Empty(t, e.store.payments)
		assert.Equal(t, "10.00", e.customer(c.ID).Balance().String())
	})

	t.Run("wechat leaves the booking pending", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("248")
		c := e.addCustomer("0", "0")

		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)
		require.NotNil(t, res.Order)
		assert.Equal(t, constants.BookingStatusPending.String(), res.Booking.Status)
		require.Len(t, res.Payments, 1)
		assert.False(t, res.Payments[0].Paid)
	})

	t.Run("missing gateway for the remainder", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("30", "0")

		in := playInput("")
		in.UseBalance = true
		_, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrMissingGateway)

		// the 30 balance part was paid, so the booking is canceled and refunded instead of deleted
		require.Len(t, e.store.bookings, 1)
		for _, b := range e.store.bookings {
			assert.Equal(t, constants.BookingStatusCanceled.String(), b.Status)
		}
		assert.Equal(t, "30.00", e.customer(c.ID).Balance().String())
	})

	t.Run("play booking needs a store and somebody coming", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("100", "0")

		in := playInput(constants.GatewayBalance)
		in.Store = nil
		_, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrMissingBookingStore)

		in = playInput(constants.GatewayBalance)
		in.KidsCount = 0
		_, err = e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrEmptyHeadcount)

		// a store-scoped card cannot be used by leaving the store out
		card := e.addTimesCard(c.ID)
		scoped := e.store.cards[card.ID]
		scoped.Stores = []primitive.ObjectID{testStoreID}
		e.store.cards[card.ID] = scoped
		in = playInput("")
		in.Store = nil
		in.Card = &card.ID
		_, err = e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrMissingBookingStore)
		assert.Equal(t, 5, e.store.cards[card.ID].TimesLeft)

		other := primitive.NewObjectID()
		e.store.stores = append(e.store.stores, &models.Store{ID: other, Name: "静安店"})
		in.Store = &other
		_, err = e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrStoreNotAllowed)
		assert.Equal(t, 5, e.store.cards[card.ID].TimesLeft)

		assert.Empty(t, e.store.bookings)
		assert.Equal(t, "100.00", e.customer(c.ID).Balance().String())
	})

	t.Run("card rules run before anything is saved", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("0", "0")
		other := e.addCustomer("0", "0")
		card := e.addTimesCard(other.ID)

		in := playInput("")
		in.Card = &card.ID
		_, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrCardOwnerMismatch)
		assert.Empty(t, e.store.bookings)

		missing := primitive.NewObjectID()
		in.Card = &missing
		_, err = e.bookings.CreateBooking(ctx, in, customerOperator(c))
		assert.ErrorIs(t, err, ErrInvalidCard)
	})

	t.Run("party needs a staff price", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("0", "0")
		in := &CreateBookingInput{Type: constants.BookingTypeParty, Customer: &c.ID, Date: bookingDate, KidsCount: 10, Gateway: constants.GatewayCash}
		_, err := e.bookings.CreateBooking(ctx, in, staffOperator)
		assert.ErrorIs(t, err, ErrMissingPrice)

		price := money.MustParse("1800")
		in.Price = &price
		res, err := e.bookings.CreateBooking(ctx, in, staffOperator)
		require.NoError(t, err)
		assert.Equal(t, c.ID, res.Booking.Customer)
		assert.True(t, res.Booking.AtReception)
		assert.Equal(t, constants.BookingStatusBooked.String(), res.Booking.Status)
	})

	t.Run("event takes places and gift takes stock", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("500", "0")
		event := models.Event{ID: primitive.NewObjectID(), Title: "Lego", Price: money.MustParse("100"), KidsCountMax: 10, KidsCountLeft: 3}
		e.store.events[event.ID] = event
		qty := 5
		gift := models.Gift{ID: primitive.NewObjectID(), Title: "Socks", Price: money.MustParse("20"), Quantity: &qty, TagCustomer: "gift", UseBalance: true}
		e.store.gifts[gift.ID] = gift

		res, err := e.bookings.CreateBooking(ctx, &CreateBookingInput{Type: constants.BookingTypeEvent, Event: &event.ID, KidsCount: 2,
			Gateway: constants.GatewayBalance}, customerOperator(c))
		require.NoError(t, err)
		assert.Equal(t, "200.00", res.Booking.Price.String())
		assert.Equal(t, 1, e.store.events[event.ID].KidsCountLeft)

		_, err = e.bookings.CreateBooking(ctx, &CreateBookingInput{Type: constants.BookingTypeEvent, Event: &event.ID, KidsCount: 2,
			Gateway: constants.GatewayBalance}, customerOperator(c))
		assert.ErrorIs(t, err, ErrEventKidsNotEnough)

		_, err = e.bookings.CreateBooking(ctx, &CreateBookingInput{Type: constants.BookingTypeGift, Gift: &gift.ID, Quantity: 2,
			Gateway: constants.GatewayBalance}, customerOperator(c))
		require.NoError(t, err)
		assert.Equal(t, 3, *e.store.gifts[gift.ID].Quantity)
		assert.True(t, e.customer(c.ID).HasTag("gift"))
		assert.Equal(t, "260.00", e.customer(c.ID).Balance().String())
	})

	t.Run("points booking", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("0", "0")
		cust := e.store.customers[c.ID]
		cust.Points = 1000
		e.store.customers[c.ID] = cust
		gift := models.Gift{ID: primitive.NewObjectID(), Title: "Cap", PriceInPoints: 300}
		e.store.gifts[gift.ID] = gift

		res, err := e.bookings.CreateBooking(ctx, &CreateBookingInput{Type: constants.BookingTypeGift, Gift: &gift.ID, Quantity: 1,
			Gateway: constants.GatewayPoints}, customerOperator(c))
		require.NoError(t, err)
		assert.True(t, res.Booking.Price.IsZero())
		assert.Equal(t, int64(300), res.Booking.PriceInPoints)
		assert.Equal(t, int64(700), e.customer(c.ID).Points)
		assert.Equal(t, constants.BookingStatusBooked.String(), res.Booking.Status)
	})
}

func TestBookingLogic_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("balance refund cancels directly", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("80")
		c := e.addCustomer("100", "0")
		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayBalance), customerOperator(c))
		require.NoError(t, err)
		require.Equal(t, constants.BookingStatusBooked.String(), res.Booking.Status)

		assert.ErrorIs(t, e.bookings.Cancel(ctx, res.Booking.ID, customerOperator(c), ""), ErrPermissionDenied)
		require.NoError(t, e.bookings.Cancel(ctx, res.Booking.ID, reviewerOperator, "customer called"))

		payments := e.bookingPayments(res.Booking.ID)
		require.Len(t, payments, 2)
		refund := payments[1]
		assert.Equal(t, "-80.00", refund.Amount.String())
		require.NotNil(t, refund.Original)
		assert.Equal(t, payments[0].ID, *refund.Original)
		assert.True(t, refund.Paid)
		assert.Equal(t, "退款："+payments[0].Title, refund.Title)

		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(res.Booking.ID).Status)
		assert.Equal(t, "100.00", e.customer(c.ID).Balance().String())

		// canceling again emits nothing
		require.NoError(t, e.bookings.Cancel(ctx, res.Booking.ID, reviewerOperator, ""))
		assert.Len(t, e.bookingPayments(res.Booking.ID), 2)
		assert.Equal(t, []string{constants.TopicBookingPaid.String(), constants.TopicBookingCanceled.String()}, e.topics())
	})

	t.Run("card times come back", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("0", "0")
		card := e.addTimesCard(c.ID)
		in := playInput("")
		in.KidsCount = 3
		in.Card = &card.ID
		res, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		require.NoError(t, err)
		require.Equal(t, 2, e.store.cards[card.ID].TimesLeft)

		require.NoError(t, e.bookings.Cancel(ctx, res.Booking.ID, reviewerOperator, ""))
		assert.Equal(t, 5, e.store.cards[card.ID].TimesLeft)
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(res.Booking.ID).Status)
	})

	t.Run("owner cancels an unpaid booking", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("0", "0")
		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)

		require.NoError(t, e.bookings.Cancel(ctx, res.Booking.ID, customerOperator(c), ""))
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(res.Booking.ID).Status)
		assert.Empty(t, e.wechat.refunds)
	})

	t.Run("finished bookings cannot be canceled", func(t *testing.T) {
		e := newEngine(t)
		c := e.addCustomer("0", "0")
		b := e.seedBooking(c.ID, "0")
		stored := e.store.bookings[b.ID]
		stored.Status = constants.BookingStatusFinished.String()
		e.store.bookings[b.ID] = stored

		assert.ErrorIs(t, e.bookings.Cancel(ctx, b.ID, reviewerOperator, ""), ErrInvalidStateTransition)
	})
}

func TestBookingLogic_RequestAndReviewCancel(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.setKidPrice("80")
	c := e.addCustomer("100", "0")
	res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayBalance), customerOperator(c))
	require.NoError(t, err)
	id := res.Booking.ID

	stranger := &models.Operator{UserID: primitive.NewObjectID(), Role: constants.RoleCustomer}
	assert.ErrorIs(t, e.bookings.RequestCancel(ctx, id, stranger, ""), ErrPermissionDenied)
	assert.ErrorIs(t, e.bookings.ReviewCancel(ctx, id, true, reviewerOperator, ""), ErrCancelNotRequested)

	// 1. request then reject
	require.NoError(t, e.bookings.RequestCancel(ctx, id, customerOperator(c), "sick"))
	b := e.booking(id)
	assert.Equal(t, constants.BookingStatusPendingRefund.String(), b.Status)
	assert.Equal(t, constants.BookingStatusBooked.String(), b.StatusWas)

	assert.ErrorIs(t, e.bookings.ReviewCancel(ctx, id, false, staffOperator, ""), ErrPermissionDenied)
	require.NoError(t, e.bookings.ReviewCancel(ctx, id, false, reviewerOperator, "too late"))
	b = e.booking(id)
	assert.Equal(t, constants.BookingStatusBooked.String(), b.Status)
	assert.Empty(t, b.StatusWas)
	assert.Equal(t, "20.00", e.customer(c.ID).Balance().String())

	// 2. request then approve
	require.NoError(t, e.bookings.RequestCancel(ctx, id, customerOperator(c), "sick"))
	require.NoError(t, e.bookings.ReviewCancel(ctx, id, true, reviewerOperator, ""))
	assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)
	assert.Equal(t, "100.00", e.customer(c.ID).Balance().String())
}

func TestBookingLogic_ExternalRefund(t *testing.T) {
	ctx := context.Background()

	paidWechatBooking := func(t *testing.T, e *engine) (*models.Customer, primitive.ObjectID) {
		e.setKidPrice("100")
		c := e.addCustomer("0", "0")
		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)
		require.NoError(t, e.settler.ConfirmExternal(ctx, constants.GatewayWechatPay, paidNotification(res.Payments[0], "100")))
		require.Equal(t, constants.BookingStatusBooked.String(), e.booking(res.Booking.ID).Status)
		return c, res.Booking.ID
	}

	t.Run("provider refunds at once", func(t *testing.T) {
		e := newEngine(t)
		_, id := paidWechatBooking(t, e)

		require.NoError(t, e.bookings.Cancel(ctx, id, reviewerOperator, ""))
		require.Len(t, e.wechat.refunds, 1)
		assert.Equal(t, "-100.00", e.wechat.refunds[0].Refund.Amount.String())
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)
	})

	t.Run("provider refunds later", func(t *testing.T) {
		e := newEngine(t)
		e.wechat.refundStatus = gateway.RefundProcessing
		_, id := paidWechatBooking(t, e)

		require.NoError(t, e.bookings.Cancel(ctx, id, reviewerOperator, ""))
		assert.Equal(t, constants.BookingStatusPendingRefund.String(), e.booking(id).Status)
		assert.Contains(t, e.topics(), constants.TopicRefundPending.String())

		refund := e.bookingPayments(id)[1]
		assert.Equal(t, refundStatusProcessing, refund.GatewayData.RefundStatus)
		n := &gateway.Notification{Kind: gateway.NotifyRefunded, OutRefundNo: refund.GatewayData.OutRefundNo, Succeeded: true}
		require.NoError(t, e.settler.ConfirmExternal(ctx, constants.GatewayWechatPay, n))
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)
	})

	t.Run("merchant balance short then retried", func(t *testing.T) {
		e := newEngine(t)
		_, id := paidWechatBooking(t, e)
		e.wechat.refundErr = &gateway.ProviderError{Provider: "wechatpay", Code: gateway.CodeInsufficientMerchantBalance, Retryable: true}

		err := e.bookings.Cancel(ctx, id, reviewerOperator, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMerchantBalanceInsufficient)
		de, _ := AsError(err)
		assert.True(t, de.Retryable())
		assert.Equal(t, constants.BookingStatusPendingRefund.String(), e.booking(id).Status)
		assert.Contains(t, e.topics(), constants.TopicRefundPending.String())

		e.wechat.refundErr = nil
		require.NoError(t, e.refunds.RetryRefund(ctx, id))
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)

		payments := e.bookingPayments(id)
		require.Len(t, payments, 2)
		require.Len(t, e.wechat.refunds, 2)
		assert.Equal(t, e.wechat.refunds[0].Refund.GatewayData.OutRefundNo, e.wechat.refunds[1].Refund.GatewayData.OutRefundNo)
	})
}

func TestBookingLogic_StaffOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("check in and out", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("80")
		c := e.addCustomer("100", "0")
		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayBalance), customerOperator(c))
		require.NoError(t, err)
		id := res.Booking.ID

		assert.ErrorIs(t, e.bookings.CheckIn(ctx, id, customerOperator(c)), ErrPermissionDenied)
		assert.ErrorIs(t, e.bookings.Checkout(ctx, id, staffOperator), ErrInvalidStateTransition)
		require.NoError(t, e.bookings.CheckIn(ctx, id, staffOperator))
		require.NoError(t, e.bookings.Checkout(ctx, id, staffOperator))

		b := e.booking(id)
		assert.Equal(t, constants.BookingStatusFinished.String(), b.Status)
		assert.NotNil(t, b.CheckInAt)
		assert.NotNil(t, b.CheckOutAt)

		logs, err := e.bookings.ListAuditLogs(ctx, id, staffOperator)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, constants.AuditCheckIn, logs[0].Action)
		assert.Equal(t, constants.BookingStatusBooked.String(), logs[0].From)
		assert.Equal(t, constants.BookingStatusInService.String(), logs[0].To)
		assert.Equal(t, constants.AuditCheckout, logs[1].Action)

		_, err = e.bookings.ListAuditLogs(ctx, id, customerOperator(c))
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("delete only unpaid bookings", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("100", "0")
		pending, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)
		paid, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayBalance), customerOperator(c))
		require.NoError(t, err)

		assert.ErrorIs(t, e.bookings.DeleteBooking(ctx, pending.Booking.ID, customerOperator(c)), ErrPermissionDenied)
		assert.ErrorIs(t, e.bookings.DeleteBooking(ctx, paid.Booking.ID, staffOperator), ErrInvalidStateTransition)

		require.NoError(t, e.bookings.DeleteBooking(ctx, pending.Booking.ID, staffOperator))
		assert.NotContains(t, e.store.bookings, pending.Booking.ID)
		assert.Empty(t, e.bookingPayments(pending.Booking.ID))
		require.NotEmpty(t, e.store.audits)
		last := e.store.audits[len(e.store.audits)-1]
		assert.Equal(t, constants.AuditDelete, last.Action)
		require.NotNil(t, last.Snapshot)
		assert.Equal(t, pending.Booking.ID, last.Snapshot.ID)
	})

	t.Run("customers only see their own bookings", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("0", "0")
		other := e.addCustomer("0", "0")
		mine, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)
		_, err = e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(other))
		require.NoError(t, err)

		page, err := e.bookings.ListBookings(ctx, nil, pagination.NewPageRequest(1, 20), customerOperator(c))
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, mine.Booking.ID, page.Data[0].ID)

		_, err = e.bookings.GetBooking(ctx, mine.Booking.ID, customerOperator(other))
		assert.ErrorIs(t, err, ErrPermissionDenied)
		all, err := e.bookings.ListBookings(ctx, nil, pagination.NewPageRequest(1, 20), staffOperator)
		require.NoError(t, err)
		assert.Len(t, all.Data, 2)
	})
}

func TestBookingLogic_PaymentAfterCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel closes the open order", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("0", "0")
		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)

		require.NoError(t, e.bookings.Cancel(ctx, res.Booking.ID, customerOperator(c), ""))
		assert.Equal(t, []string{res.Payments[0].GatewayData.OutTradeNo}, e.wechat.closed)
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(res.Booking.ID).Status)
	})

	t.Run("charge landing after cancel is refunded", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		e.wechat.closeErr = &gateway.ProviderError{Provider: constants.GatewayWechatPay, Code: gateway.CodeProviderUnavailable, Retryable: true}
		c := e.addCustomer("0", "0")
		res, err := e.bookings.CreateBooking(ctx, playInput(constants.GatewayWechatPay), customerOperator(c))
		require.NoError(t, err)
		id := res.Booking.ID

		// a failed close does not block the cancel
		require.NoError(t, e.bookings.Cancel(ctx, id, customerOperator(c), ""))
		require.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)

		require.NoError(t, e.notify.ConfirmExternal(ctx, constants.GatewayWechatPay, paidNotification(res.Payments[0], "100")))

		payments := e.bookingPayments(id)
		require.Len(t, payments, 2)
		assert.True(t, payments[0].Paid)
		assert.Equal(t, "-100.00", payments[1].Amount.String())
		assert.True(t, payments[1].Paid)
		require.Len(t, e.wechat.refunds, 1)
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)
		assert.Contains(t, e.topics(), constants.TopicRefundPending.String())
		assert.NotContains(t, e.topics(), constants.TopicBookingPaid.String())
	})

	t.Run("charge landing after a partly paid cancel is refunded", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("30", "0")
		in := playInput(constants.GatewayWechatPay)
		in.UseBalance = true
		res, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		require.NoError(t, err)
		id := res.Booking.ID
		require.Len(t, res.Payments, 2)
		wechat := res.Payments[1]
		require.Equal(t, constants.GatewayWechatPay, wechat.Gateway)
		assert.Equal(t, "0.00", e.customer(c.ID).Balance().String())

		require.NoError(t, e.bookings.Cancel(ctx, id, reviewerOperator, "no show"))
		require.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)
		assert.Equal(t, "30.00", e.customer(c.ID).Balance().String())
		assert.Len(t, e.wechat.closed, 1)

		require.NoError(t, e.notify.ConfirmExternal(ctx, constants.GatewayWechatPay, paidNotification(wechat, "70")))
		require.Len(t, e.wechat.refunds, 1)
		assert.Equal(t, "-70.00", e.wechat.refunds[0].Refund.Amount.String())
		assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(id).Status)
		assert.Equal(t, "30.00", e.customer(c.ID).Balance().String())
	})

	t.Run("charge during a cancel request waits for the review", func(t *testing.T) {
		e := newEngine(t)
		e.setKidPrice("100")
		c := e.addCustomer("30", "0")
		in := playInput(constants.GatewayWechatPay)
		in.UseBalance = true
		res, err := e.bookings.CreateBooking(ctx, in, customerOperator(c))
		require.NoError(t, err)
		id := res.Booking.ID

		require.NoError(t, e.bookings.RequestCancel(ctx, id, customerOperator(c), "sick"))
		require.NoError(t, e.notify.ConfirmExternal(ctx, constants.GatewayWechatPay, paidNotification(res.Payments[1], "70")))
		assert.Empty(t, e.wechat.refunds)
		assert.Equal(t, constants.BookingStatusPendingRefund.String(), e.booking(id).Status)

		// rejecting restores the booking and confirms the payment that arrived meanwhile
		require.NoError(t, e.bookings.ReviewCancel(ctx, id, false, reviewerOperator, "keep it"))
		b := e.booking(id)
		assert.Equal(t, constants.BookingStatusBooked.String(), b.Status)
		assert.Empty(t, b.StatusWas)
		assert.Contains(t, e.topics(), constants.TopicBookingPaid.String())
	})
}

func TestBookingLogic_OversoldEvent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	c := e.addCustomer("0", "0")
	event := models.Event{ID: primitive.NewObjectID(), Title: "Lego", Price: money.MustParse("100"), KidsCountMax: 10, KidsCountLeft: 2}
	e.store.events[event.ID] = event

	res, err := e.bookings.CreateBooking(ctx, &CreateBookingInput{Type: constants.BookingTypeEvent, Event: &event.ID, KidsCount: 2,
		Gateway: constants.GatewayWechatPay}, customerOperator(c))
	require.NoError(t, err)
	require.Equal(t, constants.BookingStatusPending.String(), res.Booking.Status)

	// the last places went to someone else before the callback
	sold := e.store.events[event.ID]
	sold.KidsCountLeft = 0
	e.store.events[event.ID] = sold

	require.NoError(t, e.notify.ConfirmExternal(ctx, constants.GatewayWechatPay, paidNotification(res.Payments[0], "200")))
	b := e.booking(res.Booking.ID)
	assert.Equal(t, constants.BookingStatusBooked.String(), b.Status)
	assert.False(t, b.InventoryHeld)
	assert.True(t, e.store.payments[res.Payments[0].ID].Paid)
	assert.Equal(t, 0, e.store.events[event.ID].KidsCountLeft)

	// nothing was taken, so nothing is given back
	require.NoError(t, e.bookings.Cancel(ctx, b.ID, reviewerOperator, ""))
	assert.Equal(t, constants.BookingStatusCanceled.String(), e.booking(b.ID).Status)
	assert.Equal(t, 0, e.store.events[event.ID].KidsCountLeft)
}
