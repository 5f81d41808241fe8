package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"
	"github.com/lltxwdk/minimars-server/pkg/pagination"
)

func buildBooking(customer primitive.ObjectID) *models.Booking {
	now := time.Now().UTC()
	return &models.Booking{
		Type:        constants.BookingTypePlay,
		Customer:    customer,
		Date:        now.Format(models.DateLayout),
		CheckInTime: "10:00:00",
		KidsCount:   1,
		AdultsCount: 2,
		Status:      constants.BookingStatusPending.String(),
		Price:       money.New(188),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestBookingDAO_TransitionStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	newDAO := func(mt *mtest.T) *BookingDAO {
		return &BookingDAO{bookingsCollection: mt.Coll, logger: zap.NewNop()}
	}

	mt.Run("matched transition succeeds", func(mt *mtest.T) {
		dao := newDAO(mt)
		mt.AddMockResponses(updateResponse(1))

		err := dao.TransitionStatus(context.Background(), primitive.NewObjectID(),
			[]string{constants.BookingStatusPending.String()},
			repository.WithStatus(constants.BookingStatusBooked.String()))
		require.NoError(mt, err)
	})

	mt.Run("booking in another status returns condition not met", func(mt *mtest.T) {
		dao := newDAO(mt)
		mt.AddMockResponses(updateResponse(0), countResponse(mt, 1))

		err := dao.TransitionStatus(context.Background(), primitive.NewObjectID(),
			[]string{constants.BookingStatusPending.String()},
			repository.WithStatus(constants.BookingStatusBooked.String()))
		require.ErrorIs(mt, err, ErrConditionNotMet)
	})

	mt.Run("missing booking returns not found", func(mt *mtest.T) {
		dao := newDAO(mt)
		mt.AddMockResponses(updateResponse(0), countResponse(mt, 0))

		err := dao.TransitionStatus(context.Background(), primitive.NewObjectID(),
			[]string{constants.BookingStatusPending.String()})
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("propagates update errors", func(mt *mtest.T) {
		dao := newDAO(mt)
		mt.AddMockResponses(commandError())

		err := dao.TransitionStatus(context.Background(), primitive.NewObjectID(), nil)
		require.Error(mt, err)
	})
}

func TestBookingDAO_GetBookingByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("not found", func(mt *mtest.T) {
		dao := &BookingDAO{bookingsCollection: mt.Coll, logger: zap.NewNop()}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNamespace(mt), mtest.FirstBatch))

		booking, err := dao.GetBookingByID(context.Background(), primitive.NewObjectID())
		require.ErrorIs(mt, err, ErrNotFound)
		require.Nil(mt, booking)
	})

	mt.Run("decodes document", func(mt *mtest.T) {
		dao := &BookingDAO{bookingsCollection: mt.Coll, logger: zap.NewNop()}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNamespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "type", Value: "play"},
			{Key: "status", Value: "booked"},
			{Key: "kids_count", Value: int32(2)},
			{Key: "price", Value: 96.5},
		}))

		booking, err := dao.GetBookingByID(context.Background(), id)
		require.NoError(mt, err)
		require.Equal(mt, id, booking.ID)
		require.Equal(mt, constants.BookingStatusBooked, booking.StatusValue())
		require.Equal(mt, "96.50", booking.Price.String())
	})
}

func TestBookingDAO_SumKidsOnCard(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no bookings sums to zero", func(mt *mtest.T) {
		dao := &BookingDAO{bookingsCollection: mt.Coll, logger: zap.NewNop()}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNamespace(mt), mtest.FirstBatch))

		total, err := dao.SumKidsOnCard(context.Background(), &repository.CardQuotaParams{
			CardID:   primitive.NewObjectID(),
			Date:     "2026-10-17",
			Statuses: constants.PaidBookingStatuses,
		})
		require.NoError(mt, err)
		require.Zero(mt, total)
	})

	mt.Run("returns grouped total", func(mt *mtest.T) {
		dao := &BookingDAO{bookingsCollection: mt.Coll, logger: zap.NewNop()}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNamespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: int32(3)}}))

		exclude := primitive.NewObjectID()
		total, err := dao.SumKidsOnCard(context.Background(), &repository.CardQuotaParams{
			CardID:   primitive.NewObjectID(),
			Date:     "2026-10-17",
			Statuses: constants.PaidBookingStatuses,
			Exclude:  &exclude,
		})
		require.NoError(mt, err)
		require.Equal(mt, 3, total)
	})
}

func TestBookingDAO_Integration(t *testing.T) {
	db := setupIntegrationDB(t)
	dao := NewBookingDAO(db, zap.NewNop())
	ctx := context.Background()

	t.Run("create append and list", func(t *testing.T) {
		customer := primitive.NewObjectID()
		booking := buildBooking(customer)

		id, err := dao.CreateBooking(ctx, booking)
		require.NoError(t, err)

		paymentID := primitive.NewObjectID()
		require.NoError(t, dao.AppendPayment(ctx, id, paymentID))

		stored, err := dao.GetBookingByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, []primitive.ObjectID{paymentID}, stored.Payments)
		require.Equal(t, "188.00", stored.Price.String())

		list, total, err := dao.ListBookings(ctx, &repository.BookingFilter{Customer: &customer}, pagination.NewPageRequest(1, 10))
		require.NoError(t, err)
		require.Equal(t, int64(1), total)
		require.Len(t, list, 1)
	})

	t.Run("only one concurrent transition wins", func(t *testing.T) {
		id, err := dao.CreateBooking(ctx, buildBooking(primitive.NewObjectID()))
		require.NoError(t, err)

		from := []string{constants.BookingStatusPending.String()}
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				errs <- dao.TransitionStatus(ctx, id, from, repository.WithStatus(constants.BookingStatusBooked.String()))
			}()
		}
		first, second := <-errs, <-errs
		if first == nil {
			require.ErrorIs(t, second, ErrConditionNotMet)
		} else {
			require.ErrorIs(t, first, ErrConditionNotMet)
			require.NoError(t, second)
		}
	})

	t.Run("card quota sums paid bookings on the date", func(t *testing.T) {
		card := primitive.NewObjectID()
		date := "2026-10-17"
		for _, status := range []string{"booked", "in_service", "pending", "canceled"} {
			b := buildBooking(primitive.NewObjectID())
			b.Card = &card
			b.Date = date
			b.KidsCount = 2
			b.Status = status
			_, err := dao.CreateBooking(ctx, b)
			require.NoError(t, err)
		}

		total, err := dao.SumKidsOnCard(ctx, &repository.CardQuotaParams{
			CardID:   card,
			Date:     date,
			Statuses: constants.PaidBookingStatuses,
		})
		require.NoError(t, err)
		require.Equal(t, 4, total)
	})

	t.Run("stale pending bookings", func(t *testing.T) {
		old := buildBooking(primitive.NewObjectID())
		old.CreatedAt = time.Now().Add(-2 * time.Hour)
		oldID, err := dao.CreateBooking(ctx, old)
		require.NoError(t, err)
		_, err = dao.CreateBooking(ctx, buildBooking(primitive.NewObjectID()))
		require.NoError(t, err)

		stale, err := dao.FindStaleBookings(ctx, &repository.StaleBookingsParams{
			Status:        constants.BookingStatusPending.String(),
			CreatedBefore: time.Now().Add(-time.Hour),
		})
		require.NoError(t, err)
		ids := make([]primitive.ObjectID, 0, len(stale))
		for _, b := range stale {
			ids = append(ids, b.ID)
		}
		require.Contains(t, ids, oldID)
		require.Len(t, ids, 1)
	})
}
