package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/pagination"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func NewBookingDAO(db *mongo.Database, logger *zap.Logger) *BookingDAO {
	return &BookingDAO{
		bookingsCollection: db.Collection(CollectionBookings),
		logger:             logger.Named("BookingDAO"),
	}
}

type BookingDAO struct {
	bookingsCollection *mongo.Collection
	logger             *zap.Logger
}

func (d *BookingDAO) CreateBooking(ctx context.Context, booking *models.Booking) (primitive.ObjectID, error) {
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	if booking.Payments == nil {
		booking.Payments = []primitive.ObjectID{}
	}
	res, err := d.bookingsCollection.InsertOne(ctx, booking)
	if err != nil {
		d.logger.Error("CreateBooking: InsertOne failed", zap.Error(err), zap.Stringer("customer", booking.Customer))
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (d *BookingDAO) GetBookingByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var booking models.Booking
	err := d.bookingsCollection.FindOne(ctx, bson.M{fields.FieldObjectId: id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		d.logger.Error("GetBookingByID: FindOne failed", zap.Error(err), zap.Stringer("bookingID", id))
		return nil, err
	}
	return &booking, nil
}

func (d *BookingDAO) DeleteBooking(ctx context.Context, id primitive.ObjectID) error {
	res, err := d.bookingsCollection.DeleteOne(ctx, bson.M{fields.FieldObjectId: id})
	if err != nil {
		d.logger.Error("DeleteBooking: DeleteOne failed", zap.Error(err), zap.Stringer("bookingID", id))
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *BookingDAO) AppendPayment(ctx context.Context, bookingID, paymentID primitive.ObjectID) error {
	update := bson.M{
		"$push": bson.M{fields.FieldPayments: paymentID},
		"$set":  bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	res, err := d.bookingsCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: bookingID}, update)
	if err != nil {
		d.logger.Error("AppendPayment: UpdateOne failed", zap.Error(err), zap.Stringer("bookingID", bookingID))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *BookingDAO) UpdateBooking(ctx context.Context, id primitive.ObjectID, opts ...repository.UpdateOption) error {
	update := repository.BuildUpdate(time.Now(), opts...)
	res, err := d.bookingsCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: id}, update)
	if err != nil {
		d.logger.Error("UpdateBooking: UpdateOne failed", zap.Error(err), zap.Stringer("bookingID", id))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *BookingDAO) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []string, opts ...repository.UpdateOption) error {
	// 1. The status condition makes concurrent transitions race safely: only one matches.
	filter := bson.M{
		fields.FieldObjectId: id,
		fields.FieldStatus:   bson.M{"$in": from},
	}

	// 2. Apply the update.
	update := repository.BuildUpdate(time.Now(), opts...)
	res, err := d.bookingsCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		d.logger.Error("TransitionStatus: UpdateOne failed", zap.Error(err), zap.Stringer("bookingID", id), zap.Strings("from", from))
		return err
	}

	// 3. Tell a missing booking apart from one in another status.
	if res.MatchedCount == 0 {
		count, err := d.bookingsCollection.CountDocuments(ctx, bson.M{fields.FieldObjectId: id})
		if err != nil {
			d.logger.Error("TransitionStatus: CountDocuments failed", zap.Error(err), zap.Stringer("bookingID", id))
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConditionNotMet
	}
	return nil
}

func (d *BookingDAO) SumKidsOnCard(ctx context.Context, params *repository.CardQuotaParams) (int, error) {
	match := bson.M{
		fields.FieldBookingCard: params.CardID,
		fields.FieldDate:        params.Date,
		fields.FieldStatus:      bson.M{"$in": params.Statuses},
	}
	if params.Exclude != nil {
		match[fields.FieldObjectId] = bson.M{"$ne": *params.Exclude}
	}
	return d.sumField(ctx, "SumKidsOnCard", match, "$"+fields.FieldBookingKidsCount)
}

func (d *BookingDAO) SumGiftQuantity(ctx context.Context, customerID, giftID primitive.ObjectID, statuses []string) (int, error) {
	match := bson.M{
		fields.FieldCustomer:    customerID,
		fields.FieldBookingGift: giftID,
		fields.FieldStatus:      bson.M{"$in": statuses},
	}
	return d.sumField(ctx, "SumGiftQuantity", match, "$"+fields.FieldBookingQuantity)
}

func (d *BookingDAO) sumField(ctx context.Context, op string, match bson.M, expr string) (int, error) {
	pipeline := mongo.Pipeline{
		{{"$match", match}},
		{{"$group", bson.D{{"_id", nil}, {"total", bson.D{{"$sum", expr}}}}}},
	}
	cursor, err := d.bookingsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		d.logger.Error(op+": Aggregate failed", zap.Error(err), zap.Any("match", match))
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		d.logger.Error(op+": cursor.All failed", zap.Error(err))
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (d *BookingDAO) ListBookings(ctx context.Context, filter *repository.BookingFilter, page *pagination.PageRequest) ([]*models.Booking, int64, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Customer != nil {
			query[fields.FieldCustomer] = *filter.Customer
		}
		if filter.Store != nil {
			query[fields.FieldStore] = *filter.Store
		}
		if filter.Date != "" {
			query[fields.FieldDate] = filter.Date
		}
		if len(filter.Status) > 0 {
			query[fields.FieldStatus] = bson.M{"$in": filter.Status}
		}
		if filter.Type != "" {
			query[fields.FieldBookingType] = filter.Type
		}
	}

	total, err := d.bookingsCollection.CountDocuments(ctx, query)
	if err != nil {
		d.logger.Error("ListBookings: CountDocuments failed", zap.Error(err), zap.Any("filter", query))
		return nil, 0, err
	}
	if total == 0 {
		return []*models.Booking{}, 0, nil
	}

	opts := options.Find().
		SetSort(bson.D{{fields.FieldCreatedAt, -1}}).
		SetSkip(page.GetOffset()).
		SetLimit(page.GetLimit())
	cursor, err := d.bookingsCollection.Find(ctx, query, opts)
	if err != nil {
		d.logger.Error("ListBookings: Find failed", zap.Error(err), zap.Any("filter", query))
		return nil, 0, err
	}

	bookings := make([]*models.Booking, 0)
	if err := cursor.All(ctx, &bookings); err != nil {
		d.logger.Error("ListBookings: cursor.All failed", zap.Error(err))
		return nil, 0, err
	}
	return bookings, total, nil
}

func (d *BookingDAO) FindStaleBookings(ctx context.Context, params *repository.StaleBookingsParams) ([]*models.Booking, error) {
	var or []bson.M
	if !params.CreatedBefore.IsZero() {
		or = append(or, bson.M{fields.FieldCreatedAt: bson.M{"$lt": params.CreatedBefore}})
	}
	if params.DateBefore != "" {
		or = append(or, bson.M{fields.FieldDate: bson.M{"$lt": params.DateBefore}})
	}
	if len(or) == 0 {
		return []*models.Booking{}, nil
	}

	filter := bson.M{fields.FieldStatus: params.Status, "$or": or}
	opts := options.Find().SetSort(bson.D{{fields.FieldCreatedAt, 1}})
	if params.Limit > 0 {
		opts.SetLimit(int64(params.Limit))
	}

	cursor, err := d.bookingsCollection.Find(ctx, filter, opts)
	if err != nil {
		d.logger.Error("FindStaleBookings: Find failed", zap.Error(err), zap.Any("filter", filter))
		return nil, err
	}
	bookings := make([]*models.Booking, 0)
	if err := cursor.All(ctx, &bookings); err != nil {
		d.logger.Error("FindStaleBookings: cursor.All failed", zap.Error(err))
		return nil, err
	}
	return bookings, nil
}
