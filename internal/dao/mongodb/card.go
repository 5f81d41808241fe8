package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/lltxwdk/minimars-server/internal/constants"
	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func NewCardDAO(db *mongo.Database, logger *zap.Logger) *CardDAO {
	return &CardDAO{
		cardsCollection: db.Collection(CollectionCards),
		logger:          logger.Named("CardDAO"),
	}
}

type CardDAO struct {
	cardsCollection *mongo.Collection
	logger          *zap.Logger
}

func (d *CardDAO) CreateCard(ctx context.Context, card *models.Card) (primitive.ObjectID, error) {
	if card.ID.IsZero() {
		card.ID = primitive.NewObjectID()
	}
	res, err := d.cardsCollection.InsertOne(ctx, card)
	if err != nil {
		d.logger.Error("CreateCard: InsertOne failed", zap.Error(err), zap.String("slug", card.Slug), zap.Stringer("customer", card.Customer))
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (d *CardDAO) GetCardByID(ctx context.Context, id primitive.ObjectID) (*models.Card, error) {
	var card models.Card
	err := d.cardsCollection.FindOne(ctx, bson.M{fields.FieldObjectId: id}).Decode(&card)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		d.logger.Error("GetCardByID: FindOne failed", zap.Error(err), zap.Stringer("cardID", id))
		return nil, err
	}
	return &card, nil
}

func (d *CardDAO) ConsumeTimes(ctx context.Context, id primitive.ObjectID, times int) error {
	filter := bson.M{
		fields.FieldObjectId:      id,
		fields.FieldStatus:        constants.CardStatusActivated,
		fields.FieldCardTimesLeft: bson.M{"$gte": times},
	}
	update := bson.M{
		"$inc": bson.M{fields.FieldCardTimesLeft: -times},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	res, err := d.cardsCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		d.logger.Error("ConsumeTimes: UpdateOne failed", zap.Error(err), zap.Stringer("cardID", id), zap.Int("times", times))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConditionNotMet
	}
	return nil
}

func (d *CardDAO) RestoreTimes(ctx context.Context, id primitive.ObjectID, times int) error {
	update := bson.M{
		"$inc": bson.M{fields.FieldCardTimesLeft: times},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	res, err := d.cardsCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: id}, update)
	if err != nil {
		d.logger.Error("RestoreTimes: UpdateOne failed", zap.Error(err), zap.Stringer("cardID", id), zap.Int("times", times))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *CardDAO) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []constants.CardStatus, opts ...repository.UpdateOption) error {
	filter := bson.M{
		fields.FieldObjectId: id,
		fields.FieldStatus:   bson.M{"$in": from},
	}
	update := repository.BuildUpdate(time.Now(), opts...)
	res, err := d.cardsCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		d.logger.Error("TransitionStatus: UpdateOne failed", zap.Error(err), zap.Stringer("cardID", id))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConditionNotMet
	}
	return nil
}

// UpdateStatusByRewardBooking moves the cards issued as a reward for bookingID.
func (d *CardDAO) UpdateStatusByRewardBooking(ctx context.Context, bookingID primitive.ObjectID, from []constants.CardStatus, to constants.CardStatus) (int64, error) {
	filter := bson.M{
		fields.FieldCardRewardedFromBooking: bookingID,
		fields.FieldStatus:                  bson.M{"$in": from},
	}
	update := bson.M{"$set": bson.M{
		fields.FieldStatus:    to,
		fields.FieldUpdatedAt: time.Now(),
	}}
	res, err := d.cardsCollection.UpdateMany(ctx, filter, update)
	if err != nil {
		d.logger.Error("UpdateStatusByRewardBooking: UpdateMany failed", zap.Error(err), zap.Stringer("bookingID", bookingID))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (d *CardDAO) AppendPayment(ctx context.Context, cardID, paymentID primitive.ObjectID) error {
	update := bson.M{
		"$push": bson.M{fields.FieldPayments: paymentID},
		"$set":  bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	res, err := d.cardsCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: cardID}, update)
	if err != nil {
		d.logger.Error("AppendPayment: UpdateOne failed", zap.Error(err), zap.Stringer("cardID", cardID))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelPendingBefore cancels purchased cards whose payment never arrived.
func (d *CardDAO) CancelPendingBefore(ctx context.Context, before time.Time) (int64, error) {
	filter := bson.M{
		fields.FieldStatus:                  constants.CardStatusPending,
		fields.FieldCreatedAt:               bson.M{"$lt": before},
		fields.FieldCardRewardedFromBooking: bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{
		fields.FieldStatus:    constants.CardStatusCanceled,
		fields.FieldUpdatedAt: time.Now(),
	}}
	res, err := d.cardsCollection.UpdateMany(ctx, filter, update)
	if err != nil {
		d.logger.Error("CancelPendingBefore: UpdateMany failed", zap.Error(err), zap.Time("before", before))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (d *CardDAO) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		fields.FieldStatus:        bson.M{"$in": []constants.CardStatus{constants.CardStatusValid, constants.CardStatusActivated}},
		fields.FieldCardExpiresAt: bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{
		fields.FieldStatus:    constants.CardStatusExpired,
		fields.FieldUpdatedAt: now,
	}}
	res, err := d.cardsCollection.UpdateMany(ctx, filter, update)
	if err != nil {
		d.logger.Error("ExpireBefore: UpdateMany failed", zap.Error(err), zap.Time("now", now))
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SumActivatedBalance adds up the face value of the customer's activated balance cards.
func (d *CardDAO) SumActivatedBalance(ctx context.Context, customerID primitive.ObjectID) (money.Amount, error) {
	pipeline := bson.A{
		bson.D{{"$match", bson.M{
			fields.FieldCustomer: customerID,
			fields.FieldCardType: constants.CardTypeBalance,
			fields.FieldStatus:   constants.CardStatusActivated,
		}}},
		bson.D{{"$group", bson.D{{"_id", nil}, {"total", bson.D{{"$sum", "$" + fields.FieldCardBalance}}}}}},
	}
	cursor, err := d.cardsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		d.logger.Error("SumActivatedBalance: Aggregate failed", zap.Error(err), zap.Stringer("customerID", customerID))
		return money.Zero, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total money.Amount `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		d.logger.Error("SumActivatedBalance: cursor.All failed", zap.Error(err))
		return money.Zero, err
	}
	if len(results) == 0 {
		return money.Zero, nil
	}
	return results[0].Total, nil
}

func NewCardTypeDAO(db *mongo.Database, logger *zap.Logger) *CardTypeDAO {
	return &CardTypeDAO{
		collection: db.Collection(CollectionCardTypes),
		logger:     logger.Named("CardTypeDAO"),
	}
}

type CardTypeDAO struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func (d *CardTypeDAO) GetCardTypeBySlug(ctx context.Context, slug string) (*models.CardType, error) {
	var cardType models.CardType
	err := d.collection.FindOne(ctx, bson.M{fields.FieldCardSlug: slug}).Decode(&cardType)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		d.logger.Error("GetCardTypeBySlug: FindOne failed", zap.Error(err), zap.String("slug", slug))
		return nil, err
	}
	return &cardType, nil
}
