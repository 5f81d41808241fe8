package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CatalogDAO reads the sellable templates: coupons, events and gifts.
// It also owns the stock counters on events and gifts.
type CatalogDAO struct {
	couponsCollection *mongo.Collection
	eventsCollection  *mongo.Collection
	giftsCollection   *mongo.Collection
	logger            *zap.Logger
}

func NewCatalogDAO(db *mongo.Database, logger *zap.Logger) *CatalogDAO {
	return &CatalogDAO{
		couponsCollection: db.Collection(CollectionCoupons),
		eventsCollection:  db.Collection(CollectionEvents),
		giftsCollection:   db.Collection(CollectionGifts),
		logger:            logger.Named("CatalogDAO"),
	}
}

func (d *CatalogDAO) GetCouponByID(ctx context.Context, id primitive.ObjectID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := d.findByID(ctx, d.couponsCollection, "GetCouponByID", id, &coupon); err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (d *CatalogDAO) GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var event models.Event
	if err := d.findByID(ctx, d.eventsCollection, "GetEventByID", id, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *CatalogDAO) GetGiftByID(ctx context.Context, id primitive.ObjectID) (*models.Gift, error) {
	var gift models.Gift
	if err := d.findByID(ctx, d.giftsCollection, "GetGiftByID", id, &gift); err != nil {
		return nil, err
	}
	return &gift, nil
}

// AdjustKidsCountLeft moves the remaining seats of an event by delta.
func (d *CatalogDAO) AdjustKidsCountLeft(ctx context.Context, id primitive.ObjectID, delta int) error {
	return d.adjustCounter(ctx, d.eventsCollection, "AdjustKidsCountLeft", id, fields.FieldEventKidsCountLeft, delta)
}

// AdjustQuantity moves the stock of a limited gift by delta.
func (d *CatalogDAO) AdjustQuantity(ctx context.Context, id primitive.ObjectID, delta int) error {
	return d.adjustCounter(ctx, d.giftsCollection, "AdjustQuantity", id, fields.FieldGiftQuantity, delta)
}

func (d *CatalogDAO) findByID(ctx context.Context, coll *mongo.Collection, op string, id primitive.ObjectID, out interface{}) error {
	err := coll.FindOne(ctx, bson.M{fields.FieldObjectId: id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		d.logger.Error(op+": FindOne failed", zap.Error(err), zap.Stringer("id", id))
		return err
	}
	return nil
}

func (d *CatalogDAO) adjustCounter(ctx context.Context, coll *mongo.Collection, op string, id primitive.ObjectID, field string, delta int) error {
	filter := bson.M{fields.FieldObjectId: id}
	if delta < 0 {
		// 扣減時不可低於零
		filter[field] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		d.logger.Error(op+": UpdateOne failed", zap.Error(err), zap.Stringer("id", id), zap.Int("delta", delta))
		return err
	}
	if res.MatchedCount == 0 {
		if delta < 0 {
			return ErrConditionNotMet
		}
		return ErrNotFound
	}
	return nil
}
