package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/pkg/money"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func NewCustomerDAO(db *mongo.Database, logger *zap.Logger) *CustomerDAO {
	return &CustomerDAO{
		customersCollection: db.Collection(CollectionCustomers),
		logger:              logger.Named("CustomerDAO"),
	}
}

type CustomerDAO struct {
	customersCollection *mongo.Collection
	logger              *zap.Logger
}

func (d *CustomerDAO) GetCustomerByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	var customer models.Customer
	err := d.customersCollection.FindOne(ctx, bson.M{fields.FieldObjectId: id}).Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		d.logger.Error("GetCustomerByID: FindOne failed", zap.Error(err), zap.Stringer("customerID", id))
		return nil, err
	}
	return &customer, nil
}

// DebitBalance decrements both sub-balances in one conditional update so neither can go negative.
func (d *CustomerDAO) DebitBalance(ctx context.Context, id primitive.ObjectID, deposit, reward money.Amount) error {
	filter := bson.M{
		fields.FieldObjectId:               id,
		fields.FieldCustomerBalanceDeposit: bson.M{"$gte": deposit},
		fields.FieldCustomerBalanceReward:  bson.M{"$gte": reward},
	}
	update := bson.M{
		"$inc": bson.M{
			fields.FieldCustomerBalanceDeposit: deposit.Neg(),
			fields.FieldCustomerBalanceReward:  reward.Neg(),
		},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	return d.conditionalUpdate(ctx, "DebitBalance", id, filter, update)
}

func (d *CustomerDAO) CreditBalance(ctx context.Context, id primitive.ObjectID, deposit, reward money.Amount) error {
	update := bson.M{
		"$inc": bson.M{
			fields.FieldCustomerBalanceDeposit: deposit,
			fields.FieldCustomerBalanceReward:  reward,
		},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	return d.conditionalUpdate(ctx, "CreditBalance", id, bson.M{fields.FieldObjectId: id}, update)
}

func (d *CustomerDAO) DebitPoints(ctx context.Context, id primitive.ObjectID, points int64) error {
	filter := bson.M{
		fields.FieldObjectId:       id,
		fields.FieldCustomerPoints: bson.M{"$gte": points},
	}
	update := bson.M{
		"$inc": bson.M{fields.FieldCustomerPoints: -points},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	return d.conditionalUpdate(ctx, "DebitPoints", id, filter, update)
}

func (d *CustomerDAO) CreditPoints(ctx context.Context, id primitive.ObjectID, points int64) error {
	update := bson.M{
		"$inc": bson.M{fields.FieldCustomerPoints: points},
		"$set": bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	return d.conditionalUpdate(ctx, "CreditPoints", id, bson.M{fields.FieldObjectId: id}, update)
}

func (d *CustomerDAO) AddTag(ctx context.Context, id primitive.ObjectID, tag string) error {
	update := bson.M{
		"$addToSet": bson.M{fields.FieldCustomerTags: tag},
		"$set":      bson.M{fields.FieldUpdatedAt: time.Now()},
	}
	return d.conditionalUpdate(ctx, "AddTag", id, bson.M{fields.FieldObjectId: id}, update)
}

// ListCustomers pages through customers by _id, starting after afterID.
func (d *CustomerDAO) ListCustomers(ctx context.Context, afterID primitive.ObjectID, limit int) ([]*models.Customer, error) {
	filter := bson.M{}
	if !afterID.IsZero() {
		filter[fields.FieldObjectId] = bson.M{"$gt": afterID}
	}
	opts := options.Find().SetSort(bson.D{{fields.FieldObjectId, 1}}).SetLimit(int64(limit))
	cursor, err := d.customersCollection.Find(ctx, filter, opts)
	if err != nil {
		d.logger.Error("ListCustomers: Find failed", zap.Error(err), zap.Stringer("afterID", afterID))
		return nil, err
	}
	customers := make([]*models.Customer, 0, limit)
	if err := cursor.All(ctx, &customers); err != nil {
		d.logger.Error("ListCustomers: cursor.All failed", zap.Error(err))
		return nil, err
	}
	return customers, nil
}

func (d *CustomerDAO) conditionalUpdate(ctx context.Context, op string, id primitive.ObjectID, filter, update bson.M) error {
	res, err := d.customersCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		d.logger.Error(op+": UpdateOne failed", zap.Error(err), zap.Stringer("customerID", id))
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if len(filter) == 1 {
		return ErrNotFound
	}

	count, err := d.customersCollection.CountDocuments(ctx, bson.M{fields.FieldObjectId: id})
	if err != nil {
		d.logger.Error(op+": CountDocuments failed", zap.Error(err), zap.Stringer("customerID", id))
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConditionNotMet
}
