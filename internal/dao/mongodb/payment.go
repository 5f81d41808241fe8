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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func NewPaymentDAO(db *mongo.Database, logger *zap.Logger) *PaymentDAO {
	return &PaymentDAO{
		paymentsCollection: db.Collection(CollectionPayments),
		logger:             logger.Named("PaymentDAO"),
	}
}

type PaymentDAO struct {
	paymentsCollection *mongo.Collection
	logger             *zap.Logger
}

func (d *PaymentDAO) CreatePayment(ctx context.Context, payment *models.Payment) (primitive.ObjectID, error) {
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	res, err := d.paymentsCollection.InsertOne(ctx, payment)
	if err != nil {
		d.logger.Error("CreatePayment: InsertOne failed", zap.Error(err), zap.Stringer("attach", payment.Attach), zap.String("gateway", payment.Gateway.String()))
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (d *PaymentDAO) GetPaymentByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return d.findOne(ctx, "GetPaymentByID", bson.M{fields.FieldObjectId: id})
}

func (d *PaymentDAO) GetPaymentByOutTradeNo(ctx context.Context, outTradeNo string) (*models.Payment, error) {
	return d.findOne(ctx, "GetPaymentByOutTradeNo", bson.M{fields.FieldPaymentOutTradeNo: outTradeNo})
}

func (d *PaymentDAO) GetPaymentByOutRefundNo(ctx context.Context, outRefundNo string) (*models.Payment, error) {
	return d.findOne(ctx, "GetPaymentByOutRefundNo", bson.M{fields.FieldPaymentOutRefundNo: outRefundNo})
}

func (d *PaymentDAO) findOne(ctx context.Context, op string, filter bson.M) (*models.Payment, error) {
	var payment models.Payment
	if err := d.paymentsCollection.FindOne(ctx, filter).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		d.logger.Error(op+": FindOne failed", zap.Error(err), zap.Any("filter", filter))
		return nil, err
	}
	return &payment, nil
}

// ListPaymentsByAttach returns the payments of a booking or card in creation order.
func (d *PaymentDAO) ListPaymentsByAttach(ctx context.Context, attach models.Attach) ([]*models.Payment, error) {
	filter := bson.M{
		fields.FieldPaymentAttachKind: attach.Kind,
		fields.FieldPaymentAttachID:   attach.ID,
	}
	opts := options.Find().SetSort(bson.D{{fields.FieldCreatedAt, 1}, {fields.FieldObjectId, 1}})
	cursor, err := d.paymentsCollection.Find(ctx, filter, opts)
	if err != nil {
		d.logger.Error("ListPaymentsByAttach: Find failed", zap.Error(err), zap.Stringer("attach", attach))
		return nil, err
	}

	payments := make([]*models.Payment, 0)
	if err := cursor.All(ctx, &payments); err != nil {
		d.logger.Error("ListPaymentsByAttach: cursor.All failed", zap.Error(err), zap.Stringer("attach", attach))
		return nil, err
	}
	return payments, nil
}

func (d *PaymentDAO) MarkPaid(ctx context.Context, id primitive.ObjectID, params *repository.MarkPaidParams) (bool, error) {
	// 1. Only an unpaid payment can be flipped.
	filter := bson.M{
		fields.FieldObjectId:    id,
		fields.FieldPaymentPaid: false,
	}

	// 2. Build the settled fields.
	set := bson.M{
		fields.FieldPaymentPaid:    true,
		fields.FieldPaymentPaidAt:  params.PaidAt,
		fields.FieldPaymentAssets:  params.Assets,
		fields.FieldPaymentDebt:    params.Debt,
		fields.FieldPaymentRevenue: params.Revenue,
		fields.FieldUpdatedAt:      params.PaidAt,
	}
	if params.GatewayData != nil {
		set[fields.FieldPaymentGatewayData] = params.GatewayData
	}
	if params.AmountDeposit != nil {
		set[fields.FieldPaymentAmountDeposit] = *params.AmountDeposit
	}

	// 3. Execute. A zero match means someone else flipped it first.
	res, err := d.paymentsCollection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		d.logger.Error("MarkPaid: UpdateOne failed", zap.Error(err), zap.Stringer("paymentID", id))
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (d *PaymentDAO) UpdateGatewayData(ctx context.Context, id primitive.ObjectID, data models.GatewayData) error {
	update := bson.M{"$set": bson.M{
		fields.FieldPaymentGatewayData: data,
		fields.FieldUpdatedAt:          time.Now(),
	}}
	res, err := d.paymentsCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: id}, update)
	if err != nil {
		d.logger.Error("UpdateGatewayData: UpdateOne failed", zap.Error(err), zap.Stringer("paymentID", id))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *PaymentDAO) DeleteUnpaidByAttach(ctx context.Context, attach models.Attach) (int64, error) {
	filter := bson.M{
		fields.FieldPaymentAttachKind: attach.Kind,
		fields.FieldPaymentAttachID:   attach.ID,
		fields.FieldPaymentPaid:       false,
	}
	res, err := d.paymentsCollection.DeleteMany(ctx, filter)
	if err != nil {
		d.logger.Error("DeleteUnpaidByAttach: DeleteMany failed", zap.Error(err), zap.Stringer("attach", attach))
		return 0, err
	}
	return res.DeletedCount, nil
}

// SumPaidAmount adds up the paid amounts of one gateway for a customer, reversals included.
func (d *PaymentDAO) SumPaidAmount(ctx context.Context, customerID primitive.ObjectID, gateway constants.PaymentGateway) (money.Amount, error) {
	pipeline := mongo.Pipeline{
		{{"$match", bson.M{
			fields.FieldCustomer:       customerID,
			fields.FieldPaymentGateway: gateway,
			fields.FieldPaymentPaid:    true,
		}}},
		{{"$group", bson.D{{"_id", nil}, {"total", bson.D{{"$sum", "$" + fields.FieldPaymentAmount}}}}}},
	}
	cursor, err := d.paymentsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		d.logger.Error("SumPaidAmount: Aggregate failed", zap.Error(err), zap.Stringer("customerID", customerID))
		return money.Zero, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total money.Amount `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		d.logger.Error("SumPaidAmount: cursor.All failed", zap.Error(err))
		return money.Zero, err
	}
	if len(results) == 0 {
		return money.Zero, nil
	}
	return results[0].Total.Round2(), nil
}
