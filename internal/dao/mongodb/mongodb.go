package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/dao/fields"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// NewMongoDB connects to MongoDB and returns the client with a cleanup func for wire.
func NewMongoDB(cfg *conf.MongodbConfig) (*mongo.Client, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URI())
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	cleanup := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zap.L().Error("mongodb: Disconnect failed", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// EnsureIndexes creates the indexes the settlement queries rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionBookings: {
			{Keys: bson.D{{fields.FieldCustomer, 1}, {fields.FieldCreatedAt, -1}}},
			{Keys: bson.D{{fields.FieldBookingCard, 1}, {fields.FieldDate, 1}}},
			{Keys: bson.D{{fields.FieldStatus, 1}, {fields.FieldCreatedAt, 1}}},
			{Keys: bson.D{{fields.FieldStore, 1}, {fields.FieldDate, 1}}},
		},
		CollectionPayments: {
			{Keys: bson.D{{fields.FieldPaymentAttachKind, 1}, {fields.FieldPaymentAttachID, 1}}},
			{Keys: bson.D{{fields.FieldCustomer, 1}, {fields.FieldPaymentGateway, 1}}},
			{
				Keys:    bson.D{{fields.FieldPaymentOutTradeNo, 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{
				Keys:    bson.D{{fields.FieldPaymentOutRefundNo, 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		CollectionCards: {
			{Keys: bson.D{{fields.FieldCustomer, 1}, {fields.FieldStatus, 1}}},
			{Keys: bson.D{{fields.FieldCardRewardedFromBooking, 1}}},
		},
		CollectionCardTypes: {
			{Keys: bson.D{{fields.FieldCardSlug, 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionConfigs: {
			{Keys: bson.D{{fields.FieldKey, 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionAuditLogs: {
			{Keys: bson.D{{fields.FieldAuditBooking, 1}, {fields.FieldCreatedAt, 1}}},
		},
		CollectionOutbox: {
			{Keys: bson.D{{fields.FieldStatus, 1}, {fields.FieldCreatedAt, 1}}},
			{Keys: bson.D{{"claim_id", 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
