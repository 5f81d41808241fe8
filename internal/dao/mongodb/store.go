package mongodb

import (
	"context"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func NewStoreDAO(db *mongo.Database, logger *zap.Logger) *StoreDAO {
	return &StoreDAO{
		storesCollection: db.Collection(CollectionStores),
		logger:           logger.Named("StoreDAO"),
	}
}

type StoreDAO struct {
	storesCollection *mongo.Collection
	logger           *zap.Logger
}

func (d *StoreDAO) ListStores(ctx context.Context) ([]*models.Store, error) {
	opts := options.Find().SetSort(bson.D{{fields.FieldCreatedAt, 1}})
	cursor, err := d.storesCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		d.logger.Error("ListStores: Find failed", zap.Error(err))
		return nil, err
	}
	stores := make([]*models.Store, 0)
	if err := cursor.All(ctx, &stores); err != nil {
		d.logger.Error("ListStores: cursor.All failed", zap.Error(err))
		return nil, err
	}
	return stores, nil
}
