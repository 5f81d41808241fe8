package mongodb

import (
	"context"
	"errors"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func NewSettingsDAO(db *mongo.Database, logger *zap.Logger) *SettingsDAO {
	return &SettingsDAO{
		configsCollection: db.Collection(CollectionConfigs),
		logger:            logger.Named("SettingsDAO"),
	}
}

type SettingsDAO struct {
	configsCollection *mongo.Collection
	logger            *zap.Logger
}

func (d *SettingsDAO) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := d.configsCollection.FindOne(ctx, bson.M{fields.FieldKey: models.SettingsKey}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		d.logger.Error("GetSettings: FindOne failed", zap.Error(err))
		return nil, err
	}
	return &settings, nil
}

func (d *SettingsDAO) EnsureSettings(ctx context.Context, defaults *models.Settings) error {
	defaults.Key = models.SettingsKey
	filter := bson.M{fields.FieldKey: models.SettingsKey}
	update := bson.M{"$setOnInsert": defaults}
	_, err := d.configsCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		d.logger.Error("EnsureSettings: UpdateOne failed", zap.Error(err))
		return err
	}
	return nil
}
