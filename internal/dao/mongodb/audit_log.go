package mongodb

import (
	"context"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type AuditLogDAO struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewAuditLogDAO(db *mongo.Database, logger *zap.Logger) *AuditLogDAO {
	return &AuditLogDAO{
		collection: db.Collection(CollectionAuditLogs),
		logger:     logger.Named("AuditLogDAO"),
	}
}

// Create stores one entry. A failed write is logged and swallowed: the booking change it
// describes has already been committed.
func (d *AuditLogDAO) Create(ctx context.Context, log *models.AuditLog) error {
	if _, err := d.collection.InsertOne(ctx, log); err != nil {
		d.logger.Error("Create: InsertOne failed",
			zap.Error(err),
			zap.String("action", string(log.Action)),
			zap.Stringer("bookingID", log.BookingID),
			zap.Stringer("operator", log.Operator.UserID),
		)
	}
	return nil
}

func (d *AuditLogDAO) ListByBooking(ctx context.Context, bookingID primitive.ObjectID) ([]*models.AuditLog, error) {
	cursor, err := d.collection.Find(ctx,
		bson.M{fields.FieldAuditBooking: bookingID},
		options.Find().SetSort(bson.D{{fields.FieldCreatedAt, 1}}),
	)
	if err != nil {
		d.logger.Error("ListByBooking: Find failed", zap.Error(err), zap.Stringer("bookingID", bookingID))
		return nil, err
	}
	logs := make([]*models.AuditLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		d.logger.Error("ListByBooking: decode failed", zap.Error(err), zap.Stringer("bookingID", bookingID))
		return nil, err
	}
	return logs, nil
}
