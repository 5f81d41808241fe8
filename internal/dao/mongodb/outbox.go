package mongodb

import (
	"context"
	"time"

	"github.com/lltxwdk/minimars-server/internal/dao/fields"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	outboxFieldClaimID     = "claim_id"
	outboxFieldRetries     = "retries"
	outboxFieldError       = "error"
	outboxFieldProcessedAt = "processed_at"

	// DefaultOutboxMaxRetries is how many publish attempts a message gets before it is dead-lettered.
	DefaultOutboxMaxRetries = 10
)

func NewOutboxDAO(db *mongo.Database, logger *zap.Logger) *OutboxDAO {
	return &OutboxDAO{
		outboxCollection: db.Collection(CollectionOutbox),
		maxRetries:       DefaultOutboxMaxRetries,
		logger:           logger.Named("OutboxDAO"),
	}
}

type OutboxDAO struct {
	outboxCollection *mongo.Collection
	maxRetries       int
	logger           *zap.Logger
}

// Create writes the message with the caller's context, so it joins the caller's transaction.
func (d *OutboxDAO) Create(ctx context.Context, message *models.OutboxMessage) error {
	if message.Status == "" {
		message.Status = models.OutboxStatusPending
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if _, err := d.outboxCollection.InsertOne(ctx, message); err != nil {
		d.logger.Error("Create: InsertOne failed", zap.Error(err), zap.String("topic", message.Topic), zap.String("messageID", message.MessageID))
		return err
	}
	return nil
}

// ClaimAndFetchEvents claims up to limit pending messages for this worker.
// Candidates are selected by id first, then claimed with a batch id so that
// concurrent workers never receive the same message.
func (d *OutboxDAO) ClaimAndFetchEvents(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	// 1. Candidate ids, oldest first.
	findOpts := options.Find().
		SetSort(bson.D{{fields.FieldCreatedAt, 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{fields.FieldObjectId: 1})
	cursor, err := d.outboxCollection.Find(ctx, bson.M{fields.FieldStatus: models.OutboxStatusPending}, findOpts)
	if err != nil {
		d.logger.Error("ClaimAndFetchEvents: Find candidates failed", zap.Error(err))
		return nil, err
	}
	var candidates []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &candidates); err != nil {
		d.logger.Error("ClaimAndFetchEvents: decode candidates failed", zap.Error(err))
		return nil, err
	}
	if len(candidates) == 0 {
		return []*models.OutboxMessage{}, nil
	}
	ids := make([]primitive.ObjectID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	// 2. Claim. The status condition drops anything another worker took in between.
	claimID := primitive.NewObjectID()
	res, err := d.outboxCollection.UpdateMany(ctx,
		bson.M{fields.FieldObjectId: bson.M{"$in": ids}, fields.FieldStatus: models.OutboxStatusPending},
		bson.M{"$set": bson.M{
			fields.FieldStatus:    models.OutboxStatusProcessing,
			outboxFieldClaimID:    claimID,
			fields.FieldUpdatedAt: time.Now(),
		}},
	)
	if err != nil {
		d.logger.Error("ClaimAndFetchEvents: UpdateMany failed", zap.Error(err))
		return nil, err
	}
	if res.ModifiedCount == 0 {
		return []*models.OutboxMessage{}, nil
	}

	// 3. Fetch what this claim owns.
	claimed, err := d.outboxCollection.Find(ctx, bson.M{outboxFieldClaimID: claimID}, options.Find().SetSort(bson.D{{fields.FieldCreatedAt, 1}}))
	if err != nil {
		d.logger.Error("ClaimAndFetchEvents: Find claimed failed", zap.Error(err), zap.Stringer("claimID", claimID))
		return nil, err
	}
	messages := make([]*models.OutboxMessage, 0, res.ModifiedCount)
	if err := claimed.All(ctx, &messages); err != nil {
		d.logger.Error("ClaimAndFetchEvents: decode claimed failed", zap.Error(err))
		return nil, err
	}
	return messages, nil
}

func (d *OutboxDAO) MarkAsProcessed(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := d.outboxCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: id}, bson.M{"$set": bson.M{
		fields.FieldStatus:     models.OutboxStatusProcessed,
		outboxFieldProcessedAt: now,
		fields.FieldUpdatedAt:  now,
	}})
	if err != nil {
		d.logger.Error("MarkAsProcessed: UpdateOne failed", zap.Error(err), zap.Stringer("id", id))
	}
	return err
}

// IncrementRetry puts the message back to pending, or dead-letters it once the retry budget is spent.
func (d *OutboxDAO) IncrementRetry(ctx context.Context, id primitive.ObjectID, errorMessage string) error {
	update := mongo.Pipeline{
		{{"$set", bson.D{
			{outboxFieldRetries, bson.D{{"$add", bson.A{bson.D{{"$ifNull", bson.A{"$" + outboxFieldRetries, 0}}}, 1}}}},
			{outboxFieldError, errorMessage},
			{fields.FieldUpdatedAt, time.Now()},
		}}},
		{{"$set", bson.D{
			{fields.FieldStatus, bson.D{{"$cond", bson.A{
				bson.D{{"$gte", bson.A{"$" + outboxFieldRetries, d.maxRetries}}},
				models.OutboxStatusDeadLetter,
				models.OutboxStatusPending,
			}}}},
		}}},
	}
	_, err := d.outboxCollection.UpdateOne(ctx, bson.M{fields.FieldObjectId: id}, update)
	if err != nil {
		d.logger.Error("IncrementRetry: UpdateOne failed", zap.Error(err), zap.Stringer("id", id))
	}
	return err
}
