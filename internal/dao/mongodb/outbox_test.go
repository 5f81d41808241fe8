package mongodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/lltxwdk/minimars-server/internal/models"
)

func TestOutboxDAO_Integration(t *testing.T) {
	db := setupIntegrationDB(t)
	dao := NewOutboxDAO(db, zap.NewNop())
	dao.maxRetries = 2
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, dao.Create(ctx, &models.OutboxMessage{
			MessageID:   primitive.NewObjectID().Hex(),
			Topic:       "booking.paid",
			AggregateID: primitive.NewObjectID(),
			Payload:     "{}",
		}))
	}

	first, err := dao.ClaimAndFetchEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := dao.ClaimAndFetchEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.NotEqual(t, first[0].ID, second[0].ID)
	require.NotEqual(t, first[1].ID, second[0].ID)

	require.NoError(t, dao.MarkAsProcessed(ctx, first[0].ID))

	// second message fails until it is dead-lettered
	failing := first[1].ID
	require.NoError(t, dao.IncrementRetry(ctx, failing, "boom"))
	again, err := dao.ClaimAndFetchEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, failing, again[0].ID)
	require.Equal(t, 1, again[0].Retries)

	require.NoError(t, dao.IncrementRetry(ctx, failing, "boom"))
	none, err := dao.ClaimAndFetchEvents(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, none)

	var stored models.OutboxMessage
	require.NoError(t, dao.outboxCollection.FindOne(ctx, map[string]interface{}{"_id": failing}).Decode(&stored))
	require.Equal(t, models.OutboxStatusDeadLetter, stored.Status)
	require.Equal(t, "boom", stored.Error)
}
