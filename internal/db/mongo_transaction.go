package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoTransactionManager runs units of work in a MongoDB multi-document transaction.
type MongoTransactionManager struct {
	client *mongo.Client
	txOpts *options.TransactionOptions
}

func NewMongoTransactionManager(client *mongo.Client) TransactionManager {
	return &MongoTransactionManager{
		client: client,
		txOpts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()).
			SetReadPreference(readpref.Primary()),
	}
}

// WithTransaction retries fn on transient transaction errors, as the driver does.
// Nested calls reuse the outer session.
func (m *MongoTransactionManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, m.txOpts)
	return err
}
