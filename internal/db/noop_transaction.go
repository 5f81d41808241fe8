package db

import "context"

// NoOpTransactionManager runs fn directly. Used in dev/test where Mongo runs without a replica set.
type NoOpTransactionManager struct{}

func NewNoOpTransactionManager() TransactionManager {
	return &NoOpTransactionManager{}
}

func (n *NoOpTransactionManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}
