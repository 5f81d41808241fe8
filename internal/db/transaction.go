package db

import "context"

// TransactionManager runs a unit of work atomically.
// fn must use the context it receives for every repository call so that the calls join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
