package service

import (
	"context"
	"errors"

	"github.com/lltxwdk/minimars-server/internal/models"
)

type contextKey string

const operatorKey contextKey = "operator"

var ErrUnauthenticated = errors.New("unauthenticated")

// WithOperator stores the authenticated operator in ctx.
func WithOperator(ctx context.Context, op *models.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// OperatorFrom returns the operator set by the auth middleware.
func OperatorFrom(ctx context.Context) (*models.Operator, error) {
	op, ok := ctx.Value(operatorKey).(*models.Operator)
	if !ok || op == nil {
		return nil, ErrUnauthenticated
	}
	return op, nil
}
