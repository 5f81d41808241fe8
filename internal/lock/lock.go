// Package lock provides keyed mutual exclusion for settlement.
// The Redis implementation serializes across processes; the local one serves dev and tests.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotAcquired is returned when the lock could not be taken before the wait expired.
	ErrNotAcquired = errors.New("lock not acquired")
	ErrNotHeld     = errors.New("lock not held")
)

// Locker hands out exclusive locks by key.
type Locker interface {
	// Obtain blocks until key is free, the wait elapses or ctx is done.
	// The lock is released automatically after ttl if never released.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// CardDayKey guards the per-day quota of a card.
func CardDayKey(cardID primitive.ObjectID, date string) string {
	return fmt.Sprintf("card:%s:%s", cardID.Hex(), date)
}

// CustomerKey guards a customer's balance and points.
func CustomerKey(customerID primitive.ObjectID) string {
	return fmt.Sprintf("customer:%s", customerID.Hex())
}

// WithLock runs fn while holding key.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func() error) error {
	held, err := l.Obtain(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		_ = held.Release(context.WithoutCancel(ctx))
	}()
	return fn()
}
