// Package mq relays domain events from the outbox to a message broker.
package mq

import "context"

// Message is one outbox event on its way to the broker.
type Message struct {
	// ID is the outbox message id; consumers use it to drop redeliveries.
	ID    string
	Topic string
	Body  []byte
}

// Publisher sends messages to the broker. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	Close()
}
