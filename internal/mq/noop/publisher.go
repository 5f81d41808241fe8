package noop

import (
	"context"
	"sync"

	"github.com/lltxwdk/minimars-server/internal/mq"
)

// Publisher 只把訊息記在記憶體裡，開發模式與測試用。
type Publisher struct {
	mu   sync.Mutex
	sent []*mq.Message
}

// NewPublisher 建立一個新的 NoOp Publisher。
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, msg *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

// Sent returns a copy of every message published so far.
func (p *Publisher) Sent() []*mq.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*mq.Message(nil), p.sent...)
}

// Close 什麼也不做。
func (p *Publisher) Close() {}

var _ mq.Publisher = (*Publisher)(nil)
