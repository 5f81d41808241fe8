package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/mq"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is used when the config names none.
const DefaultExchange = "minimars.events"

// Publisher publishes outbox messages to a durable topic exchange.
// It implements the mq.Publisher interface.
type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(cfg *conf.RabbitMQConfig, logger *zap.Logger) (*Publisher, error) {
	namedLogger := logger.Named("RabbitMQPublisher")

	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		namedLogger.Error("Failed to connect to RabbitMQ", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		namedLogger.Error("Failed to open a channel", zap.Error(err))
		if connErr := conn.Close(); connErr != nil {
			namedLogger.Error("Failed to close connection after channel failure", zap.Error(connErr))
		}
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchange := exchangeName(cfg)
	if err := declareExchange(ch, exchange); err != nil {
		namedLogger.Error("Failed to declare exchange", zap.Error(err), zap.String("exchange", exchange))
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	namedLogger.Info("Successfully connected to RabbitMQ", zap.String("exchange", exchange))

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   namedLogger,
	}, nil
}

func exchangeName(cfg *conf.RabbitMQConfig) string {
	if cfg.Exchange != "" {
		return cfg.Exchange
	}
	return DefaultExchange
}

func declareExchange(ch *amqp.Channel, name string) error {
	err := ch.ExchangeDeclare(
		name,    // name
		"topic", // kind
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

// Publish routes the message by its topic.
func (p *Publisher) Publish(ctx context.Context, msg *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		msg.Topic,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Topic,
			Body:         msg.Body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish a message", zap.Error(err), zap.String("topic", msg.Topic), zap.String("messageID", msg.ID))
		return fmt.Errorf("failed to publish %s: %w", msg.Topic, err)
	}

	p.logger.Debug("Message published", zap.String("topic", msg.Topic), zap.String("messageID", msg.ID))
	return nil
}

// Close gracefully closes the channel and the connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error("Failed to close connection", zap.Error(err))
		}
	}
	p.logger.Info("RabbitMQ connection closed.")
}

var _ mq.Publisher = (*Publisher)(nil)
