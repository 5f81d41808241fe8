package rabbitmq

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/lltxwdk/minimars-server/internal/conf"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc handles one delivery. Returning an error nacks and requeues the message.
type HandlerFunc func(ctx context.Context, delivery amqp.Delivery) error

type binding struct {
	routingKey string
	handler    HandlerFunc
}

// Consumer binds durable queues to the event exchange and dispatches deliveries.
type Consumer struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger
	bindings map[string]binding // queue name -> binding
	done     chan error
}

// NewConsumer creates and returns a new Consumer.
func NewConsumer(cfg *conf.RabbitMQConfig, logger *zap.Logger) (*Consumer, error) {
	namedLogger := logger.Named("RabbitMQConsumer")

	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		namedLogger.Error("Failed to connect to RabbitMQ", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	namedLogger.Info("Successfully connected to RabbitMQ")

	return &Consumer{
		conn:     conn,
		exchange: exchangeName(cfg),
		logger:   namedLogger,
		bindings: make(map[string]binding),
		done:     make(chan error, 1),
	}, nil
}

// RegisterHandler binds queueName to routingKey and consumes it with handler.
func (c *Consumer) RegisterHandler(queueName, routingKey string, handler HandlerFunc) {
	c.bindings[queueName] = binding{routingKey: routingKey, handler: handler}
}

// Start consumes every registered queue until ctx is done or a queue fails.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.bindings) == 0 {
		return fmt.Errorf("no handlers registered, consumer will not start")
	}

	for queueName, b := range c.bindings {
		go c.consumeQueue(ctx, queueName, b)
	}

	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (c *Consumer) fail(err error) {
	select {
	case c.done <- err:
	default:
	}
}

func (c *Consumer) consumeQueue(ctx context.Context, queueName string, b binding) {
	ch, err := c.conn.Channel()
	if err != nil {
		c.logger.Error("Failed to open a channel", zap.Error(err), zap.String("queue", queueName))
		c.fail(err)
		return
	}
	defer ch.Close()

	if err := declareExchange(ch, c.exchange); err != nil {
		c.logger.Error("Failed to declare exchange", zap.Error(err), zap.String("exchange", c.exchange))
		c.fail(err)
		return
	}

	q, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		c.logger.Error("Failed to declare a queue", zap.Error(err), zap.String("queue", queueName))
		c.fail(err)
		return
	}

	if err := ch.QueueBind(q.Name, b.routingKey, c.exchange, false, nil); err != nil {
		c.logger.Error("Failed to bind a queue", zap.Error(err), zap.String("queue", queueName), zap.String("routingKey", b.routingKey))
		c.fail(err)
		return
	}

	// 一次只拿一則訊息
	if err := ch.Qos(1, 0, false); err != nil {
		c.logger.Error("Failed to set QoS", zap.Error(err), zap.String("queue", queueName))
		c.fail(err)
		return
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		c.logger.Error("Failed to register a consumer", zap.Error(err), zap.String("queue", queueName))
		c.fail(err)
		return
	}

	c.logger.Info("Started consuming from queue", zap.String("queue", q.Name), zap.String("routingKey", b.routingKey))

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				c.logger.Warn("Delivery channel closed", zap.String("queue", q.Name))
				c.fail(fmt.Errorf("delivery channel for %s closed", q.Name))
				return
			}
			c.handle(ctx, q.Name, b.handler, d)
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping consumer", zap.String("queue", q.Name))
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, queue string, handler HandlerFunc, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic recovered in message handler",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
				zap.String("queue", queue),
			)
			// Do not requeue to avoid panic loops.
			_ = d.Nack(false, false)
		}
	}()

	c.logger.Debug("Received a message", zap.String("queue", queue), zap.String("messageID", d.MessageId))
	if err := handler(ctx, d); err != nil {
		c.logger.Error("Handler failed to process message", zap.Error(err), zap.String("queue", queue), zap.String("messageID", d.MessageId))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Close gracefully closes the connection.
func (c *Consumer) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close connection", zap.Error(err))
		}
	}
}
