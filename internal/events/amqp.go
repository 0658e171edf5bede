package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultQueue receives term changes when no queue is configured.
const DefaultQueue = "translateserver.terms"

// AMQPConfig configures the RabbitMQ publisher.
type AMQPConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Queue   string        `yaml:"queue" mapstructure:"queue"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes term changes as persistent JSON messages to a
// durable queue.
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      channel
	queue   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewAMQPPublisher connects to RabbitMQ and declares the queue.
func NewAMQPPublisher(cfg AMQPConfig, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	p := newAMQPPublisher(ch, queue, cfg.Timeout, logger)
	p.conn = conn

	logger.Info("AMQP publisher initialized", zap.String("queue", queue))
	return p, nil
}

func newAMQPPublisher(ch channel, queue string, timeout time.Duration, logger *zap.Logger) *AMQPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPPublisher{ch: ch, queue: queue, timeout: timeout, logger: logger}
}

// NotifyTermsChanged publishes change to the queue.
func (p *AMQPPublisher) NotifyTermsChanged(ctx context.Context, change TermsChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal terms change: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    change.Timestamp,
		Type:         "terms_changed",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Terms change published",
		zap.String("queue", p.queue),
		zap.String("action", change.Action))
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
