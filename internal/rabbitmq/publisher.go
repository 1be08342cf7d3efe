package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"social-service/internal/logger"
	"social-service/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// ErrBrokerUnavailable is returned without dialing while a reconnect is in
// flight or the redial backoff has not yet elapsed.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

const (
	minRedialBackoff = time.Second
	maxRedialBackoff = 30 * time.Second
)

type dialFunc func(amqpURL, exchangeName string) (*amqp.Connection, *amqp.Channel, error)

type publisher struct {
	amqpURL      string
	exchangeName string
	dial         dialFunc

	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	redialing bool
	nextDial  time.Time
	backoff   time.Duration
	closed    bool
}

// NewPublisher creates a RabbitMQ publisher and declares the provided topic exchange.
// A publish that finds the channel closed redials, with exponential backoff
// between failed attempts. Concurrent publishes never wait on a dial.
func NewPublisher(amqpURL, exchangeName string) (Publisher, error) {
	p := newPublisher(amqpURL, exchangeName, dial)
	conn, ch, err := p.dial(amqpURL, exchangeName)
	if err != nil {
		return nil, err
	}
	p.conn, p.channel = conn, ch
	return p, nil
}

func newPublisher(amqpURL, exchangeName string, d dialFunc) *publisher {
	return &publisher{amqpURL: amqpURL, exchangeName: exchangeName, dial: d, backoff: minRedialBackoff}
}

func dial(amqpURL, exchangeName string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}

	return conn, ch, nil
}

// ensureChannel returns an open channel, redialing outside the lock when the
// current one is gone. Called with p.mu held; returns with it held.
func (p *publisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	if p.closed || p.redialing || time.Now().Before(p.nextDial) {
		return nil, ErrBrokerUnavailable
	}

	stale := p.conn
	p.conn, p.channel = nil, nil
	p.redialing = true
	p.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}
	conn, ch, err := p.dial(p.amqpURL, p.exchangeName)

	p.mu.Lock()
	p.redialing = false
	if err != nil {
		p.nextDial = time.Now().Add(p.backoff)
		p.backoff = min(p.backoff*2, maxRedialBackoff)
		logger.Get().Warn("RabbitMQ redial failed", zap.String("exchange", p.exchangeName), zap.Duration("retry_in", time.Until(p.nextDial)), zap.Error(err))
		return nil, err
	}
	if p.closed {
		ch.Close()
		conn.Close()
		return nil, ErrBrokerUnavailable
	}
	p.conn, p.channel = conn, ch
	p.backoff = minRedialBackoff
	p.nextDial = time.Time{}
	return ch, nil
}

// NewNoopPublisher returns a publisher that drops events; used when AMQP_URL is unset.
type noopPublisher struct{}

func NewNoopPublisher() Publisher { return &noopPublisher{} }

func (n *noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	logger.Get().Debug("RabbitMQ not configured; skipping publish", zap.String("routing_key", routingKey))
	return nil
}

func (n *noopPublisher) Close() error { return nil }

func (p *publisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.ensureChannel()
	if err != nil {
		observability.IncAMQPPublishError()
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		observability.IncAMQPPublishError()
	}
	return err
}

func (p *publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}
