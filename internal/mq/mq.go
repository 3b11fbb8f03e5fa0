package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange and queue/routing key constants.
const (
	ExchangeName = "bw"

	RoutingScheduleUpdate = "schedule.update"
	RoutingOutageAlert    = "outage.alert"

	QueueScheduleUpdate = "bw.schedule_update"
	QueueOutageAlert    = "bw.outage_alert"
)

// ── Message types ────────────────────────────────────────────────────

// ScheduleUpdateMsg is published by the worker when an address's schedule
// content changes and the subscriber should be told.
type ScheduleUpdateMsg struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	Address        string    `json:"address"`
	Group          string    `json:"group"`
	Text           string    `json:"text"`
	When           time.Time `json:"when"`
}

// OutageAlertMsg is published by the worker shortly before an outage starts.
type OutageAlertMsg struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	Address        string    `json:"address"`
	Text           string    `json:"text"`
	EventAt        time.Time `json:"event_at"`
	When           time.Time `json:"when"`
}

// ── Topology setup ───────────────────────────────────────────────────

// queues maps queue names to their routing keys.
var queues = map[string]string{
	QueueScheduleUpdate: RoutingScheduleUpdate,
	QueueOutageAlert:    RoutingOutageAlert,
}

// SetupTopology declares the exchange, all queues, and bindings.
// Safe to call multiple times (all declarations are idempotent).
func SetupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for queue, key := range queues {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// ── Publisher ────────────────────────────────────────────────────────

// Publisher publishes messages to the RabbitMQ exchange.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects to RabbitMQ, sets up topology, and returns a Publisher.
func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	conn, ch, err := connect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

// Publish serializes msg to JSON and publishes it with the given routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         data,
	})
}

// Close closes the channel and connection.
func (p *Publisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// ── Consumer ─────────────────────────────────────────────────────────

// Consumer consumes messages from RabbitMQ queues.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer connects to RabbitMQ, sets up topology, and returns a Consumer.
func NewConsumer(ctx context.Context, url string) (*Consumer, error) {
	conn, ch, err := connect(ctx, url)
	if err != nil {
		return nil, err
	}
	// Process one message at a time per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch}, nil
}

// Consume starts consuming from the given queue and returns a delivery channel.
func (c *Consumer) Consume(queue string) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(queue, "", false, false, false, false, nil)
}

// Close closes the channel and connection.
func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// ── Helpers ──────────────────────────────────────────────────────────

// dialAttempts bounds the startup connection retries; the backoff doubles
// between attempts, so 5 attempts span about 15 seconds.
const dialAttempts = 5

// connect dials RabbitMQ with backoff, opens a channel, and declares the
// topology. Startup is aborted early if ctx is cancelled while waiting
// between attempts.
func connect(ctx context.Context, url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := dialWithRetry(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := SetupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func dialWithRetry(ctx context.Context, url string) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == dialAttempts {
			break
		}
		wait := time.Duration(1<<uint(attempt-1)) * time.Second
		log.Printf("[mq] connection attempt %d failed: %v, retrying in %s", attempt, err, wait)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to rabbitmq: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialAttempts, lastErr)
}
