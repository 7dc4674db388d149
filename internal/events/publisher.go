// Package events publishes interview lifecycle events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// RoutingKeyCompleted is used for finished interviews.
const RoutingKeyCompleted = "interview.completed"

// DefaultExchange is the topic exchange events are published on.
const DefaultExchange = "careermate_events"

// InterviewCompleted is the payload of RoutingKeyCompleted.
type InterviewCompleted struct {
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	Questions       int       `json:"questions"`
	ScoredQuestions int       `json:"scored_questions"`
	AverageScore    int       `json:"average_score"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Publisher delivers events.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev InterviewCompleted) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// PublishCompleted implements Publisher.
func (Nop) PublishCompleted(context.Context, InterviewCompleted) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON events on a topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger

	mu sync.Mutex
	ch channel
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error dialling rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error opening rabbitmq channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, exchange: exchange, logger: logger, ch: ch}, nil
}

// PublishCompleted implements Publisher.
func (p *AMQPPublisher) PublishCompleted(ctx context.Context, ev InterviewCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return fmt.Errorf("publisher closed")
	}
	err = p.ch.Publish(
		p.exchange,
		RoutingKeyCompleted,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.CompletedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyCompleted, err)
	}
	p.logger.Debug("Published event", "routing_key", RoutingKeyCompleted,
		"user_id", ev.UserID, "session_id", ev.SessionID)
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
