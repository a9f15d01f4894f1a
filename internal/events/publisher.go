// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// SessionCompletedType is the routing key of SessionCompleted events
const SessionCompletedType = "training.session.completed"

// SessionCompleted is emitted after a training session has been stored
type SessionCompleted struct {
	SessionID        int64     `json:"sessionId"`
	UserID           int64     `json:"userId"`
	ModuleSlug       string    `json:"moduleSlug"`
	Score            int       `json:"score"`
	Accuracy         *int      `json:"accuracy"`
	PerformanceLevel string    `json:"performanceLevel"`
	TotalSessions    int       `json:"totalSessions"`
	CompletedAt      time.Time `json:"completedAt"`
}

// Envelope is the wire format of every published event
type Envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Publisher sends events somewhere
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// RabbitPublisher publishes JSON envelopes to a topic exchange
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// NewRabbitPublisher connects to amqpURL and declares a durable topic exchange
func NewRabbitPublisher(amqpURL, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends one event, using the event type as routing key
func (p *RabbitPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := Encode(eventType, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close closes the channel and connection
func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Encode builds the JSON body of an event
func Encode(eventType string, payload interface{}, occurredAt time.Time) ([]byte, error) {
	body, err := sonic.Marshal(Envelope{Type: eventType, OccurredAt: occurredAt, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	return body, nil
}

// LogPublisher only logs events; used when no broker is configured
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	log.WithField("event", eventType).Debugf("Event: %+v", payload)
	return nil
}

func (LogPublisher) Close() error { return nil }

// New returns a RabbitPublisher when amqpURL is set and a LogPublisher otherwise
func New(amqpURL, exchange string) (Publisher, error) {
	if amqpURL == "" {
		log.Info("RABBITMQ_URI not set, events will only be logged")
		return LogPublisher{}, nil
	}
	if exchange == "" {
		exchange = "brainpulse.events"
	}
	return NewRabbitPublisher(amqpURL, exchange)
}
