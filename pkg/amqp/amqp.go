package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL        string `split_words:"true"`
	Exchange   string `split_words:"true" default:"warmup.events"`
	RoutingKey string `split_words:"true" default:"lead.summary.v1"`
	Producer   string `split_words:"true" default:"premeeting-warmup-agent"`
}

func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Meta identifies one published event.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      *string   `json:"producer,omitempty"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps data with a fresh event id. correlationID ties the event to its source.
func NewEnvelope(eventType, producer, correlationID string, data any) Envelope {
	env := Envelope{
		Meta: Meta{
			ID:   uuid.NewString(),
			Type: eventType,
			Time: time.Now().UTC(),
		},
		Data: data,
	}
	if producer != "" {
		env.Meta.Producer = &producer
	}
	if correlationID != "" {
		env.Meta.CorrelationID = &correlationID
	}
	return env
}

// Publisher sends envelopes to a durable topic exchange with publisher confirms.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	exchange string
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if !cfg.Configured() {
		return nil, errors.New("amqp url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errors.New("amqp exchange is required")
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange=%s: %w", exchange, err)
	}

	return &Publisher{conn: conn, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("amqp confirm mode: %w", err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := Publishing(env, body)
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, msg)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("amqp confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("amqp publish nacked: exchange=%s key=%s", p.exchange, key)
	}

	log.Debug().Str("exchange", p.exchange).Str("key", key).Str("event_id", env.Meta.ID).Msg("published")
	return nil
}

// Publishing builds the AMQP message for an encoded envelope.
func Publishing(env Envelope, body []byte) amqp091.Publishing {
	cid := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}
	return amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: cid,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		Body:          body,
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}
