package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	amqpx "github.com/tanpawarit/premeeting-warmup-agent/pkg/amqp"
)

type Sink string

const (
	SinkSlack  Sink = "slack"
	SinkQStash Sink = "qstash"
	SinkAMQP   Sink = "amqp"

	EventLeadSummary = "lead.summary.v1"
)

type Config struct {
	Sink       Sink          `split_words:"true" default:"slack"`
	WebhookURL string        `split_words:"true"`
	Timeout    time.Duration `split_words:"true" default:"10s"`
	TimeZone   string        `split_words:"true" default:"America/Los_Angeles"`
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.TimeZone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// Publisher is the slice of the QStash client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, destination string, body any, dedupID string) (string, error)
}

// EventPublisher is the slice of the AMQP publisher the notifier needs.
type EventPublisher interface {
	Publish(ctx context.Context, key string, env amqpx.Envelope) error
}

type slackPayload struct {
	Text string `json:"text"`
}

// SlackNotifier posts the summary to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	location   *time.Location
	httpClient *http.Client
}

func NewSlackNotifier(cfg Config, httpClient *http.Client) (*SlackNotifier, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, fmt.Errorf("%w: slack webhook url", contractx.ErrNotConfigured)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &SlackNotifier{webhookURL: webhookURL, location: cfg.Location(), httpClient: httpClient}, nil
}

func (n *SlackNotifier) Notify(ctx context.Context, summary contractx.LeadSummary) error {
	body, err := json.Marshal(slackPayload{Text: FormatText(summary, n.location)})
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", contractx.ErrNotificationDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", contractx.ErrNotificationDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrNotificationDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: slack status=%d body=%s", contractx.ErrNotificationDispatchFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// QStashNotifier hands the Slack payload to QStash, which retries delivery to the webhook.
type QStashNotifier struct {
	publisher   Publisher
	destination string
	location    *time.Location
}

func NewQStashNotifier(cfg Config, publisher Publisher) (*QStashNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("%w: qstash client", contractx.ErrNotConfigured)
	}
	destination := strings.TrimSpace(cfg.WebhookURL)
	if destination == "" {
		return nil, fmt.Errorf("%w: qstash destination url", contractx.ErrNotConfigured)
	}
	return &QStashNotifier{publisher: publisher, destination: destination, location: cfg.Location()}, nil
}

func (n *QStashNotifier) Notify(ctx context.Context, summary contractx.LeadSummary) error {
	payload := slackPayload{Text: FormatText(summary, n.location)}
	if _, err := n.publisher.Publish(ctx, n.destination, payload, summary.SessionID); err != nil {
		return fmt.Errorf("%w: qstash: %v", contractx.ErrNotificationDispatchFailed, err)
	}
	return nil
}

// AMQPNotifier emits the summary as a structured event for downstream consumers.
type AMQPNotifier struct {
	publisher  EventPublisher
	routingKey string
	producer   string
}

func NewAMQPNotifier(publisher EventPublisher, routingKey, producer string) (*AMQPNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("%w: amqp publisher", contractx.ErrNotConfigured)
	}
	if strings.TrimSpace(routingKey) == "" {
		routingKey = EventLeadSummary
	}
	return &AMQPNotifier{publisher: publisher, routingKey: routingKey, producer: producer}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, summary contractx.LeadSummary) error {
	env := amqpx.NewEnvelope(EventLeadSummary, n.producer, summary.SessionID, summary)
	if err := n.publisher.Publish(ctx, n.routingKey, env); err != nil {
		return fmt.Errorf("%w: amqp: %v", contractx.ErrNotificationDispatchFailed, err)
	}
	return nil
}

// Unconfigured fails every dispatch so a missing sink is reported, not silently skipped.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) Notify(context.Context, contractx.LeadSummary) error {
	return fmt.Errorf("%w: %w: %s", contractx.ErrNotificationDispatchFailed, contractx.ErrNotConfigured, u.Reason)
}
