package amqp

import (
	"testing"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

func TestNewEnvelope(t *testing.T) {
	t.Parallel()

	env := NewEnvelope("lead.summary.v1", "svc", "session-1", map[string]string{"a": "b"})
	if env.Meta.ID == "" || env.Meta.Time.IsZero() {
		t.Fatalf("meta not populated: %+v", env.Meta)
	}
	if env.Meta.CorrelationID == nil || *env.Meta.CorrelationID != "session-1" {
		t.Fatalf("unexpected correlation id: %v", env.Meta.CorrelationID)
	}

	msg := Publishing(env, []byte(`{}`))
	if msg.CorrelationId != "session-1" || msg.MessageId != env.Meta.ID {
		t.Fatalf("unexpected ids: %+v", msg)
	}
	if msg.DeliveryMode != amqp091.Persistent || msg.Type != "lead.summary.v1" {
		t.Fatalf("unexpected publishing: %+v", msg)
	}
}

func TestEnvelopeWithoutCorrelationFallsBackToID(t *testing.T) {
	t.Parallel()

	env := NewEnvelope("t", "", "", nil)
	if env.Meta.Producer != nil {
		t.Fatal("empty producer must be omitted")
	}
	if msg := Publishing(env, nil); msg.CorrelationId != env.Meta.ID {
		t.Fatalf("expected correlation id to fall back to event id, got %q", msg.CorrelationId)
	}
}

func TestNewPublisherRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewPublisher(Config{Exchange: "x"}); err == nil {
		t.Fatal("expected error without url")
	}
}
