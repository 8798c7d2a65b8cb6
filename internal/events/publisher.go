// Package events emits domain events after state changes are durable.
// Publishing is best-effort: a failure is logged and never undoes the write.
package events

import (
	"context"
	"time"

	"seva/pkg/kafka"
	kafka_middleware "seva/pkg/kafka/middleware"
	"seva/pkg/logger"
)

const (
	TypeListingCreated   = "listing.created"
	TypeListingReserved  = "listing.reserved"
	TypeListingCompleted = "listing.completed"
	TypeMessageSent      = "message.sent"

	SchemaVersion = "1"
	Source        = "seva-realtime"
)

// Event is one domain fact. Key selects the partition, so all events about
// the same listing or conversation stay ordered.
type Event struct {
	Type       string
	Key        string
	ActorID    string
	OccurredAt time.Time
	Payload    any
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

type noopPublisher struct{}

// Noop discards every event. Used when EVENTS_ENABLED is false.
func Noop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) {}
func (noopPublisher) Close() error                  { return nil }

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	producer producer
	metrics  *kafka_middleware.Metrics
	log      *logger.Logger
}

// NewKafkaPublisher wires logging and metrics middleware onto the producer.
func NewKafkaPublisher(p *kafka.Producer, enableMiddleware bool, log *logger.Logger) *KafkaPublisher {
	metrics := kafka_middleware.NewMetrics()
	if enableMiddleware {
		p.Use(kafka_middleware.LoggingProducerMiddleware(log))
		p.Use(metrics.Producer())
	}
	return &KafkaPublisher{producer: p, metrics: metrics, log: log}
}

type envelope struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg, err := kafka.NewMessage().
		WithKey(event.Key).
		WithEventType(event.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithValue(envelope{
			Type:       event.Type,
			ActorID:    event.ActorID,
			OccurredAt: event.OccurredAt,
			Data:       event.Payload,
		}).
		Build()
	if err != nil {
		p.log.Error("Failed to encode domain event", "type", event.Type, "key", event.Key, "error", err)
		return
	}

	// The request context may already be cancelled once the caller has its
	// answer; the event still needs to go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish domain event", "type", event.Type, "key", event.Key, "error", err)
	}
}

func (p *KafkaPublisher) Metrics() kafka_middleware.MetricsSnapshot {
	return p.metrics.Snapshot()
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
