package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher publishes outbox events to the broker, routing each event type
// to its topic (notification vs audit) and falling back to the default.
type Dispatcher struct {
	log          *slog.Logger
	producer     Producer
	defaultTopic string
	routes       map[string]string
}

func NewDispatcher(log *slog.Logger, producer Producer, defaultTopic string, routes map[string]string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, defaultTopic: defaultTopic, routes: routes}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	topic := d.defaultTopic
	if t, ok := d.routes[event.Type]; ok {
		topic = t
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}}
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(event.Traceparent)})
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type, "topic", topic)
	return nil
}
