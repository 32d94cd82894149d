package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as a JSON message keyed by the event id.
type KafkaSink struct {
	w     messageWriter
	topic string
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			MaxAttempts:            1,
		},
		topic: topic,
	}
}

func (s *KafkaSink) TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64) error {
	ev := NewEvent(name, props)
	ev.Metrics = metrics
	return s.Publish(ctx, ev)
}

func (s *KafkaSink) TrackException(ctx context.Context, err error, props map[string]string) error {
	return s.Publish(ctx, NewException(err, props))
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

// Publish writes ev as JSON keyed by its id.
func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}); err != nil {
		return fmt.Errorf("kafka write %s: %w", s.topic, err)
	}
	return nil
}
