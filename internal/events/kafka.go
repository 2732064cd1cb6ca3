package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

const StageChangedTopic = "checkout.stage.changed"

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes stage changes keyed by session id, so every session
// stays ordered within its partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewStageWriter returns a writer for topic, defaulting to StageChangedTopic.
func NewStageWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = StageChangedTopic
	}
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func (p *KafkaPublisher) PublishStageChanged(ctx context.Context, event models.StageChangedEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stage event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: eventJSON,
	}); err != nil {
		return fmt.Errorf("write stage event: %w", err)
	}
	return nil
}
