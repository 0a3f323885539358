package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"watchtower/internal/engine/alert"
	"watchtower/pkg/infra"
)

// KafkaChannel publishes alerts to a topic, keyed by check key so all alerts
// for one target land in the same partition in order.
type KafkaChannel struct {
	name   string
	writer infra.KafkaWriter
}

func NewKafkaChannel(name string, writer infra.KafkaWriter) *KafkaChannel {
	return &KafkaChannel{
		name:   name,
		writer: writer,
	}
}

func (k *KafkaChannel) Name() string {
	return k.name
}

func (k *KafkaChannel) Send(ctx context.Context, msg alert.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("KafkaChannel.Send: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: b,
	})
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("KafkaChannel.Send: %w", err)}
	}
	return nil
}
