package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes audit events to a single topic.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer builds a producer from a comma-separated broker list.
func NewKafkaProducer(brokers, topic string) (*KafkaProducer, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	list := strings.Split(brokers, ",")
	for i, b := range list {
		list[i] = strings.TrimSpace(b)
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(list...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaProducer{writer: w, topic: topic}, nil
}

// Publish JSON-encodes the event and writes it keyed by session id.
func (p *KafkaProducer) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: encode event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: data,
	})
}

// Close releases the underlying Kafka connection.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
