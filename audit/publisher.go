package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/campushub/material-service/pkg/metrics"
	kafka "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, e Entry) error
	Close() error
}

// accessEvent mirrors the schema consumed by downstream analytics.
type accessEvent struct {
	MaterialID string                 `json:"material_id"`
	Accessor   string                 `json:"accessor"`
	OriginIP   string                 `json:"origin_ip,omitempty"`
	Kind       string                 `json:"kind"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	At         time.Time              `json:"at"`
}

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  splitBrokers(brokers),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(accessEvent{
		MaterialID: e.MaterialID.String(),
		Accessor:   e.Accessor,
		OriginIP:   e.OriginIP,
		Kind:       e.Kind,
		Metadata:   e.Metadata,
		At:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.MaterialID.String()),
		Value: payload,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.KafkaMessagesTotal.WithLabelValues("material-service", p.topic, status).Inc()
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Entry) error { return nil }
func (NopPublisher) Close() error                         { return nil }

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
