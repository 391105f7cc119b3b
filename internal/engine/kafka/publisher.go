package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/orderflow/inventory-engine/pkg/tracing"
)

// Publisher writes domain events to kafka, routing stock.* events to the
// stock topic and order.* events to the order topic. Messages carry the
// event type and trace context as headers.
type Publisher struct {
	log        *slog.Logger
	writer     *kafka.Writer
	stockTopic string
	orderTopic string
}

func NewPublisher(log *slog.Logger, brokers []string, stockTopic, orderTopic string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Publisher{log: log, writer: w, stockTopic: stockTopic, orderTopic: orderTopic}
}

func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	topic := p.orderTopic
	if strings.HasPrefix(eventType, "stock.") {
		topic = p.stockTopic
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: headers,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.log.Debug("event published", "type", eventType, "topic", topic, "key", key)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
