package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
)

// TopicOrderEvents is the default topic for order change events.
const TopicOrderEvents = "salesorders.order.events"

type orderEventSender interface {
	SendOrderEvent(topic string, event domain.OrderEvent) error
}

// OrderEventPublisher sends domain order events to one Kafka topic.
type OrderEventPublisher struct {
	producer orderEventSender
	topic    string
}

// NewOrderEventPublisher creates a publisher for topic, or TopicOrderEvents when topic is empty.
func NewOrderEventPublisher(producer *Producer, topic string) *OrderEventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	p := &OrderEventPublisher{topic: topic}
	if producer != nil {
		p.producer = producer
	}
	return p
}

// Topic returns the destination topic.
func (p *OrderEventPublisher) Topic() string {
	return p.topic
}

func (p *OrderEventPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka order event publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.producer.SendOrderEvent(p.topic, event)
}

var _ domain.OrderEvents = (*OrderEventPublisher)(nil)
