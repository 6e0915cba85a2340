package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
)

const (
	// HeaderEventType carries the event type so consumers can route without decoding the payload.
	HeaderEventType = "x-event-type"
	// HeaderEventID lets consumers drop redelivered events.
	HeaderEventID = "x-event-id"
)

// ProducerConfig tunes the synchronous producer.
type ProducerConfig struct {
	ClientID    string
	MaxRetries  int
	Compression sarama.CompressionCodec
}

// DefaultProducerConfig returns the settings used by ordersd.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		ClientID:    "salesorders",
		MaxRetries:  5,
		Compression: sarama.CompressionSnappy,
	}
}

// saramaConfig builds an idempotent producer config: an order's events are
// written once and in commit order on their partition.
func saramaConfig(cfg ProducerConfig) *sarama.Config {
	config := sarama.NewConfig()
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = cfg.MaxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = cfg.Compression
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// Producer writes order events to Kafka.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer connects a synchronous producer to brokers.
func NewProducer(brokers []string, cfg ProducerConfig) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, saramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newProducer(producer), nil
}

func newProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}
}

// orderEventMessage encodes event as JSON keyed by order id, so every event of
// one order lands on the same partition.
func orderEventMessage(topic string, event domain.OrderEvent) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.OrderID, 10)),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEventType), Value: []byte(event.Type)},
			{Key: []byte(HeaderEventID), Value: []byte(event.ID)},
		},
		Timestamp: event.OccurredAt,
	}, nil
}

// SendOrderEvent publishes one order event to topic.
func (p *Producer) SendOrderEvent(topic string, event domain.OrderEvent) error {
	msg, err := orderEventMessage(topic, event)
	if err != nil {
		return err
	}

	fields := log.Fields{
		"topic":      topic,
		"order_id":   event.OrderID,
		"event_type": event.Type,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("failed to send order event to kafka")
		return fmt.Errorf("failed to send order event: %w", err)
	}

	p.logger.WithFields(fields).WithFields(log.Fields{
		"partition": partition,
		"offset":    offset,
	}).Debug("order event sent to kafka")
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
