package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/IBM/sarama"
)

type saramaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewSaramaProducer подключается к брокерам и создает синхронный sarama-продюсер
func NewSaramaProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig(NewProducerConfig()))
	if err != nil {
		log.Errorw("Failed to create sarama producer", "error", err, "brokers", brokers)
		return nil, fmt.Errorf("kafka: failed to create sarama producer: %w", err)
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic, "driver", DriverSarama)
	return NewSaramaProducerFrom(producer, topic, log), nil
}

// NewSaramaProducerFrom оборачивает готовый SyncProducer
func NewSaramaProducerFrom(producer sarama.SyncProducer, topic string, log *logger.Logger) Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &saramaProducer{
		producer: producer,
		topic:    topic,
		log:      log,
	}
}

// PublishEvent публикует событие в Kafka
func (p *saramaProducer) PublishEvent(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(headerEventType),
				Value: []byte(event.Type),
			},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.log.Errorw("Failed to publish event", "error", err, "topic", p.topic, "eventID", event.ID)
		return fmt.Errorf("kafka: failed to publish event: %w", err)
	}

	p.log.Infow("Published event to Kafka", "topic", p.topic, "type", event.Type, "partition", partition, "offset", offset)
	return nil
}

// Close закрывает продюсер
func (p *saramaProducer) Close() error {
	return p.producer.Close()
}
