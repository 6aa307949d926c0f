package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	// DefaultTopic топик доменных событий сервиса доступа
	DefaultTopic = "stream_access_events"

	// Заголовок с типом события: консьюмеры фильтруют по нему без разбора тела
	headerEventType = "event_type"

	// Драйверы, выбираемые через kafka.driver
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Producer определяет интерфейс для публикации доменных событий в Kafka.
type Producer interface {
	// PublishEvent отправляет событие. Ключ сообщения user_id:stream_id сохраняет порядок событий одной покупки.
	PublishEvent(ctx context.Context, event domain.Event) error
	// Close закрывает соединение продюсера Kafka.
	Close() error
}

// NewProducer создает продюсер выбранного драйвера.
func NewProducer(driver string, brokers []string, topic string, log *logger.Logger) (Producer, error) {
	switch driver {
	case DriverSarama:
		return NewSaramaProducer(brokers, topic, log)
	case DriverKafkaGo, "":
		return NewKafkaProducer(brokers, topic, log)
	default:
		return nil, fmt.Errorf("kafka: unknown driver %q", driver)
	}
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	// Hash-балансировщик: сообщения с одинаковым ключом попадают в одну партицию
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic, "driver", DriverKafkaGo)

	return &kafkaProducer{
		writer: writer,
		topic:  topic,
		log:    log,
	}, nil
}

func newMessage(topic string, event domain.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: failed to marshal event: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}, nil
}

// PublishEvent преобразует событие в JSON и отправляет в топик.
func (k *kafkaProducer) PublishEvent(ctx context.Context, event domain.Event) error {
	message, err := newMessage(k.topic, event)
	if err != nil {
		k.log.Errorw("Failed to build Kafka message", "error", err, "eventID", event.ID, "type", event.Type)
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", k.topic, "eventID", event.ID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", k.topic, "eventID", event.ID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Infow("Successfully published event to Kafka", "topic", k.topic, "type", event.Type, "key", event.Key())
	return nil
}

// Close закрывает соединение Kafka Writer.
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}
