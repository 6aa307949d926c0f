package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// Параметры топика событий доступа
const (
	topicPartitions        = 3
	topicReplicationFactor = 1
)

// EnsureTopic проверяет и создает топик доменных событий.
func EnsureTopic(ctx context.Context, brokers []string, topic string, log *logger.Logger) error {
	if len(brokers) == 0 || brokers[0] == "" {
		log.Errorw("Kafka broker address is empty")
		return errors.New("kafka broker address is empty")
	}
	if err := validateBrokerAddress(brokers[0]); err != nil {
		log.Errorw("Invalid Kafka broker address", "broker", brokers[0], "error", err)
		return err
	}

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", brokers[0])
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker for topic creation", "broker", brokers[0], "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		log.Errorw("Failed to read partitions from Kafka", "error", err)
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}
	for _, p := range partitions {
		if p.Topic == topic {
			log.Debugw("Topic already exists", "topic", topic)
			return nil
		}
	}

	log.Infow("Creating Kafka topic", "topic", topic, "partitions", topicPartitions)
	err = conn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     topicPartitions,
		ReplicationFactor: topicReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafkaGo.TopicAlreadyExists) {
		log.Errorw("Failed to create topic", "error", err, "topic", topic)
		return fmt.Errorf("kafka create topic failed: %w", err)
	}
	return nil
}

func validateBrokerAddress(broker string) error {
	_, portStr, err := net.SplitHostPort(strings.TrimSpace(broker))
	if err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return fmt.Errorf("invalid broker port %s: %w", broker, err)
	}
	return nil
}
