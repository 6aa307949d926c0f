package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// ProducerConfig конфигурация sarama-продюсера
type ProducerConfig struct {
	MaxMessageBytes  int
	Compression      sarama.CompressionCodec
	RequiredAcks     sarama.RequiredAcks
	FlushMaxMessages int
	RetryMax         int
	Timeout          time.Duration
}

// NewProducerConfig возвращает настройки по умолчанию.
// Событие о выдаче доступа нельзя терять, поэтому ждем подтверждения от всех реплик.
func NewProducerConfig() ProducerConfig {
	return ProducerConfig{
		MaxMessageBytes:  1000000,
		Compression:      sarama.CompressionSnappy,
		RequiredAcks:     sarama.WaitForAll,
		FlushMaxMessages: 100,
		RetryMax:         5,
		Timeout:          10 * time.Second,
	}
}

// NewSaramaConfig создает новую конфигурацию Sarama
func NewSaramaConfig(cfg ProducerConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V3_3_0_0
	saramaConfig.ClientID = "stream-access-service"

	saramaConfig.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	saramaConfig.Producer.Compression = cfg.Compression
	saramaConfig.Producer.RequiredAcks = cfg.RequiredAcks
	saramaConfig.Producer.Flush.MaxMessages = cfg.FlushMaxMessages
	saramaConfig.Producer.Retry.Max = cfg.RetryMax
	saramaConfig.Producer.Timeout = cfg.Timeout
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	// Обязательно для SyncProducer
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	return saramaConfig
}
