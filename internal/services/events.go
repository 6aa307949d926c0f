package services

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/kafka"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/google/uuid"
)

const publishTimeout = 10 * time.Second

// EventPublisher отправляет доменные события в фоне. Ошибка публикации не влияет на ответ пользователю.
type EventPublisher struct {
	producer kafka.Producer // Может быть nil, если Kafka выключена
	metrics  metrics.AccessMetrics
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewEventPublisher создает издателя событий
func NewEventPublisher(producer kafka.Producer, m metrics.AccessMetrics, log *logger.Logger) *EventPublisher {
	if producer == nil {
		log.Warnw("Kafka producer is nil, event publishing will be skipped")
	}
	return &EventPublisher{
		producer: producer,
		metrics:  m,
		log:      log,
	}
}

func newEvent(eventType, userID, streamID, sessionID string, amount domain.Money, at time.Time) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		StreamID:   streamID,
		SessionID:  sessionID,
		Amount:     amount,
		OccurredAt: at.UTC(),
	}
}

// PublishAsync публикует событие в отдельной горутине
func (p *EventPublisher) PublishAsync(ctx context.Context, event domain.Event) {
	if p == nil || p.producer == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// Контекст запроса отменится раньше, чем завершится запись в Kafka
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := p.producer.PublishEvent(publishCtx, event); err != nil {
			p.log.Errorw("Failed to publish event", "error", err, "type", event.Type, "eventID", event.ID)
			p.incPublished(event.Type, "error")
			return
		}
		p.incPublished(event.Type, "ok")
	}()
}

// Wait дожидается завершения отправленных публикаций. Вызывается при остановке сервиса.
func (p *EventPublisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}

func (p *EventPublisher) incPublished(eventType, status string) {
	if p.metrics != nil {
		p.metrics.IncEventPublished(eventType, status)
	}
}
