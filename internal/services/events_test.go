package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEventPublisher_PublishesAfterRequestContextCanceled(t *testing.T) {
	log := logger.FromZap(zaptest.NewLogger(t))
	producer := &fakeProducer{}
	publisher := NewEventPublisher(producer, metrics.NewAccessMetrics(prometheus.NewRegistry(), log), log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	publisher.PublishAsync(ctx, newEvent(domain.EventTypeCheckoutCreated, "u1", "s1", "cs_1", domain.NewMoney(999, "usd"), time.Now()))
	publisher.Wait()

	assert.Equal(t, []string{domain.EventTypeCheckoutCreated}, producer.types())
}

func TestEventPublisher_NilProducerIsNoop(t *testing.T) {
	publisher := NewEventPublisher(nil, nil, logger.NewNop())

	publisher.PublishAsync(context.Background(), domain.Event{Type: domain.EventTypeEntitlementGranted})
	publisher.Wait()
}

func TestConfirmationService_FailingProducerDoesNotFailGrant(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.producer.err = errors.New("kafka: broker not available")
	env.processor.put(paidSession("cs_1", viewerID, streamPaid))

	ent, err := env.confirm.ConfirmPayment(context.Background(), confirmInput("cs_1", streamPaid), domain.Anonymous())
	require.NoError(t, err)
	assert.NotNil(t, ent)

	env.events.Wait()
	assert.Empty(t, env.producer.types())
}
