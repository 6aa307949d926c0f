package billing

import (
	"context"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultLookupTimeout = 2 * time.Second

// TierResolver определяет уровень подписки пользователя.
type TierResolver interface {
	GetTier(ctx context.Context, userID string) domain.Tier
}

// SubscriptionResolver читает уровень из подписок биллинга.
// Любая ошибка деградирует к TierNone: отказ биллинга не должен открывать платный контент.
type SubscriptionResolver struct {
	subs    repository.SubscriptionRepository
	metrics metrics.AccessMetrics
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewSubscriptionResolver создает резолвер уровня подписки
func NewSubscriptionResolver(subs repository.SubscriptionRepository, m metrics.AccessMetrics, log *logger.Logger) *SubscriptionResolver {
	return &SubscriptionResolver{
		subs:    subs,
		metrics: m,
		log:     log,
		timeout: defaultLookupTimeout,
		now:     time.Now,
	}
}

// GetTier возвращает TierPaid, если у пользователя есть действующая подписка.
func (r *SubscriptionResolver) GetTier(ctx context.Context, userID string) domain.Tier {
	if userID == "" {
		return domain.TierNone
	}

	ctx, span := otel.Tracer("github.com/Dhoini/stream-access-service/internal/billing").Start(ctx, "SubscriptionResolver.GetTier",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	callerCtx := ctx
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	subs, err := r.subs.GetByUserID(ctx, userID)
	if err != nil {
		// Запрос отменил вызывающий, биллинг здесь ни при чем
		if callerCtx.Err() != nil {
			r.log.Debugw("Tier lookup canceled by caller", "error", err, "userID", userID)
			return domain.TierNone
		}
		r.log.Warnw("Tier lookup failed, falling back to none tier", "error", err, "userID", userID)
		if r.metrics != nil {
			r.metrics.IncTierDegraded()
		}
		span.RecordError(err)
		return domain.TierNone
	}

	now := r.now()
	for i := range subs {
		if subs[i].IsActiveAt(now) {
			span.SetAttributes(attribute.String("tier", string(domain.TierPaid)))
			return domain.TierPaid
		}
	}
	return domain.TierNone
}
