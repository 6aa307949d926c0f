package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/stream-access-service/internal/billing"
	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/Dhoini/stream-access-service/internal/services")

// AccessService принимает решение о доступе к трансляции.
// Решение вычисляется заново на каждый запрос и нигде не сохраняется.
type AccessService struct {
	streams      repository.StreamRepository
	entitlements repository.EntitlementRepository
	tiers        billing.TierResolver
	policy       TierPolicy
	metrics      metrics.AccessMetrics
	log          *logger.Logger
}

// NewAccessService конструктор сервиса
func NewAccessService(
	streams repository.StreamRepository,
	entitlements repository.EntitlementRepository,
	tiers billing.TierResolver,
	policy TierPolicy,
	m metrics.AccessMetrics,
	log *logger.Logger,
) *AccessService {
	if policy == nil {
		policy = PerStreamOnly
	}
	return &AccessService{
		streams:      streams,
		entitlements: entitlements,
		tiers:        tiers,
		policy:       policy,
		metrics:      m,
		log:          log,
	}
}

// ResolveAccess решает, может ли requester смотреть трансляцию.
// Отказ возвращается значением HasAccess=false, а не ошибкой.
func (s *AccessService) ResolveAccess(ctx context.Context, streamID string, requester domain.Requester) (domain.AccessDecision, error) {
	ctx, span := tracer.Start(ctx, "AccessService.ResolveAccess")
	defer span.End()
	span.SetAttributes(attribute.String("stream.id", streamID))

	stream, err := loadStream(ctx, s.streams, streamID)
	if err != nil {
		return domain.AccessDecision{}, err
	}

	decision := domain.AccessDecision{
		IsPaidStream: stream.IsPaid,
		Price:        stream.CurrentPrice(),
		PreviewURL:   stream.PreviewURL,
	}

	switch {
	case !stream.IsPaid:
		decision.HasAccess = true
		decision.Reason = domain.AccessReasonFreeStream
	case !requester.IsAuthenticated():
		decision.Reason = domain.AccessReasonAnonymous
	case stream.IsOwnedBy(requester.UserID):
		decision.HasAccess = true
		decision.Reason = domain.AccessReasonOwner
	default:
		hasEntitlement, tier, err := s.lookupUser(ctx, requester.UserID, streamID)
		if err != nil {
			span.RecordError(err)
			return domain.AccessDecision{}, err
		}
		switch {
		case hasEntitlement:
			decision.HasAccess = true
			decision.Reason = domain.AccessReasonEntitlement
		case s.policy(tier):
			decision.HasAccess = true
			decision.Reason = domain.AccessReasonSubscription
		default:
			decision.Reason = domain.AccessReasonNotPurchased
		}
	}

	span.SetAttributes(
		attribute.Bool("access.granted", decision.HasAccess),
		attribute.String("access.reason", string(decision.Reason)),
	)
	if s.metrics != nil {
		s.metrics.IncAccessDecision(string(decision.Reason), decision.HasAccess)
	}
	s.log.Debugw("Access resolved",
		"streamID", streamID,
		"userID", requester.UserID,
		"hasAccess", decision.HasAccess,
		"reason", decision.Reason,
	)
	return decision, nil
}

// lookupUser параллельно проверяет покупку и уровень подписки.
// Ошибка уровня уже поглощена резолвером, поэтому сбой биллинга не ломает проверку покупки.
// Группа без общего контекста: сбой хранилища прав не должен отменять запрос уровня.
func (s *AccessService) lookupUser(ctx context.Context, userID, streamID string) (bool, domain.Tier, error) {
	var (
		hasEntitlement bool
		tier           = domain.TierNone
	)

	var g errgroup.Group
	g.Go(func() error {
		_, err := s.entitlements.Get(ctx, userID, streamID)
		switch {
		case err == nil:
			hasEntitlement = true
			return nil
		case errors.Is(err, repository.ErrNotFound):
			return nil
		default:
			return fmt.Errorf("failed to check entitlement: %w", err)
		}
	})
	g.Go(func() error {
		tier = s.tiers.GetTier(ctx, userID)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.Errorw("Access lookup failed", "error", err, "userID", userID, "streamID", streamID)
		return false, domain.TierNone, err
	}
	return hasEntitlement, tier, nil
}

// ListEntitlements возвращает купленные пользователем трансляции.
func (s *AccessService) ListEntitlements(ctx context.Context, requester domain.Requester) ([]domain.Entitlement, error) {
	if !requester.IsAuthenticated() {
		return nil, domain.ErrUnauthenticated
	}
	list, err := s.entitlements.ListByUser(ctx, requester.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	if list == nil {
		list = []domain.Entitlement{}
	}
	return list, nil
}

func loadStream(ctx context.Context, streams repository.StreamRepository, streamID string) (*domain.Stream, error) {
	if streamID == "" {
		return nil, fmt.Errorf("%w: stream id is required", domain.ErrInvalidInput)
	}
	stream, err := streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load stream %s: %w", streamID, err)
	}
	return stream, nil
}
