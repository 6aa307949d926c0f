package repository

import (
	"context"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
)

// EntitlementCache кеш найденных прав доступа. Реализуется RedisCacheRepository.
type EntitlementCache interface {
	CacheEntitlement(ctx context.Context, ent *domain.Entitlement) error
	GetCachedEntitlement(ctx context.Context, userID, streamID string) (*domain.Entitlement, error)
}

// CachedEntitlementRepository реализует EntitlementRepository с кешированием.
// Кешируются только найденные права: отсутствие права не кешируется,
// иначе только что оплативший пользователь видел бы отказ до истечения TTL.
type CachedEntitlementRepository struct {
	repo  EntitlementRepository
	cache EntitlementCache
	log   *logger.Logger
}

// NewCachedEntitlementRepository создает новый репозиторий с кешированием
func NewCachedEntitlementRepository(repo EntitlementRepository, cache EntitlementCache, log *logger.Logger) *CachedEntitlementRepository {
	return &CachedEntitlementRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Get получает право доступа (сначала из кеша, потом из БД)
func (r *CachedEntitlementRepository) Get(ctx context.Context, userID, streamID string) (*domain.Entitlement, error) {
	cached, err := r.cache.GetCachedEntitlement(ctx, userID, streamID)
	if err != nil {
		// Продолжаем выполнение при ошибке кеша
		r.log.Warnw("Error getting entitlement from cache", "error", err, "userID", userID, "streamID", streamID)
	}
	if cached != nil {
		return cached, nil
	}

	ent, err := r.repo.Get(ctx, userID, streamID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheEntitlement(ctx, ent); err != nil {
		r.log.Warnw("Failed to cache entitlement after fetching", "error", err, "userID", userID, "streamID", streamID)
	}
	return ent, nil
}

// Grant сохраняет право доступа в БД и кеширует сохраненную запись
func (r *CachedEntitlementRepository) Grant(ctx context.Context, ent domain.Entitlement) (*domain.Entitlement, bool, error) {
	stored, created, err := r.repo.Grant(ctx, ent)
	if err != nil {
		return stored, created, err
	}

	if err := r.cache.CacheEntitlement(ctx, stored); err != nil {
		r.log.Warnw("Failed to cache entitlement after grant", "error", err, "userID", stored.UserID, "streamID", stored.StreamID)
	}
	return stored, created, nil
}

// ListByUser читает список напрямую из БД
func (r *CachedEntitlementRepository) ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	return r.repo.ListByUser(ctx, userID)
}
