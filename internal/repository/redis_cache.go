package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	entitlementKeyPrefix     = "entitlement:"
	pendingCheckoutKeyPrefix = "pending_checkout:"

	// TTL для кэша прав доступа. Права не отзываются, поэтому TTL ограничивает только память.
	defaultCacheTTL = 24 * time.Hour
)

// RedisCacheRepository реализует кеширование прав доступа и хранение незавершенных покупок в Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func entitlementCacheKey(userID, streamID string) string {
	return fmt.Sprintf("%s%s:%s", entitlementKeyPrefix, userID, streamID)
}

func pendingCheckoutKey(userID, streamID string) string {
	return fmt.Sprintf("%s%s:%s", pendingCheckoutKeyPrefix, userID, streamID)
}

// CacheEntitlement кеширует найденное право доступа
func (r *RedisCacheRepository) CacheEntitlement(ctx context.Context, ent *domain.Entitlement) error {
	key := entitlementCacheKey(ent.UserID, ent.StreamID)

	data, err := json.Marshal(ent)
	if err != nil {
		r.log.Errorw("Failed to marshal entitlement for caching", "error", err, "userID", ent.UserID, "streamID", ent.StreamID)
		return fmt.Errorf("failed to marshal entitlement: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache entitlement in Redis", "error", err, "userID", ent.UserID, "streamID", ent.StreamID)
		return fmt.Errorf("failed to cache entitlement: %w", err)
	}

	r.log.Debugw("Entitlement cached successfully", "userID", ent.UserID, "streamID", ent.StreamID)
	return nil
}

// GetCachedEntitlement получает право доступа из кеша. Промах возвращает nil без ошибки.
func (r *RedisCacheRepository) GetCachedEntitlement(ctx context.Context, userID, streamID string) (*domain.Entitlement, error) {
	data, err := r.client.Get(ctx, entitlementCacheKey(userID, streamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Errorw("Error getting entitlement from Redis", "error", err, "userID", userID, "streamID", streamID)
		return nil, fmt.Errorf("failed to get entitlement from cache: %w", err)
	}

	var ent domain.Entitlement
	if err := json.Unmarshal(data, &ent); err != nil {
		r.log.Errorw("Failed to unmarshal cached entitlement", "error", err, "userID", userID, "streamID", streamID)
		return nil, fmt.Errorf("failed to unmarshal cached entitlement: %w", err)
	}

	r.log.Debugw("Entitlement retrieved from cache", "userID", userID, "streamID", streamID)
	return &ent, nil
}

// GetPendingCheckout возвращает открытую сессию оплаты пользователя для трансляции или nil
func (r *RedisCacheRepository) GetPendingCheckout(ctx context.Context, userID, streamID string) (*PendingCheckout, error) {
	data, err := r.client.Get(ctx, pendingCheckoutKey(userID, streamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Errorw("Error getting pending checkout from Redis", "error", err, "userID", userID, "streamID", streamID)
		return nil, fmt.Errorf("failed to get pending checkout: %w", err)
	}

	var pending PendingCheckout
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending checkout: %w", err)
	}
	return &pending, nil
}

// SavePendingCheckout сохраняет сессию через SETNX. Возвращает false, если другой запрос успел раньше.
func (r *RedisCacheRepository) SavePendingCheckout(ctx context.Context, userID, streamID string, pending PendingCheckout, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(pending)
	if err != nil {
		return false, fmt.Errorf("failed to marshal pending checkout: %w", err)
	}

	stored, err := r.client.SetNX(ctx, pendingCheckoutKey(userID, streamID), data, ttl).Result()
	if err != nil {
		r.log.Errorw("Failed to save pending checkout in Redis", "error", err, "userID", userID, "streamID", streamID)
		return false, fmt.Errorf("failed to save pending checkout: %w", err)
	}

	r.log.Debugw("Pending checkout saved", "userID", userID, "streamID", streamID, "sessionID", pending.SessionID, "stored", stored)
	return stored, nil
}

// DeletePendingCheckout удаляет незавершенную покупку после выдачи доступа
func (r *RedisCacheRepository) DeletePendingCheckout(ctx context.Context, userID, streamID string) error {
	if err := r.client.Del(ctx, pendingCheckoutKey(userID, streamID)).Err(); err != nil {
		r.log.Errorw("Failed to delete pending checkout", "error", err, "userID", userID, "streamID", streamID)
		return fmt.Errorf("failed to delete pending checkout: %w", err)
	}
	return nil
}
