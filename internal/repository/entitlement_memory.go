package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
)

type entitlementKey struct {
	userID   string
	streamID string
}

// InMemoryEntitlementRepository реализация хранилища прав доступа в памяти.
// Используется в тестах и при локальной разработке без PostgreSQL.
type InMemoryEntitlementRepository struct {
	entitlements map[entitlementKey]domain.Entitlement
	sessions     map[string]entitlementKey
	mutex        sync.RWMutex
	now          func() time.Time
}

// NewInMemoryEntitlementRepository создает новое хранилище прав доступа в памяти
func NewInMemoryEntitlementRepository() *InMemoryEntitlementRepository {
	return &InMemoryEntitlementRepository{
		entitlements: make(map[entitlementKey]domain.Entitlement),
		sessions:     make(map[string]entitlementKey),
		now:          time.Now,
	}
}

// Get возвращает право доступа по паре пользователь/трансляция
func (r *InMemoryEntitlementRepository) Get(ctx context.Context, userID, streamID string) (*domain.Entitlement, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ent, exists := r.entitlements[entitlementKey{userID, streamID}]
	if !exists {
		return nil, ErrNotFound
	}
	return &ent, nil
}

// Grant создает право доступа, если его еще нет
func (r *InMemoryEntitlementRepository) Grant(ctx context.Context, ent domain.Entitlement) (*domain.Entitlement, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := entitlementKey{ent.UserID, ent.StreamID}
	if existing, exists := r.entitlements[key]; exists {
		return &existing, false, nil
	}
	// Одна оплаченная сессия не может открыть доступ дважды
	if otherKey, used := r.sessions[ent.PaymentSessionID]; used {
		existing := r.entitlements[otherKey]
		return &existing, false, ErrDuplicate
	}

	if ent.GrantedAt.IsZero() {
		ent.GrantedAt = r.now().UTC()
	}
	r.entitlements[key] = ent
	r.sessions[ent.PaymentSessionID] = key

	return &ent, true, nil
}

// ListByUser возвращает права доступа пользователя
func (r *InMemoryEntitlementRepository) ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []domain.Entitlement
	for key, ent := range r.entitlements {
		if key.userID == userID {
			result = append(result, ent)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].GrantedAt.After(result[j].GrantedAt)
	})
	return result, nil
}

// Count возвращает число записей. Нужен тестам, проверяющим отсутствие дублей.
func (r *InMemoryEntitlementRepository) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entitlements)
}
