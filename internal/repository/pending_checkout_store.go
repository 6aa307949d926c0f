package repository

import (
	"context"
	"sync"
	"time"
)

// PendingCheckout открытая сессия оплаты, которую пользователь еще не завершил.
// Повторный клик "Купить" возвращает ее вместо создания новой.
type PendingCheckout struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingCheckoutStore хранилище незавершенных покупок с ограниченным сроком жизни.
type PendingCheckoutStore interface {
	GetPendingCheckout(ctx context.Context, userID, streamID string) (*PendingCheckout, error)
	SavePendingCheckout(ctx context.Context, userID, streamID string, pending PendingCheckout, ttl time.Duration) (bool, error)
	DeletePendingCheckout(ctx context.Context, userID, streamID string) error
}

type pendingEntry struct {
	pending   PendingCheckout
	expiresAt time.Time
}

// InMemoryPendingCheckoutStore реализация для одного экземпляра сервиса, когда Redis выключен.
type InMemoryPendingCheckoutStore struct {
	entries map[entitlementKey]pendingEntry
	mutex   sync.Mutex
	now     func() time.Time
}

// NewInMemoryPendingCheckoutStore создает хранилище незавершенных покупок в памяти
func NewInMemoryPendingCheckoutStore() *InMemoryPendingCheckoutStore {
	return &InMemoryPendingCheckoutStore{
		entries: make(map[entitlementKey]pendingEntry),
		now:     time.Now,
	}
}

// GetPendingCheckout возвращает незавершенную покупку, если ее срок не истек
func (s *InMemoryPendingCheckoutStore) GetPendingCheckout(ctx context.Context, userID, streamID string) (*PendingCheckout, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := entitlementKey{userID, streamID}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	pending := entry.pending
	return &pending, nil
}

// SavePendingCheckout сохраняет покупку, только если для пары нет действующей записи
func (s *InMemoryPendingCheckoutStore) SavePendingCheckout(ctx context.Context, userID, streamID string, pending PendingCheckout, ttl time.Duration) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := entitlementKey{userID, streamID}
	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}
	s.entries[key] = pendingEntry{pending: pending, expiresAt: now.Add(ttl)}
	return true, nil
}

// DeletePendingCheckout удаляет незавершенную покупку
func (s *InMemoryPendingCheckoutStore) DeletePendingCheckout(ctx context.Context, userID, streamID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, entitlementKey{userID, streamID})
	return nil
}
