package repository

import (
	"context"
	"sync"

	"github.com/Dhoini/stream-access-service/internal/domain"
)

// StreamRepository чтение каталога трансляций.
type StreamRepository interface {
	// GetByID возвращает трансляцию или ошибку, для которой errors.Is(err, ErrNotFound).
	GetByID(ctx context.Context, streamID string) (*domain.Stream, error)
}

// InMemoryStreamRepository каталог трансляций в памяти
type InMemoryStreamRepository struct {
	streams map[string]domain.Stream
	mutex   sync.RWMutex
}

// NewInMemoryStreamRepository создает каталог, заполненный переданными трансляциями
func NewInMemoryStreamRepository(streams ...domain.Stream) *InMemoryStreamRepository {
	r := &InMemoryStreamRepository{streams: make(map[string]domain.Stream, len(streams))}
	for _, s := range streams {
		r.streams[s.ID] = s
	}
	return r
}

// GetByID возвращает трансляцию по ID
func (r *InMemoryStreamRepository) GetByID(ctx context.Context, streamID string) (*domain.Stream, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stream, exists := r.streams[streamID]
	if !exists {
		return nil, domain.NewNotFoundError("stream", streamID)
	}
	return &stream, nil
}

// Put добавляет или заменяет трансляцию (например, автор сменил цену)
func (r *InMemoryStreamRepository) Put(stream domain.Stream) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.streams[stream.ID] = stream
}
