package repository

import (
	"context"

	"github.com/Dhoini/stream-access-service/internal/domain"
)

// EntitlementRepository хранилище прав доступа к платным трансляциям.
// Записи только добавляются: методов изменения и удаления нет.
type EntitlementRepository interface {
	// Get возвращает право доступа пользователя к трансляции или ErrNotFound.
	Get(ctx context.Context, userID, streamID string) (*domain.Entitlement, error)

	// Grant атомарно создает право доступа. Уникальность (user_id, stream_id) обеспечивает хранилище.
	// Если запись уже существует, возвращается существующая и created=false.
	Grant(ctx context.Context, ent domain.Entitlement) (stored *domain.Entitlement, created bool, err error)

	// ListByUser возвращает все права доступа пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error)
}
