package repository

import (
	"context"

	"github.com/Dhoini/stream-access-service/internal/models"
)

// SubscriptionRepository чтение подписок пользователей из биллинга.
type SubscriptionRepository interface {
	// GetByUserID возвращает все подписки пользователя, новые первыми.
	GetByUserID(ctx context.Context, userID string) ([]models.Subscription, error)
}
