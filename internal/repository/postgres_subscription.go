package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dhoini/stream-access-service/internal/models"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
// Таблицу subscriptions ведет биллинг, сервис доступа только читает ее.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

// GetByUserID возвращает все подписки пользователя.
func (r *postgresSubscriptionRepo) GetByUserID(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := `
        SELECT subscription_id, user_id, plan_id, status, stripe_customer_id,
               created_at, updated_at, expires_at, canceled_at
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &subs, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Subscription{}, nil
		}
		r.log.Errorw("Failed to get subscriptions by user ID from DB", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get subscriptions by user ID: %w", err)
	}

	r.log.Debugw("Successfully retrieved subscriptions by user ID", "userID", userID, "count", len(subs))
	return subs, nil
}
