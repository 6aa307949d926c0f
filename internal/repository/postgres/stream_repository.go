package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StreamRepository чтение каталога трансляций из PostgreSQL
type StreamRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewStreamRepository создает новый репозиторий трансляций
func NewStreamRepository(pool *pgxpool.Pool, log *logger.Logger) *StreamRepository {
	return &StreamRepository{
		pool: pool,
		log:  log,
	}
}

// GetByID возвращает трансляцию по ID
func (r *StreamRepository) GetByID(ctx context.Context, streamID string) (*domain.Stream, error) {
	query := `
		SELECT id, owner_id, title, is_live, is_paid, price_amount, price_currency, preview_url
		FROM streams
		WHERE id = $1`

	var s domain.Stream
	err := r.pool.QueryRow(ctx, query, streamID).Scan(
		&s.ID,
		&s.OwnerID,
		&s.Title,
		&s.IsLive,
		&s.IsPaid,
		&s.Price.Amount,
		&s.Price.Currency,
		&s.PreviewURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("stream", streamID)
		}
		r.log.Errorw("Failed to get stream", "error", err, "streamID", streamID)
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	return &s, nil
}
