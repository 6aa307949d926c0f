package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

const entitlementColumns = `user_id, stream_id, amount_paid, currency, granted_at, payment_session_id`

// EntitlementRepository реализация хранилища прав доступа в PostgreSQL
type EntitlementRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewEntitlementRepository создает новый репозиторий прав доступа
func NewEntitlementRepository(pool *pgxpool.Pool, log *logger.Logger) *EntitlementRepository {
	return &EntitlementRepository{
		pool: pool,
		log:  log,
	}
}

func scanEntitlement(row pgx.Row) (*domain.Entitlement, error) {
	var ent domain.Entitlement
	err := row.Scan(
		&ent.UserID,
		&ent.StreamID,
		&ent.AmountPaid.Amount,
		&ent.AmountPaid.Currency,
		&ent.GrantedAt,
		&ent.PaymentSessionID,
	)
	if err != nil {
		return nil, err
	}
	ent.GrantedAt = ent.GrantedAt.UTC()
	return &ent, nil
}

// Get возвращает право доступа по паре пользователь/трансляция
func (r *EntitlementRepository) Get(ctx context.Context, userID, streamID string) (*domain.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE user_id = $1 AND stream_id = $2`

	ent, err := scanEntitlement(r.pool.QueryRow(ctx, query, userID, streamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		r.log.Errorw("Failed to get entitlement", "error", err, "userID", userID, "streamID", streamID)
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return ent, nil
}

// Grant вставляет право доступа одним оператором.
// Гонку параллельных подтверждений разрешает первичный ключ (user_id, stream_id):
// проигравший получает пустой RETURNING и читает запись победителя.
func (r *EntitlementRepository) Grant(ctx context.Context, ent domain.Entitlement) (*domain.Entitlement, bool, error) {
	if ent.GrantedAt.IsZero() {
		ent.GrantedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO entitlements (` + entitlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, stream_id) DO NOTHING
		RETURNING ` + entitlementColumns

	stored, err := scanEntitlement(r.pool.QueryRow(ctx, query,
		ent.UserID,
		ent.StreamID,
		ent.AmountPaid.Amount,
		ent.AmountPaid.Currency,
		ent.GrantedAt,
		ent.PaymentSessionID,
	))
	switch {
	case err == nil:
		r.log.Infow("Entitlement granted", "userID", stored.UserID, "streamID", stored.StreamID, "sessionID", stored.PaymentSessionID)
		return stored, true, nil

	case errors.Is(err, pgx.ErrNoRows):
		existing, getErr := r.Get(ctx, ent.UserID, ent.StreamID)
		if getErr != nil {
			return nil, false, fmt.Errorf("failed to read existing entitlement: %w", getErr)
		}
		r.log.Debugw("Entitlement already exists", "userID", ent.UserID, "streamID", ent.StreamID)
		return existing, false, nil

	case isUniqueViolation(err):
		// Конкурентная вставка той же пары может упасть на индексе payment_session_id раньше, чем на первичном ключе
		existing, getErr := r.Get(ctx, ent.UserID, ent.StreamID)
		return r.resolveConflict(ent, existing, getErr)

	default:
		r.log.Errorw("Failed to grant entitlement", "error", err, "userID", ent.UserID, "streamID", ent.StreamID)
		return nil, false, fmt.Errorf("failed to grant entitlement: %w", err)
	}
}

// ListByUser возвращает права доступа пользователя, новые первыми
func (r *EntitlementRepository) ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE user_id = $1 ORDER BY granted_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.log.Errorw("Failed to list entitlements", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	defer rows.Close()

	var result []domain.Entitlement
	for rows.Next() {
		ent, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		result = append(result, *ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entitlements: %w", err)
	}
	return result, nil
}

// resolveConflict разбирает повторное чтение после нарушения уникальности.
// ErrDuplicate только если записи для пары нет: значит сессия уже открыла доступ к другой паре.
func (r *EntitlementRepository) resolveConflict(ent domain.Entitlement, existing *domain.Entitlement, getErr error) (*domain.Entitlement, bool, error) {
	switch {
	case getErr == nil:
		return existing, false, nil
	case errors.Is(getErr, repository.ErrNotFound):
		r.log.Warnw("Payment session already used", "sessionID", ent.PaymentSessionID, "userID", ent.UserID, "streamID", ent.StreamID)
		return nil, false, fmt.Errorf("payment session %s: %w", ent.PaymentSessionID, repository.ErrDuplicate)
	default:
		return nil, false, fmt.Errorf("failed to read entitlement after conflict: %w", getErr)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
