package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Migrate применяет схему. Все операторы идемпотентны (IF NOT EXISTS).
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	log.Info("Applying database schema")

	// Без аргументов pgx отправляет запрос простым протоколом, поэтому несколько операторов допустимы
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	log.Info("Database schema is up to date")
	return nil
}
