package services

import (
	"context"
	"time"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

const maxProcessorRetries = 3

// retryProcessorCall повторяет вызов провайдера при временных ошибках.
// Общее время ограничено контекстом: после его истечения возвращается ctx.Err().
func retryProcessorCall(ctx context.Context, operation string, call func() error, retryable func(error) bool, log *logger.Logger) error {
	attempt := 0
	op := func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if retryable(err) {
			log.Warnw("Retryable payment processor error, retrying", "operation", operation, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0 // Ограничивает контекст

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxProcessorRetries), ctx))
}
