package stripe

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dhoini/stream-access-service/internal/domain"

	"github.com/stripe/stripe-go/v78"
)

// В SDK нет константы для ошибок соединения, Stripe возвращает этот тип в теле ответа
const errorTypeAPIConnection stripe.ErrorType = "api_connection_error"

// IsRetryableError проверяет, является ли ошибка Stripe подходящей для повторной попытки
func IsRetryableError(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if stripeErr.Type == errorTypeAPIConnection {
			return true
		}
		// 5xx Stripe обычно временные, 501 нет
		if stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented {
			return true
		}
	}
	return false
}

// IsNotFound проверяет, что Stripe не знает запрошенный объект
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && (stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound)
}

// wrapStripeError превращает окончательный отказ Stripe в ExternalServiceError.
// Временные ошибки и ошибки транспорта оборачиваются как есть, чтобы их можно было повторить.
func wrapStripeError(operation string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && !IsRetryableError(err) {
		return domain.NewExternalServiceError("stripe", string(stripeErr.Code), operation+": "+stripeErr.Msg, stripeErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("stripe: failed to %s: %w", operation, err)
}
