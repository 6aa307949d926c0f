package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/Dhoini/stream-access-service/pkg/res"
)

// streamURI параметр пути с идентификатором трансляции
type streamURI struct {
	StreamID string `uri:"stream_id" validate:"required,max=128"`
}

// writeError переводит доменную ошибку в HTTP-ответ.
// Внутренние подробности наружу не отдаются.
func writeError(w http.ResponseWriter, err error, log *logger.Logger) {
	status, code, message := classifyError(err)
	res.JsonErrorResponse(w, res.ErrorResponse{Error: message, ErrorCode: code}, status, log)
}

func classifyError(err error) (int, string, string) {
	var notComplete *domain.PaymentNotCompleteError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", "invalid request"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "authentication required"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "stream not found"
	case errors.Is(err, domain.ErrStreamNotForSale):
		return http.StatusConflict, "not_for_sale", "stream is free"
	case errors.Is(err, domain.ErrSessionStreamMismatch), errors.Is(err, domain.ErrSessionUserMismatch):
		return http.StatusForbidden, "session_mismatch", "payment session does not match this purchase"
	case errors.As(err, &notComplete) && notComplete.Terminal:
		return http.StatusGone, "session_expired", "payment session expired"
	case errors.Is(err, domain.ErrPaymentNotComplete):
		return http.StatusAccepted, "payment_pending", "payment is not complete yet"
	case errors.Is(err, domain.ErrPaymentVerification):
		return http.StatusBadGateway, "verification_failed", "payment could not be verified"
	case errors.Is(err, domain.ErrCheckoutTimeout):
		return http.StatusGatewayTimeout, "checkout_timeout", "payment provider timed out, try again"
	case errors.Is(err, domain.ErrCheckoutFailed):
		return http.StatusBadGateway, "checkout_failed", "payment provider is unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal server error"
	}
}
