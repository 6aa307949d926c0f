package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/middleware"
	"github.com/Dhoini/stream-access-service/internal/services"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/Dhoini/stream-access-service/pkg/req"
	"github.com/Dhoini/stream-access-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// CheckoutCreator начинает покупку трансляции.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, streamID string, requester domain.Requester) (domain.CheckoutResult, error)
}

// PaymentConfirmer подтверждает оплату и выдает доступ.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, input domain.ConfirmationInput, requester domain.Requester) (*domain.Entitlement, error)
	HandleCheckoutSession(ctx context.Context, session *domain.CheckoutSession) (*domain.Entitlement, error)
}

// CheckoutHandler обрабатывает покупку и возврат со страницы оплаты
type CheckoutHandler struct {
	checkout CheckoutCreator
	confirm  PaymentConfirmer
	log      *logger.Logger
}

func NewCheckoutHandler(checkout CheckoutCreator, confirm PaymentConfirmer, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, confirm: confirm, log: log}
}

// CreateCheckout POST /streams/:stream_id/checkout
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	uri, err := req.BindURI[streamURI](c)
	if err != nil {
		writeError(c.Writer, domain.ErrInvalidInput, h.log)
		return
	}

	result, err := h.checkout.CreateCheckout(c.Request.Context(), uri.StreamID, middleware.RequesterFromContext(c))
	if errors.Is(err, domain.ErrAlreadyEntitled) {
		res.JsonResponse(c.Writer, result, http.StatusOK)
		return
	}
	if err != nil {
		writeError(c.Writer, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, result, http.StatusCreated)
}

// ConfirmAccess GET /streams/:stream_id/access/confirm
// Без маркера успешной оплаты в query подтверждать нечего: 204 даже без токена.
// Подтверждение по маркеру требует аутентификации.
func (h *CheckoutHandler) ConfirmAccess(c *gin.Context) {
	uri, err := req.BindURI[streamURI](c)
	if err != nil {
		writeError(c.Writer, domain.ErrInvalidInput, h.log)
		return
	}

	input, ok := services.ParseReturnParams(c.Request.URL.Query(), uri.StreamID)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	requester := middleware.RequesterFromContext(c)
	if !requester.IsAuthenticated() {
		writeError(c.Writer, domain.ErrUnauthenticated, h.log)
		return
	}

	ent, err := h.confirm.ConfirmPayment(c.Request.Context(), input, requester)
	if err != nil {
		writeError(c.Writer, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, ent, http.StatusOK)
}
