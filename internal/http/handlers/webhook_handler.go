package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/stripe"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/Dhoini/stream-access-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// Stripe рекомендует ограничивать тело вебхука ~65kb
const maxRequestBodySize = int64(65536)

// WebhookHandler принимает вебхуки Stripe о завершенных оплатах.
type WebhookHandler struct {
	confirm       PaymentConfirmer
	log           *logger.Logger
	webhookSecret string
}

// NewWebhookHandler создает обработчик. Без секрета проверить подпись нельзя.
func NewWebhookHandler(webhookSecret string, confirm PaymentConfirmer, log *logger.Logger) (*WebhookHandler, error) {
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	return &WebhookHandler{
		confirm:       confirm,
		log:           log,
		webhookSecret: webhookSecret,
	}, nil
}

// HandleStripeWebhook POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read webhook request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "cannot read request body"}, http.StatusBadRequest)
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		h.log.Warnw("Missing Stripe-Signature header")
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "missing Stripe-Signature header"}, http.StatusBadRequest)
		return
	}

	event, err := stripe.ConstructWebhookEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		h.log.Warnw("Webhook signature verification failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "webhook signature verification failed"}, http.StatusBadRequest)
		return
	}

	log := h.log.With("eventID", event.ID, "eventType", event.Type)
	if event.Session == nil {
		log.Debugw("Ignoring webhook event")
		c.Status(http.StatusOK)
		return
	}

	_, err = h.confirm.HandleCheckoutSession(c.Request.Context(), event.Session)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, domain.ErrPaymentVerification),
		errors.Is(err, domain.ErrSessionStreamMismatch),
		errors.Is(err, domain.ErrInvalidInput):
		// Повтор доставки того же события ничего не изменит
		log.Warnw("Webhook session rejected", "error", err, "sessionID", event.Session.ID)
		c.Status(http.StatusOK)
	default:
		// 5xx заставит Stripe повторить доставку
		log.Errorw("Failed to handle webhook session", "error", err, "sessionID", event.Session.ID)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "failed to process event"}, http.StatusInternalServerError)
	}
}
