package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/Dhoini/stream-access-service/internal/domain"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Типы событий, после которых можно выдавать доступ
const (
	EventCheckoutSessionCompleted           = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

// WebhookEvent проверенное событие Stripe.
// Session заполнена только для событий checkout-сессий, по которым выдается доступ.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *domain.CheckoutSession
}

// ConstructWebhookEvent проверяет подпись и разбирает событие.
// Версия API события может отличаться от версии SDK: используются только стабильные поля сессии.
func ConstructWebhookEvent(payload []byte, sigHeader, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: webhook signature verification failed: %w", err)
	}

	result := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch result.Type {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncPaymentSuccess:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse checkout session from event %s: %w", event.ID, err)
		}
		result.Session = toDomainSession(&session)
	}

	return result, nil
}
