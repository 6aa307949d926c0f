package stripe

import (
	"context"
	"errors"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Client определяет методы для работы с Checkout Sessions Stripe.
type Client interface {
	// CreateCheckoutSession создает сессию оплаты одной трансляции.
	// Метаданные запроса передаются в сессию без изменений и возвращаются при подтверждении.
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)

	// GetCheckoutSession получает актуальное состояние сессии по ID.
	GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

func newCheckoutSessionParams(ctx context.Context, req domain.CheckoutRequest) *stripe.CheckoutSessionParams {
	metadata := req.Metadata()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Price.Currency),
					UnitAmount: stripe.Int64(req.Price.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:     stripe.String(productName(req)),
						Metadata: map[string]string{domain.MetadataStreamID: req.StreamID},
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		// Метаданные дублируются в PaymentIntent, чтобы платеж был найден и из раздела Payments
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}
	return params
}

func productName(req domain.CheckoutRequest) string {
	if req.StreamTitle != "" {
		return req.StreamTitle
	}
	return "Stream " + req.StreamID
}

// CreateCheckoutSession создает Checkout Session в режиме разового платежа.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	session, err := sc.client.CheckoutSessions.New(newCheckoutSessionParams(ctx, req))
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, wrapStripeError("create checkout session", err)
	}

	sc.log.Infow("Stripe checkout session created",
		"sessionID", session.ID,
		"userID", req.UserID,
		"streamID", req.StreamID,
		"amount", req.Price.String(),
	)
	return toDomainSession(session), nil
}

// GetCheckoutSession получает сессию по ID.
func (sc *stripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}

	session, err := sc.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		logStripeError(sc.log, "GetCheckoutSession", err)
		return nil, wrapStripeError("get checkout session", err)
	}

	sc.log.Debugw("Stripe checkout session retrieved",
		"sessionID", session.ID,
		"status", string(session.Status),
		"paymentStatus", string(session.PaymentStatus),
	)
	return toDomainSession(session), nil
}

func toDomainSession(s *stripe.CheckoutSession) *domain.CheckoutSession {
	metadata := make(map[string]string, len(s.Metadata))
	for key, value := range s.Metadata {
		metadata[key] = value
	}
	return &domain.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        domain.SessionStatus(s.Status),
		PaymentStatus: domain.PaymentStatus(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      metadata,
	}
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
