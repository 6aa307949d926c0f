package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/internal/stripe"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
)

// Источники подтверждения для метрик и логов
const (
	SourceReturn  = "return"
	SourceWebhook = "webhook"
)

// ConfirmationService подтверждает оплату и выдает право доступа.
// Состояния покупки: INITIATED -> VERIFIED -> GRANTED, либо FAILED для истекшей сессии.
type ConfirmationService struct {
	entitlements repository.EntitlementRepository
	pending      repository.PendingCheckoutStore
	processor    stripe.Client
	retryable    func(error) bool
	timeout      time.Duration
	events       *EventPublisher
	metrics      metrics.AccessMetrics
	log          *logger.Logger
	now          func() time.Time
}

// NewConfirmationService конструктор сервиса
func NewConfirmationService(
	entitlements repository.EntitlementRepository,
	pending repository.PendingCheckoutStore,
	processor stripe.Client,
	timeout time.Duration,
	events *EventPublisher,
	m metrics.AccessMetrics,
	log *logger.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		entitlements: entitlements,
		pending:      pending,
		processor:    processor,
		retryable:    stripe.IsRetryableError,
		timeout:      timeout,
		events:       events,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// ConfirmPayment проверяет сессию у провайдера и выдает право доступа.
// Повторный вызов с той же сессией возвращает ту же запись без изменений.
// Если requester аутентифицирован, сессия должна принадлежать ему.
func (s *ConfirmationService) ConfirmPayment(ctx context.Context, input domain.ConfirmationInput, requester domain.Requester) (*domain.Entitlement, error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.ConfirmPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("stream.id", input.StreamID),
		attribute.String("checkout.session_id", input.SessionID),
	)

	if input.SessionID == "" || input.StreamID == "" {
		return nil, fmt.Errorf("%w: session id and stream id are required", domain.ErrInvalidInput)
	}

	session, err := s.fetchSession(ctx, input.SessionID)
	if err != nil {
		s.incConfirmation(SourceReturn, metrics.OutcomeFailed)
		span.RecordError(err)
		return nil, err
	}

	ent, err := s.grantFromSession(ctx, session, input.StreamID, requester, SourceReturn)
	if err != nil {
		span.RecordError(err)
	}
	return ent, err
}

// HandleCheckoutSession выдает доступ по сессии из подписанного вебхука.
// Неоплаченная сессия (асинхронный способ оплаты) не ошибка: доступ выдаст следующее событие.
func (s *ConfirmationService) HandleCheckoutSession(ctx context.Context, session *domain.CheckoutSession) (*domain.Entitlement, error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.HandleCheckoutSession")
	defer span.End()

	if session == nil {
		return nil, fmt.Errorf("%w: empty checkout session", domain.ErrInvalidInput)
	}
	span.SetAttributes(attribute.String("checkout.session_id", session.ID))

	if !session.IsPaid() {
		s.incConfirmation(SourceWebhook, metrics.OutcomePending)
		s.log.Infow("Webhook session is not paid yet, waiting for async payment",
			"sessionID", session.ID,
			"status", session.Status,
			"paymentStatus", session.PaymentStatus,
		)
		return nil, nil
	}

	streamID := session.Metadata[domain.MetadataStreamID]
	return s.grantFromSession(ctx, session, streamID, domain.Anonymous(), SourceWebhook)
}

func (s *ConfirmationService) fetchSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	var session *domain.CheckoutSession
	err := retryProcessorCall(callCtx, "get_checkout_session", func() error {
		var callErr error
		session, callErr = s.processor.GetCheckoutSession(callCtx, sessionID)
		return callErr
	}, s.retryable, s.log)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.ObserveProcessorCall("get_checkout_session", status, s.now().Sub(start))
	}

	if err != nil {
		reason := "session lookup failed"
		if stripe.IsNotFound(err) {
			reason = "session not found"
		}
		s.log.Warnw("Failed to verify checkout session", "error", err, "sessionID", sessionID, "reason", reason)
		return nil, domain.NewVerificationError(sessionID, reason, err)
	}
	return session, nil
}

// grantFromSession общий путь для возврата со страницы оплаты и вебхука.
// Ни одна проверка, кроме последней записи, не изменяет состояние.
func (s *ConfirmationService) grantFromSession(
	ctx context.Context,
	session *domain.CheckoutSession,
	streamID string,
	requester domain.Requester,
	source string,
) (*domain.Entitlement, error) {
	if !session.IsPaid() {
		s.incConfirmation(source, metrics.OutcomePending)
		return nil, &domain.PaymentNotCompleteError{
			SessionID:     session.ID,
			Status:        session.Status,
			PaymentStatus: session.PaymentStatus,
			Terminal:      session.Status == domain.SessionStatusExpired,
		}
	}

	userID := strings.TrimSpace(session.Metadata[domain.MetadataUserID])
	sessionStreamID := strings.TrimSpace(session.Metadata[domain.MetadataStreamID])
	if userID == "" || sessionStreamID == "" {
		s.incConfirmation(source, metrics.OutcomeFailed)
		return nil, domain.NewVerificationError(session.ID, "session metadata is missing user or stream", nil)
	}

	if sessionStreamID != streamID {
		s.incConfirmation(source, metrics.OutcomeMismatch)
		s.log.Warnw("Checkout session belongs to another stream",
			"sessionID", session.ID,
			"sessionStreamID", sessionStreamID,
			"streamID", streamID,
		)
		return nil, fmt.Errorf("%w: session %s", domain.ErrSessionStreamMismatch, session.ID)
	}

	if requester.IsAuthenticated() && requester.UserID != userID {
		s.incConfirmation(source, metrics.OutcomeMismatch)
		s.log.Warnw("Checkout session belongs to another user",
			"sessionID", session.ID,
			"requesterID", requester.UserID,
		)
		return nil, fmt.Errorf("%w: session %s", domain.ErrSessionUserMismatch, session.ID)
	}

	amountPaid, err := amountFromSession(session)
	if err != nil {
		s.incConfirmation(source, metrics.OutcomeFailed)
		return nil, domain.NewVerificationError(session.ID, "invalid amount in session", err)
	}

	stored, created, err := s.entitlements.Grant(ctx, domain.Entitlement{
		UserID:           userID,
		StreamID:         streamID,
		AmountPaid:       amountPaid,
		GrantedAt:        s.now().UTC(),
		PaymentSessionID: session.ID,
	})
	if err != nil {
		s.incConfirmation(source, metrics.OutcomeFailed)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.NewVerificationError(session.ID, "payment session already used", err)
		}
		s.log.Errorw("Failed to store entitlement", "error", err, "sessionID", session.ID, "userID", userID, "streamID", streamID)
		return nil, fmt.Errorf("failed to store entitlement: %w", err)
	}

	if !created {
		s.incConfirmation(source, metrics.OutcomeExisting)
		s.log.Debugw("Entitlement already granted", "sessionID", session.ID, "userID", userID, "streamID", streamID)
		return stored, nil
	}

	s.incConfirmation(source, metrics.OutcomeGranted)
	if err := s.pending.DeletePendingCheckout(ctx, userID, streamID); err != nil {
		s.log.Warnw("Failed to clear pending checkout", "error", err, "userID", userID, "streamID", streamID)
	}
	s.events.PublishAsync(ctx, newEvent(domain.EventTypeEntitlementGranted, userID, streamID, session.ID, stored.AmountPaid, stored.GrantedAt))

	s.log.Infow("Entitlement granted",
		"source", source,
		"sessionID", session.ID,
		"userID", userID,
		"streamID", streamID,
		"amountPaid", stored.AmountPaid.String(),
	)
	return stored, nil
}

// amountFromSession берет цену из метаданных покупки и сверяет ее с фактически списанной суммой
func amountFromSession(session *domain.CheckoutSession) (domain.Money, error) {
	amount, err := domain.ParseMinorUnits(session.Metadata[domain.MetadataAmountPaid])
	if err != nil {
		return domain.Money{}, err
	}
	currency := session.Metadata[domain.MetadataCurrency]
	if currency == "" {
		currency = session.Currency
	}
	if session.AmountTotal != 0 && session.AmountTotal != amount {
		return domain.Money{}, fmt.Errorf("charged %d differs from price %d", session.AmountTotal, amount)
	}
	return domain.NewMoney(amount, currency), nil
}

func (s *ConfirmationService) incConfirmation(source, outcome string) {
	if s.metrics != nil {
		s.metrics.IncConfirmation(source, outcome)
	}
}
