package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/internal/stripe"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Пространство имен для детерминированных ключей идемпотентности
var idempotencyNamespace = uuid.MustParse("6f1f3c1e-8f6e-4b8a-9d43-2b1c7f0e5a10")

// CheckoutConfig параметры оформления покупки
type CheckoutConfig struct {
	PublicURL         string
	Timeout           time.Duration
	PendingTTL        time.Duration
	IdempotencyWindow time.Duration
	// DefaultCurrency подставляется, если у трансляции не указана валюта
	DefaultCurrency string
}

const (
	defaultCheckoutTimeout = 10 * time.Second
	defaultPendingTTL      = 30 * time.Minute
)

// CheckoutService создает сессии оплаты. Права доступа здесь никогда не записываются.
type CheckoutService struct {
	cfg          CheckoutConfig
	streams      repository.StreamRepository
	entitlements repository.EntitlementRepository
	pending      repository.PendingCheckoutStore
	processor    stripe.Client
	retryable    func(error) bool
	events       *EventPublisher
	metrics      metrics.AccessMetrics
	log          *logger.Logger
	now          func() time.Time
}

// NewCheckoutService конструктор сервиса
func NewCheckoutService(
	cfg CheckoutConfig,
	streams repository.StreamRepository,
	entitlements repository.EntitlementRepository,
	pending repository.PendingCheckoutStore,
	processor stripe.Client,
	events *EventPublisher,
	m metrics.AccessMetrics,
	log *logger.Logger,
) *CheckoutService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCheckoutTimeout
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	cfg.DefaultCurrency = strings.ToLower(cfg.DefaultCurrency)
	return &CheckoutService{
		cfg:          cfg,
		streams:      streams,
		entitlements: entitlements,
		pending:      pending,
		processor:    processor,
		retryable:    stripe.IsRetryableError,
		events:       events,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// CreateCheckout начинает покупку трансляции.
// Если доступ уже есть, возвращает ссылку на трансляцию с AlreadyEntitled=true и ErrAlreadyEntitled.
func (s *CheckoutService) CreateCheckout(ctx context.Context, streamID string, requester domain.Requester) (domain.CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.CreateCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("stream.id", streamID))

	if !requester.IsAuthenticated() {
		return domain.CheckoutResult{}, domain.ErrUnauthenticated
	}

	stream, err := loadStream(ctx, s.streams, streamID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if !stream.IsPaid {
		return domain.CheckoutResult{}, fmt.Errorf("%w: stream %s is free", domain.ErrStreamNotForSale, streamID)
	}

	entitled, err := s.isEntitled(ctx, stream, requester.UserID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if entitled {
		s.incCheckout(metrics.OutcomeAlreadyEntitled)
		s.log.Infow("Checkout skipped, user already has access", "userID", requester.UserID, "streamID", streamID)
		return domain.CheckoutResult{
			RedirectURL:     s.streamPageURL(streamID),
			AlreadyEntitled: true,
		}, domain.ErrAlreadyEntitled
	}

	price := stream.CurrentPrice()
	if !price.IsPositive() {
		return domain.CheckoutResult{}, fmt.Errorf("%w: stream %s has no price", domain.ErrStreamNotForSale, streamID)
	}
	if price.Currency == "" {
		price.Currency = s.cfg.DefaultCurrency
	}
	if existing := s.openCheckout(ctx, requester.UserID, streamID, price); existing != nil {
		s.incCheckout(metrics.OutcomeReused)
		s.log.Infow("Returning open checkout session", "userID", requester.UserID, "streamID", streamID, "sessionID", existing.SessionID)
		return domain.CheckoutResult{RedirectURL: existing.URL, SessionID: existing.SessionID}, nil
	}

	req := domain.CheckoutRequest{
		UserID:      requester.UserID,
		StreamID:    streamID,
		StreamTitle: stream.Title,
		Price:       price,
		SuccessURL:  s.successURL(streamID),
		CancelURL:   s.streamPageURL(streamID),
	}
	req.IdempotencyKey = s.idempotencyKey(req)

	session, err := s.createSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		return domain.CheckoutResult{}, err
	}

	pending := repository.PendingCheckout{
		SessionID: session.ID,
		URL:       session.URL,
		Amount:    price.Amount,
		Currency:  price.Currency,
		CreatedAt: s.now().UTC(),
	}
	stored, err := s.pending.SavePendingCheckout(ctx, requester.UserID, streamID, pending, s.cfg.PendingTTL)
	if err != nil {
		s.log.Warnw("Failed to remember pending checkout", "error", err, "userID", requester.UserID, "streamID", streamID)
	} else if !stored {
		// Параллельный клик успел сохранить свою сессию: отдаем ее, чтобы у пользователя была одна
		if existing := s.openCheckout(ctx, requester.UserID, streamID, price); existing != nil {
			session = &domain.CheckoutSession{ID: existing.SessionID, URL: existing.URL}
		}
	}

	s.incCheckout(metrics.OutcomeCreated)
	s.events.PublishAsync(ctx, newEvent(domain.EventTypeCheckoutCreated, req.UserID, streamID, session.ID, req.Price, s.now()))

	s.log.Infow("Checkout session created", "userID", req.UserID, "streamID", streamID, "sessionID", session.ID, "price", req.Price.String())
	return domain.CheckoutResult{RedirectURL: session.URL, SessionID: session.ID}, nil
}

func (s *CheckoutService) isEntitled(ctx context.Context, stream *domain.Stream, userID string) (bool, error) {
	if stream.IsOwnedBy(userID) {
		return true, nil
	}
	_, err := s.entitlements.Get(ctx, userID, stream.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check entitlement: %w", err)
	}
}

// openCheckout возвращает незавершенную сессию по текущей цене. Сессия по старой цене не переиспользуется.
func (s *CheckoutService) openCheckout(ctx context.Context, userID, streamID string, price domain.Money) *repository.PendingCheckout {
	pending, err := s.pending.GetPendingCheckout(ctx, userID, streamID)
	if err != nil {
		s.log.Warnw("Failed to read pending checkout", "error", err, "userID", userID, "streamID", streamID)
		return nil
	}
	if pending == nil || pending.URL == "" {
		return nil
	}
	if pending.Amount != price.Amount || pending.Currency != price.Currency {
		if err := s.pending.DeletePendingCheckout(ctx, userID, streamID); err != nil {
			s.log.Warnw("Failed to drop stale pending checkout", "error", err, "userID", userID, "streamID", streamID)
		}
		return nil
	}
	return pending
}

// createSession вызывает провайдера с таймаутом и повторами
func (s *CheckoutService) createSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := s.now()
	var session *domain.CheckoutSession
	err := retryProcessorCall(callCtx, "create_checkout_session", func() error {
		var callErr error
		session, callErr = s.processor.CreateCheckoutSession(callCtx, req)
		return callErr
	}, s.retryable, s.log)

	status := "ok"
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveProcessorCall("create_checkout_session", status, s.now().Sub(start))
		}
	}()

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		status = "timeout"
		s.incCheckout(metrics.OutcomeTimeout)
		s.log.Warnw("Checkout session creation timed out", "userID", req.UserID, "streamID", req.StreamID, "timeout", s.cfg.Timeout)
		return nil, fmt.Errorf("%w after %s", domain.ErrCheckoutTimeout, s.cfg.Timeout)
	default:
		status = "error"
		s.incCheckout(metrics.OutcomeFailed)
		s.log.Errorw("Failed to create checkout session", "error", err, "userID", req.UserID, "streamID", req.StreamID)
		return nil, fmt.Errorf("%w: %v", domain.ErrCheckoutFailed, err)
	}
}

// idempotencyKey одинаков для повторных запросов той же покупки по той же цене в пределах окна.
// После смены цены или окна провайдер получит новый ключ и создаст новую сессию.
func (s *CheckoutService) idempotencyKey(req domain.CheckoutRequest) string {
	window := s.cfg.IdempotencyWindow
	if window <= 0 {
		window = 30 * time.Minute
	}
	bucket := s.now().UTC().Truncate(window).Unix()
	name := strings.Join([]string{
		req.UserID,
		req.StreamID,
		strconv.FormatInt(req.Price.Amount, 10),
		req.Price.Currency,
		strconv.FormatInt(bucket, 10),
	}, "|")
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

func (s *CheckoutService) streamPageURL(streamID string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/streams/" + url.PathEscape(streamID)
}

// successURL содержит шаблон {CHECKOUT_SESSION_ID}, который провайдер заменяет ID сессии
func (s *CheckoutService) successURL(streamID string) string {
	return s.streamPageURL(streamID) + "?" + ReturnParamAccess + "=" + returnAccessGranted +
		"&" + ReturnParamSessionID + "={CHECKOUT_SESSION_ID}"
}

func (s *CheckoutService) incCheckout(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheckout(outcome)
	}
}
