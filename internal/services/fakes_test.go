package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/repository"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	stripego "github.com/stripe/stripe-go/v78"
	"go.uber.org/zap/zaptest"
)

// fakeProcessor имитирует Checkout Sessions: один ключ идемпотентности дает одну сессию.
type fakeProcessor struct {
	mu          sync.Mutex
	sessions    map[string]*domain.CheckoutSession
	byKey       map[string]string
	requests    []domain.CheckoutRequest
	createCalls int
	getCalls    int
	createErrs  []error
	getErr      error
	createDelay time.Duration
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		sessions: make(map[string]*domain.CheckoutSession),
		byKey:    make(map[string]string),
	}
}

func (p *fakeProcessor) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	p.createCalls++
	p.requests = append(p.requests, req)
	if len(p.createErrs) > 0 {
		err := p.createErrs[0]
		p.createErrs = p.createErrs[1:]
		p.mu.Unlock()
		return nil, err
	}
	delay := p.createDelay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		copied := *p.sessions[id]
		return &copied, nil
	}

	id := fmt.Sprintf("cs_test_%d", len(p.sessions)+1)
	session := &domain.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/c/pay/" + id,
		Status:        domain.SessionStatusOpen,
		PaymentStatus: domain.PaymentStatusUnpaid,
		AmountTotal:   req.Price.Amount,
		Currency:      req.Price.Currency,
		Metadata:      req.Metadata(),
	}
	p.sessions[id] = session
	p.byKey[req.IdempotencyKey] = id

	copied := *session
	return &copied, nil
}

func (p *fakeProcessor) GetCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++

	if p.getErr != nil {
		return nil, p.getErr
	}
	session, ok := p.sessions[sessionID]
	if !ok {
		return nil, &stripego.Error{
			Code:           stripego.ErrorCodeResourceMissing,
			HTTPStatusCode: http.StatusNotFound,
			Msg:            "No such checkout.session: " + sessionID,
		}
	}
	copied := *session
	copied.Metadata = make(map[string]string, len(session.Metadata))
	for k, v := range session.Metadata {
		copied.Metadata[k] = v
	}
	return &copied, nil
}

// put добавляет сессию напрямую, минуя CreateCheckoutSession
func (p *fakeProcessor) put(session *domain.CheckoutSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[session.ID] = session
}

// complete помечает сессию оплаченной, как это делает Stripe после успешного платежа
func (p *fakeProcessor) complete(sessionID string) {
	p.setStatus(sessionID, domain.SessionStatusComplete, domain.PaymentStatusPaid)
}

func (p *fakeProcessor) setStatus(sessionID string, status domain.SessionStatus, paymentStatus domain.PaymentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID].Status = status
	p.sessions[sessionID].PaymentStatus = paymentStatus
}

func (p *fakeProcessor) creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

type fakeTiers struct {
	mu    sync.Mutex
	tiers map[string]domain.Tier
}

func (f *fakeTiers) GetTier(ctx context.Context, userID string) domain.Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tier, ok := f.tiers[userID]; ok {
		return tier
	}
	return domain.TierNone
}

type fakeProducer struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (f *fakeProducer) PublishEvent(ctx context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

// failingEntitlements возвращает ошибку хранилища на чтение
type failingEntitlements struct {
	repository.EntitlementRepository
	err error
}

func (f failingEntitlements) Get(ctx context.Context, userID, streamID string) (*domain.Entitlement, error) {
	return nil, f.err
}

const (
	streamPaid  = "stream-a"
	streamFree  = "stream-free"
	ownerID     = "creator-1"
	viewerID    = "viewer-u"
	publicURL   = "https://streams.example.com"
	priceAmount = int64(999)
)

type testEnv struct {
	streams      *repository.InMemoryStreamRepository
	entitlements *repository.InMemoryEntitlementRepository
	pending      *repository.InMemoryPendingCheckoutStore
	processor    *fakeProcessor
	tiers        *fakeTiers
	producer     *fakeProducer
	events       *EventPublisher
	access       *AccessService
	checkout     *CheckoutService
	confirm      *ConfirmationService
}

func newTestEnv(t *testing.T, policy TierPolicy) *testEnv {
	t.Helper()

	log := logger.FromZap(zaptest.NewLogger(t))
	m := metrics.NewAccessMetrics(prometheus.NewRegistry(), log)

	preview := "https://cdn.example.com/previews/stream-a.mp4"
	env := &testEnv{
		streams: repository.NewInMemoryStreamRepository(
			domain.Stream{
				ID:         streamPaid,
				OwnerID:    ownerID,
				Title:      "Friday concert",
				IsLive:     true,
				IsPaid:     true,
				Price:      domain.NewMoney(priceAmount, "usd"),
				PreviewURL: &preview,
			},
			domain.Stream{ID: streamFree, OwnerID: ownerID, IsLive: true},
		),
		entitlements: repository.NewInMemoryEntitlementRepository(),
		pending:      repository.NewInMemoryPendingCheckoutStore(),
		processor:    newFakeProcessor(),
		tiers:        &fakeTiers{tiers: map[string]domain.Tier{}},
		producer:     &fakeProducer{},
	}
	env.events = NewEventPublisher(env.producer, m, log)

	env.access = NewAccessService(env.streams, env.entitlements, env.tiers, policy, m, log)
	env.checkout = NewCheckoutService(CheckoutConfig{
		PublicURL:         publicURL,
		Timeout:           2 * time.Second,
		PendingTTL:        30 * time.Minute,
		IdempotencyWindow: 30 * time.Minute,
	}, env.streams, env.entitlements, env.pending, env.processor, env.events, m, log)
	env.confirm = NewConfirmationService(env.entitlements, env.pending, env.processor, 2*time.Second, env.events, m, log)

	return env
}

// paidSession создает оплаченную сессию с указанными метаданными
func paidSession(id, userID, streamID string) *domain.CheckoutSession {
	return &domain.CheckoutSession{
		ID:            id,
		Status:        domain.SessionStatusComplete,
		PaymentStatus: domain.PaymentStatusPaid,
		AmountTotal:   priceAmount,
		Currency:      "usd",
		Metadata: map[string]string{
			domain.MetadataUserID:     userID,
			domain.MetadataStreamID:   streamID,
			domain.MetadataAmountPaid: "999",
			domain.MetadataCurrency:   "usd",
		},
	}
}

// returnURL подставляет ID сессии в success URL так же, как это делает провайдер
func returnURL(successURL, sessionID string) string {
	return strings.ReplaceAll(successURL, "{CHECKOUT_SESSION_ID}", sessionID)
}
