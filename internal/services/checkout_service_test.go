package services

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"
	"go.uber.org/zap/zaptest"
)

func TestCheckoutService_CreatesSessionWithMetadata(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)

	result, err := env.checkout.CreateCheckout(context.Background(), streamPaid, domain.Requester{UserID: viewerID})
	require.NoError(t, err)
	assert.False(t, result.AlreadyEntitled)
	assert.Equal(t, "https://checkout.stripe.test/c/pay/cs_test_1", result.RedirectURL)

	require.Len(t, env.processor.requests, 1)
	req := env.processor.requests[0]
	assert.Equal(t, viewerID, req.Metadata()[domain.MetadataUserID])
	assert.Equal(t, streamPaid, req.Metadata()[domain.MetadataStreamID])
	assert.Equal(t, "999", req.Metadata()[domain.MetadataAmountPaid])
	assert.Equal(t, publicURL+"/streams/stream-a?access=granted&session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, publicURL+"/streams/stream-a", req.CancelURL)
	assert.NotEmpty(t, req.IdempotencyKey)

	assert.Zero(t, env.entitlements.Count(), "checkout never writes an entitlement")

	env.events.Wait()
	assert.Equal(t, []string{domain.EventTypeCheckoutCreated}, env.producer.types())
}

func TestCheckoutService_Preconditions(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	ctx := context.Background()

	_, err := env.checkout.CreateCheckout(ctx, streamPaid, domain.Anonymous())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = env.checkout.CreateCheckout(ctx, streamFree, domain.Requester{UserID: viewerID})
	assert.ErrorIs(t, err, domain.ErrStreamNotForSale)

	_, err = env.checkout.CreateCheckout(ctx, "missing", domain.Requester{UserID: viewerID})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Zero(t, env.processor.creates())
}

func TestCheckoutService_AlreadyEntitled(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	ctx := context.Background()

	_, _, err := env.entitlements.Grant(ctx, domain.Entitlement{
		UserID:           viewerID,
		StreamID:         streamPaid,
		AmountPaid:       domain.NewMoney(priceAmount, "usd"),
		PaymentSessionID: "cs_old",
	})
	require.NoError(t, err)

	result, err := env.checkout.CreateCheckout(ctx, streamPaid, domain.Requester{UserID: viewerID})
	assert.ErrorIs(t, err, domain.ErrAlreadyEntitled)
	assert.True(t, result.AlreadyEntitled)
	assert.Equal(t, publicURL+"/streams/stream-a", result.RedirectURL)
	assert.Zero(t, env.processor.creates(), "no new payment intent for an entitled user")
}

func TestCheckoutService_OwnerIsAlreadyEntitled(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)

	result, err := env.checkout.CreateCheckout(context.Background(), streamPaid, domain.Requester{UserID: ownerID})
	assert.ErrorIs(t, err, domain.ErrAlreadyEntitled)
	assert.True(t, result.AlreadyEntitled)
	assert.Zero(t, env.processor.creates())
}

func TestCheckoutService_DoubleClickReturnsSameSession(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	ctx := context.Background()
	requester := domain.Requester{UserID: viewerID}

	first, err := env.checkout.CreateCheckout(ctx, streamPaid, requester)
	require.NoError(t, err)
	second, err := env.checkout.CreateCheckout(ctx, streamPaid, requester)
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.RedirectURL, second.RedirectURL)
	assert.Equal(t, 1, env.processor.creates(), "second click is served from the pending checkout")
}

func TestCheckoutService_ConcurrentClicksShareOneSession(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.processor.createDelay = 20 * time.Millisecond
	requester := domain.Requester{UserID: viewerID}

	const clicks = 5
	results := make([]domain.CheckoutResult, clicks)
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.checkout.CreateCheckout(context.Background(), streamPaid, requester)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	// Вызовов к провайдеру может быть несколько, но ключ идемпотентности один, и сессия одна
	for _, result := range results {
		assert.Equal(t, results[0].SessionID, result.SessionID)
	}
	env.processor.mu.Lock()
	defer env.processor.mu.Unlock()
	assert.Len(t, env.processor.sessions, 1)
	for _, req := range env.processor.requests {
		assert.Equal(t, env.processor.requests[0].IdempotencyKey, req.IdempotencyKey)
	}
}

func TestCheckoutService_PriceChangeStartsNewSession(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	ctx := context.Background()
	requester := domain.Requester{UserID: viewerID}

	first, err := env.checkout.CreateCheckout(ctx, streamPaid, requester)
	require.NoError(t, err)

	stream, err := env.streams.GetByID(ctx, streamPaid)
	require.NoError(t, err)
	stream.Price = domain.NewMoney(1499, "usd")
	env.streams.Put(*stream)

	second, err := env.checkout.CreateCheckout(ctx, streamPaid, requester)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, int64(1499), env.processor.requests[1].Price.Amount)
}

func TestCheckoutService_IdempotencyKey(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	now := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	env.checkout.now = func() time.Time { return now }

	req := domain.CheckoutRequest{UserID: viewerID, StreamID: streamPaid, Price: domain.NewMoney(999, "usd")}
	key := env.checkout.idempotencyKey(req)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, key, env.checkout.idempotencyKey(req), "same window")

	other := req
	other.Price = domain.NewMoney(1999, "usd")
	assert.NotEqual(t, key, env.checkout.idempotencyKey(other), "price is part of the key")

	now = now.Add(time.Hour)
	assert.NotEqual(t, key, env.checkout.idempotencyKey(req), "next window")
}

func TestCheckoutService_Timeout(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.checkout.cfg.Timeout = 50 * time.Millisecond
	env.processor.createDelay = time.Second

	start := time.Now()
	_, err := env.checkout.CreateCheckout(context.Background(), streamPaid, domain.Requester{UserID: viewerID})

	assert.ErrorIs(t, err, domain.ErrCheckoutTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	pending, pErr := env.pending.GetPendingCheckout(context.Background(), viewerID, streamPaid)
	require.NoError(t, pErr)
	assert.Nil(t, pending)
}

func TestCheckoutService_RetriesTransientProcessorErrors(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.processor.createErrs = []error{&stripego.Error{HTTPStatusCode: http.StatusServiceUnavailable}}

	result, err := env.checkout.CreateCheckout(context.Background(), streamPaid, domain.Requester{UserID: viewerID})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RedirectURL)
	assert.Equal(t, 2, env.processor.creates())
}

func TestCheckoutService_PermanentProcessorError(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.processor.createErrs = []error{&stripego.Error{
		Type:           stripego.ErrorTypeInvalidRequest,
		HTTPStatusCode: http.StatusBadRequest,
		Msg:            "Invalid currency",
	}}

	_, err := env.checkout.CreateCheckout(context.Background(), streamPaid, domain.Requester{UserID: viewerID})
	assert.ErrorIs(t, err, domain.ErrCheckoutFailed)
	assert.Equal(t, 1, env.processor.creates())
}

func TestCheckoutService_EscapesStreamIDInURLs(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.streams.Put(domain.Stream{ID: "a b/c", OwnerID: ownerID, IsPaid: true, Price: domain.NewMoney(500, "usd")})

	_, err := env.checkout.CreateCheckout(context.Background(), "a b/c", domain.Requester{UserID: viewerID})
	require.NoError(t, err)

	cancelURL, err := url.Parse(env.processor.requests[0].CancelURL)
	require.NoError(t, err)
	assert.Equal(t, "/streams/a%20b%2Fc", cancelURL.EscapedPath())
}

func TestCheckoutService_PaidStreamWithoutPriceIsNotForSale(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.streams.Put(domain.Stream{ID: "stream-zero", OwnerID: ownerID, IsPaid: true, Price: domain.NewMoney(0, "usd")})

	_, err := env.checkout.CreateCheckout(context.Background(), "stream-zero", domain.Requester{UserID: viewerID})

	assert.ErrorIs(t, err, domain.ErrStreamNotForSale)
	assert.Zero(t, env.processor.creates())
}

func TestCheckoutService_FallsBackToDefaultCurrency(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.checkout.cfg.DefaultCurrency = "eur"
	env.streams.Put(domain.Stream{ID: "stream-nocur", OwnerID: ownerID, IsPaid: true, Price: domain.Money{Amount: 700}})

	_, err := env.checkout.CreateCheckout(context.Background(), "stream-nocur", domain.Requester{UserID: viewerID})
	require.NoError(t, err)

	require.Len(t, env.processor.requests, 1)
	assert.Equal(t, domain.NewMoney(700, "eur"), env.processor.requests[0].Price)

	pending, err := env.pending.GetPendingCheckout(context.Background(), viewerID, "stream-nocur")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "eur", pending.Currency)
}

func TestNewCheckoutService_DefaultsZeroDurations(t *testing.T) {
	svc := NewCheckoutService(CheckoutConfig{PublicURL: publicURL, DefaultCurrency: "USD"}, nil, nil, nil, nil, nil, nil, logger.FromZap(zaptest.NewLogger(t)))

	assert.Equal(t, defaultCheckoutTimeout, svc.cfg.Timeout)
	assert.Equal(t, defaultPendingTTL, svc.cfg.PendingTTL)
	assert.Equal(t, "usd", svc.cfg.DefaultCurrency)
}

func TestCheckoutService_ZeroTimeoutStillReachesProcessor(t *testing.T) {
	env := newTestEnv(t, PerStreamOnly)
	env.checkout = NewCheckoutService(CheckoutConfig{PublicURL: publicURL},
		env.streams, env.entitlements, env.pending, env.processor, env.events, nil, logger.FromZap(zaptest.NewLogger(t)))

	result, err := env.checkout.CreateCheckout(context.Background(), streamPaid, domain.Requester{UserID: viewerID})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, 1, env.processor.creates())
}
