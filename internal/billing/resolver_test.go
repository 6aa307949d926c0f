package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/internal/metrics"
	"github.com/Dhoini/stream-access-service/internal/models"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSubscriptions struct {
	subs  map[string][]models.Subscription
	err   error
	calls int
}

func (f *fakeSubscriptions) GetByUserID(ctx context.Context, userID string) ([]models.Subscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[userID], nil
}

func newResolver(t *testing.T, subs *fakeSubscriptions) (*SubscriptionResolver, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	m := metrics.NewAccessMetrics(registry, logger.NewNop())
	return NewSubscriptionResolver(subs, m, logger.FromZap(zaptest.NewLogger(t))), registry
}

func TestSubscriptionResolver_GetTier(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	subs := &fakeSubscriptions{subs: map[string][]models.Subscription{
		"paid":    {{UserID: "paid", Status: "active"}},
		"expired": {{UserID: "expired", Status: "active", ExpiresAt: &expired}},
		"mixed":   {{Status: "canceled"}, {Status: "trialing"}},
	}}
	resolver, _ := newResolver(t, subs)
	ctx := context.Background()

	assert.Equal(t, domain.TierPaid, resolver.GetTier(ctx, "paid"))
	assert.Equal(t, domain.TierPaid, resolver.GetTier(ctx, "mixed"))
	assert.Equal(t, domain.TierNone, resolver.GetTier(ctx, "expired"))
	assert.Equal(t, domain.TierNone, resolver.GetTier(ctx, "unknown"))
}

func TestSubscriptionResolver_AnonymousSkipsLookup(t *testing.T) {
	subs := &fakeSubscriptions{}
	resolver, _ := newResolver(t, subs)

	assert.Equal(t, domain.TierNone, resolver.GetTier(context.Background(), ""))
	assert.Equal(t, 0, subs.calls)
}

func TestSubscriptionResolver_FailureDegradesToNone(t *testing.T) {
	subs := &fakeSubscriptions{err: errors.New("connection refused")}
	resolver, registry := newResolver(t, subs)

	assert.Equal(t, domain.TierNone, resolver.GetTier(context.Background(), "u1"))

	expected := `
# HELP stream_tier_lookup_degraded_total Tier lookups that failed and fell back to the none tier
# TYPE stream_tier_lookup_degraded_total counter
stream_tier_lookup_degraded_total 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "stream_tier_lookup_degraded_total"))
}

func TestSubscriptionResolver_CallerCancellationIsNotDegradation(t *testing.T) {
	subs := &fakeSubscriptions{err: context.Canceled}
	resolver, registry := newResolver(t, subs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, domain.TierNone, resolver.GetTier(ctx, "u1"))

	expected := `
# HELP stream_tier_lookup_degraded_total Tier lookups that failed and fell back to the none tier
# TYPE stream_tier_lookup_degraded_total counter
stream_tier_lookup_degraded_total 0
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "stream_tier_lookup_degraded_total"))
}
