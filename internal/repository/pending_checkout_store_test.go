package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPendingCheckoutStore(t *testing.T) {
	store := NewInMemoryPendingCheckoutStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := store.GetPendingCheckout(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := store.SavePendingCheckout(ctx, "u1", "s1", PendingCheckout{SessionID: "cs_1", URL: "https://pay/1"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = store.SavePendingCheckout(ctx, "u1", "s1", PendingCheckout{SessionID: "cs_2", URL: "https://pay/2"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored, "second save must not overwrite an open session")

	got, err = store.GetPendingCheckout(ctx, "u1", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cs_1", got.SessionID)

	now = now.Add(2 * time.Minute)
	got, err = store.GetPendingCheckout(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry must disappear")

	stored, err = store.SavePendingCheckout(ctx, "u1", "s1", PendingCheckout{SessionID: "cs_3"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, store.DeletePendingCheckout(ctx, "u1", "s1"))
	got, err = store.GetPendingCheckout(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
