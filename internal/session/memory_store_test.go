package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ExpiredTreatedAsMissing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Session{
		SessionID: "sid",
		ExpiresAt: time.Now().Add(-time.Second),
	}))

	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_ConsumeOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.ConsumeOnce(ctx, "jti", time.Minute)
	require.NoError(t, err)
	second, err := store.ConsumeOnce(ctx, "jti", time.Minute)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}
