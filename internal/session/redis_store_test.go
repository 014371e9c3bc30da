package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_CreateGet(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess := Session{
		SessionID: "sid-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(TTL),
		LinkingInProgress: &LinkingInProgress{
			PrimaryUserID:   "auth0|A",
			SecondaryUserID: "google-oauth2|B",
			Email:           "a@x.com",
			Token:           "tok",
		},
	}

	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.LinkingInProgress)
	assert.Equal(t, "auth0|A", got.LinkingInProgress.PrimaryUserID)
	assert.Equal(t, "tok", got.LinkingInProgress.Token)
	assert.Nil(t, got.VerifiedLink)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestRedisStore(t)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_ExpiryEvicts(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	sess := Session{
		SessionID: "sid-exp",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, store.Create(ctx, sess))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "sid-exp")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CreateRejectsPastExpiry(t *testing.T) {
	store, _ := newTestRedisStore(t)

	err := store.Create(context.Background(), Session{
		SessionID: "sid-past",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	assert.Error(t, err)
}

func TestRedisStore_UpdateThenDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess := Session{SessionID: "sid-2", ExpiresAt: time.Now().Add(TTL)}
	require.NoError(t, store.Create(ctx, sess))

	sess.VerifiedLink = &VerifiedLink{
		PrimaryUserID:   "auth0|A",
		SecondaryUserID: "google-oauth2|B",
		Email:           "a@x.com",
		AccessToken:     "at",
	}
	require.NoError(t, store.Update(ctx, sess))

	got, err := store.Get(ctx, "sid-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.VerifiedLink)
	assert.Equal(t, "at", got.VerifiedLink.AccessToken)

	require.NoError(t, store.Delete(ctx, "sid-2"))
	got, err = store.Get(ctx, "sid-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_ConsumeOnce(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	first, err := store.ConsumeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.ConsumeOnce(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "replayed jti must be rejected")

	other, err := store.ConsumeOnce(ctx, "jti-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}
