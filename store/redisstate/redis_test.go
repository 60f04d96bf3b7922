package redisstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tortipos/pos"
	"github.com/warp/tortipos/store/redisstate"
	"go.uber.org/zap"
)

func newStore(t *testing.T) (*redisstate.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstate.NewWithClient(client, redisstate.Options{LockTTL: time.Second})
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestLoad_MissingKey(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, pos.ErrNoSavedState)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	s := pos.Bootstrap()
	s, _, err := pos.RecordPayment(s, pos.PaymentCommand{
		ID: "pay-1", At: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), ClientID: "c3", Amount: pos.MustMoney("100.50"),
	})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, s))
	assert.True(t, mr.Exists(redisstate.DefaultKey))
	assert.False(t, mr.Exists("lock:"+redisstate.DefaultKey), "lock released after save")

	got, err := store.Load(ctx)
	require.NoError(t, err)
	c3, _ := got.Client("c3")
	assert.Equal(t, "350.00", c3.Balance.StringFixed(2))
	require.Len(t, got.Payments, 1)
}

func TestLoad_CorruptDocumentFallsBack(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	require.NoError(t, mr.Set(redisstate.DefaultKey, "{not json"))

	_, err := store.Load(ctx)
	var malformed *pos.MalformedStateError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "redis", malformed.Source)

	s, err := pos.LoadOrBootstrap(ctx, store, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, s.Products, 6)
}

func TestSave_FailsWhileLocked(t *testing.T) {
	store, mr := newStore(t)
	require.NoError(t, mr.Set("lock:"+redisstate.DefaultKey, "other-instance"))

	err := store.Save(context.Background(), pos.Bootstrap())

	assert.Error(t, err)
	assert.False(t, mr.Exists(redisstate.DefaultKey))
}

func TestLoad_ServerDownIsNotBootstrapped(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()

	s, err := pos.LoadOrBootstrap(context.Background(), store, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, s)
}
