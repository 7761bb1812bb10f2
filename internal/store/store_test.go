package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &RedisStore{redis: rdb, logger: zap.NewNop()}, mr
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "askprice:result:1m:abc123:0:1000000:300476", ResultKey("1m", "abc123", 0, 1_000_000, "300476"))
	assert.NotEqual(t, ResultKey("1m", "abc123", 0, 1_000_000, "300476"), ResultKey("1m", "abc123", 0, 2_000_000, "300476"))
	assert.NotEqual(t, ResultKey("1m", "abc123", 0, 1_000_000, "300476"), ResultKey("1m", "abc123", 1, 1_000_000, "300476"))
	assert.Equal(t, "askprice:run:r-1", RunKey("r-1"))
}

func TestSetAndGetJSON(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	val := []map[string]string{{"structure": "90c", "brokerName": "GF", "offer": "0.0725"}}
	require.NoError(t, store.SetJSON(ctx, "askprice:result:1m:fp:300476", val, time.Minute))

	var got []map[string]string
	found, err := store.GetJSON(ctx, "askprice:result:1m:fp:300476", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "0.0725", got[0]["offer"])
}

func TestGetJSON_Miss(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	var got []string
	found, err := store.GetJSON(context.Background(), "absent", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetJSON_Corrupt(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()
	require.NoError(t, mr.Set("bad", "not-json"))

	var got []string
	found, err := store.GetJSON(context.Background(), "bad", &got)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestSetJSON_TTL(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.SetJSON(context.Background(), "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	var got string
	found, err := store.GetJSON(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.False(t, found, "entry should have expired")
}

// --- HealthCheck Tests ---

func TestHealthCheck_Success(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.HealthCheck(context.Background()))
}

func TestHealthCheck_RedisNil(t *testing.T) {
	store := &RedisStore{}
	err := store.HealthCheck(context.Background())
	assert.ErrorContains(t, err, "redis not initialized")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.HealthCheck(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestNewRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedis(mr.Addr(), 0, "", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(addr, 0, "", nil)
	assert.Error(t, err)
}

// --- Close Tests ---

func TestClose_NilComponents(t *testing.T) {
	assert.NoError(t, (&RedisStore{}).Close())
}
