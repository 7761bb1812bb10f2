package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenEmpty(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := New(Config{RequestsPerSecond: 1, Burst: 2})
	l.now = func() time.Time { return now }
	l.last = now

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "bucket should be empty")

	now = now.Add(time.Second)
	assert.True(t, l.Allow(), "one token refilled after a second")
}

func TestLimiter_Cooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := New(Config{RequestsPerSecond: 100, Burst: 1, Cooldown: time.Second})
	l.now = func() time.Time { return now }
	l.last = now

	require.True(t, l.Allow())
	require.False(t, l.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.False(t, l.Allow(), "still cooling down despite refill")

	now = now.Add(600 * time.Millisecond)
	assert.True(t, l.Allow())
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{})
	assert.True(t, l.Disabled())
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1, Cooldown: time.Hour})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_PerKeyLimiters(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	assert.Same(t, m.GetLimiter("create"), m.GetLimiter("create"))
	assert.NotSame(t, m.GetLimiter("create"), m.GetLimiter("result"))

	require.NoError(t, m.Wait(context.Background(), "create"))
	require.NoError(t, m.Wait(context.Background(), "result"), "keys do not share a bucket")
}
