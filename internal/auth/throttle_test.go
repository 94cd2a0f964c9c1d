package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questionbank/questionbank/internal/auth"
)

func TestThrottleWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	th := auth.NewThrottle(client, 2, time.Minute)
	ctx := context.Background()

	for _, name := range []string{"Alice", "alice"} {
		ok, err := th.Attempt(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := th.Attempt(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("qb:login:fail:alice"))

	require.NoError(t, th.Reset(ctx, "alice"))
	ok, _ = th.Attempt(ctx, "alice")
	assert.True(t, ok)
}

func TestThrottleWindowStartsAtFirstAttempt(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	th := auth.NewThrottle(client, 1, time.Minute)
	ctx := context.Background()

	ok, _ := th.Attempt(ctx, "bob")
	require.True(t, ok)
	mr.FastForward(40 * time.Second)
	ok, _ = th.Attempt(ctx, "bob")
	require.False(t, ok)
	mr.FastForward(21 * time.Second)
	ok, _ = th.Attempt(ctx, "bob")
	assert.True(t, ok)
}

func TestThrottleConcurrentAttemptsRespectBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	th := auth.NewThrottle(client, 3, time.Minute)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := th.Attempt(context.Background(), "carol")
			if err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), admitted.Load())
}

func TestThrottleDisabled(t *testing.T) {
	var th *auth.Throttle
	ok, err := th.Attempt(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, th.Reset(context.Background(), "alice"))

	ok, err = auth.NewThrottle(nil, 5, time.Minute).Attempt(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestThrottleReportsRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	th := auth.NewThrottle(client, 2, time.Minute)
	mr.Close()

	ok, err := th.Attempt(context.Background(), "alice")
	assert.Error(t, err)
	assert.True(t, ok, "outages fail open")
}
