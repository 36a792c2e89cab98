package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/minidex/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublisher_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	pub, err := NewPublisher(client, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []*models.PoolEvent
	)
	done := make(chan error, 1)
	go func() {
		done <- pub.Subscribe(ctx, PoolChannel("pool-1"), func(ev *models.PoolEvent) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		})
	}()

	ev := models.NewPoolEvent(models.EventSwap)
	ev.Pool = "pool-1"
	ev.AmountIn = 100
	ev.AmountOut = 90

	// Publish until the subscriber is attached and has seen one event.
	assert.Eventually(t, func() bool {
		if err := pub.Publish(context.Background(), ev); err != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	first := got[0]
	mu.Unlock()
	assert.Equal(t, ev.ID, first.ID)
	assert.Equal(t, models.EventSwap, first.Kind)
	assert.Equal(t, uint64(90), first.AmountOut)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestNewPublisher_NilClient(t *testing.T) {
	_, err := NewPublisher(nil, nil)
	assert.Error(t, err)
}

func TestClickHouseSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink, err := NewClickHouseSink(ctx, ClickHouseConfig{Addr: "localhost:9000", Database: "default", Username: "default"})
	if err != nil {
		t.Skipf("ClickHouse not available: %v", err)
	}
	defer sink.Close()

	require.NoError(t, sink.EnsureSchema(ctx))

	ev := models.NewPoolEvent(models.EventLiquidityAdded)
	ev.Pool = "pool-1"
	ev.AmountA, ev.AmountB, ev.Shares = 4, 9, 6
	require.NoError(t, sink.Publish(ctx, ev))
}

func TestSinkFunc(t *testing.T) {
	var seen *models.PoolEvent
	s := SinkFunc(func(_ context.Context, ev *models.PoolEvent) error {
		seen = ev
		return nil
	})
	ev := models.NewPoolEvent(models.EventPoolCreated)
	require.NoError(t, s.Publish(context.Background(), ev))
	assert.Same(t, ev, seen)
	assert.NotEmpty(t, ev.ID)
}
