package triage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T) *DashboardQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDashboardQueue(client)
}

func TestQueueOrdersByUrgencyThenRecency(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, q.Push(ctx, "gray-old", ColorGray, base))
	require.NoError(t, q.Push(ctx, "red-1", ColorRed, base.Add(time.Minute)))
	require.NoError(t, q.Push(ctx, "black-1", ColorBlack, base.Add(2*time.Minute)))
	require.NoError(t, q.Push(ctx, "red-2", ColorRed, base.Add(3*time.Minute)))

	ids, err := q.List(ctx, 10)
	require.NoError(t, err)
	// Red before black before gray; within red, the newer message first.
	assert.Equal(t, []string{"red-2", "red-1", "black-1", "gray-old"}, ids)
}

func TestQueuePushRepositionsExistingSession(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, q.Push(ctx, "s-1", ColorGray, base))
	require.NoError(t, q.Push(ctx, "s-2", ColorBlack, base))
	require.NoError(t, q.Push(ctx, "s-1", ColorRed, base.Add(time.Minute)))

	ids, err := q.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1", "s-2"}, ids)
}

func TestQueueRemove(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Push(ctx, "s-1", ColorRed, now))
	require.NoError(t, q.Push(ctx, "s-2", ColorGray, now))
	require.NoError(t, q.Remove(ctx, "s-1"))

	ids, err := q.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-2"}, ids)
}

func TestQueueListLimit(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, q.Push(ctx, "red-1", ColorRed, base.Add(time.Second)))
	require.NoError(t, q.Push(ctx, "red-2", ColorRed, base.Add(2*time.Second)))
	require.NoError(t, q.Push(ctx, "gray-1", ColorGray, base))

	ids, err := q.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"red-2", "red-1"}, ids)
}

func TestQueueNilSafe(t *testing.T) {
	var q *DashboardQueue
	ctx := context.Background()

	assert.NoError(t, q.Push(ctx, "s-1", ColorRed, time.Now()))
	assert.NoError(t, q.Remove(ctx, "s-1"))
	ids, err := q.List(ctx, 10)
	assert.NoError(t, err)
	assert.Nil(t, ids)
}
