package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const queueKey = "triage:pending"

// DashboardQueue keeps the urgency-ordered session list in a redis sorted
// set so the dashboard read path never touches Postgres. Scores encode rank
// first and recency second: more urgent sorts first, newer first within a
// rank.
type DashboardQueue struct {
	client *redis.Client
}

// NewDashboardQueue creates a dashboard queue.
func NewDashboardQueue(client *redis.Client) *DashboardQueue {
	if client == nil {
		return nil
	}
	return &DashboardQueue{client: client}
}

// Push places or repositions a session in the queue. Safe on a nil queue.
func (q *DashboardQueue) Push(ctx context.Context, sessionID string, color Color, at time.Time) error {
	if q == nil {
		return nil
	}
	score := float64(Rank(color))*1e10 - float64(at.Unix())
	if err := q.client.ZAdd(ctx, queueKey, redis.Z{Score: score, Member: sessionID}).Err(); err != nil {
		return fmt.Errorf("triage: queue push: %w", err)
	}
	return nil
}

// Remove drops a session from the queue, typically on staff resolve.
func (q *DashboardQueue) Remove(ctx context.Context, sessionID string) error {
	if q == nil {
		return nil
	}
	if err := q.client.ZRem(ctx, queueKey, sessionID).Err(); err != nil {
		return fmt.Errorf("triage: queue remove: %w", err)
	}
	return nil
}

// List returns up to limit session IDs, most urgent first.
func (q *DashboardQueue) List(ctx context.Context, limit int) ([]string, error) {
	if q == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	ids, err := q.client.ZRange(ctx, queueKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("triage: queue list: %w", err)
	}
	return ids, nil
}
