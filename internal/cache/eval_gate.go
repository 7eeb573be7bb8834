package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// EvalGate enforces at-most-one evaluation in flight per student. The TTL
// bounds how long a crashed worker can block the next evaluation.
type EvalGate struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEvalGate(client *redisv9.Client, ttl time.Duration) *EvalGate {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &EvalGate{client: client, ttl: ttl}
}

func (g *EvalGate) TryAcquire(ctx context.Context, userID uint) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(userID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis set eval marker failed: %w", err)
	}
	return ok, nil
}

func (g *EvalGate) Release(ctx context.Context, userID uint) error {
	if err := g.client.Del(ctx, g.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete eval marker failed: %w", err)
	}
	return nil
}

func (g *EvalGate) key(userID uint) string {
	return fmt.Sprintf("tutor:eval:inflight:%d", userID)
}
