package cache

import (
	"context"
	"encoding/json"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EmbeddingCache keeps chunk embeddings across index rebuilds and restarts,
// keyed by the chunk content hash. Misses and redis failures are equivalent:
// the chunk simply gets re-embedded.
type EmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redisv9.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("embedding cache read failed")
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) Put(ctx context.Context, key string, vec []float32) {
	payload, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("embedding cache write failed")
	}
}

func (c *EmbeddingCache) key(hash string) string {
	return "rag:embedding:" + hash
}
