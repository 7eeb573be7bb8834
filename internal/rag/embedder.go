package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrEmbeddingUnavailable reports that the embedding service failed after
// all retries; batch results are discarded.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// EmbeddingService produces one dense vector for one text.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache stores vectors across rebuilds. Both methods are
// best-effort; a failing cache only costs extra embedding calls.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Put(ctx context.Context, key string, vec []float32)
}

// Embedder wraps the embedding service with exponential-backoff retries and
// an optional cache.
type Embedder struct {
	service    EmbeddingService
	cache      EmbeddingCache
	maxRetries int
	sleep      func(time.Duration)
}

func NewEmbedder(service EmbeddingService, cache EmbeddingCache, maxRetries int) *Embedder {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Embedder{
		service:    service,
		cache:      cache,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// EmbedQuery embeds a single ad-hoc text, bypassing the cache.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedWithRetry(ctx, text)
}

// EmbedChunks embeds every chunk, one row per chunk in input order. The
// batch is all-or-nothing: if any chunk fails after retries, no partial
// result is returned.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		key := chunk.CacheKey()
		if e.cache != nil {
			if vec, ok := e.cache.Get(ctx, key); ok {
				vectors = append(vectors, vec)
				continue
			}
		}
		vec, err := e.embedWithRetry(ctx, chunk.Tagged())
		if err != nil {
			return nil, err
		}
		if e.cache != nil {
			e.cache.Put(ctx, key, vec)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// embedWithRetry retries with 2^attempt seconds of backoff before each
// retry, up to maxRetries attempts in total.
func (e *Embedder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			e.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		}
		vec, err := e.service.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("embedding attempt failed")
	}
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, lastErr)
}
