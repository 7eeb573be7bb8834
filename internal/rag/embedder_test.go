package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// flakyService fails failuresPerText times for each distinct input before
// succeeding, and records every attempt.
type flakyService struct {
	failuresPerText int
	attempts        map[string]int
	vec             []float32
}

func newFlakyService(failures int) *flakyService {
	return &flakyService{
		failuresPerText: failures,
		attempts:        map[string]int{},
		vec:             []float32{1, 0},
	}
}

func (s *flakyService) Embed(_ context.Context, text string) ([]float32, error) {
	s.attempts[text]++
	if s.attempts[text] <= s.failuresPerText {
		return nil, errors.New("boom")
	}
	return s.vec, nil
}

type mapCache struct {
	data map[string][]float32
	puts int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]float32{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]float32, bool) {
	vec, ok := c.data[key]
	return vec, ok
}

func (c *mapCache) Put(_ context.Context, key string, vec []float32) {
	c.puts++
	c.data[key] = vec
}

func silentEmbedder(service EmbeddingService, cache EmbeddingCache, maxRetries int) *Embedder {
	e := NewEmbedder(service, cache, maxRetries)
	e.sleep = func(time.Duration) {}
	return e
}

func TestEmbedChunksRetriesPerInput(t *testing.T) {
	service := newFlakyService(2)
	e := silentEmbedder(service, nil, 5)

	chunks := []Chunk{
		{Source: "a.pdf", Body: "one"},
		{Source: "a.pdf", Body: "two"},
	}
	vectors, err := e.EmbedChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(vectors))
	}
	for _, chunk := range chunks {
		if got := service.attempts[chunk.Tagged()]; got != 3 {
			t.Fatalf("expected exactly 3 attempts for %q, got %d", chunk.Body, got)
		}
	}
}

func TestEmbedBackoffSchedule(t *testing.T) {
	service := newFlakyService(2)
	e := NewEmbedder(service, nil, 5)
	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := e.EmbedQuery(context.Background(), "q"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestEmbedExhaustsRetries(t *testing.T) {
	service := newFlakyService(100)
	e := silentEmbedder(service, nil, 5)

	_, err := e.EmbedQuery(context.Background(), "q")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if got := service.attempts["q"]; got != 5 {
		t.Fatalf("expected 5 attempts, got %d", got)
	}
}

type failOnService struct{ needle string }

func (s failOnService) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, s.needle) {
		return nil, errors.New("boom")
	}
	return []float32{1, 0}, nil
}

func TestEmbedChunksAllOrNothing(t *testing.T) {
	e := silentEmbedder(failOnService{needle: "fail"}, nil, 2)

	vectors, err := e.EmbedChunks(context.Background(), []Chunk{
		{Source: "x.pdf", Body: "ok"},
		{Source: "x.pdf", Body: "fail"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if vectors != nil {
		t.Fatalf("partial results must be discarded, got %d rows", len(vectors))
	}
}

func TestEmbedChunksUsesCache(t *testing.T) {
	service := newFlakyService(0)
	cache := newMapCache()
	e := silentEmbedder(service, cache, 5)

	chunks := []Chunk{{Source: "a.pdf", Body: "cached"}}
	if _, err := e.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	if cache.puts != 1 {
		t.Fatalf("expected 1 cache write, got %d", cache.puts)
	}

	if _, err := e.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	if got := service.attempts[chunks[0].Tagged()]; got != 1 {
		t.Fatalf("second build should hit the cache, service saw %d calls", got)
	}
}
