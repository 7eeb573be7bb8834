package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Generation is an immutable snapshot of the vector index: ordered chunks,
// their aligned embedding rows and a ready flag. Readers take one snapshot
// per request, so chunks and vectors can never be observed torn.
type Generation struct {
	chunks  []Chunk
	vectors [][]float32
	ready   bool
}

func (g *Generation) Ready() bool {
	if g == nil {
		return false
	}
	return g.ready
}

func (g *Generation) Len() int {
	if g == nil {
		return 0
	}
	return len(g.chunks)
}

// Search returns up to k chunks ordered by descending cosine similarity to
// the query vector. Ties break on chunk position, so a fixed generation
// always ranks deterministically.
func (g *Generation) Search(query []float32, k int) []Chunk {
	if !g.Ready() || k <= 0 {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	results := make([]scored, len(g.vectors))
	for i, row := range g.vectors {
		results[i] = scored{idx: i, score: cosineSimilarity(query, row)}
	}
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return results[a].idx < results[b].idx
	})

	if k > len(results) {
		k = len(results)
	}
	top := make([]Chunk, k)
	for i := 0; i < k; i++ {
		top[i] = g.chunks[results[i].idx]
	}
	return top
}

// Index owns the live generation. Builds publish a new generation in a
// single atomic store; a failed build keeps the previous generation
// readable and only publishes a not-ready one when nothing was live before.
type Index struct {
	gen      atomic.Pointer[Generation]
	embedder *Embedder
}

func NewIndex(embedder *Embedder) *Index {
	return &Index{embedder: embedder}
}

// Build embeds every chunk and swaps in the resulting generation.
func (x *Index) Build(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("build index: no chunks")
	}

	vectors, err := x.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		if !x.gen.Load().Ready() {
			x.gen.Store(&Generation{})
		}
		log.Error().Err(err).Msg("index rebuild failed, previous generation kept")
		return fmt.Errorf("build index: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("build index: %d chunks but %d embedding rows", len(chunks), len(vectors))
	}

	x.gen.Store(&Generation{chunks: chunks, vectors: vectors, ready: true})
	log.Info().Int("chunks", len(chunks)).Msg("index generation published")
	return nil
}

// Current returns the live generation snapshot; may be nil before the first
// build.
func (x *Index) Current() *Generation {
	return x.gen.Load()
}

func (x *Index) IsReady() bool {
	return x.gen.Load().Ready()
}

// cosineSimilarity makes no normalisation assumption about the embedding
// service's output.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
