package rag

import (
	"context"
	"strings"
	"testing"
)

func TestRetrieveBeforeAnyBuild(t *testing.T) {
	idx := testIndex(&vecService{})
	r := NewRetriever(idx, silentEmbedder(&vecService{}, nil, 2), 3)

	if got := r.Retrieve(context.Background(), "câu hỏi"); got != ContextNotLoaded {
		t.Fatalf("Retrieve = %q, want %q", got, ContextNotLoaded)
	}
}

func TestRetrieveAfterFailedFirstBuild(t *testing.T) {
	service := &vecService{fail: true}
	embedder := silentEmbedder(service, nil, 2)
	idx := NewIndex(embedder)
	_ = idx.Build(context.Background(), []Chunk{{Source: "a.pdf", Body: "x"}})

	r := NewRetriever(idx, embedder, 3)
	if got := r.Retrieve(context.Background(), "câu hỏi"); got != ContextNotLoaded {
		t.Fatalf("Retrieve = %q, want %q", got, ContextNotLoaded)
	}
}

func TestRetrieveQueryEmbeddingFailure(t *testing.T) {
	embedder := silentEmbedder(failOnService{needle: "hỏi"}, nil, 2)
	idx := NewIndex(embedder)
	if err := idx.Build(context.Background(), []Chunk{{Source: "a.pdf", Body: "x"}}); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(idx, embedder, 3)
	if got := r.Retrieve(context.Background(), "câu hỏi"); got != ContextRetrievalFailed {
		t.Fatalf("Retrieve = %q, want %q", got, ContextRetrievalFailed)
	}
}

func TestRetrieveJoinsTopChunks(t *testing.T) {
	service := &vecService{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {1, 0.5, 0},
		"gamma": {0, 1, 0},
		"qv":    {2, 0, 0},
	}}
	embedder := silentEmbedder(service, nil, 2)
	idx := NewIndex(embedder)
	chunks := []Chunk{
		{Source: "g.pdf", Body: "gamma"},
		{Source: "a.pdf", Body: "alpha"},
		{Source: "b.pdf", Body: "beta"},
	}
	if err := idx.Build(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(idx, embedder, 2)
	got := r.Retrieve(context.Background(), "qv")
	want := "[Source: a.pdf] alpha\n\n---\n\n[Source: b.pdf] beta"
	if got != want {
		t.Fatalf("Retrieve = %q, want %q", got, want)
	}
	if strings.Contains(got, "gamma") {
		t.Fatal("context must hold at most topK chunks")
	}
}

func TestRetrieveFallbackChunkUntagged(t *testing.T) {
	embedder := silentEmbedder(&vecService{vectors: map[string][]float32{}}, nil, 2)
	idx := NewIndex(embedder)
	if err := idx.Build(context.Background(), []Chunk{{Body: FallbackChunkBody}}); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(idx, embedder, 3)
	if got := r.Retrieve(context.Background(), "toán"); got != FallbackChunkBody {
		t.Fatalf("Retrieve = %q, want untagged fallback body", got)
	}
}
