package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Sentinel contexts for the tutoring path: retrieval degrades gracefully,
// it never fails a chat request.
const (
	ContextNotLoaded       = "No retrieval corpus is loaded."
	ContextRetrievalFailed = "Retrieval failed."
)

const contextSeparator = "\n\n---\n\n"

// Retriever turns a query into a joined textual context of the top-k
// most similar chunks.
type Retriever struct {
	index    *Index
	embedder *Embedder
	topK     int
}

func NewRetriever(index *Index, embedder *Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{index: index, embedder: embedder, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) string {
	gen := r.index.Current()
	if !gen.Ready() {
		return ContextNotLoaded
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("query embedding failed")
		return ContextRetrievalFailed
	}

	chunks := gen.Search(queryVec, r.topK)
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Tagged()
	}
	return strings.Join(parts, contextSeparator)
}
