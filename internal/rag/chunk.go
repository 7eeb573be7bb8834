package rag

import (
	"crypto/sha256"
	"encoding/hex"
)

// Chunk is a contiguous slice of source text tagged with its origin file.
// Chunks are immutable; they live and die with the index generation that
// produced them.
type Chunk struct {
	Source string
	Body   string
}

// Tagged returns the chunk text as surfaced to the prompt composer and the
// embedding service. The fallback chunk has no source and is left untagged.
func (c Chunk) Tagged() string {
	if c.Source == "" {
		return c.Body
	}
	return "[Source: " + c.Source + "] " + c.Body
}

// CacheKey identifies the chunk's embedding across rebuilds and restarts.
func (c Chunk) CacheKey() string {
	sum := sha256.Sum256([]byte(c.Source + "\x00" + c.Body))
	return hex.EncodeToString(sum[:])
}
