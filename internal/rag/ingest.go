package rag

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"mathtutor/internal/pkg/pdfextract"
)

// FallbackChunkBody seeds the index when the corpus directory holds no PDFs,
// so retrieval is always well-defined.
const FallbackChunkBody = "Giới thiệu về các chủ đề toán học THCS như số học, đại số, hình học."

// Ingestor reads a corpus directory of PDFs and produces ordered chunks.
type Ingestor struct {
	extract func(r io.Reader) (string, error)
}

func NewIngestor() *Ingestor {
	return &Ingestor{extract: pdfextract.ExtractText}
}

// NewIngestorWithExtractor swaps the PDF text extractor; used in tests.
func NewIngestorWithExtractor(extract func(r io.Reader) (string, error)) *Ingestor {
	return &Ingestor{extract: extract}
}

// Ingest enumerates *.pdf files (case-insensitive) in dir, extracts their
// text and slices it into contiguous, non-overlapping chunks of up to
// chunkSize characters. Unreadable PDFs are logged and skipped. The result
// is deterministic for a fixed directory: files in name order, chunks in
// document order. When no chunks can be produced, a single fallback chunk
// is returned.
func (g *Ingestor) Ingest(dir string, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 400
	}

	var chunks []Chunk
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("corpus directory not readable")
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		text, err := g.extractFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skip unreadable pdf")
			continue
		}
		chunks = append(chunks, sliceChunks(entry.Name(), text, chunkSize)...)
	}

	if len(chunks) == 0 {
		return []Chunk{{Body: FallbackChunkBody}}
	}
	log.Info().Int("chunks", len(chunks)).Str("dir", dir).Msg("corpus ingested")
	return chunks
}

func (g *Ingestor) extractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return g.extract(f)
}

// sliceChunks partitions text into runs of up to chunkSize runes; empty or
// whitespace-only slices are dropped.
func sliceChunks(source, text string, chunkSize int) []Chunk {
	runes := []rune(text)
	var chunks []Chunk
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		body := strings.TrimSpace(string(runes[i:end]))
		if body == "" {
			continue
		}
		chunks = append(chunks, Chunk{Source: source, Body: body})
	}
	return chunks
}
