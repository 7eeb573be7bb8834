package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"mathtutor/internal/rag"
)

var (
	ErrBadFilename  = errors.New("invalid filename")
	ErrBadExtension = errors.New("only .pdf files are accepted")
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
	ErrFileNotFound = errors.New("file not found")
)

// PDFInfo describes one corpus file for the admin surface.
type PDFInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// CorpusService manages the PDF corpus directory and keeps the vector index
// in sync: every successful mutation triggers a synchronous full rebuild.
// Concurrent administrator mutations are not supported.
type CorpusService struct {
	dir       string
	maxBytes  int64
	chunkSize int
	ingestor  *rag.Ingestor
	index     *rag.Index
}

func NewCorpusService(dir string, maxBytes int64, chunkSize int, ingestor *rag.Ingestor, index *rag.Index) *CorpusService {
	return &CorpusService{
		dir:       dir,
		maxBytes:  maxBytes,
		chunkSize: chunkSize,
		ingestor:  ingestor,
		index:     index,
	}
}

func (s *CorpusService) List() ([]PDFInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read corpus dir failed: %w", err)
	}

	var files []PDFInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, PDFInfo{Name: entry.Name(), Size: info.Size()})
	}
	return files, nil
}

// Add validates and stores an uploaded PDF, then rebuilds the index. The
// file stays in the corpus even if the rebuild fails; the previous index
// generation remains readable.
func (s *CorpusService) Add(ctx context.Context, filename string, r io.Reader, size int64) error {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return err
	}
	if size > s.maxBytes {
		return ErrFileTooLarge
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create corpus dir failed: %w", err)
	}

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("create corpus file failed: %w", err)
	}
	written, err := io.Copy(dst, io.LimitReader(r, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		if errors.Is(err, ErrFileTooLarge) {
			return err
		}
		return fmt.Errorf("store corpus file failed: %w", err)
	}

	log.Info().Str("file", name).Int64("bytes", written).Msg("pdf uploaded")
	return s.Rebuild(ctx)
}

// Delete removes a PDF and rebuilds the index. A missing file does not
// trigger a rebuild.
func (s *CorpusService) Delete(ctx context.Context, filename string) error {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("stat corpus file failed: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete corpus file failed: %w", err)
	}

	log.Info().Str("file", name).Msg("pdf deleted")
	return s.Rebuild(ctx)
}

// Rebuild re-ingests the whole corpus directory and publishes a fresh index
// generation.
func (s *CorpusService) Rebuild(ctx context.Context) error {
	chunks := s.ingestor.Ingest(s.dir, s.chunkSize)
	return s.index.Build(ctx, chunks)
}

func (s *CorpusService) IndexReady() bool {
	return s.index.IsReady()
}

// sanitizeFilename strips any path components and enforces the .pdf
// extension.
func sanitizeFilename(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", ErrBadFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return "", ErrBadExtension
	}
	return name, nil
}
