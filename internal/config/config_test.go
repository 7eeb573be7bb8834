package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(127.0.0.1:3306)/tutor")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus.ChunkSize != 400 || cfg.Corpus.TopK != 3 {
		t.Fatalf("corpus defaults = %+v", cfg.Corpus)
	}
	if cfg.Auth.AdminUsername != "thaygiao123" {
		t.Fatalf("admin username = %q", cfg.Auth.AdminUsername)
	}
	if cfg.RabbitMQ.EvalQueue != "tutor.eval.request" {
		t.Fatalf("eval queue = %q", cfg.RabbitMQ.EvalQueue)
	}
	if got := cfg.MaxUploadBytes(); got != 16<<20 {
		t.Fatalf("MaxUploadBytes = %d", got)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"LLM_API_KEY", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q must name %s", err, want)
		}
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	file := "[app]\nport = 9999\n\n[corpus]\nchunk_size = 100\ntop_k = 7\n"
	if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CORPUS_CHUNK_SIZE", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 9999 {
		t.Fatalf("file value ignored, port = %d", cfg.App.Port)
	}
	if cfg.Corpus.TopK != 7 {
		t.Fatalf("file value ignored, top_k = %d", cfg.Corpus.TopK)
	}
	if cfg.Corpus.ChunkSize != 250 {
		t.Fatalf("env must win over file, chunk_size = %d", cfg.Corpus.ChunkSize)
	}
}

func TestHTTPAddr(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "8090")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.HTTPAddr(); got != "127.0.0.1:8090" {
		t.Fatalf("HTTPAddr = %q", got)
	}
}
