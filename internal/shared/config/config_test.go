package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_METADATA_MODEL", "")
	t.Setenv("LATEX_COMPILER_API_URL", "http://compiler.local/")
	t.Setenv("COMPILER_TIMEOUT_SECONDS", "nope")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected openai provider, got %q", cfg.LLMProvider)
	}
	if cfg.LLMMetadataModel != "gpt-4o-mini" {
		t.Fatalf("expected metadata model to default to LLM_MODEL, got %q", cfg.LLMMetadataModel)
	}
	if cfg.CompilerURL != "http://compiler.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.CompilerURL)
	}
	if cfg.CompilerTimeout != 60*time.Second {
		t.Fatalf("expected default compiler timeout, got %s", cfg.CompilerTimeout)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev-like config")
	}
}

func TestNormalizeProvider(t *testing.T) {
	cases := map[string]string{"OpenAI": "openai", "google": "gemini", "": "none", "other": "none"}
	for in, want := range cases {
		if got := normalizeProvider(in); got != want {
			t.Fatalf("normalizeProvider(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadEnvFilesDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LETTERS_TEST_A=from-file\nLETTERS_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("LETTERS_TEST_A", "from-env")
	t.Setenv("LETTERS_TEST_B", "")
	os.Unsetenv("LETTERS_TEST_B")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("LETTERS_TEST_A"); got != "from-env" {
		t.Fatalf("expected env to win, got %q", got)
	}
	if got := os.Getenv("LETTERS_TEST_B"); got != "quoted" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
