package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable the env layers read so tests start clean.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "CACHE_DIR",
		"DOCPARSE_ENCODING", "DOCPARSE_MAX_FILE_MB", "DOCPARSE_EXTRACT_TABLES",
		"DOCPARSE_PARSERS", "DOCPARSE_TIMEOUT", "VERBOSE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR=\"beta gamma\"\nBAZ='x=y'\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want unquoted value", got)
	}
	if got := os.Getenv("BAZ"); got != "x=y" {
		t.Fatalf("BAZ=%q, want x=y", got)
	}
}

func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_FillsOnlyUnset(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("CACHE_DIR", "/tmp/docparse-cache")
	t.Setenv("DOCPARSE_MAX_FILE_MB", "12")
	t.Setenv("DOCPARSE_PARSERS", "pdf, text")
	t.Setenv("DOCPARSE_TIMEOUT", "3s")
	t.Setenv("VERBOSE", "yes")

	cfg := Config{LLMModel: "explicit"}
	ApplyEnvToConfig(&cfg)
	if cfg.LLMModel != "explicit" {
		t.Fatalf("LLMModel=%q, want the preset value kept", cfg.LLMModel)
	}
	if cfg.CacheDir != "/tmp/docparse-cache" {
		t.Fatalf("CacheDir=%q", cfg.CacheDir)
	}
	if cfg.Parser.MaxFileSizeMB != 12 {
		t.Fatalf("MaxFileSizeMB=%d, want 12", cfg.Parser.MaxFileSizeMB)
	}
	if len(cfg.Parsers) != 2 || cfg.Parsers[0] != "pdf" || cfg.Parsers[1] != "text" {
		t.Fatalf("Parsers=%v", cfg.Parsers)
	}
	if cfg.ParseTimeout != 3*time.Second {
		t.Fatalf("ParseTimeout=%v", cfg.ParseTimeout)
	}
	if !cfg.Verbose {
		t.Fatalf("VERBOSE=yes should enable verbose")
	}
}

func TestApplyEnvOverrides_ReplacesValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("DOCPARSE_EXTRACT_TABLES", "off")
	t.Setenv("DOCPARSE_ENCODING", "cp1252")

	cfg := DefaultConfig()
	cfg.LLMModel = "file-model"
	ApplyEnvOverrides(&cfg)
	if cfg.LLMModel != "env-model" {
		t.Fatalf("LLMModel=%q, want env to win", cfg.LLMModel)
	}
	if cfg.Parser.ExtractTables {
		t.Fatalf("DOCPARSE_EXTRACT_TABLES=off should disable tables")
	}
	if cfg.Parser.Encoding != "cp1252" {
		t.Fatalf("Encoding=%q", cfg.Parser.Encoding)
	}
	// Unparseable values leave the field alone.
	t.Setenv("DOCPARSE_MAX_FILE_MB", "lots")
	before := cfg.Parser.MaxFileSizeMB
	ApplyEnvOverrides(&cfg)
	if cfg.Parser.MaxFileSizeMB != before {
		t.Fatalf("MaxFileSizeMB changed to %d on bad input", cfg.Parser.MaxFileSizeMB)
	}
}
