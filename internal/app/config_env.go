package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseBool accepts the usual truthy and falsey spellings.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// ApplyEnvToConfig fills unset fields of cfg from the environment. Values
// already present in cfg win.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = os.Getenv("LLM_MODEL")
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.Parser.Encoding == "" {
		cfg.Parser.Encoding = os.Getenv("DOCPARSE_ENCODING")
	}
	if cfg.Parser.MaxFileSizeMB == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("DOCPARSE_MAX_FILE_MB"))); err == nil && n > 0 {
			cfg.Parser.MaxFileSizeMB = n
		}
	}
	if len(cfg.Parsers) == 0 {
		if v := os.Getenv("DOCPARSE_PARSERS"); strings.TrimSpace(v) != "" {
			cfg.Parsers = splitList(v)
		}
	}
	if cfg.ParseTimeout == 0 {
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("DOCPARSE_TIMEOUT"))); err == nil {
			cfg.ParseTimeout = d
		}
	}
	if !cfg.Verbose {
		if v, ok := parseBool(os.Getenv("VERBOSE")); ok {
			cfg.Verbose = v
		}
	}
}

// ApplyEnvOverrides replaces cfg fields with every environment variable that
// is set. It runs after the file layer so env beats file.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCPARSE_ENCODING")); v != "" {
		cfg.Parser.Encoding = v
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("DOCPARSE_MAX_FILE_MB"))); err == nil && n > 0 {
		cfg.Parser.MaxFileSizeMB = n
	}
	if v, ok := parseBool(os.Getenv("DOCPARSE_EXTRACT_TABLES")); ok {
		cfg.Parser.ExtractTables = v
	}
	if v := os.Getenv("DOCPARSE_PARSERS"); strings.TrimSpace(v) != "" {
		cfg.Parsers = splitList(v)
	}
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("DOCPARSE_TIMEOUT"))); err == nil {
		cfg.ParseTimeout = d
	}
	if v, ok := parseBool(os.Getenv("VERBOSE")); ok {
		cfg.Verbose = v
	}
}
