package app

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// RegisterParseFlags defines the parsing and output flags on fs, writing
// into dst.
func RegisterParseFlags(fs *flag.FlagSet, dst *Config) {
	fs.BoolVar(&dst.Parser.ExtractTables, "tables", true, "Extract tables where the format supports it")
	fs.BoolVar(&dst.Parser.ExtractImages, "images", false, "Accepted for compatibility; images are not extracted")
	fs.IntVar(&dst.Parser.MaxFileSizeMB, "max.mb", 50, "Maximum input file size in MB")
	fs.StringVar(&dst.Parser.Encoding, "encoding", "utf-8", "First character encoding to try for text formats")
	fs.Func("parsers", "Comma-separated parser order (pdf,tabular,word,text,html)", func(s string) error {
		dst.Parsers = splitList(s)
		return nil
	})
	fs.DurationVar(&dst.ParseTimeout, "timeout", 0, "Per-file parse deadline (e.g. 30s); 0 disables")
	fs.BoolVar(&dst.Verbose, "v", false, "Verbose logging")
}

// RegisterCacheFlags defines the cache flags on fs.
func RegisterCacheFlags(fs *flag.FlagSet, dst *Config) {
	fs.StringVar(&dst.CacheDir, "cache.dir", "", "Cache directory for parsed documents and chat replies; empty disables")
	fs.DurationVar(&dst.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this before running; 0 disables")
	fs.BoolVar(&dst.CacheClear, "cache.clear", false, "Clear the cache directory before running")
	fs.BoolVar(&dst.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.Int64Var(&dst.CacheMaxBytes, "cache.maxBytes", 0, "Evict least recently used cache entries above this many bytes; 0 disables")
	fs.IntVar(&dst.CacheMaxCount, "cache.maxCount", 0, "Evict least recently used cache entries above this count; 0 disables")
}

// RegisterLLMFlags defines the model and chat flags on fs.
func RegisterLLMFlags(fs *flag.FlagSet, dst *Config) {
	fs.StringVar(&dst.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&dst.LLMModel, "llm.model", "", "Model name")
	fs.StringVar(&dst.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	fs.IntVar(&dst.LLMContextTokens, "llm.context", 0, "Model context size in tokens; 0 guesses from the model name")
	fs.StringVar(&dst.SystemPrompt, "chat.system", "", "Override the chat system prompt")
	fs.Func("chat.temperature", "Sampling temperature (default 0.2)", func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return fmt.Errorf("invalid temperature %q: %w", s, err)
		}
		f := float32(v)
		dst.Temperature = &f
		return nil
	})
}

// applyFlag copies the field behind one flag name from src to dst.
func applyFlag(name string, dst *Config, src Config) {
	switch name {
	case "tables":
		dst.Parser.ExtractTables = src.Parser.ExtractTables
	case "images":
		dst.Parser.ExtractImages = src.Parser.ExtractImages
	case "max.mb":
		dst.Parser.MaxFileSizeMB = src.Parser.MaxFileSizeMB
	case "encoding":
		dst.Parser.Encoding = src.Parser.Encoding
	case "parsers":
		dst.Parsers = append([]string(nil), src.Parsers...)
	case "timeout":
		dst.ParseTimeout = src.ParseTimeout
	case "v":
		dst.Verbose = src.Verbose
	case "json":
		dst.JSON = src.JSON
	case "pdf":
		dst.ReportPDF = src.ReportPDF
	case "cache.dir":
		dst.CacheDir = src.CacheDir
	case "cache.maxAge":
		dst.CacheMaxAge = src.CacheMaxAge
	case "cache.clear":
		dst.CacheClear = src.CacheClear
	case "cache.strictPerms":
		dst.CacheStrictPerms = src.CacheStrictPerms
	case "cache.maxBytes":
		dst.CacheMaxBytes = src.CacheMaxBytes
	case "cache.maxCount":
		dst.CacheMaxCount = src.CacheMaxCount
	case "llm.base":
		dst.LLMBaseURL = src.LLMBaseURL
	case "llm.model":
		dst.LLMModel = src.LLMModel
	case "llm.key":
		dst.LLMAPIKey = src.LLMAPIKey
	case "llm.context":
		dst.LLMContextTokens = src.LLMContextTokens
	case "chat.system":
		dst.SystemPrompt = src.SystemPrompt
	case "chat.temperature":
		dst.Temperature = src.Temperature
	}
}

// Resolve layers the configuration: defaults, then the config file (when
// configPath is set), then environment variables, then the flags the user
// actually passed on fs. flagValues holds the parsed flag destinations.
func Resolve(fs *flag.FlagSet, flagValues Config, configPath string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(configPath) != "" {
		fc, err := LoadConfigFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", configPath, err)
		}
		ApplyFileConfig(&cfg, fc)
	}
	ApplyEnvOverrides(&cfg)
	if fs != nil {
		fs.Visit(func(f *flag.Flag) { applyFlag(f.Name, &cfg, flagValues) })
	}
	cfg.Parser = cfg.Parser.Normalize()
	return cfg, nil
}
