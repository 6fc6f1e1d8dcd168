package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/docparse/internal/dispatch"
	"github.com/hyperifyio/docparse/internal/document"
	"github.com/hyperifyio/docparse/internal/parser"
)

// DefaultParsers is the registration order used when no parser list is
// configured. HTML is available by name but not registered by default.
var DefaultParsers = []string{"pdf", "tabular", "word", "text"}

var parserAliases = map[string]string{
	"pdf":     "pdf",
	"tabular": "tabular",
	"excel":   "tabular",
	"csv":     "tabular",
	"word":    "word",
	"docx":    "word",
	"text":    "text",
	"txt":     "text",
	"html":    "html",
}

// Config holds runtime configuration for both commands.
type Config struct {
	// Parsing
	Parser       document.ParserConfig
	Parsers      []string
	ParseTimeout time.Duration

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// LLMContextTokens overrides the context size guessed from the model
	// name when fitting documents into the chat seed.
	LLMContextTokens int

	// Chat
	SystemPrompt string
	// Temperature is nil when unset; an explicit zero is kept.
	Temperature *float32

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// CacheMaxBytes and CacheMaxCount bound the cache after startup
	// purging; zero leaves that limit off.
	CacheMaxBytes int64
	CacheMaxCount int

	// Output
	JSON      bool
	ReportPDF string
	Verbose   bool
}

// DefaultConfig returns the configuration before any file, env or flag layer.
func DefaultConfig() Config {
	return Config{
		Parser:  document.DefaultParserConfig(),
		Parsers: append([]string(nil), DefaultParsers...),
	}
}

// ParserNames returns the configured parser names, or DefaultParsers.
func (c Config) ParserNames() []string {
	if len(c.Parsers) == 0 {
		return append([]string(nil), DefaultParsers...)
	}
	return append([]string(nil), c.Parsers...)
}

// BuildParsers constructs the ordered parser set named by the config.
func (c Config) BuildParsers() ([]parser.Parser, error) {
	cfg := c.Parser.Normalize()
	names := c.ParserNames()
	out := make([]parser.Parser, 0, len(names))
	seen := map[string]bool{}
	for _, raw := range names {
		name, ok := parserAliases[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, fmt.Errorf("config: unknown parser %q", raw)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case "pdf":
			out = append(out, parser.NewPDF(cfg))
		case "tabular":
			out = append(out, parser.NewTabular(cfg))
		case "word":
			out = append(out, parser.NewWord(cfg))
		case "text":
			out = append(out, parser.NewText(cfg))
		case "html":
			out = append(out, parser.NewHTML(cfg))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("config: no parsers configured")
	}
	return out, nil
}

// Dispatcher builds a dispatcher over BuildParsers.
func (c Config) Dispatcher() (*dispatch.Dispatcher, error) {
	ps, err := c.BuildParsers()
	if err != nil {
		return nil, err
	}
	return dispatch.New(ps...), nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
