package parser

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/document"
)

// Text parses plain text files, retrying a fixed list of single-byte
// encodings when the configured encoding cannot decode the file.
type Text struct {
	base
}

// NewText returns a plain text parser.
func NewText(cfg document.ParserConfig) *Text {
	return &Text{base: newBase(cfg, "txt", "text", "md", "markdown", "log")}
}

func (p *Text) Name() string { return "text" }

func (p *Text) Parse(path string) (document.ParsedDocument, error) {
	if err := p.Validate(path); err != nil {
		return document.ParsedDocument{}, err
	}
	log.Info().Str("path", path).Msg("parsing text file")

	data, err := os.ReadFile(path)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "read", Err: err}
	}
	text, used, tried, err := decodeWithFallback(data, p.cfg.Encoding)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Strs("tried", tried).Msg("text decode failed")
		return document.ParsedDocument{}, &document.DecodeError{Path: path, Tried: tried}
	}
	if used != p.cfg.Encoding {
		log.Debug().Str("path", path).Str("encoding", used).Msg("decoded with fallback encoding")
	}
	meta := map[string]any{
		"encoding":   used,
		"lines":      countLines(text),
		"characters": utf8.RuneCountInString(text),
	}
	return document.New(path, document.TypeText, text, nil, meta), nil
}

// countLines counts lines the way a line splitter does: a trailing newline
// does not open a new line, and \r\n, \r and \n all terminate one.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
