// Package dispatch routes a path to the first registered parser that accepts
// it and runs batches of paths through that routing.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/document"
	"github.com/hyperifyio/docparse/internal/parser"
)

var detectTable = map[string]document.Type{
	"pdf":      document.TypePDF,
	"docx":     document.TypeWord,
	"doc":      document.TypeWord,
	"xlsx":     document.TypeExcel,
	"xls":      document.TypeExcel,
	"csv":      document.TypeCSV,
	"tsv":      document.TypeCSV,
	"txt":      document.TypeText,
	"text":     document.TypeText,
	"md":       document.TypeText,
	"markdown": document.TypeText,
	"log":      document.TypeText,
	"html":     document.TypeHTML,
	"htm":      document.TypeHTML,
}

// Dispatcher holds an ordered set of parsers. Earlier parsers win when more
// than one accepts a path. A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	parsers []parser.Parser
}

// New returns a dispatcher over parsers in priority order.
func New(parsers ...parser.Parser) *Dispatcher {
	return &Dispatcher{parsers: append([]parser.Parser(nil), parsers...)}
}

// Default registers the PDF, tabular, word and text parsers.
func Default(cfg document.ParserConfig) *Dispatcher {
	return New(
		parser.NewPDF(cfg),
		parser.NewTabular(cfg),
		parser.NewWord(cfg),
		parser.NewText(cfg),
	)
}

// DetectFormat maps a path to a document type by extension alone.
func DetectFormat(path string) document.Type {
	if t, ok := detectTable[parser.Extension(path)]; ok {
		return t
	}
	return document.TypeUnknown
}

// DetectFormat is the method form of the package-level DetectFormat.
func (d *Dispatcher) DetectFormat(path string) document.Type { return DetectFormat(path) }

// CanParse reports whether any registered parser accepts path.
func (d *Dispatcher) CanParse(path string) bool {
	for _, p := range d.parsers {
		if p.CanParse(path) {
			return true
		}
	}
	return false
}

// Parsers returns the registered parser names in priority order.
func (d *Dispatcher) Parsers() []string {
	out := make([]string, 0, len(d.parsers))
	for _, p := range d.parsers {
		out = append(out, p.Name())
	}
	return out
}

// SupportedFormats returns the sorted union of registered extensions.
func (d *Dispatcher) SupportedFormats() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range d.parsers {
		for _, e := range p.Extensions() {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Parse runs path through every matching parser in order until one
// succeeds.
func (d *Dispatcher) Parse(path string) (document.ParsedDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, err := os.Stat(abs); err != nil {
		return document.ParsedDocument{}, &document.NotFoundError{Path: abs}
	}

	var attempts []error
	for _, p := range d.parsers {
		if !p.CanParse(abs) {
			continue
		}
		log.Info().Str("path", abs).Str("parser", p.Name()).Msg("parsing document")
		doc, err := p.Parse(abs)
		if err == nil {
			return doc, nil
		}
		log.Warn().Err(err).Str("path", abs).Str("parser", p.Name()).Msg("parser failed")
		attempts = append(attempts, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return document.ParsedDocument{}, &document.UnsupportedFormatError{
		Ext:       parser.Extension(abs),
		Supported: d.SupportedFormats(),
		Attempts:  attempts,
	}
}

// ParseContext is Parse bounded by ctx. When ctx ends first its error is
// returned and the running parse is left to finish on its own.
func (d *Dispatcher) ParseContext(ctx context.Context, path string) (document.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return document.ParsedDocument{}, err
	}
	type result struct {
		doc document.ParsedDocument
		err error
	}
	ch := make(chan result, 1)
	go func() {
		doc, err := d.Parse(path)
		ch <- result{doc, err}
	}()
	select {
	case r := <-ch:
		return r.doc, r.err
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("path", path).Msg("parse abandoned")
		return document.ParsedDocument{}, ctx.Err()
	}
}

// ParseMultiple parses paths in order. A failed path yields a placeholder
// of type unknown whose metadata carries the error.
func (d *Dispatcher) ParseMultiple(paths []string) []document.ParsedDocument {
	return d.ParseMultipleContext(context.Background(), paths)
}

// ParseMultipleContext is ParseMultiple with each entry bounded by ctx.
func (d *Dispatcher) ParseMultipleContext(ctx context.Context, paths []string) []document.ParsedDocument {
	out := make([]document.ParsedDocument, 0, len(paths))
	for _, p := range paths {
		doc, err := d.ParseContext(ctx, p)
		if err != nil {
			log.Error().Err(err).Str("path", p).Msg("failed to parse")
			out = append(out, Placeholder(p, err))
			continue
		}
		out = append(out, doc)
	}
	return out
}

// Placeholder is the batch stand-in for a path that could not be parsed.
func Placeholder(path string, err error) document.ParsedDocument {
	msg := err.Error()
	return document.New(path, document.TypeUnknown, "Error: "+msg, nil, map[string]any{"error": msg})
}

// ParseDocument parses one path with the default parser set.
func ParseDocument(path string, extractTables, extractImages bool) (document.ParsedDocument, error) {
	cfg := document.DefaultParserConfig()
	cfg.ExtractTables = extractTables
	cfg.ExtractImages = extractImages
	return Default(cfg).Parse(path)
}

// IsUnsupported reports whether err means no parser could handle a path.
func IsUnsupported(err error) bool { return errors.Is(err, document.ErrUnsupportedFormat) }
