package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/document"
)

// PDF extracts page text and tables. The primary reader understands glyph
// positions and detects tables; the fallback reader scans content streams
// for text only. Unlike the tabular family, PDF parsing fails when both
// readers fail.
type PDF struct {
	base
	primary  func(path string) (document.ParsedDocument, error)
	fallback func(path string) (document.ParsedDocument, error)
}

// NewPDF returns a PDF parser.
func NewPDF(cfg document.ParserConfig) *PDF {
	p := &PDF{base: newBase(cfg, "pdf")}
	p.primary = p.parseWithLayout
	p.fallback = p.parseWithContentStreams
	return p
}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Parse(path string) (document.ParsedDocument, error) {
	if err := p.Validate(path); err != nil {
		return document.ParsedDocument{}, err
	}
	log.Info().Str("path", path).Msg("parsing PDF file")

	doc, err := p.primary(path)
	if err == nil {
		return doc, nil
	}
	log.Warn().Err(err).Str("path", path).Msg("layout reader failed, trying content stream reader")

	doc, ferr := p.fallback(path)
	if ferr == nil {
		return doc, nil
	}
	log.Error().Err(ferr).Str("path", path).Msg("all PDF parsing methods failed")
	return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "pdf", Err: errors.Join(err, ferr)}
}

func pageMarker(n int) string { return fmt.Sprintf("\n--- Page %d ---\n", n) }

// parseWithLayout reads every page with the positional reader. The library
// panics on malformed input, so panics are turned into errors.
func (p *PDF) parseWithLayout(path string) (doc document.ParsedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &document.ExtractionError{Path: path, Method: "ledongthuc", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "ledongthuc", Err: err}
	}
	defer f.Close()

	pages := r.NumPage()
	var parts []string
	tables := []document.Table{}
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "ledongthuc", Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, pageMarker(i), text)
		}
		if p.cfg.ExtractTables {
			tables = append(tables, detectTables(page.Content().Text)...)
		}
	}

	meta := map[string]any{
		"pages":  pages,
		"method": "ledongthuc",
	}
	return document.New(path, document.TypePDF, strings.Join(parts, "\n"), tables, meta), nil
}

// parseWithContentStreams is the text-only reader. It also reports title,
// author and subject when the file has an info dictionary.
func (p *PDF) parseWithContentStreams(path string) (doc document.ParsedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &document.ExtractionError{Path: path, Method: "pdfcpu", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "pdfcpu", Err: err}
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "pdfcpu", Err: err}
	}

	var parts []string
	for i := 1; i <= ctx.PageCount; i++ {
		rd, err := pdfcpu.ExtractPageContent(ctx, i)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Int("page", i).Msg("no page content")
			continue
		}
		if rd == nil {
			continue
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "pdfcpu", Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if text := contentStreamText(data); text != "" {
			parts = append(parts, pageMarker(i), text)
		}
	}

	meta := map[string]any{
		"pages":  ctx.PageCount,
		"method": "pdfcpu",
	}
	if ctx.Info != nil {
		meta["title"] = ctx.Title
		meta["author"] = ctx.Author
		meta["subject"] = ctx.Subject
	}
	return document.New(path, document.TypePDF, strings.Join(parts, "\n"), nil, meta), nil
}
