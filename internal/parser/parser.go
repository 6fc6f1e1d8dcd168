// Package parser implements one Parser per document family. Each parser
// validates its input, then runs a primary extraction method and, where the
// family allows it, a fallback method.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/document"
)

// Parser converts a file at a path into a ParsedDocument.
type Parser interface {
	// Name identifies the parser in logs and errors.
	Name() string
	CanParse(path string) bool
	Parse(path string) (document.ParsedDocument, error)
	// Extensions lists the lower-case extensions, without dots, this parser accepts.
	Extensions() []string
}

// base carries the configuration and pre-checks shared by every parser.
type base struct {
	cfg  document.ParserConfig
	exts map[string]bool
}

func newBase(cfg document.ParserConfig, exts ...string) base {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return base{cfg: cfg.Normalize(), exts: m}
}

func (b base) CanParse(path string) bool { return b.exts[Extension(path)] }

func (b base) Extensions() []string {
	out := make([]string, 0, len(b.exts))
	for e := range b.exts {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Config returns the normalized configuration.
func (b base) Config() document.ParserConfig { return b.cfg }

// Validate checks that path names an existing regular file no larger than
// the configured ceiling.
func (b base) Validate(path string) error {
	return Validate(path, b.cfg.MaxFileSizeMB)
}

// Validate is the shared pre-check: the file must exist, be a regular file
// and weigh at most maxMB megabytes.
func Validate(path string, maxMB int) error {
	info, err := os.Stat(path)
	if err != nil {
		log.Error().Str("path", path).Msg("file not found")
		return &document.ValidationError{Path: path, Reason: "file not found"}
	}
	if !info.Mode().IsRegular() {
		log.Error().Str("path", path).Msg("not a file")
		return &document.ValidationError{Path: path, Reason: "not a file"}
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(maxMB) {
		log.Error().Str("path", path).Float64("size_mb", sizeMB).Int("max_mb", maxMB).Msg("file too large")
		return &document.ValidationError{Path: path, Reason: fmt.Sprintf("file too large: %.2fMB (max: %dMB)", sizeMB, maxMB)}
	}
	return nil
}

// Extension returns the lower-cased suffix of path without the leading dot.
func Extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
