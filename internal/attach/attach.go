// Package attach turns input files into chat attachments. Spreadsheets are
// flattened to CSV text; everything else travels as raw bytes tagged with a
// MIME type.
package attach

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/dispatch"
	"github.com/hyperifyio/docparse/internal/document"
	"github.com/hyperifyio/docparse/internal/parser"
)

// Attachment is one input file prepared for a chat model. Exactly one of
// Text and Data is set.
type Attachment struct {
	Name     string
	Path     string
	MIMEType string
	Text     string
	Data     []byte
}

// Parser is what attachments need from a document dispatcher.
// *dispatch.Dispatcher satisfies it.
type Parser interface {
	CanParse(path string) bool
	Parse(path string) (document.ParsedDocument, error)
}

// IsText reports whether the attachment was flattened to text.
func (a Attachment) IsText() bool { return a.Data == nil }

var typeMIME = map[document.Type]string{
	document.TypePDF:   "application/pdf",
	document.TypeWord:  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	document.TypeExcel: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	document.TypeCSV:   "text/csv",
	document.TypeText:  "text/plain",
	document.TypeHTML:  "text/html",
}

// MIMEType guesses a MIME type from the extension, then from the detected
// document family.
func MIMEType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	if t, ok := typeMIME[dispatch.DetectFormat(path)]; ok {
		return t
	}
	return "application/octet-stream"
}

// Build prepares attachments for paths in order. Missing paths are skipped
// with a warning. A spreadsheet that yields no table is sent as bytes.
func Build(paths []string, d Parser) []Attachment {
	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			abs, _ := filepath.Abs(p)
			log.Warn().Str("path", abs).Msg("file not found, skipping")
			continue
		}
		name := filepath.Base(p)
		log.Info().Str("file", name).Msg("reading attachment")

		if ext := parser.Extension(p); ext == "xlsx" || ext == "xls" {
			text, err := spreadsheetText(p, d)
			if err == nil {
				out = append(out, Attachment{Name: name, Path: p, MIMEType: "text/csv", Text: text})
				continue
			}
			log.Warn().Err(err).Str("file", name).Msg("spreadsheet flattening failed, attaching raw bytes")
		}

		data, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("read failed, skipping")
			continue
		}
		out = append(out, Attachment{Name: name, Path: p, MIMEType: MIMEType(p), Data: data})
	}
	return out
}

func spreadsheetText(path string, d Parser) (string, error) {
	doc, err := d.Parse(path)
	if err != nil {
		return "", err
	}
	if !doc.HasTables() {
		return "", fmt.Errorf("no table extracted: %s", firstLine(doc.Text))
	}
	csvText, err := TableCSV(doc.Tables[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("--- START OF EXCEL FILE: %s ---\n%s\n--- END OF EXCEL FILE ---", filepath.Base(path), csvText), nil
}

// TableCSV renders a table as CSV with a header line.
func TableCSV(t document.Table) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return "", err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(t.Headers))
		copy(rec, row)
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ContextText is what a text-only chat model sees for a. Byte payloads are
// parsed through d when possible; otherwise text MIME types are sent as is
// and binaries are described by name.
func ContextText(a Attachment, d Parser) string {
	if a.IsText() {
		return a.Text
	}
	header := fmt.Sprintf("--- FILE: %s (%s) ---", a.Name, a.MIMEType)
	if d != nil && d.CanParse(a.Path) {
		doc, err := d.Parse(a.Path)
		if err == nil {
			return header + "\n" + doc.AllText() + "\n--- END OF FILE ---"
		}
		log.Warn().Err(err).Str("file", a.Name).Msg("parse failed, falling back to raw payload")
	}
	if strings.HasPrefix(a.MIMEType, "text/") {
		return header + "\n" + string(a.Data) + "\n--- END OF FILE ---"
	}
	return fmt.Sprintf("%s\n[binary content, %d bytes]\n--- END OF FILE ---", header, len(a.Data))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
