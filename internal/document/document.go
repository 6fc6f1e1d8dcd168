// Package document holds the value types every format parser produces and
// every consumer reads.
package document

import (
	"strings"
)

// Type tags a parsed document with the family it was read as.
type Type string

const (
	TypePDF     Type = "pdf"
	TypeWord    Type = "word"
	TypeExcel   Type = "excel"
	TypeCSV     Type = "csv"
	TypeText    Type = "text"
	TypeHTML    Type = "html"
	TypeUnknown Type = "unknown"
)

// Table is extracted tabular data. Rows may be ragged relative to Headers.
type Table struct {
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	NumRows    int        `json:"num_rows"`
	NumColumns int        `json:"num_columns"`
}

// NewTable builds a Table whose cached counts match its contents.
func NewTable(headers []string, rows [][]string) Table {
	if headers == nil {
		headers = []string{}
	}
	if rows == nil {
		rows = [][]string{}
	}
	return Table{
		Headers:    headers,
		Rows:       rows,
		NumRows:    len(rows),
		NumColumns: len(headers),
	}
}

// KeyedRows renders each row as a header->value map. Cells missing from a
// short row become "", cells beyond the header count are dropped.
func (t Table) KeyedRows() []map[string]string {
	if len(t.Headers) == 0 || len(t.Rows) == 0 {
		return []map[string]string{}
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			m[h] = v
		}
		out = append(out, m)
	}
	return out
}

// Text renders the table as pipe-separated lines.
func (t Table) Text() string {
	var lines []string
	if len(t.Headers) > 0 {
		lines = append(lines, strings.Join(t.Headers, " | "))
		lines = append(lines, strings.Repeat("-", 50))
	}
	for _, row := range t.Rows {
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n")
}

// ParsedDocument is the normalized result of parsing one file.
type ParsedDocument struct {
	FilePath   string         `json:"file_path"`
	Type       Type           `json:"document_type"`
	Text       string         `json:"text"`
	Tables     []Table        `json:"tables"`
	Metadata   map[string]any `json:"metadata"`
	RawContent string         `json:"raw_content,omitempty"`
}

// New returns a document with non-nil Tables and Metadata.
func New(path string, typ Type, text string, tables []Table, metadata map[string]any) ParsedDocument {
	if tables == nil {
		tables = []Table{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ParsedDocument{
		FilePath: path,
		Type:     typ,
		Text:     text,
		Tables:   tables,
		Metadata: metadata,
	}
}

// AllText returns the document text followed by every table rendered as text.
func (d ParsedDocument) AllText() string {
	parts := []string{d.Text}
	for _, t := range d.Tables {
		if len(t.Headers) > 0 {
			parts = append(parts, "\n\n"+strings.Join(t.Headers, " | "))
			parts = append(parts, strings.Repeat("-", 50))
		}
		for _, row := range t.Rows {
			parts = append(parts, strings.Join(row, " | "))
		}
	}
	return strings.Join(parts, "\n")
}

// HasTables reports whether any table was extracted.
func (d ParsedDocument) HasTables() bool { return len(d.Tables) > 0 }

// TableCount returns the number of extracted tables.
func (d ParsedDocument) TableCount() int { return len(d.Tables) }

// Error returns the error recorded on a batch placeholder, or "".
func (d ParsedDocument) Error() string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata["error"].(string)
	return s
}
