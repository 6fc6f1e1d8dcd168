package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/extrame/xls"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/hyperifyio/docparse/internal/document"
)

var errEmptyInput = errors.New("no data")

// Tabular parses delimited text and spreadsheets into a single table. It
// never fails past validation: every extraction failure degrades to a
// lower-fidelity document.
type Tabular struct {
	base
}

// NewTabular returns a parser for csv, tsv, xlsx and xls files.
func NewTabular(cfg document.ParserConfig) *Tabular {
	return &Tabular{base: newBase(cfg, "csv", "tsv", "xlsx", "xls")}
}

func (p *Tabular) Name() string { return "tabular" }

func (p *Tabular) Parse(path string) (document.ParsedDocument, error) {
	if err := p.Validate(path); err != nil {
		return document.ParsedDocument{}, err
	}
	ext := Extension(path)
	log.Info().Str("path", path).Str("format", ext).Msg("parsing tabular file")
	switch ext {
	case "csv":
		return p.parseDelimited(path, ','), nil
	case "tsv":
		return p.parseDelimited(path, '\t'), nil
	default:
		return p.parseSpreadsheet(path, ext), nil
	}
}

func (p *Tabular) parseDelimited(path string, comma rune) document.ParsedDocument {
	headers, rows, meta, err := p.readDelimited(path, comma)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("delimited parse failed; reading as text")
		return p.parseAsText(path, document.TypeCSV)
	}
	return frameDocument(path, document.TypeCSV, headers, rows, meta)
}

// readDelimited reads a header record followed by data records. Records
// that fail to parse or carry more fields than the header are skipped;
// shorter records are padded.
func (p *Tabular) readDelimited(path string, comma rune) ([]string, [][]string, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	text, used, _, err := decodeWithFallback(data, p.cfg.Encoding)
	if err != nil {
		return nil, nil, nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var headers []string
	rows := [][]string{}
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				log.Debug().Err(err).Str("path", path).Msg("skipping malformed record")
				skipped++
				continue
			}
			return nil, nil, nil, err
		}
		if headers == nil {
			headers = rec
			continue
		}
		if len(rec) > len(headers) {
			skipped++
			continue
		}
		rows = append(rows, rec)
	}
	if headers == nil {
		return nil, nil, nil, errEmptyInput
	}
	meta := map[string]any{"encoding": used}
	if skipped > 0 {
		meta["skipped_rows"] = skipped
	}
	return headers, normalizeRows(rows, len(headers)), meta, nil
}

// parseAsText returns the raw file contents as an unstructured document.
func (p *Tabular) parseAsText(path string, typ document.Type) document.ParsedDocument {
	data, err := os.ReadFile(path)
	if err == nil {
		var text, used string
		text, used, _, err = decodeWithFallback(data, p.cfg.Encoding)
		if err == nil {
			return document.New(path, typ, text, nil, map[string]any{"encoding": used, "method": "text"})
		}
	}
	log.Error().Err(err).Str("path", path).Msg("text fallback failed")
	return document.New(path, typ, fmt.Sprintf("Error reading file: %v", err), nil, nil)
}

func (p *Tabular) parseSpreadsheet(path, ext string) document.ParsedDocument {
	headers, rows, meta, err := readWorkbook(path, ext)
	if err == nil {
		return frameDocument(path, document.TypeExcel, headers, rows, meta)
	}
	log.Warn().Err(err).Str("path", path).Msg("spreadsheet parse failed; trying cell walker")

	doc, err := p.parseSpreadsheetFallback(path, ext)
	if err == nil {
		return doc
	}
	log.Error().Err(err).Str("path", path).Msg("spreadsheet fallback failed")
	return document.New(path, document.TypeExcel, fmt.Sprintf("Error parsing Excel file: %v", err), nil, nil)
}

// readWorkbook reads the first sheet of an OOXML workbook.
func readWorkbook(path, ext string) ([]string, [][]string, map[string]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil, errors.New("workbook has no sheets")
	}
	name := sheets[0]
	data, err := f.GetRows(name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(data) == 0 {
		return nil, nil, nil, fmt.Errorf("sheet %q: %w", name, errEmptyInput)
	}
	headers, rows := frameFromGrid(data)
	meta := map[string]any{
		"sheet_name": name,
		"sheets":     len(sheets),
		"format":     ext,
	}
	return headers, rows, meta, nil
}

// frameFromGrid treats the first row as headers. The frame is as wide as
// its widest row; unnamed columns get positional names.
func frameFromGrid(data [][]string) ([]string, [][]string) {
	width := 0
	for _, row := range data {
		if len(row) > width {
			width = len(row)
		}
	}
	headers := make([]string, width)
	copy(headers, data[0])
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return headers, normalizeRows(data[1:], width)
}

// parseSpreadsheetFallback walks cells one row at a time: legacy BIFF
// workbooks through the xls reader, OOXML through the streaming row
// iterator on the active sheet. The first row is the header and every
// later row is padded or trimmed to its width.
func (p *Tabular) parseSpreadsheetFallback(path, ext string) (document.ParsedDocument, error) {
	var (
		sheet string
		data  [][]string
		err   error
	)
	if ext == "xls" {
		sheet, data, err = walkLegacyWorkbook(path)
	} else {
		sheet, data, err = walkWorkbook(path)
	}
	if err != nil {
		return document.ParsedDocument{}, err
	}
	if len(data) == 0 {
		return document.New(path, document.TypeExcel, "Empty spreadsheet", nil, map[string]any{"method": "fallback", "sheet_name": sheet}), nil
	}
	headers := data[0]
	rows := normalizeRows(data[1:], len(headers))
	meta := map[string]any{
		"method":     "fallback",
		"sheet_name": sheet,
		"format":     ext,
	}
	return frameDocument(path, document.TypeExcel, headers, rows, meta), nil
}

func walkWorkbook(path string) (string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return "", nil, errors.New("workbook has no sheets")
		}
		name = list[0]
	}
	rows, err := f.Rows(name)
	if err != nil {
		return name, nil, fmt.Errorf("iterate sheet %q: %w", name, err)
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return name, nil, fmt.Errorf("read row: %w", err)
		}
		if isBlankRow(cols) {
			continue
		}
		data = append(data, cols)
	}
	if err := rows.Error(); err != nil {
		return name, nil, err
	}
	return name, data, nil
}

func walkLegacyWorkbook(path string) (name string, data [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read xls: %v", r)
		}
	}()
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return "", nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return "", nil, errors.New("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return "", nil, errors.New("first sheet unreadable")
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := legacyRow(sheet, i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		if isBlankRow(cells) {
			continue
		}
		data = append(data, cells)
	}
	return sheet.Name, data, nil
}

// legacyRow returns nil for a row the sheet never recorded; the xls reader
// dereferences a missing row instead of reporting it.
func legacyRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// frameDocument turns a header row and string cells into a one-table
// document. Cell types are not preserved.
func frameDocument(path string, typ document.Type, headers []string, rows [][]string, meta map[string]any) document.ParsedDocument {
	if meta == nil {
		meta = map[string]any{}
	}
	names := append([]string{}, headers...)
	meta["rows"] = len(rows)
	meta["columns"] = len(headers)
	meta["column_names"] = names
	meta["shape"] = fmt.Sprintf("%d x %d", len(rows), len(headers))
	tbl := document.NewTable(headers, rows)
	return document.New(path, typ, renderFrame(headers, rows), []document.Table{tbl}, meta)
}
