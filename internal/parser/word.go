package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/document"
)

const docPlaceholder = "Note: .doc format requires conversion to .docx for full parsing"

// Word parses .docx packages. Legacy .doc files get a placeholder document.
type Word struct {
	base
}

// NewWord returns a word-processing parser.
func NewWord(cfg document.ParserConfig) *Word {
	return &Word{base: newBase(cfg, "docx", "doc")}
}

func (p *Word) Name() string { return "word" }

func (p *Word) Parse(path string) (document.ParsedDocument, error) {
	if err := p.Validate(path); err != nil {
		return document.ParsedDocument{}, err
	}
	if Extension(path) == "doc" {
		log.Warn().Str("path", path).Msg(".doc format not fully supported, results may be limited")
		return document.New(path, document.TypeWord, docPlaceholder, nil, map[string]any{
			"warning": "Limited parsing for .doc format",
		}), nil
	}
	log.Info().Str("path", path).Msg("parsing Word document")

	zr, err := zip.OpenReader(path)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "docx", Err: fmt.Errorf("open zip: %w", err)}
	}
	defer zr.Close()

	body, err := readDocxBody(&zr.Reader)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "docx", Err: err}
	}

	var paragraphs []string
	for _, para := range body.paragraphs {
		if t := strings.TrimSpace(para); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}

	tables := []document.Table{}
	if p.cfg.ExtractTables {
		for _, rows := range body.tables {
			if len(rows) < 2 {
				continue
			}
			tables = append(tables, tableFromCells(rows))
		}
	}

	meta := map[string]any{
		"paragraphs": len(body.paragraphs),
		"tables":     len(body.tables),
	}
	if props, err := readCoreProperties(&zr.Reader); err == nil {
		meta["title"] = props.Title
		meta["author"] = props.Creator
		meta["subject"] = props.Subject
		meta["created"] = strings.TrimSpace(props.Created)
	}

	return document.New(path, document.TypeWord, strings.Join(paragraphs, "\n\n"), tables, meta), nil
}

type docxBody struct {
	// paragraphs holds every top-level paragraph, empty ones included.
	paragraphs []string
	// tables holds the cell text of each top-level table, row by row.
	tables [][][]string
}

func openZipEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// readDocxBody walks word/document.xml. Paragraphs inside tables count as
// cell text only; nested tables are folded into their enclosing cell. Text
// box content and markup-compatibility fallbacks are skipped so the
// enclosing paragraph keeps its own runs.
func readDocxBody(zr *zip.Reader) (docxBody, error) {
	rc, err := openZipEntry(zr, "word/document.xml")
	if err != nil {
		return docxBody{}, err
	}
	defer rc.Close()

	var (
		out       docxBody
		para      strings.Builder
		inPara    bool
		inRun     bool
		inText    bool
		tblDepth  int
		table     [][]string
		row       []string
		cellParas []string
		skipDepth int
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return docxBody{}, fmt.Errorf("parse document.xml: %w", err)
		}
		if skipDepth > 0 {
			switch t := tok.(type) {
			case xml.StartElement:
				if skippedElement(t.Name.Local) {
					skipDepth++
				}
			case xml.EndElement:
				if skippedElement(t.Name.Local) {
					skipDepth--
				}
			}
			continue
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "txbxContent", "Fallback":
				skipDepth = 1
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					table = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cellParas = nil
				}
			case "p":
				inPara = true
				para.Reset()
			case "r":
				inRun = inPara
			case "t":
				inText = inPara
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				inRun = false
			case "p":
				inPara = false
				if tblDepth == 0 {
					out.paragraphs = append(out.paragraphs, para.String())
				} else if s := strings.TrimSpace(para.String()); s != "" {
					cellParas = append(cellParas, s)
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.Join(cellParas, "\n"))
				}
			case "tr":
				if tblDepth == 1 {
					table = append(table, row)
				}
			case "tbl":
				if tblDepth == 1 {
					out.tables = append(out.tables, table)
				}
				tblDepth--
			}
		}
	}
	return out, nil
}

// skippedElement names containers whose paragraphs are not part of the
// body flow.
func skippedElement(local string) bool {
	return local == "txbxContent" || local == "Fallback"
}

type coreProperties struct {
	Title   string `xml:"title"`
	Subject string `xml:"subject"`
	Creator string `xml:"creator"`
	Created string `xml:"created"`
}

// readCoreProperties reads docProps/core.xml.
func readCoreProperties(zr *zip.Reader) (coreProperties, error) {
	rc, err := openZipEntry(zr, "docProps/core.xml")
	if err != nil {
		return coreProperties{}, err
	}
	defer rc.Close()
	var props coreProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return coreProperties{}, err
	}
	return props, nil
}
