package parser

import (
	"bytes"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/docparse/internal/document"
)

// HTML extracts readable text and <table> contents from HTML files. It
// prefers <main> or <article> over <body> and skips navigation, footers
// and scripts.
type HTML struct {
	base
}

// NewHTML returns an HTML parser.
func NewHTML(cfg document.ParserConfig) *HTML {
	return &HTML{base: newBase(cfg, "html", "htm")}
}

func (p *HTML) Name() string { return "html" }

func (p *HTML) Parse(path string) (document.ParsedDocument, error) {
	if err := p.Validate(path); err != nil {
		return document.ParsedDocument{}, err
	}
	log.Info().Str("path", path).Msg("parsing HTML file")

	data, err := os.ReadFile(path)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "html", Err: err}
	}
	// charset sniffs <meta> declarations and BOMs and decodes to UTF-8.
	r, err := charset.NewReader(bytes.NewReader(data), "")
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "html", Err: err}
	}
	root, err := html.Parse(r)
	if err != nil {
		return document.ParsedDocument{}, &document.ExtractionError{Path: path, Method: "html", Err: err}
	}

	content := findFirst(root, "main")
	if content == nil {
		content = findFirst(root, "article")
	}
	if content == nil {
		content = findFirst(root, "body")
	}

	var b strings.Builder
	tables := []document.Table{}
	if content != nil {
		collectText(&b, content, false)
		if p.cfg.ExtractTables {
			for _, t := range findAll(content, "table") {
				if tbl, ok := htmlTable(t); ok {
					tables = append(tables, tbl)
				}
			}
		}
	}

	meta := map[string]any{}
	if head := findFirst(root, "head"); head != nil {
		if t := findFirst(head, "title"); t != nil {
			meta["title"] = strings.TrimSpace(nodeText(t))
		}
	}
	return document.New(path, document.TypeHTML, normalizeWhitespace(b.String()), tables, meta), nil
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns matching elements in document order without descending
// into a match.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			out = append(out, cur)
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe", "template":
			return
		case "pre", "code":
			inPre = true
		case "br", "hr", "tr":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString(" ")
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "table":
			b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.ReplaceAll(data, "\t", " ")
			data = strings.ReplaceAll(data, "\r", " ")
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "table":
			b.WriteString("\n\n")
		case "li":
			b.WriteString("\n")
		case "pre", "code":
			b.WriteString("\n")
		}
	}
}

// htmlTable reads the rows of t, skipping rows of nested tables. A leading
// row made only of <th> cells, or else the first row, becomes the header.
func htmlTable(t *html.Node) (document.Table, bool) {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch strings.ToLower(c.Data) {
			case "table":
				continue
			case "tr":
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (strings.EqualFold(td.Data, "td") || strings.EqualFold(td.Data, "th")) {
						cells = append(cells, collapseSpaces(strings.TrimSpace(nodeText(td))))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
			default:
				walk(c)
			}
		}
	}
	walk(t)
	if len(rows) < 2 {
		return document.Table{}, false
	}
	return tableFromCells(rows), true
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
