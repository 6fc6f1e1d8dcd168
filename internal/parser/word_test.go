package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperifyio/docparse/internal/document"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Quarterly report</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t xml:space="preserve">Revenue grew </w:t></w:r><w:r><w:t>strongly.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Sales</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>North</w:t></w:r></w:p><w:p><w:r><w:t>incl. islands</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>120</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>lonely</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>Closing</w:t><w:tab/><w:t>remarks</w:t></w:r></w:p>
</w:body>
</w:document>`

const testCoreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Q3</dc:title>
<dc:subject>Sales</dc:subject>
<dc:creator>Ada</dc:creator>
<dcterms:created> 2024-10-01T09:00:00Z </dcterms:created>
</cp:coreProperties>`

func writeDocx(t *testing.T, withCore bool) string {
	t.Helper()
	names := []string{"[Content_Types].xml", "word/document.xml"}
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   testDocumentXML,
	}
	if withCore {
		names = append(names, "docProps/core.xml")
		entries["docProps/core.xml"] = testCoreXML
	}
	return writeZip(t, t.TempDir(), "report.docx", names, entries)
}

func TestWord_DocxParagraphsTablesAndProperties(t *testing.T) {
	doc, err := NewWord(document.DefaultParserConfig()).Parse(writeDocx(t, true))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "Quarterly report\n\nRevenue grew strongly.\n\nClosing\tremarks"
	if doc.Text != want {
		t.Fatalf("text %q", doc.Text)
	}
	if doc.Metadata["paragraphs"] != 4 || doc.Metadata["tables"] != 2 {
		t.Fatalf("counts %v", doc.Metadata)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("expected single-row table to be skipped, got %v", doc.Tables)
	}
	tbl := doc.Tables[0]
	if !reflect.DeepEqual(tbl.Headers, []string{"Region", "Sales"}) {
		t.Fatalf("headers %v", tbl.Headers)
	}
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"North\nincl. islands", "120"}}) {
		t.Fatalf("rows %q", tbl.Rows)
	}
	if doc.Metadata["title"] != "Q3" || doc.Metadata["author"] != "Ada" ||
		doc.Metadata["subject"] != "Sales" || doc.Metadata["created"] != "2024-10-01T09:00:00Z" {
		t.Fatalf("core properties %v", doc.Metadata)
	}
}

func TestWord_MissingCorePropertiesIgnored(t *testing.T) {
	doc, err := NewWord(document.DefaultParserConfig()).Parse(writeDocx(t, false))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := doc.Metadata["title"]; ok {
		t.Fatalf("unexpected title without core.xml")
	}
}

func TestWord_TablesDisabled(t *testing.T) {
	cfg := document.DefaultParserConfig()
	cfg.ExtractTables = false
	doc, err := NewWord(cfg).Parse(writeDocx(t, false))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.HasTables() {
		t.Fatalf("expected no tables")
	}
	if doc.Tables == nil {
		t.Fatalf("tables must be an empty list, not nil")
	}
}

func TestWord_LegacyDocPlaceholder(t *testing.T) {
	p := writeFile(t, t.TempDir(), "old.doc", []byte{0xd0, 0xcf, 0x11, 0xe0})
	doc, err := NewWord(document.DefaultParserConfig()).Parse(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(doc.Text, "requires conversion to .docx") {
		t.Fatalf("text %q", doc.Text)
	}
	if doc.Metadata["warning"] != "Limited parsing for .doc format" {
		t.Fatalf("metadata %v", doc.Metadata)
	}
}

func TestWord_CorruptDocxPropagates(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.docx", []byte("PK not really"))
	_, err := NewWord(document.DefaultParserConfig()).Parse(p)
	if !errors.Is(err, document.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestWord_MissingBodyPropagates(t *testing.T) {
	p := writeZip(t, t.TempDir(), "empty.docx", []string{"readme.txt"}, map[string]string{"readme.txt": "hi"})
	_, err := NewWord(document.DefaultParserConfig()).Parse(p)
	var ee *document.ExtractionError
	if !errors.As(err, &ee) || ee.Method != "docx" {
		t.Fatalf("expected docx extraction error, got %v", err)
	}
}

const textBoxDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape" xmlns:v="urn:schemas-microsoft-com:vml">
<w:body>
<w:p><w:r><w:t>Before box.</w:t></w:r><w:r><mc:AlternateContent><mc:Choice Requires="wps"><w:drawing><wps:wsp><wps:txbx><w:txbxContent><w:p><w:r><w:t>Inside box</w:t></w:r></w:p></w:txbxContent></wps:txbx></wps:wsp></w:drawing></mc:Choice><mc:Fallback><w:pict><v:shape><v:textbox><w:txbxContent><w:p><w:r><w:t>Inside box</w:t></w:r></w:p></w:txbxContent></v:textbox></v:shape></w:pict></mc:Fallback></mc:AlternateContent></w:r><w:r><w:t xml:space="preserve"> After box.</w:t></w:r></w:p>
<w:p><w:r><w:t>Next paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestWord_TextBoxKeepsEnclosingParagraph(t *testing.T) {
	p := writeZip(t, t.TempDir(), "boxed.docx", []string{"word/document.xml"}, map[string]string{"word/document.xml": textBoxDocumentXML})
	doc, err := NewWord(document.DefaultParserConfig()).Parse(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := "Before box. After box.\n\nNext paragraph"; doc.Text != want {
		t.Fatalf("text %q, want %q", doc.Text, want)
	}
	if doc.Metadata["paragraphs"] != 2 {
		t.Fatalf("paragraphs %v, want 2", doc.Metadata["paragraphs"])
	}
}
