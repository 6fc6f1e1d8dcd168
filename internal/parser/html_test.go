package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hyperifyio/docparse/internal/document"
)

func TestHTML_MainContentTitleAndTables(t *testing.T) {
	page := `<!doctype html>
<html>
  <head><title> Price List </title></head>
  <body>
    <nav>Home | About</nav>
    <main>
      <h1>Prices</h1>
      <p>Valid   from October.</p>
      <table>
        <thead><tr><th>Item</th><th>Price</th></tr></thead>
        <tbody>
          <tr><td>Tea</td><td>2.50</td></tr>
          <tr><td>Coffee</td><td>3.10</td></tr>
        </tbody>
      </table>
      <script>var tracking = 1;</script>
    </main>
    <footer>Copyright</footer>
  </body>
</html>`
	p := writeFile(t, t.TempDir(), "prices.html", []byte(page))
	doc, err := NewHTML(document.DefaultParserConfig()).Parse(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Type != document.TypeHTML {
		t.Fatalf("type %q", doc.Type)
	}
	if doc.Metadata["title"] != "Price List" {
		t.Fatalf("title %v", doc.Metadata["title"])
	}
	for _, want := range []string{"Prices", "Valid from October.", "Coffee 3.10"} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("missing %q in %q", want, doc.Text)
		}
	}
	for _, unwanted := range []string{"Home", "Copyright", "tracking"} {
		if strings.Contains(doc.Text, unwanted) {
			t.Fatalf("unexpected %q in %q", unwanted, doc.Text)
		}
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("tables %v", doc.Tables)
	}
	if !reflect.DeepEqual(doc.Tables[0].Headers, []string{"Item", "Price"}) {
		t.Fatalf("headers %v", doc.Tables[0].Headers)
	}
	if !reflect.DeepEqual(doc.Tables[0].Rows, [][]string{{"Tea", "2.50"}, {"Coffee", "3.10"}}) {
		t.Fatalf("rows %v", doc.Tables[0].Rows)
	}
}

func TestHTML_BodyFallbackAndCharset(t *testing.T) {
	page := "<html><head><meta charset=\"iso-8859-1\"><title>K\xf6ln</title></head><body><p>Gr\xfc\xdfe</p></body></html>"
	p := writeFile(t, t.TempDir(), "greeting.htm", []byte(page))
	doc, err := NewHTML(document.DefaultParserConfig()).Parse(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Text != "Grüße" {
		t.Fatalf("text %q", doc.Text)
	}
	if doc.Metadata["title"] != "Köln" {
		t.Fatalf("title %v", doc.Metadata["title"])
	}
	if doc.HasTables() {
		t.Fatalf("unexpected tables")
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "\n\n  a   b \n\n\n c\t d \n\n"
	if got := normalizeWhitespace(in); got != "a b\n\nc d" {
		t.Fatalf("got %q", got)
	}
}
