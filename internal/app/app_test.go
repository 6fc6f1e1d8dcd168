package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/docparse/internal/document"
	"github.com/hyperifyio/docparse/internal/llm"
	"github.com/hyperifyio/docparse/internal/parser"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestParseAll_PlaceholdersAndCache(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	notes := writeInput(t, dir, "notes.txt", "first\nsecond\n")
	missing := filepath.Join(dir, "gone.txt")

	cfg := DefaultConfig()
	cfg.CacheDir = cacheDir
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	docs, failed, err := a.ParseAll(context.Background(), []string{notes, missing})
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(docs) != 2 || failed != 1 {
		t.Fatalf("got %d docs, %d failed", len(docs), failed)
	}
	if docs[0].Type != document.TypeText || docs[0].Metadata["lines"] != 2 {
		t.Fatalf("unexpected first doc: %+v", docs[0])
	}
	if docs[1].Type != document.TypeUnknown || !strings.HasPrefix(docs[1].Text, "Error: ") {
		t.Fatalf("missing input should become a placeholder: %+v", docs[1])
	}

	matches, _ := filepath.Glob(filepath.Join(cacheDir, "*.doc.json"))
	if len(matches) != 1 {
		t.Fatalf("want one cached document, got %v", matches)
	}

	// A second run is served from the cache with the same metadata types.
	b, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	doc, err := b.Parse(context.Background(), notes)
	if err != nil {
		t.Fatalf("cached parse: %v", err)
	}
	if v, ok := doc.Metadata["lines"].(int); !ok || v != 2 {
		t.Fatalf("expected cached metadata, got %#v", doc.Metadata["lines"])
	}
	if doc.Text != docs[0].Text {
		t.Fatalf("cached text %q != %q", doc.Text, docs[0].Text)
	}
}

func TestParseAll_AllFailed(t *testing.T) {
	a, err := New(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	dir := t.TempDir()
	docs, failed, err := a.ParseAll(context.Background(), []string{
		filepath.Join(dir, "a.pdf"),
		writeInput(t, dir, "b.rtf", "{\\rtf1}"),
	})
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("want ErrNoDocuments, got %v", err)
	}
	if failed != 2 || len(docs) != 2 {
		t.Fatalf("failed=%d docs=%d", failed, len(docs))
	}
	if !strings.Contains(docs[1].Error(), "no parser available") {
		t.Fatalf("placeholder should carry the unsupported error: %q", docs[1].Error())
	}
}

func TestNew_RejectsUnknownParser(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parsers = []string{"rtf"}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_ClearsCache(t *testing.T) {
	dir := t.TempDir()
	stale := writeInput(t, dir, "stale.json", `{"reply":"old"}`)
	cfg := DefaultConfig()
	cfg.CacheDir = dir
	cfg.CacheClear = true
	if _, err := New(context.Background(), cfg); err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("cache clear should remove %s", stale)
	}
}

func TestWriteSummaryAndJSON(t *testing.T) {
	docs := []document.ParsedDocument{
		document.New("/in/a.csv", document.TypeExcel, "shape: (1, 2)",
			[]document.Table{document.NewTable([]string{"k", "v"}, [][]string{{"x", "1"}})},
			map[string]any{"rows": 1, "format": "csv"}),
		document.New("/in/b.pdf", document.TypeUnknown, "Error: boom", nil, map[string]any{"error": "boom"}),
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, docs); err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := "== /in/a.csv ==\nType: excel\nTables: 1\n  format: csv\n  rows: 1\n  table 1: 1 rows x 2 columns\n\nshape: (1, 2)\n" +
		"\n== /in/b.pdf ==\nType: unknown\nError: boom\n"
	if buf.String() != want {
		t.Fatalf("summary mismatch:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := WriteJSON(&buf, docs); err != nil {
		t.Fatalf("json: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0]["document_type"] != "excel" || out[1]["file_path"] != "/in/b.pdf" {
		t.Fatalf("unexpected json: %v", out)
	}
}

func TestWriteReportPDF_IsParseable(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.pdf")
	docs := []document.ParsedDocument{
		document.New("/in/inventory.csv", document.TypeExcel, "shape: (2, 2)",
			[]document.Table{document.NewTable([]string{"item", "qty"}, [][]string{{"apple", "3"}, {"pear", "7"}})},
			map[string]any{"rows": 2}),
		document.New("/in/notes.txt", document.TypeText, "Grüße aus Köln", nil, map[string]any{"encoding": "utf-8"}),
	}
	if err := WriteReportPDF(docs, out); err != nil {
		t.Fatalf("write report: %v", err)
	}
	doc, err := parser.NewPDF(document.DefaultParserConfig()).Parse(out)
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if doc.Metadata["pages"] != 2 {
		t.Fatalf("pages=%v, want one per document", doc.Metadata["pages"])
	}
	if !strings.Contains(doc.Text, "inventory.csv") || !strings.Contains(doc.Text, "notes.txt") {
		t.Fatalf("report text missing headings: %q", doc.Text)
	}
}

// chatServer answers model listing and chat completion calls and records
// the last completion request.
func chatServer(t *testing.T, got *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/models"):
			_ = json.NewEncoder(w).Encode(openai.ModelsList{Models: []openai.Model{{ID: "local"}}})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
				ID:    "1",
				Model: got.Model,
				Choices: []openai.ChatCompletionChoice{{
					Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "42 apples."},
					FinishReason: openai.FinishReasonStop,
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewChat_SeedsDocumentsAndTalks(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := chatServer(t, &got)

	dir := t.TempDir()
	notes := writeInput(t, dir, "notes.txt", "apples: 42\n")

	cfg := DefaultConfig()
	cfg.LLMModel = "local"
	cfg.SystemPrompt = "Answer in one line."
	cfg.CacheDir = filepath.Join(dir, "cache")
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.newClient = func(Config) llm.Client { return llm.NewOpenAI(srv.URL+"/v1", "test", srv.Client()) }

	s, atts, err := a.NewChat(context.Background(), []string{notes, filepath.Join(dir, "missing.pdf")})
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	if len(atts) != 1 || atts[0].Name != "notes.txt" {
		t.Fatalf("attachments %+v", atts)
	}
	reply, err := s.Send(context.Background(), "how many apples?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "42 apples." {
		t.Fatalf("reply %q", reply)
	}
	if len(got.Messages) != 4 || got.Messages[0].Content != "Answer in one line." {
		t.Fatalf("server saw %+v", got.Messages)
	}
	seed := got.Messages[1].Content
	if !strings.Contains(seed, "--- FILE: notes.txt (") || !strings.Contains(seed, "apples: 42") {
		t.Fatalf("seed message missing document: %q", seed)
	}

	// The reply cache serves the same transcript without the server.
	srv.Close()
	again, _, err := a.NewChat(context.Background(), []string{notes})
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	reply, err = again.Send(context.Background(), "how many apples?")
	if err != nil || reply != "42 apples." {
		t.Fatalf("cached reply=%q err=%v", reply, err)
	}
}

func TestNewChat_SeedsFromDocumentCache(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	notes := writeInput(t, dir, "notes.txt", "apples: 42\n")

	zero := float32(0)
	cfg := DefaultConfig()
	cfg.LLMModel = "local"
	cfg.CacheDir = cacheDir
	cfg.Temperature = &zero
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	var got openai.ChatCompletionRequest
	srv := chatServer(t, &got)
	a.newClient = func(Config) llm.Client { return llm.NewOpenAI(srv.URL+"/v1", "test", srv.Client()) }

	s, _, err := a.NewChat(context.Background(), []string{notes})
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	if s.Temperature == nil || *s.Temperature != 0 {
		t.Fatalf("explicit zero temperature lost: %v", s.Temperature)
	}
	matches, _ := filepath.Glob(filepath.Join(cacheDir, "*.doc.json"))
	if len(matches) != 1 {
		t.Fatalf("chat seeding should fill the document cache, got %v", matches)
	}

	// Rewrite the cached body; the next seed must come from it.
	body, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if err := os.WriteFile(matches[0], bytes.ReplaceAll(body, []byte("apples: 42"), []byte("pears: 7")), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	s, _, err = a.NewChat(context.Background(), []string{notes})
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	if seed := s.History()[0].Content; !strings.Contains(seed, "pears: 7") {
		t.Fatalf("seed should be served from the cache: %q", seed)
	}
}

func TestNewChat_NoReadableInputs(t *testing.T) {
	a, err := New(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, _, err := a.NewChat(context.Background(), []string{filepath.Join(t.TempDir(), "none.txt")}); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("want ErrNoDocuments, got %v", err)
	}
}

func TestNewChat_TruncatesToContext(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := chatServer(t, &got)

	dir := t.TempDir()
	big := writeInput(t, dir, "big.txt", strings.Repeat("row of figures\n", 2000))

	cfg := DefaultConfig()
	cfg.LLMModel = "local"
	cfg.LLMContextTokens = 4000
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.newClient = func(Config) llm.Client { return llm.NewOpenAI(srv.URL+"/v1", "test", srv.Client()) }

	s, _, err := a.NewChat(context.Background(), []string{big})
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	seed := s.History()[0].Content
	if !strings.Contains(seed, "[... truncated to fit the model context ...]") {
		t.Fatalf("expected truncated seed, got %d bytes", len(seed))
	}
	if len(seed) > 4000*4 {
		t.Fatalf("seed of %d bytes cannot fit a 4000 token window", len(seed))
	}
}
