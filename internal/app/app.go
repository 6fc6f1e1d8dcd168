package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/attach"
	"github.com/hyperifyio/docparse/internal/budget"
	"github.com/hyperifyio/docparse/internal/cache"
	"github.com/hyperifyio/docparse/internal/chat"
	"github.com/hyperifyio/docparse/internal/dispatch"
	"github.com/hyperifyio/docparse/internal/document"
	"github.com/hyperifyio/docparse/internal/llm"
)

// ErrNoDocuments is returned when every input failed to parse. The batch CLI
// maps it to a non-zero exit code.
var ErrNoDocuments = errors.New("no documents parsed")

// App wires configuration, the dispatcher and the optional caches together.
type App struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	docs       *cache.DocumentCache
	replies    *cache.ReplyCache
	profile    string

	// newClient builds the chat model client; tests replace it.
	newClient func(cfg Config) llm.Client
}

// New builds the dispatcher and prepares the cache directory. Callers run
// ValidateConfig first; cache maintenance problems are logged, never fatal.
func New(ctx context.Context, cfg Config) (*App, error) {
	d, err := cfg.Dispatcher()
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, dispatcher: d, newClient: defaultClient}
	if strings.TrimSpace(cfg.CacheDir) != "" {
		a.prepareCache()
		a.docs = &cache.DocumentCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		a.replies = &cache.ReplyCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		a.profile = cache.Profile(cfg.Parser, d.Parsers())
	}
	log.Debug().Strs("parsers", d.Parsers()).Strs("formats", d.SupportedFormats()).Msg("dispatcher ready")
	return a, nil
}

func (a *App) prepareCache() {
	dir := a.cfg.CacheDir
	if a.cfg.CacheClear {
		if err := cache.ClearDir(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("cache clear failed")
		} else {
			log.Info().Str("dir", dir).Msg("cache cleared")
		}
	}
	if a.cfg.CacheMaxAge > 0 {
		n, err := cache.PurgeByAge(dir, a.cfg.CacheMaxAge)
		if err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("cache age purge skipped")
		} else if n > 0 {
			log.Info().Int("removed", n).Dur("maxAge", a.cfg.CacheMaxAge).Msg("purged stale cache entries")
		}
	}
	if a.cfg.CacheMaxBytes > 0 || a.cfg.CacheMaxCount > 0 {
		n, err := cache.EnforceLimits(dir, a.cfg.CacheMaxBytes, a.cfg.CacheMaxCount)
		if err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("cache limits skipped")
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("evicted cache entries over limit")
		}
	}
}

// Dispatcher exposes the configured dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// Parse parses one file, consulting the document cache first and bounding
// the parse by ParseTimeout when set.
func (a *App) Parse(ctx context.Context, path string) (document.ParsedDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if a.docs != nil {
		doc, ok, err := a.docs.Load(ctx, abs, a.profile)
		if err != nil {
			log.Warn().Err(err).Str("path", abs).Msg("document cache read failed")
		} else if ok {
			log.Debug().Str("path", abs).Msg("document cache hit")
			return doc, nil
		}
	}

	pctx := ctx
	if a.cfg.ParseTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, a.cfg.ParseTimeout)
		defer cancel()
	}
	start := time.Now()
	doc, err := a.dispatcher.ParseContext(pctx, abs)
	if err != nil {
		return document.ParsedDocument{}, err
	}
	log.Debug().Str("path", abs).Dur("took", time.Since(start)).Msg("parsed")

	if a.docs != nil {
		if err := a.docs.Save(ctx, abs, a.profile, doc); err != nil {
			log.Warn().Err(err).Str("path", abs).Msg("document cache write failed")
		}
	}
	return doc, nil
}

// ParseAll parses every path in order. Failed inputs become placeholder
// documents; the second result counts them. ErrNoDocuments is returned when
// paths is non-empty and every input failed.
func (a *App) ParseAll(ctx context.Context, paths []string) ([]document.ParsedDocument, int, error) {
	docs := make([]document.ParsedDocument, 0, len(paths))
	failed := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return docs, failed, err
		}
		doc, err := a.Parse(ctx, p)
		if err != nil {
			log.Error().Err(err).Str("path", p).Msg("parse failed")
			docs = append(docs, dispatch.Placeholder(p, err))
			failed++
			continue
		}
		docs = append(docs, doc)
	}
	if len(paths) > 0 && failed == len(paths) {
		return docs, failed, ErrNoDocuments
	}
	return docs, failed, nil
}

func defaultClient(cfg Config) llm.Client {
	return llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, newLLMHTTPClient())
}

// NewChat builds a chat session seeded with the given files. Spreadsheets
// are sent as CSV text; other files as their parsed text.
func (a *App) NewChat(ctx context.Context, paths []string) (*chat.Session, []attach.Attachment, error) {
	p := appParser{ctx: ctx, app: a}
	atts := attach.Build(paths, p)
	if len(atts) == 0 && len(paths) > 0 {
		return nil, nil, ErrNoDocuments
	}
	texts := make([]string, 0, len(atts))
	for _, at := range atts {
		texts = append(texts, attach.ContextText(at, p))
	}
	texts = a.fitContext(texts)

	client := a.newClient(a.cfg)
	a.preflight(ctx, client)

	s := chat.NewSession(client, a.cfg.LLMModel, texts)
	if a.cfg.SystemPrompt != "" {
		s.SystemPrompt = a.cfg.SystemPrompt
	}
	s.Temperature = a.cfg.Temperature
	s.Cache = a.replies
	return s, atts, nil
}

// appParser parses attachments through App.Parse so chat seeding shares the
// document cache and the parse deadline.
type appParser struct {
	ctx context.Context
	app *App
}

func (p appParser) CanParse(path string) bool { return p.app.dispatcher.CanParse(path) }

func (p appParser) Parse(path string) (document.ParsedDocument, error) {
	return p.app.Parse(p.ctx, path)
}

// replyReserveTokens is kept free of the context window for the answers.
const replyReserveTokens = 1024

// fitContext trims document texts so the seeded history fits the model's
// context window.
func (a *App) fitContext(texts []string) []string {
	window := a.cfg.LLMContextTokens
	if window <= 0 {
		window = budget.ModelContextTokens(a.cfg.LLMModel)
	}
	system := a.cfg.SystemPrompt
	if system == "" {
		system = chat.DefaultSystemPrompt
	}
	limit := budget.Available(window, system, replyReserveTokens)
	fitted, cut := budget.FitDocuments(texts, limit)
	if cut {
		log.Warn().Int("contextTokens", window).Int("documentTokens", limit).Msg("documents truncated to fit the model context")
	}
	return fitted
}

// preflight lists models when the client supports it. Failure only warns;
// the first chat turn surfaces real connectivity errors.
func (a *App) preflight(ctx context.Context, client llm.Client) {
	lister, ok := client.(llm.ModelLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) == 0 {
		log.Warn().Msg("LLM returned zero models")
		return
	}
	log.Info().Int("count", len(models.Models)).Msg("LLM models available")
}

// WriteJSON writes docs as an indented JSON array.
func WriteJSON(w io.Writer, docs []document.ParsedDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if docs == nil {
		docs = []document.ParsedDocument{}
	}
	return enc.Encode(docs)
}

// summaryPreview is the text excerpt length shown per document.
const summaryPreview = 500

// WriteSummary writes a human-readable digest of each document.
func WriteSummary(w io.Writer, docs []document.ParsedDocument) error {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "== %s ==\n", d.FilePath)
		fmt.Fprintf(&b, "Type: %s\n", d.Type)
		if msg := d.Error(); msg != "" {
			fmt.Fprintf(&b, "Error: %s\n", msg)
			continue
		}
		fmt.Fprintf(&b, "Tables: %d\n", d.TableCount())
		for _, k := range sortedKeys(d.Metadata) {
			fmt.Fprintf(&b, "  %s: %v\n", k, d.Metadata[k])
		}
		for j, t := range d.Tables {
			fmt.Fprintf(&b, "  table %d: %d rows x %d columns\n", j+1, t.NumRows, t.NumColumns)
		}
		if text := strings.TrimSpace(d.Text); text != "" {
			b.WriteString("\n")
			b.WriteString(excerpt(text, summaryPreview))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// excerpt cuts s to at most n runes, marking the cut.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
