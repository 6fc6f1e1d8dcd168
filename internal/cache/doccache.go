package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hyperifyio/docparse/internal/document"
)

// DocEntry records which version of a source file a cached document was
// parsed from.
type DocEntry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// Profile distinguishes parser configurations sharing one cache.
	Profile string    `json:"profile"`
	SavedAt time.Time `json:"saved_at"`
}

// DocumentCache stores parsed documents as <key>.meta.json and
// <key>.doc.json where key is sha256(path, profile). An entry is stale once
// the source file's size or modification time changes.
type DocumentCache struct {
	Dir         string
	StrictPerms bool
}

func (c *DocumentCache) key(path, profile string) string {
	h := sha256.Sum256([]byte(path + "\x00" + profile))
	return hex.EncodeToString(h[:])
}

func (c *DocumentCache) metaPath(key string) string { return filepath.Join(c.Dir, key+".meta.json") }
func (c *DocumentCache) docPath(key string) string  { return filepath.Join(c.Dir, key+".doc.json") }

// Profile fingerprints the parser settings that change parse output.
func Profile(cfg document.ParserConfig, parsers []string) string {
	cfg = cfg.Normalize()
	return fmt.Sprintf("tables=%t;images=%t;encoding=%s;maxmb=%d;parsers=%v",
		cfg.ExtractTables, cfg.ExtractImages, cfg.Encoding, cfg.MaxFileSizeMB, parsers)
}

// Load returns the cached document for path when its entry still matches
// the file on disk.
func (c *DocumentCache) Load(_ context.Context, path, profile string) (document.ParsedDocument, bool, error) {
	if c == nil {
		return document.ParsedDocument{}, false, errors.New("cache dir not configured")
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return document.ParsedDocument{}, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return document.ParsedDocument{}, false, nil
	}
	key := c.key(path, profile)
	b, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return document.ParsedDocument{}, false, nil
	}
	var e DocEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return document.ParsedDocument{}, false, nil
	}
	if e.Size != info.Size() || !e.ModTime.Equal(info.ModTime().UTC()) || e.Profile != profile {
		return document.ParsedDocument{}, false, nil
	}
	body, err := os.ReadFile(c.docPath(key))
	if err != nil {
		return document.ParsedDocument{}, false, nil
	}
	var doc document.ParsedDocument
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return document.ParsedDocument{}, false, fmt.Errorf("decode cached document: %w", err)
	}
	if doc.Tables == nil {
		doc.Tables = []document.Table{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	restoreMetadata(doc.Metadata)
	return doc, true, nil
}

// restoreMetadata undoes JSON's widening of parser metadata: integral
// numbers come back as int and lists of strings as []string.
func restoreMetadata(m map[string]any) {
	for k, v := range m {
		m[k] = restoreValue(v)
	}
}

func restoreValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(t.String()); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		strs := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				for i := range t {
					t[i] = restoreValue(t[i])
				}
				return t
			}
			strs = append(strs, s)
		}
		return strs
	case map[string]any:
		restoreMetadata(t)
	}
	return v
}

// Save stores doc as the parse of path under profile.
func (c *DocumentCache) Save(_ context.Context, path, profile string, doc document.ParsedDocument) error {
	if c == nil {
		return errors.New("cache dir not configured")
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	key := c.key(path, profile)
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	mode := fileMode(c.StrictPerms)
	// Body first so a visible meta file always has a body.
	if err := os.WriteFile(c.docPath(key), body, mode); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	meta := DocEntry{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Profile: profile,
		SavedAt: time.Now().UTC(),
	}
	mb, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, mb, mode); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, c.metaPath(key))
}
