// Package cache keeps chat replies and parsed documents on disk so repeated
// runs over the same inputs skip the model call or the parse.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ReplyCache stores model replies keyed by a digest of model name and
// transcript.
type ReplyCache struct {
	Dir string
	// StrictPerms enforces 0700 on the directory and 0600 on entries.
	StrictPerms bool
}

func ensureDir(dir string, strict bool) error {
	if dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if strict {
		perm = 0o700
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	// MkdirAll leaves an existing directory alone.
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

func fileMode(strict bool) os.FileMode {
	if strict {
		return 0o600
	}
	return 0o644
}

// KeyFrom builds a cache key from a model name and a transcript.
func KeyFrom(model string, transcript string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + transcript))
	return hex.EncodeToString(h[:])
}

func (c *ReplyCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the cached reply for key, if any.
func (c *ReplyCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, errors.New("cache dir not configured")
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	// mtime tracks last use for EnforceLimits.
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes a reply under key.
func (c *ReplyCache) Save(_ context.Context, key string, data []byte) error {
	if c == nil {
		return errors.New("cache dir not configured")
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	return os.WriteFile(c.pathFor(key), data, fileMode(c.StrictPerms))
}
