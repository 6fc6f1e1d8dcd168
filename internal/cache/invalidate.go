package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

type entryFile struct {
	paths   []string
	size    int64
	modTime time.Time
}

// entries groups cache files by key. A document entry is its meta and doc
// files; a reply entry is a single .json file.
func entries(dir string) ([]entryFile, error) {
	byKey := map[string]*entryFile{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		var key string
		switch {
		case strings.HasSuffix(name, ".meta.json"):
			key = strings.TrimSuffix(name, ".meta.json")
		case strings.HasSuffix(name, ".doc.json"):
			key = strings.TrimSuffix(name, ".doc.json")
		case strings.HasSuffix(name, ".json"):
			key = strings.TrimSuffix(name, ".json")
		default:
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		e := byKey[key]
		if e == nil {
			e = &entryFile{}
			byKey[key] = e
		}
		e.paths = append(e.paths, path)
		e.size += info.Size()
		if info.ModTime().After(e.modTime) {
			e.modTime = info.ModTime()
		}
		return nil
	})
	out := make([]entryFile, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, *e)
	}
	return out, err
}

func (e entryFile) remove() {
	for _, p := range e.paths {
		_ = os.Remove(p)
	}
}

// PurgeByAge removes entries whose newest file is older than maxAge.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	list, err := entries(dir)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, e := range list {
		if now.Sub(e.modTime) > maxAge {
			e.remove()
			removed++
		}
	}
	return removed, nil
}

// EnforceLimits evicts least recently used entries until the cache holds at
// most maxCount entries and maxBytes bytes. A zero limit is not enforced.
func EnforceLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	list, err := entries(dir)
	if err != nil {
		return 0, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].modTime.Before(list[j].modTime) })
	var total int64
	for _, e := range list {
		total += e.size
	}
	removed := 0
	for len(list) > 0 {
		overCount := maxCount > 0 && len(list) > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		list[0].remove()
		total -= list[0].size
		list = list[1:]
		removed++
	}
	return removed, nil
}
