package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
)

const pageFileExt = ".json"

// PageCache stores one opaque JSON record per crawled URL with a memory
// footprint bounded independently of site size. Every record lives in its
// own file; a capacity-bounded in-memory map fronts the files. Eviction is
// by insertion order: a cache hit does not extend an entry's lifetime, so
// the resident set is the most recently *written* records, not the most
// recently read ones.
type PageCache struct {
	mu       sync.Mutex
	dir      string
	capacity int
	entries  map[string]json.RawMessage
	order    []string // insertion order of resident keys
	logger   arbor.ILogger
}

// NewPageCache creates a cache rooted at dir with the given memory capacity
// (records, not bytes). Capacity below 1 falls back to 100.
func NewPageCache(dir string, capacity int, logger arbor.ILogger) (*PageCache, error) {
	if capacity < 1 {
		capacity = 100
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create page cache directory %s: %w", dir, err)
	}
	return &PageCache{
		dir:      dir,
		capacity: capacity,
		entries:  make(map[string]json.RawMessage),
		logger:   logger,
	}, nil
}

// Set writes the record to its per-URL file synchronously, then upserts it
// into the in-memory cache, evicting the oldest-inserted entry when the
// capacity is exceeded.
func (c *PageCache) Set(url string, data json.RawMessage) error {
	if err := os.WriteFile(c.filePath(url), data, 0o644); err != nil {
		return fmt.Errorf("failed to write page record for %s: %w", url, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(url, data)
	return nil
}

// Get returns the record for a URL, reading it from disk (and populating
// the cache) when it is not memory-resident. The boolean is false when no
// record exists anywhere.
func (c *PageCache) Get(url string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	if data, ok := c.entries[url]; ok {
		c.mu.Unlock()
		return data, true, nil
	}
	c.mu.Unlock()

	data, err := os.ReadFile(c.filePath(url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read page record for %s: %w", url, err)
	}

	c.mu.Lock()
	c.insertLocked(url, data)
	c.mu.Unlock()
	return data, true, nil
}

// Has reports whether a record exists in memory or on disk, without
// promoting it into memory.
func (c *PageCache) Has(url string) bool {
	c.mu.Lock()
	_, resident := c.entries[url]
	c.mu.Unlock()
	if resident {
		return true
	}
	_, err := os.Stat(c.filePath(url))
	return err == nil
}

// Delete removes the record from memory and disk. Deleting an absent record
// is a no-op.
func (c *PageCache) Delete(url string) error {
	c.mu.Lock()
	if _, ok := c.entries[url]; ok {
		delete(c.entries, url)
		c.removeFromOrderLocked(url)
	}
	c.mu.Unlock()

	if err := os.Remove(c.filePath(url)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete page record for %s: %w", url, err)
	}
	return nil
}

// Iterate yields every stored record exactly once: first the memory-resident
// entries, then every on-disk record not already yielded. The full data set
// is never materialized in memory. Iteration stops on the first callback
// error.
func (c *PageCache) Iterate(fn func(url string, data json.RawMessage) error) error {
	c.mu.Lock()
	yielded := make(map[string]struct{}, len(c.entries))
	resident := make([]struct {
		url  string
		data json.RawMessage
	}, 0, len(c.entries))
	for _, url := range c.order {
		resident = append(resident, struct {
			url  string
			data json.RawMessage
		}{url, c.entries[url]})
		yielded[url] = struct{}{}
	}
	c.mu.Unlock()

	for _, entry := range resident {
		if err := fn(entry.url, entry.data); err != nil {
			return err
		}
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to list page cache directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		url, ok := decodePageKey(file.Name())
		if !ok {
			continue
		}
		if _, seen := yielded[url]; seen {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read page record %s: %w", file.Name(), err)
		}
		if err := fn(url, data); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes the entire on-disk store, resets the in-memory cache, and
// recreates the storage directory so subsequent writes succeed immediately.
func (c *PageCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to clear page cache: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to reinitialize page cache: %w", err)
	}
	c.entries = make(map[string]json.RawMessage)
	c.order = c.order[:0]
	return nil
}

// ResidentCount returns the number of memory-resident records.
func (c *PageCache) ResidentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// insertLocked upserts an entry. An update keeps the entry's original
// insertion position; only genuinely new entries can trigger eviction.
func (c *PageCache) insertLocked(url string, data json.RawMessage) {
	if _, ok := c.entries[url]; ok {
		c.entries[url] = data
		return
	}
	c.entries[url] = data
	c.order = append(c.order, url)
	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *PageCache) removeFromOrderLocked(url string) {
	for i, u := range c.order {
		if u == url {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *PageCache) filePath(url string) string {
	return filepath.Join(c.dir, encodePageKey(url))
}

// encodePageKey maps a URL to a path-safe filename the URL can be recovered
// from. Base64 URL alphabet without padding keeps the mapping reversible on
// any filesystem.
func encodePageKey(url string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(url)) + pageFileExt
}

func decodePageKey(name string) (string, bool) {
	if !strings.HasSuffix(name, pageFileExt) {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, pageFileExt))
	if err != nil {
		return "", false
	}
	return string(raw), true
}
