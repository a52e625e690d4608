package snapshot

import (
	"github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

// DefaultCacheSize is the number of decoded snapshots a Cache holds
// before evicting the least recently used entry.
const DefaultCacheSize = 4

// Cache is a bounded LRU of decoded snapshots keyed by the path string
// passed to Open, so a GUI flipping between a handful of saved captures
// doesn't re-parse and re-inflate them on every view. Paths are not
// normalized, so two spellings of the same file are cached separately.
// It is safe for concurrent use.
type Cache struct {
	fsys  afero.Fs
	inner *lru.Cache[string, *Snapshot]
}

// NewCache constructs a Cache backed by fsys with room for size decoded
// snapshots. A size <= 0 uses DefaultCacheSize.
func NewCache(fsys afero.Fs, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	inner, err := lru.New[string, *Snapshot](size)
	if err != nil {
		return nil, err
	}
	return &Cache{fsys: fsys, inner: inner}, nil
}

// Open returns the decoded Snapshot for path, reusing a cached copy if
// this Cache already opened it.
func (c *Cache) Open(path string) (*Snapshot, error) {
	if snap, ok := c.inner.Get(path); ok {
		return snap, nil
	}

	snap, err := OpenSnapshot(c.fsys, path)
	if err != nil {
		return nil, err
	}
	c.inner.Add(path, snap)
	return snap, nil
}

// Evict removes path from the cache, if present.
func (c *Cache) Evict(path string) {
	c.inner.Remove(path)
}

// Len reports the number of snapshots currently cached.
func (c *Cache) Len() int {
	return c.inner.Len()
}
