package main

import (
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const fsProbeCacheSize = 8192

// FsProbeCache memoizes file/directory stat probes. Entries are only trusted
// for a short window so that editors observing live file churn never see
// stale answers for long; the whole cache is flushed when the window expires.
type FsProbeCache struct {
	mu        sync.Mutex
	files     *lru.Cache[string, bool]
	dirs      *lru.Cache[string, bool]
	flushedAt time.Time
	ttl       time.Duration
}

func NewFsProbeCache() *FsProbeCache {
	files, _ := lru.New[string, bool](fsProbeCacheSize)
	dirs, _ := lru.New[string, bool](fsProbeCacheSize)
	return &FsProbeCache{
		files:     files,
		dirs:      dirs,
		flushedAt: time.Now(),
		ttl:       time.Second,
	}
}

func (c *FsProbeCache) maybeFlushLocked() {
	if time.Since(c.flushedAt) < c.ttl {
		return
	}
	c.files.Purge()
	c.dirs.Purge()
	c.flushedAt = time.Now()
}

// IsFile reports whether path exists and is a regular file.
func (c *FsProbeCache) IsFile(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeFlushLocked()
	if v, ok := c.files.Get(path); ok {
		return v
	}
	info, err := os.Stat(DenormalizePathForOS(path))
	v := err == nil && !info.IsDir()
	c.files.Add(path, v)
	return v
}

// IsDirectory reports whether path exists and is a directory.
func (c *FsProbeCache) IsDirectory(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeFlushLocked()
	if v, ok := c.dirs.Get(path); ok {
		return v
	}
	info, err := os.Stat(DenormalizePathForOS(path))
	v := err == nil && info.IsDir()
	c.dirs.Add(path, v)
	return v
}

func (c *FsProbeCache) IsFileOrDirectory(path string) bool {
	return c.IsFile(path) || c.IsDirectory(path)
}

// Invalidate drops all cached probes immediately.
func (c *FsProbeCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files.Purge()
	c.dirs.Purge()
	c.flushedAt = time.Now()
}
