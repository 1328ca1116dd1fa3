package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/banshee-data/trackreview/internal/review"
)

// CacheConfig sizes the rendered page and JSON caches.
type CacheConfig struct {
	PageCacheMB    int
	PageTTL        time.Duration
	QueryCacheSize int
}

// CacheManager holds rendered pages in bigcache and plot JSON in an LRU.
// Formatters are idempotent, so a key built from the formatter, the loaded
// datasets and the request parameters identifies one result.
type CacheManager struct {
	pages   *bigcache.BigCache
	configs *lru.Cache[string, []byte]
}

// NewCacheManager creates both caches.
func NewCacheManager(cfg CacheConfig) (*CacheManager, error) {
	ttl := cfg.PageTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	pageConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         ttl,
		CleanWindow:        ttl / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       256 * 1024,
		HardMaxCacheSize:   cfg.PageCacheMB,
		Verbose:            false,
	}
	pages, err := bigcache.New(context.Background(), pageConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	size := cfg.QueryCacheSize
	if size <= 0 {
		size = 256
	}
	configs, err := lru.New[string, []byte](size)
	if err != nil {
		pages.Close()
		return nil, fmt.Errorf("failed to create plot cache: %w", err)
	}
	return &CacheManager{pages: pages, configs: configs}, nil
}

// GetPage returns a rendered page.
func (m *CacheManager) GetPage(key string) ([]byte, bool) {
	data, err := m.pages.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetPage stores a rendered page.
func (m *CacheManager) SetPage(key string, data []byte) error {
	return m.pages.Set(key, data)
}

// GetConfig returns plot JSON.
func (m *CacheManager) GetConfig(key string) ([]byte, bool) {
	return m.configs.Get(key)
}

// SetConfig stores plot JSON.
func (m *CacheManager) SetConfig(key string, data []byte) {
	m.configs.Add(key, data)
}

// Purge empties both caches, as after a dataset reload.
func (m *CacheManager) Purge() {
	m.configs.Purge()
	if err := m.pages.Reset(); err != nil {
		review.Opsf("monitor: failed to reset page cache: %v", err)
	}
}

// Stats returns cache statistics.
func (m *CacheManager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"page_cache_len":   m.pages.Len(),
		"page_cache_cap":   m.pages.Capacity(),
		"config_cache_len": m.configs.Len(),
	}
}

// Close releases the page cache.
func (m *CacheManager) Close() error {
	return m.pages.Close()
}

// PlotKey identifies one plot result. query is encoded in key order so
// parameter order does not matter.
func PlotKey(kind, formatter, datasets string, query url.Values) string {
	h := sha256.New()
	h.Write([]byte(datasets))
	h.Write([]byte{0})
	h.Write([]byte(query.Encode()))
	return fmt.Sprintf("%s:%s:%s", kind, formatter, hex.EncodeToString(h.Sum(nil))[:16])
}
