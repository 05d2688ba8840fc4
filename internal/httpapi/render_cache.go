package httpapi

import (
	"sync"
	"time"
)

// RenderCache is an in-memory TTL cache of rendered share pages keyed by widget identifier.
// A non-positive TTL disables caching.
type RenderCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]cachedPage
}

type cachedPage struct {
	html    string
	expires time.Time
}

func NewRenderCache(ttl time.Duration, now func() time.Time) *RenderCache {
	if now == nil {
		now = time.Now
	}
	return &RenderCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedPage),
	}
}

// GetOrRender returns the cached page for key, or renders and stores it. The boolean reports a hit.
// Render errors are returned without storing anything.
func (cache *RenderCache) GetOrRender(key string, render func() (string, error)) (string, bool, error) {
	if html, ok := cache.get(key); ok {
		return html, true, nil
	}
	html, err := render()
	if err != nil {
		return "", false, err
	}
	cache.set(key, html)
	return html, false, nil
}

// Invalidate drops the entries of the given keys.
func (cache *RenderCache) Invalidate(keys ...string) {
	if cache == nil {
		return
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for _, key := range keys {
		delete(cache.entries, key)
	}
}

// PurgeExpired removes entries expired at now and returns how many were removed.
func (cache *RenderCache) PurgeExpired(now time.Time) int {
	if cache == nil {
		return 0
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	removed := 0
	for key, entry := range cache.entries {
		if !now.Before(entry.expires) {
			delete(cache.entries, key)
			removed++
		}
	}
	return removed
}

func (cache *RenderCache) Len() int {
	if cache == nil {
		return 0
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}

func (cache *RenderCache) get(key string) (string, bool) {
	if cache == nil || cache.ttl <= 0 {
		return "", false
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry, ok := cache.entries[key]
	if !ok {
		return "", false
	}
	if !cache.now().Before(entry.expires) {
		delete(cache.entries, key)
		return "", false
	}
	return entry.html, true
}

func (cache *RenderCache) set(key string, html string) {
	if cache == nil || cache.ttl <= 0 {
		return
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[key] = cachedPage{html: html, expires: cache.now().Add(cache.ttl)}
}
