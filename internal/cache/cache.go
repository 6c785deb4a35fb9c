// Package cache provides the bounded, time-expiring parse-result store.
// Entries are evicted by TTL (checked lazily on read plus a periodic
// sweep) and by LRU when capacity is exceeded. The cache is owned by the
// parser facade; construction and teardown are explicit.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// Config bounds the cache.
type Config struct {
	MaxEntries    int
	TTL           time.Duration
	SweepInterval time.Duration
}

type entry struct {
	key            string
	result         *models.ParsedContent
	createdAt      time.Time
	lastAccessedAt time.Time
}

// ResultCache is a fixed-capacity LRU with TTL expiry.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  *Config
	logger  logger.Logger
	stop    chan struct{}
	done    chan struct{}

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

// NewResultCache creates the cache and starts its sweep goroutine. A nil
// config gets the defaults: 50 entries, 15 min TTL, 5 min sweep.
func NewResultCache(log logger.Logger, config *Config) *ResultCache {
	if config == nil {
		config = &Config{
			MaxEntries:    50,
			TTL:           15 * time.Minute,
			SweepInterval: 5 * time.Minute,
		}
	}
	c := &ResultCache{
		entries: make(map[string]*entry),
		config:  config,
		logger:  log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go c.sweepLoop()
	return c
}

// Key derives the deterministic fingerprint for a document reference.
// The hour bucket bounds staleness: identical requests within the same
// hour share an entry, the next hour forces a fresh parse.
func Key(ref models.DocumentReference) string {
	hourBucket := time.Now().UTC().Format("2006010215")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", ref.URL, ref.Type, ref.Name, hourBucket)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for key, or false. Expired entries are
// removed on the spot.
func (c *ResultCache) Get(key string) (*models.ParsedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.config.TTL {
		delete(c.entries, key)
		return nil, false
	}
	e.lastAccessedAt = c.now()
	return e.result, true
}

// Put stores a result, evicting the least-recently-used entry on overflow.
func (c *ResultCache) Put(key string, result *models.ParsedContent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		c.evictOldest()
	}
	now := c.now()
	c.entries[key] = &entry{
		key:            key,
		result:         result,
		createdAt:      now,
		lastAccessedAt: now,
	}
}

// Len reports the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep goroutine and clears all entries.
func (c *ResultCache) Close() {
	close(c.stop)
	<-c.done
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *ResultCache) evictOldest() {
	var oldest *entry
	for _, e := range c.entries {
		if oldest == nil || e.lastAccessedAt.Before(oldest.lastAccessedAt) {
			oldest = e
		}
	}
	if oldest != nil {
		delete(c.entries, oldest.key)
	}
}

func (c *ResultCache) sweepLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *ResultCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.now().Sub(e.createdAt) > c.config.TTL {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Swept expired cache entries",
			logger.Int("removed", removed),
			logger.Int("remaining", len(c.entries)),
		)
	}
}
