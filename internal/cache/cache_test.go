package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

func newTestCache(t *testing.T, config *Config) *ResultCache {
	t.Helper()
	c := NewResultCache(logger.NewTestLogger(), config)
	t.Cleanup(c.Close)
	return c
}

func result(text string) *models.ParsedContent {
	return &models.ParsedContent{Text: text, Success: true}
}

func TestCachePutGet(t *testing.T) {
	c := newTestCache(t, nil)

	c.Put("k1", result("hello"))
	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t, &Config{MaxEntries: 10, TTL: time.Minute, SweepInterval: time.Hour})

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("k1", result("x"))
	_, ok := c.Get("k1")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k1")
	assert.False(t, ok, "expired entry removed on read")
	assert.Equal(t, 0, c.Len())
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	c := newTestCache(t, &Config{MaxEntries: 10, TTL: time.Minute, SweepInterval: time.Hour})

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("k1", result("a"))
	c.Put("k2", result("b"))
	now = now.Add(2 * time.Minute)
	c.sweep()

	assert.Equal(t, 0, c.Len())
}

func TestCacheLRUEviction(t *testing.T) {
	c := newTestCache(t, &Config{MaxEntries: 3, TTL: time.Hour, SweepInterval: time.Hour})

	now := time.Now()
	c.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), result("x"))
		now = now.Add(time.Second)
	}

	// Touch k1 so k2 becomes the least recently used.
	_, ok := c.Get("k1")
	require.True(t, ok)
	now = now.Add(time.Second)

	c.Put("k4", result("y"))

	_, ok = c.Get("k2")
	assert.False(t, ok, "least recently used entry evicted")
	for _, key := range []string{"k1", "k3", "k4"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %s survives", key)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(t, &Config{MaxEntries: 2, TTL: time.Hour, SweepInterval: time.Hour})

	c.Put("k1", result("a"))
	c.Put("k2", result("b"))
	c.Put("k1", result("a2"))

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "a2", got.Text)
	_, ok = c.Get("k2")
	assert.True(t, ok)
}

func TestKeyDeterministicWithinHour(t *testing.T) {
	ref := models.DocumentReference{URL: "https://example.com/a.pdf", Type: models.TypePDF, Name: "a.pdf"}
	assert.Equal(t, Key(ref), Key(ref))

	other := ref
	other.URL = "https://example.com/b.pdf"
	assert.NotEqual(t, Key(ref), Key(other))

	retyped := ref
	retyped.Type = models.TypeDOCX
	assert.NotEqual(t, Key(ref), Key(retyped), "claimed type is part of the fingerprint")
}
