package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-vehicle-assistant/internal/observability"
)

// Store is the persistent tier of the cache.
type Store interface {
	GetOCR(ctx context.Context, hash string) (string, bool, error)
	PutOCR(ctx context.Context, hash, markdown string) error
}

// Lookup tiers.
const (
	TierMemory   = "memory"
	TierStore    = "store"
	TierProvider = "fetch"
)

// Lookup is the outcome of a cache read.
type Lookup struct {
	Hash string
	Text string
	Tier string
}

// Cache maps image content hashes to OCR text. Entries are never replaced:
// the same bytes always map to the same text. Concurrent lookups of the same
// bytes share one provider call.
type Cache struct {
	store Store

	mu  sync.RWMutex
	mem map[string]string

	group singleflight.Group
}

// NewCache returns a cache backed by store. A nil store keeps entries in
// memory only.
func NewCache(store Store) *Cache {
	return &Cache{store: store, mem: make(map[string]string)}
}

// Hash returns the hex SHA-256 of img.
func Hash(img []byte) string {
	sum := sha256.Sum256(img)
	return hex.EncodeToString(sum[:])
}

// Peek returns a cached text without calling the provider.
func (c *Cache) Peek(ctx context.Context, hash string) (string, bool) {
	if text, ok := c.memGet(hash); ok {
		return text, true
	}
	if c.store == nil {
		return "", false
	}
	text, ok, err := c.store.GetOCR(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Str("hash", hash).Msg("ocr cache read failed")
		return "", false
	}
	if ok {
		c.memPut(hash, text)
	}
	return text, ok
}

// GetOrFetch returns the text for img, calling fetch only when neither tier
// holds it. Fetch errors are returned and nothing is cached.
func (c *Cache) GetOrFetch(ctx context.Context, img []byte, fetch func(context.Context) (string, error)) (Lookup, error) {
	hash := Hash(img)
	if text, ok := c.memGet(hash); ok {
		observability.OCRLookups.WithLabelValues(TierMemory).Inc()
		return Lookup{Hash: hash, Text: text, Tier: TierMemory}, nil
	}

	v, err, _ := c.group.Do(hash, func() (any, error) {
		if text, ok := c.Peek(ctx, hash); ok {
			return Lookup{Hash: hash, Text: text, Tier: TierStore}, nil
		}
		text, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.memPut(hash, text)
		if c.store != nil {
			if err := c.store.PutOCR(ctx, hash, text); err != nil {
				log.Warn().Err(err).Str("hash", hash).Msg("ocr cache write failed")
			}
		}
		return Lookup{Hash: hash, Text: text, Tier: TierProvider}, nil
	})
	if err != nil {
		return Lookup{Hash: hash}, err
	}
	l := v.(Lookup)
	observability.OCRLookups.WithLabelValues(l.Tier).Inc()
	return l, nil
}

// Recognize reads a normalized image through r with caching.
func (c *Cache) Recognize(ctx context.Context, r Recognizer, img []byte, mime string) (Lookup, error) {
	return c.GetOrFetch(ctx, img, func(ctx context.Context) (string, error) {
		return r.RecognizeImage(ctx, img, mime)
	})
}

func (c *Cache) memGet(hash string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.mem[hash]
	return text, ok
}

// memPut keeps the first text stored for hash.
func (c *Cache) memPut(hash, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mem[hash]; !ok {
		c.mem[hash] = text
	}
}
