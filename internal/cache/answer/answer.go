// Package answer caches chairman syntheses keyed by the exact question and
// the settings that shape the answer. A hit replays the synthesis without
// convening the council.
package answer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"edgejury/internal/council"
)

type Config struct {
	MaxEntries int
	TTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxEntries: 512,
		TTL:        10 * time.Minute,
	}
}

type Cache struct {
	lru    *expirable.LRU[string, council.Stage3Result]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func New(cfg Config) *Cache {
	def := DefaultConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return &Cache{
		lru: expirable.NewLRU[string, council.Stage3Result](cfg.MaxEntries, nil, cfg.TTL),
	}
}

func (c *Cache) Lookup(question string, settings council.Settings) (council.Stage3Result, bool) {
	if c == nil {
		return council.Stage3Result{}, false
	}
	res, ok := c.lru.Get(Key(question, settings))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return res, ok
}

func (c *Cache) Store(question string, settings council.Settings, result council.Stage3Result) {
	if c == nil || strings.TrimSpace(result.FinalAnswer) == "" {
		return
	}
	c.lru.Add(Key(question, settings), result)
}

func (c *Cache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Key hashes the question together with every setting that changes the
// synthesized answer. Verification mode is deliberately excluded: stage 4
// annotates the answer but never alters it.
func Key(question string, settings council.Settings) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%t|%t",
		strings.TrimSpace(question),
		settings.CouncilSize,
		settings.EnableCrossReview,
		settings.AnonymizeReviews,
	)
	return hex.EncodeToString(h.Sum(nil))
}
