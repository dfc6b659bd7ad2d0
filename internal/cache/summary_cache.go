package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

type Entry struct {
	Summary   domain.EarningsSummary
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// SummaryCache holds computed earnings summaries per worker. Summaries
// aggregate the whole earnings table, so serving the dashboard straight
// from Postgres on every request is wasteful; a short TTL keeps the
// numbers fresh enough and Invalidate covers settlement, where staleness
// would actually be visible.
type SummaryCache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	ttl        time.Duration
	maxEntries int
}

func NewSummaryCache(config Config) *SummaryCache {
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 2000
	}
	return &SummaryCache{
		entries:    make(map[string]Entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (c *SummaryCache) Get(userID string) (domain.EarningsSummary, bool) {
	c.mu.RLock()
	entry, exists := c.entries[userID]
	c.mu.RUnlock()

	if !exists {
		return domain.EarningsSummary{}, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, userID)
		c.mu.Unlock()
		return domain.EarningsSummary{}, false
	}
	return entry.Summary, true
}

func (c *SummaryCache) Set(userID string, summary domain.EarningsSummary) {
	now := time.Now().UTC()
	entry := Entry{
		Summary:   summary,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[userID] = entry
}

// Invalidate drops a worker's cached summary. Called after settlement so
// the next dashboard read reflects the new payout immediately.
func (c *SummaryCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func (c *SummaryCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		value Entry
	}
	pairs := make([]pair, 0, len(c.entries))
	for key, value := range c.entries {
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.CreatedAt.Before(pairs[j].value.CreatedAt)
	})
	delete(c.entries, pairs[0].key)
}
