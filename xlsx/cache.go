package xlsx

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rs/zerolog"
)

// DefaultCacheSize is the sheet-cache capacity used when the caller
// configures none.
const DefaultCacheSize = 8

// sheetCache holds materialized sheets keyed by sheet name, evicting the
// least-recently-used entry when an insertion would exceed capacity. The
// cache exclusively owns its snapshots; eviction drops the cache's
// reference, callers holding a snapshot keep a valid read-only view.
//
// The cache does no locking of its own. Concurrent materialization on one
// workbook needs external synchronization, per the container's
// concurrency contract.
type sheetCache struct {
	entries *lru.Cache[string, *Sheet]
}

func newSheetCache(capacity int, log zerolog.Logger) *sheetCache {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	entries, err := lru.NewWithEvict(capacity, func(key string, _ *Sheet) {
		log.Debug().Str("sheet", key).Msg("evicting cached sheet")
	})
	if err != nil {
		// lru.NewWithEvict only fails on a non-positive size.
		panic(err)
	}
	return &sheetCache{entries: entries}
}

// get returns the cached snapshot and marks it most-recently-used.
func (c *sheetCache) get(key string) (*Sheet, bool) {
	return c.entries.Get(key)
}

// add inserts a snapshot, evicting the LRU entry if at capacity.
func (c *sheetCache) add(key string, s *Sheet) {
	c.entries.Add(key, s)
}

// remove drops one entry, for callers that know the underlying part
// changed.
func (c *sheetCache) remove(key string) {
	c.entries.Remove(key)
}

func (c *sheetCache) len() int {
	return c.entries.Len()
}
