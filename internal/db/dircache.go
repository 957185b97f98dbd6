package db

import (
	"container/list"
	"database/sql"
	"sync"

	"github.com/michaelscutari/readdir/internal/entry"
)

const rollupCacheSize = 4096

// rollupCache is an LRU of rollups by directory path. Snapshots are
// read-only once finalized, so entries never go stale.
type rollupCache struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[string]*list.Element
}

func newRollupCache(max int) *rollupCache {
	return &rollupCache{
		max:   max,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *rollupCache) Get(path string) (entry.Rollup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(entry.Rollup), true
	}
	return entry.Rollup{}, false
}

func (c *rollupCache) Set(r entry.Rollup) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[r.Path]; ok {
		el.Value = r
		c.ll.MoveToFront(el)
		return
	}

	c.items[r.Path] = c.ll.PushFront(r)

	if c.ll.Len() > c.max {
		last := c.ll.Back()
		if last == nil {
			return
		}
		c.ll.Remove(last)
		delete(c.items, last.Value.(entry.Rollup).Path)
	}
}

func (c *rollupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

var dbRollupCaches sync.Map // map[*sql.DB]*rollupCache

func getRollupCache(db *sql.DB) *rollupCache {
	if db == nil {
		return nil
	}
	if existing, ok := dbRollupCaches.Load(db); ok {
		return existing.(*rollupCache)
	}
	cache := newRollupCache(rollupCacheSize)
	actual, _ := dbRollupCaches.LoadOrStore(db, cache)
	return actual.(*rollupCache)
}

// ForgetCache drops the rollup cache of a database that is being closed.
func ForgetCache(db *sql.DB) {
	dbRollupCaches.Delete(db)
}
