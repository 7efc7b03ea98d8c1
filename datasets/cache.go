package datasets

import (
	"container/list"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/oculoml/retinaset/dicomio"
	"github.com/oculoml/retinaset/manifest"
)

// volumeCache is a bounded LRU cache of decoded volumes with optional TTL
// expiry, keyed by the hash of the sample key. It keeps hot samples from
// being re-decoded within a batch window without growing past its bound.
type volumeCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	items      map[uint64]*list.Element
}

type cacheEntry struct {
	key   uint64
	vol   *dicomio.Volume
	added time.Time
}

func newVolumeCache(maxEntries int, ttl time.Duration) *volumeCache {
	return &volumeCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		ll:         list.New(),
		items:      make(map[uint64]*list.Element),
	}
}

// cacheKey hashes a sample key into the cache keyspace.
func cacheKey(k manifest.Key) uint64 {
	return xxh3.HashString(k.String())
}

// get returns the cached volume for key, refreshing its recency. Expired
// entries are dropped and reported as misses.
func (c *volumeCache) get(key uint64) (*dicomio.Volume, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*cacheEntry)
	if c.ttl > 0 && time.Since(ent.added) > c.ttl {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return ent.vol, true
}

// put inserts a decoded volume, evicting the least recently used entry when
// over capacity.
func (c *volumeCache) put(key uint64, v *dicomio.Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.vol = v
		ent.added = time.Now()
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, vol: v, added: time.Now()})
	c.items[key] = el
	for c.ll.Len() > c.maxEntries {
		back := c.ll.Back()
		c.ll.Remove(back)
		delete(c.items, back.Value.(*cacheEntry).key)
	}
}

// len returns the current number of cached volumes.
func (c *volumeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
