package boltkv

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// pageCache is the optional, size-bounded layer in front of a Reader's
// backend: at most one I/O is ever in flight per missing DiskPageId
// (coalesced via singleflight), and eviction is LRU over a configured
// page-count budget.
//
// The cache holds one PageBytes reference per entry; every Get call that
// returns a cached (or freshly loaded) value bumps the refcount once
// more for the caller, who must Release it. Eviction releases the
// cache's own reference.
type pageCache struct {
	cache *lru.Cache[DiskPageId, PageBytes]
	group singleflight.Group

	hits, misses, inFlight, evictions int64
}

// newPageCache builds a cache holding up to capacity entries. capacity
// must be positive: the LRU constructor rejects anything else with an
// error, so callers that want no cache skip this call entirely.
func newPageCache(capacity int) (*pageCache, error) {
	pc := &pageCache{}
	c, err := lru.NewWithEvict[DiskPageId, PageBytes](capacity, func(_ DiskPageId, v PageBytes) {
		atomic.AddInt64(&pc.evictions, 1)
		v.Release()
	})
	if err != nil {
		return nil, err
	}
	pc.cache = c
	return pc, nil
}

// getOrLoad returns the PageBytes for id, retained once on behalf of the
// caller, loading it via load on a cache miss. Concurrent callers for
// the same id share a single load call.
func (pc *pageCache) getOrLoad(id DiskPageId, load func() (PageBytes, error)) (PageBytes, error) {
	if v, ok := pc.cache.Get(id); ok {
		atomic.AddInt64(&pc.hits, 1)
		return v.Retain(), nil
	}
	atomic.AddInt64(&pc.misses, 1)
	v, err, _ := pc.group.Do(uint64Key(id), func() (any, error) {
		atomic.AddInt64(&pc.inFlight, 1)
		defer atomic.AddInt64(&pc.inFlight, -1)
		loaded, err := load()
		if err != nil {
			return nil, err
		}
		pc.cache.Add(id, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	// Every caller sharing the load takes its own reference.
	return v.(PageBytes).Retain(), nil
}

func uint64Key(id DiskPageId) string {
	// singleflight keys on string; a fixed-width decimal render is cheap
	// and collision-free for the uint64 domain.
	var buf [20]byte
	n := len(buf)
	x := uint64(id)
	if x == 0 {
		return "0"
	}
	for x > 0 {
		n--
		buf[n] = byte('0' + x%10)
		x /= 10
	}
	return string(buf[n:])
}

// cacheStats is the cache portion of Reader.Stats().
type cacheStats struct {
	Hits      int64
	Misses    int64
	InFlight  int64
	Evictions int64
	Len       int
}

func (pc *pageCache) stats() cacheStats {
	return cacheStats{
		Hits:      atomic.LoadInt64(&pc.hits),
		Misses:    atomic.LoadInt64(&pc.misses),
		InFlight:  atomic.LoadInt64(&pc.inFlight),
		Evictions: atomic.LoadInt64(&pc.evictions),
		Len:       pc.cache.Len(),
	}
}

func (pc *pageCache) purge() {
	pc.cache.Purge()
}
