package boltkv

import (
	"sync"
	"sync/atomic"
)

// bufferPool hands out page-sized (or larger, for multi-page records)
// byte buffers and takes them back, bounded by a byte budget rather than
// an item count: Init is the number of bytes pre-warmed at construction,
// Max is a hard ceiling past which returned buffers are simply dropped
// for the GC to collect. Min is recorded but not enforced: nothing keeps
// the pool from holding less than Min, and sync.Pool may drop idle
// buffers at any GC.
//
// Reclaiming a buffer on the caller's goroutine would make every reader
// pay pool-contention latency inline; instead Put hands the buffer to a
// worker goroutine over a channel and returns immediately.
type bufferPool struct {
	pageSize int
	min, max int64

	pool    sync.Pool
	inUse   int64 // bytes currently checked out
	pooled  int64 // bytes sitting in the pool, pre-warmed or returned
	returns chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
}

// newBufferPool constructs a pool for pageSize-aligned buffers. initBytes
// are pre-warmed immediately; maxBytes bounds how much the pool retains
// across put calls. minBytes is stored only.
func newBufferPool(pageSize int, initBytes, minBytes, maxBytes int64) *bufferPool {
	bp := &bufferPool{
		pageSize: pageSize,
		min:      minBytes,
		max:      maxBytes,
		returns:  make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	bp.pool.New = func() any { return make([]byte, 0) }
	for n := int64(0); n < initBytes; n += int64(pageSize) {
		buf := make([]byte, pageSize)
		bp.pool.Put(buf)
		bp.pooled += int64(pageSize)
	}
	bp.wg.Add(1)
	go bp.drain()
	return bp
}

func (bp *bufferPool) drain() {
	defer bp.wg.Done()
	for {
		select {
		case buf := <-bp.returns:
			bp.reclaim(buf)
		case <-bp.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case buf := <-bp.returns:
					bp.reclaim(buf)
				default:
					return
				}
			}
		}
	}
}

func (bp *bufferPool) reclaim(buf []byte) {
	n := int64(cap(buf))
	atomic.AddInt64(&bp.inUse, -n)
	if atomic.LoadInt64(&bp.pooled)+n > bp.max {
		return // over budget, let the GC have it
	}
	atomic.AddInt64(&bp.pooled, n)
	bp.pool.Put(buf[:0])
}

// get returns a buffer of exactly n bytes, either reused from the pool
// or freshly allocated when the pool is empty.
func (bp *bufferPool) get(n int) []byte {
	v := bp.pool.Get().([]byte)
	if cap(v) >= n {
		atomic.AddInt64(&bp.pooled, -int64(cap(v)))
		atomic.AddInt64(&bp.inUse, int64(cap(v)))
		return v[:n]
	}
	if cap(v) > 0 {
		// Too small for this request (e.g. a single-page buffer being
		// asked to serve a multi-page record); let it be collected and
		// allocate fresh.
		atomic.AddInt64(&bp.pooled, -int64(cap(v)))
	}
	atomic.AddInt64(&bp.inUse, int64(n))
	return make([]byte, n)
}

// put returns buf to the pool. Safe to call from any goroutine; the
// actual reclaim happens asynchronously on the pool's drain worker.
func (bp *bufferPool) put(buf []byte) {
	select {
	case bp.returns <- buf:
	default:
		// Return channel is full (pathological burst); reclaim inline
		// rather than leak the buffer.
		bp.reclaim(buf)
	}
}

// stats is a point-in-time snapshot for Reader.Stats().
type bufferPoolStats struct {
	InUseBytes int64
	PooledBytes int64
}

func (bp *bufferPool) stats() bufferPoolStats {
	return bufferPoolStats{
		InUseBytes:  atomic.LoadInt64(&bp.inUse),
		PooledBytes: atomic.LoadInt64(&bp.pooled),
	}
}

// close stops the drain worker. Buffers already queued in returns are
// reclaimed first; safe to call once, typically from DB.Close.
func (bp *bufferPool) close() {
	close(bp.done)
	bp.wg.Wait()
}
