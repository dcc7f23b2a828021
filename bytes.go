// PageBytes unifies the page-backing strategies behind one key/value
// accessor surface: mappedBytes (a borrow
// into the process-wide mmap), pooledBytes (a refcounted buffer drawn
// from the Reader's bufferPool), and lazyBytes (a root page plus
// on-demand overflow fetches). A fourth, embeddedBytes, lives in
// bucket.go. Callers never switch on the concrete type; Kind() exists
// only so tests can report which path served a given read.
package boltkv

import (
	"bytes"
	"sync/atomic"
)

// PageBytesKind discriminates the four PageBytes implementations.
type PageBytesKind int

const (
	KindMapped PageBytesKind = iota
	KindPooled
	KindLazy
	// KindEmbedded marks an inline bucket's leaf view: bytes borrowed
	// directly from a parent leaf's value slot, with no pool or mmap
	// backing of its own (see bucket.go's embeddedBytes).
	KindEmbedded
)

func (k PageBytesKind) String() string {
	switch k {
	case KindMapped:
		return "mapped"
	case KindPooled:
		return "pooled"
	case KindLazy:
		return "lazy"
	case KindEmbedded:
		return "embedded"
	default:
		return "unknown"
	}
}

// PageBytes is the common surface every page-bytes provider implements.
type PageBytes interface {
	Kind() PageBytesKind
	// RootPageBytes returns the first page of the record, page-sized.
	RootPageBytes() []byte
	// PageHeader returns the parsed 16-byte header.
	PageHeader() PageHeader
	// Len returns (overflow+1)*page_size.
	Len() int
	// GetRefSlice returns a view valid for at least as long as this
	// PageBytes is retained.
	GetRefSlice(start, end int) ([]byte, error)
	// GetTxSlice returns a view whose validity does not depend on this
	// PageBytes remaining retained.
	GetTxSlice(start, end int) (TxSlice, error)
	// Retain increments the provider's reference count (no-op for
	// variants with no pooled backing) and returns itself for chaining.
	Retain() PageBytes
	// Release decrements the reference count, returning the backing
	// buffer to its pool on the last release.
	Release()
}

// TxSlice is a byte view whose lifetime is the enclosing transaction's.
type TxSlice struct {
	data    []byte
	release func()
}

// Bytes returns the underlying byte view.
func (s TxSlice) Bytes() []byte { return s.data }

// Release returns any retained buffer backing this slice. Safe to call
// on a zero-value TxSlice.
func (s TxSlice) Release() {
	if s.release != nil {
		s.release()
	}
}

func checkRange(n, start, end int) error {
	if start < 0 || end < start || end > n {
		return &PageError{Kind: PageErrOutOfRange, Detail: "slice range out of bounds"}
	}
	return nil
}

// chunkReader streams bytes without requiring the caller to materialize
// an entire (possibly multi-page) range at once, so lazy cross-overflow
// comparisons don't have to materialize either side in full.
type chunkReader interface {
	remaining() int
	chunk() ([]byte, error)
	advance(n int)
}

type sliceChunkReader struct{ b []byte }

func (s *sliceChunkReader) remaining() int { return len(s.b) }
func (s *sliceChunkReader) chunk() ([]byte, error) {
	return s.b, nil
}
func (s *sliceChunkReader) advance(n int) { s.b = s.b[n:] }

// CompareRanges compares a logical byte range of a against one of b,
// byte-wise, without assuming either is backed by a contiguous slice.
func CompareRanges(a PageBytes, aStart, aEnd int, b PageBytes, bStart, bEnd int) (int, error) {
	ca, err := newChunkReader(a, aStart, aEnd)
	if err != nil {
		return 0, err
	}
	cb, err := newChunkReader(b, bStart, bEnd)
	if err != nil {
		return 0, err
	}
	return compareChunks(ca, cb)
}

func newChunkReader(pb PageBytes, start, end int) (chunkReader, error) {
	if lb, ok := pb.(*lazyBytes); ok {
		return lb.chunkReader(start, end)
	}
	s, err := pb.GetRefSlice(start, end)
	if err != nil {
		return nil, err
	}
	return &sliceChunkReader{b: s}, nil
}

func compareChunks(a, b chunkReader) (int, error) {
	for a.remaining() > 0 && b.remaining() > 0 {
		ca, err := a.chunk()
		if err != nil {
			return 0, &OpsError{Err: err}
		}
		cb, err := b.chunk()
		if err != nil {
			return 0, &OpsError{Err: err}
		}
		n := len(ca)
		if len(cb) < n {
			n = len(cb)
		}
		if n == 0 {
			break
		}
		if c := bytes.Compare(ca[:n], cb[:n]); c != 0 {
			return c, nil
		}
		a.advance(n)
		b.advance(n)
	}
	switch {
	case a.remaining() == 0 && b.remaining() == 0:
		return 0, nil
	case a.remaining() == 0:
		return -1, nil
	default:
		return 1, nil
	}
}

// mappedBytes borrows directly from the process-wide mmap. Its validity
// is the enclosing transaction's: the Reader never unmaps while any
// transaction holds an open read lock (see db.go's mmaplock).
type mappedBytes struct {
	data     []byte
	pageSize int
	header   PageHeader
}

func newMappedBytes(data []byte, pageSize int) *mappedBytes {
	return &mappedBytes{data: data, pageSize: pageSize, header: decodePageHeader(data)}
}

func (m *mappedBytes) Kind() PageBytesKind    { return KindMapped }
func (m *mappedBytes) RootPageBytes() []byte  { return m.data[:m.pageSize] }
func (m *mappedBytes) PageHeader() PageHeader { return m.header }
func (m *mappedBytes) Len() int               { return len(m.data) }

func (m *mappedBytes) GetRefSlice(start, end int) ([]byte, error) {
	if err := checkRange(len(m.data), start, end); err != nil {
		return nil, err
	}
	return m.data[start:end], nil
}

func (m *mappedBytes) GetTxSlice(start, end int) (TxSlice, error) {
	b, err := m.GetRefSlice(start, end)
	if err != nil {
		return TxSlice{}, err
	}
	return TxSlice{data: b}, nil
}

func (m *mappedBytes) Retain() PageBytes { return m }
func (m *mappedBytes) Release()          {}

// pooledBytes is a refcounted, page-sized-or-larger buffer drawn from a
// bufferPool. The last Release returns it to the pool (if the pool still
// has room under its max budget).
type pooledBytes struct {
	data     []byte
	pageSize int
	header   PageHeader
	pool     *bufferPool
	refCount *int32
}

func newPooledBytes(data []byte, pageSize int, pool *bufferPool) *pooledBytes {
	rc := int32(1)
	return &pooledBytes{data: data, pageSize: pageSize, header: decodePageHeader(data), pool: pool, refCount: &rc}
}

func (p *pooledBytes) Kind() PageBytesKind    { return KindPooled }
func (p *pooledBytes) RootPageBytes() []byte  { return p.data[:p.pageSize] }
func (p *pooledBytes) PageHeader() PageHeader { return p.header }
func (p *pooledBytes) Len() int               { return len(p.data) }

func (p *pooledBytes) GetRefSlice(start, end int) ([]byte, error) {
	if err := checkRange(len(p.data), start, end); err != nil {
		return nil, err
	}
	return p.data[start:end], nil
}

func (p *pooledBytes) GetTxSlice(start, end int) (TxSlice, error) {
	b, err := p.GetRefSlice(start, end)
	if err != nil {
		return TxSlice{}, err
	}
	p.Retain()
	return TxSlice{data: b, release: p.Release}, nil
}

func (p *pooledBytes) Retain() PageBytes {
	atomic.AddInt32(p.refCount, 1)
	return p
}

func (p *pooledBytes) Release() {
	if atomic.AddInt32(p.refCount, -1) == 0 && p.pool != nil {
		p.pool.put(p.data)
	}
}

// lazyBytes holds only the root page; overflow pages are fetched through
// reader on first access and cached on the struct for the remainder of
// its lifetime.
type lazyBytes struct {
	id       DiskPageId
	pageSize int
	header   PageHeader
	reader   *Reader
	pages    [][]byte // pages[0] is the root page, always non-nil.
	pool     *bufferPool
	refCount *int32
}

func newLazyBytes(id DiskPageId, root []byte, pageSize int, reader *Reader, pool *bufferPool) *lazyBytes {
	h := decodePageHeader(root)
	pages := make([][]byte, h.Overflow+1)
	pages[0] = root
	rc := int32(1)
	return &lazyBytes{id: id, pageSize: pageSize, header: h, reader: reader, pages: pages, pool: pool, refCount: &rc}
}

func (l *lazyBytes) Kind() PageBytesKind    { return KindLazy }
func (l *lazyBytes) RootPageBytes() []byte  { return l.pages[0] }
func (l *lazyBytes) PageHeader() PageHeader { return l.header }
func (l *lazyBytes) Len() int               { return l.pageSize * int(l.header.Overflow+1) }

// pageAt fetches (and caches) the i'th page of the record, i==0 being
// the already-loaded root.
func (l *lazyBytes) pageAt(i int) ([]byte, error) {
	if i < 0 || i >= len(l.pages) {
		return nil, &PageError{Kind: PageErrOverflowPastEOF, PageId: l.id, Detail: "overflow index out of range"}
	}
	if l.pages[i] != nil {
		return l.pages[i], nil
	}
	buf, err := l.reader.readOverflowPageRaw(l.id, i)
	if err != nil {
		return nil, err
	}
	l.pages[i] = buf
	return buf, nil
}

func (l *lazyBytes) GetRefSlice(start, end int) ([]byte, error) {
	if err := checkRange(l.Len(), start, end); err != nil {
		return nil, err
	}
	startPage, startOff := start/l.pageSize, start%l.pageSize
	endPage, endOff := (end-1)/l.pageSize, (end-1)%l.pageSize
	if startPage == endPage {
		p, err := l.pageAt(startPage)
		if err != nil {
			return nil, err
		}
		return p[startOff : endOff+1], nil
	}
	// Cross-page range: materialize into a fresh buffer. CompareRanges
	// avoids this path entirely via chunkReader; this exists for callers
	// that need a single contiguous []byte (e.g. decoding a key/value).
	out := make([]byte, 0, end-start)
	for pi := startPage; pi <= endPage; pi++ {
		p, err := l.pageAt(pi)
		if err != nil {
			return nil, err
		}
		lo, hi := 0, l.pageSize
		if pi == startPage {
			lo = startOff
		}
		if pi == endPage {
			hi = endOff + 1
		}
		out = append(out, p[lo:hi]...)
	}
	return out, nil
}

func (l *lazyBytes) GetTxSlice(start, end int) (TxSlice, error) {
	b, err := l.GetRefSlice(start, end)
	if err != nil {
		return TxSlice{}, err
	}
	owned := make([]byte, len(b))
	copy(owned, b)
	return TxSlice{data: owned}, nil
}

func (l *lazyBytes) Retain() PageBytes {
	atomic.AddInt32(l.refCount, 1)
	return l
}

func (l *lazyBytes) Release() {
	if atomic.AddInt32(l.refCount, -1) == 0 && l.pool != nil {
		for _, p := range l.pages {
			if p != nil {
				l.pool.put(p)
			}
		}
	}
}

// chunkReader streams this lazy record page-by-page so CompareRanges
// never materializes a cross-overflow range.
func (l *lazyBytes) chunkReader(start, end int) (chunkReader, error) {
	if err := checkRange(l.Len(), start, end); err != nil {
		return nil, err
	}
	return &lazyChunkReader{l: l, pos: start, end: end}, nil
}

type lazyChunkReader struct {
	l   *lazyBytes
	pos int
	end int
}

func (c *lazyChunkReader) remaining() int { return c.end - c.pos }

func (c *lazyChunkReader) chunk() ([]byte, error) {
	if c.pos >= c.end {
		return nil, nil
	}
	pageIdx := c.pos / c.l.pageSize
	off := c.pos % c.l.pageSize
	p, err := c.l.pageAt(pageIdx)
	if err != nil {
		return nil, err
	}
	hi := c.l.pageSize
	if pageIdx == (c.end-1)/c.l.pageSize {
		hi = (c.end-1)%c.l.pageSize + 1
	}
	return p[off:hi], nil
}

func (c *lazyChunkReader) advance(n int) { c.pos += n }
