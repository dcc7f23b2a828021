// Reader is the transaction-scoped entry point for turning DiskPageIds
// into PageBytes. It is constructed once per backend
// (mmap, eager file, or lazy file) and shared read-only across however
// many transactions are open concurrently; nothing here mutates state
// that matters across a reopen.
package boltkv

import (
	"io"
)

// ReaderMode selects which of the three fetch strategies a Reader uses.
type ReaderMode int

const (
	// ModeMapped serves every read as a zero-copy slice of a live mmap.
	ModeMapped ReaderMode = iota
	// ModeEagerFile reads a record's root page, then any overflow pages
	// in one further ReadAt call, and returns the full
	// (1+overflow)*page_size span as a single pooled buffer.
	ModeEagerFile
	// ModeLazyFile reads only the root page up front; overflow pages are
	// fetched one at a time, only when something actually dereferences
	// past the root.
	ModeLazyFile
)

// Reader turns DiskPageIds into PageBytes, optionally coalescing and
// caching the underlying I/O.
type Reader struct {
	pageSize   int
	mode       ReaderMode
	ra         io.ReaderAt
	mmapData   []byte
	pool       *bufferPool
	cache      *pageCache // nil disables caching
	translator PageTranslator
	knownEOF   DiskPageId
}

// NewMappedReader builds a Reader that serves every page from data, a
// live mmap of the whole file.
func NewMappedReader(pageSize int, data []byte, pool *bufferPool, cache *pageCache, translator PageTranslator) *Reader {
	return &Reader{pageSize: pageSize, mode: ModeMapped, mmapData: data, pool: pool, cache: cache, translator: translator}
}

// NewFileReader builds a Reader backed by ra (typically *os.File),
// fetching either eagerly (the whole record up front: root page, then
// its overflow) or lazily (root page first, overflow on demand)
// depending on mode.
func NewFileReader(pageSize int, ra io.ReaderAt, mode ReaderMode, pool *bufferPool, cache *pageCache, translator PageTranslator) *Reader {
	return &Reader{pageSize: pageSize, mode: mode, ra: ra, pool: pool, cache: cache, translator: translator}
}

// SetKnownEOF records the current EOFPageId from the active meta, used
// only to annotate IOError.Known on an unexpected short read.
func (r *Reader) SetKnownEOF(id EOFPageId) { r.knownEOF = DiskPageId(id) }

func (r *Reader) offset(id DiskPageId) int64 { return int64(id) * int64(r.pageSize) }

func (r *Reader) readAt(buf []byte, off int64, id DiskPageId) error {
	n, err := r.ra.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return &IOError{Kind: IOErrKindRead, PageId: id, Err: err}
	}
	if n < len(buf) {
		return &IOError{Kind: IOErrKindUnexpectedEOF, PageId: id, Known: r.knownEOF}
	}
	return nil
}

// ReadMeta reads and validates the meta record at id. Meta pages are
// always exactly one page wide with no overflow, so this bypasses the
// page cache; file-backed modes borrow one pool buffer for the duration
// of the call.
func (r *Reader) ReadMeta(id MetaPageId) (Meta, error) {
	diskID := id.Disk()
	var header []byte
	if r.mode == ModeMapped {
		off := r.offset(diskID)
		if off+int64(r.pageSize) > int64(len(r.mmapData)) {
			return Meta{}, &IOError{Kind: IOErrKindUnexpectedEOF, PageId: diskID, Known: r.knownEOF}
		}
		header = r.mmapData[off : off+int64(r.pageSize)]
	} else {
		buf := r.pool.get(r.pageSize)
		defer r.pool.put(buf)
		if err := r.readAt(buf, r.offset(diskID), diskID); err != nil {
			return Meta{}, err
		}
		header = buf
	}
	ph := decodePageHeader(header)
	if ph.Flags&metaPageFlag == 0 {
		return Meta{}, &PageError{Kind: PageErrInvalidPageFlag, PageId: diskID, Detail: "expected meta page, got " + ph.typ()}
	}
	body := header[pageHeaderSize : pageHeaderSize+metaSize]
	m := decodeMeta(body)
	if m.checksumOf(body) != m.Checksum {
		return Meta{}, ErrChecksum
	}
	return m, nil
}

// readRecord is the shared path for multi-page records (freelist/node
// pages): cache lookup, singleflight-coalesced load on miss, dispatch to
// the configured backend.
func (r *Reader) readRecord(id DiskPageId) (PageBytes, error) {
	load := func() (PageBytes, error) { return r.loadRecord(id) }
	if r.cache != nil {
		return r.cache.getOrLoad(id, load)
	}
	return load()
}

func (r *Reader) loadRecord(id DiskPageId) (PageBytes, error) {
	switch r.mode {
	case ModeMapped:
		return r.loadMapped(id)
	case ModeEagerFile:
		return r.loadEager(id)
	default:
		return r.loadLazy(id)
	}
}

func (r *Reader) loadMapped(id DiskPageId) (PageBytes, error) {
	off := r.offset(id)
	if off+int64(r.pageSize) > int64(len(r.mmapData)) {
		return nil, &IOError{Kind: IOErrKindUnexpectedEOF, PageId: id, Known: r.knownEOF}
	}
	header := decodePageHeader(r.mmapData[off : off+int64(r.pageSize)])
	total := int64(header.Overflow+1) * int64(r.pageSize)
	if off+total > int64(len(r.mmapData)) {
		return nil, &PageError{Kind: PageErrOverflowPastEOF, PageId: id, Detail: "overflow extends past mapped region"}
	}
	return newMappedBytes(r.mmapData[off:off+total], r.pageSize), nil
}

func (r *Reader) loadEager(id DiskPageId) (PageBytes, error) {
	first := r.pool.get(r.pageSize)
	if err := r.readAt(first, r.offset(id), id); err != nil {
		r.pool.put(first)
		return nil, err
	}
	header := decodePageHeader(first)
	if header.Overflow == 0 {
		return newPooledBytes(first, r.pageSize, r.pool), nil
	}
	total := int(header.Overflow+1) * r.pageSize
	full := r.pool.get(total)
	copy(full, first)
	r.pool.put(first)
	if err := r.readAt(full[r.pageSize:], r.offset(id)+int64(r.pageSize), id); err != nil {
		r.pool.put(full)
		return nil, err
	}
	return newPooledBytes(full, r.pageSize, r.pool), nil
}

func (r *Reader) loadLazy(id DiskPageId) (PageBytes, error) {
	buf := r.pool.get(r.pageSize)
	if err := r.readAt(buf, r.offset(id), id); err != nil {
		r.pool.put(buf)
		return nil, err
	}
	return newLazyBytes(id, buf, r.pageSize, r, r.pool), nil
}

// readOverflowPageRaw fetches the pageIndex'th page of the record
// rooted at rootID (pageIndex 0 is the root itself, already loaded by
// the time anything calls this). Used only by lazyBytes.
func (r *Reader) readOverflowPageRaw(rootID DiskPageId, pageIndex int) ([]byte, error) {
	id := rootID + DiskPageId(pageIndex)
	if r.mode == ModeMapped {
		off := r.offset(id)
		if off+int64(r.pageSize) > int64(len(r.mmapData)) {
			return nil, &IOError{Kind: IOErrKindUnexpectedEOF, PageId: id, Known: r.knownEOF}
		}
		buf := make([]byte, r.pageSize)
		copy(buf, r.mmapData[off:off+int64(r.pageSize)])
		return buf, nil
	}
	buf := r.pool.get(r.pageSize)
	if err := r.readAt(buf, r.offset(id), id); err != nil {
		r.pool.put(buf)
		return nil, err
	}
	return buf, nil
}

// ReadFreelist reads the freelist record at id, validating its header
// flag.
func (r *Reader) ReadFreelist(id FreelistPageId) (FreelistPage, error) {
	pb, err := r.readRecord(id.Disk())
	if err != nil {
		return FreelistPage{}, err
	}
	if pb.PageHeader().Flags&freelistPageFlag == 0 {
		pb.Release()
		return FreelistPage{}, &PageError{Kind: PageErrInvalidPageFlag, PageId: id.Disk(), Detail: "expected freelist page, got " + pb.PageHeader().typ()}
	}
	return FreelistPage{bytes: pb}, nil
}

// ReadNode reads a branch or leaf record at id and returns it as the
// generic NodePage view; callers switch on NodePage.IsLeaf() to get a
// BranchPage or LeafPage.
func (r *Reader) ReadNode(id NodePageId) (NodePage, error) {
	pb, err := r.readRecord(id.Disk())
	if err != nil {
		return NodePage{}, err
	}
	flags := pb.PageHeader().Flags
	if flags&(branchPageFlag|leafPageFlag) == 0 {
		pb.Release()
		return NodePage{}, &PageError{Kind: PageErrInvalidPageFlag, PageId: id.Disk(), Detail: "expected branch or leaf page, got " + pb.PageHeader().typ()}
	}
	return NodePage{bytes: pb}, nil
}

// ReaderStats is a point-in-time snapshot of a Reader's pool and cache
// activity, useful for asserting the at-most-one-I/O-per-page property.
type ReaderStats struct {
	Pool  bufferPoolStats
	Cache *cacheStats
}

func (r *Reader) Stats() ReaderStats {
	st := ReaderStats{Pool: r.pool.stats()}
	if r.cache != nil {
		cs := r.cache.stats()
		st.Cache = &cs
	}
	return st
}
