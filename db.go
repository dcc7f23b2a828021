// DB owns the open file, its memory mapping (or file-backed Reader),
// and the pool/cache pair every Tx shares. Mapping goes through
// edsrzf/mmap-go rather than a raw syscall call for cross-platform
// correctness; there is no writer here, only a reader over an existing,
// externally maintained file (plus the one-time layout of a brand new,
// empty file on first Open).
package boltkv

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

const (
	minMmapSize = 1 << 22 // 4MB
	maxMmapStep = 1 << 30 // 1GB
)

// dbOS is the mockable seam over file operations; tests substitute a
// fake to exercise error paths without touching the filesystem.
type dbOS interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Stat(f *os.File) (os.FileInfo, error)
	Fsync(f *os.File) error
}

type realOS struct{}

func (realOS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}
func (realOS) Stat(f *os.File) (os.FileInfo, error) { return f.Stat() }
func (realOS) Fsync(f *os.File) error               { return unix.Fsync(int(f.Fd())) }

// DB is a single open database file.
type DB struct {
	os   dbOS
	path string
	file *os.File
	opts Options

	pageSize int

	mmapLock sync.RWMutex
	mmapData mmap.MMap
	pool     *bufferPool
	cache    *pageCache
	reader   *Reader

	metaLock sync.Mutex
	meta     Meta

	translator PageTranslator

	openTxCount int64
	closed      bool
}

// Open opens path, creating a new, empty, valid database file if it
// does not already exist.
func Open(path string, opts Options) (*DB, error) {
	opts = opts.withDefaults()
	db := &DB{os: realOS{}, path: path, opts: opts, translator: IdentityTranslator{}}

	flag := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := db.os.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, &IOError{Kind: IOErrKindOpen, Err: err}
	}
	db.file = f

	info, err := db.os.Stat(f)
	if err != nil {
		f.Close()
		return nil, &IOError{Kind: IOErrKindOpen, Err: err}
	}

	if info.Size() == 0 {
		if opts.ReadOnly {
			f.Close()
			return nil, ErrDatabaseNotOpen
		}
		if err := db.initEmpty(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := db.peekPageSize(); err != nil {
			f.Close()
			return nil, err
		}
	}

	db.pool = newBufferPool(db.pageSize, opts.BufferPoolInit, opts.BufferPoolMin, opts.BufferPoolMax)
	if opts.PageCacheSize > 0 {
		c, err := newPageCache(opts.PageCacheSize)
		if err != nil {
			f.Close()
			return nil, err
		}
		db.cache = c
	}

	if opts.Mode == ModeMapped {
		if err := db.mmap(0); err != nil {
			db.pool.close()
			f.Close()
			return nil, err
		}
	} else {
		db.reader = NewFileReader(db.pageSize, db.file, opts.Mode, db.pool, db.cache, db.translator)
	}

	if err := db.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// peekPageSize reads just enough of an existing file to learn its page
// size, validating meta page 0 along the way.
func (db *DB) peekPageSize() error {
	buf := make([]byte, pageHeaderSize+metaSize)
	if _, err := db.file.ReadAt(buf, 0); err != nil {
		return &IOError{Kind: IOErrKindRead, Err: err}
	}
	ph := decodePageHeader(buf)
	if ph.Flags&metaPageFlag == 0 {
		return &PageError{Kind: PageErrInvalidPageFlag, Detail: "page 0 is not a meta page"}
	}
	m := decodeMeta(buf[pageHeaderSize:])
	if err := m.validate(); err != nil {
		return err
	}
	db.pageSize = int(m.PageSize)
	return nil
}

// initEmpty lays out a brand new file: meta0, meta1, an empty freelist,
// and an empty root bucket leaf, then fsyncs it. This is the one place
// this package writes bytes to disk; everything past Open is read-only.
func (db *DB) initEmpty() error {
	db.pageSize = os.Getpagesize()
	buf := make([]byte, db.pageSize*4)

	for i := 0; i < 2; i++ {
		EncodeMeta(buf[i*db.pageSize:], MetaPageId(i), Meta{
			Magic:     MagicBBolt,
			Version:   VersionCompatible,
			PageSize:  uint32(db.pageSize),
			Root:      BucketHeader{Root: BucketPageId(3)},
			FreeList:  FreelistPageId(2),
			EOFId:     EOFPageId(4),
			TxIdField: TxId(i),
		})
	}

	encodeFreelistPage(buf[2*db.pageSize:], FreelistPageId(2), nil, db.pageSize)
	encodePageHeader(buf[3*db.pageSize:], PageHeader{Id: DiskPageId(3), Flags: leafPageFlag, Count: 0})

	if _, err := db.file.WriteAt(buf, 0); err != nil {
		return &IOError{Kind: IOErrKindOpen, Err: err}
	}
	if err := db.os.Fsync(db.file); err != nil {
		return &IOError{Kind: IOErrKindOpen, Err: err}
	}
	return nil
}

// mmap (re)maps the data file. minsz is the smallest acceptable mapping
// size; 0 means "whatever mmapSize picks for the current file size".
func (db *DB) mmap(minsz int) error {
	db.mmapLock.Lock()
	defer db.mmapLock.Unlock()

	if db.mmapData != nil {
		if err := db.mmapData.Unmap(); err != nil {
			return err
		}
		db.mmapData = nil
	}

	info, err := db.os.Stat(db.file)
	if err != nil {
		return &IOError{Kind: IOErrKindOpen, Err: err}
	}
	size := int(info.Size())
	if size < minsz {
		size = minsz
	}
	size = db.mmapSize(size)

	flag := mmap.RDONLY
	if !db.opts.ReadOnly {
		flag = mmap.RDWR
	}
	data, err := mmap.MapRegion(db.file, size, flag, 0, 0)
	if err != nil {
		return &IOError{Kind: IOErrKindOpen, Err: err}
	}
	db.mmapData = data
	db.reader = NewMappedReader(db.pageSize, []byte(data), db.pool, db.cache, db.translator)
	return nil
}

// mmapSize picks a mapping size: at least 4MB, doubling until 1GB, then
// growing by fixed 1GB steps, always rounded up to a page multiple.
func (db *DB) mmapSize(size int) int {
	if size < minMmapSize {
		size = minMmapSize
	} else if size < maxMmapStep {
		size *= 2
	} else {
		size += maxMmapStep
	}
	if size%db.pageSize != 0 {
		size = (size/db.pageSize + 1) * db.pageSize
	}
	return size
}

// loadMeta reads both meta slots and keeps whichever validates with the
// larger TxId.
func (db *DB) loadMeta() error {
	db.metaLock.Lock()
	defer db.metaLock.Unlock()

	m0, err0 := db.reader.ReadMeta(MetaPageId(0))
	m1, err1 := db.reader.ReadMeta(MetaPageId(1))
	m, err := selectMeta(m0, err0, m1, err1)
	if err != nil {
		return err
	}
	db.meta = m
	db.reader.SetKnownEOF(m.EOFId)
	return nil
}

// Begin opens a new read-only transaction against the database's
// current committed state.
func (db *DB) Begin() (*Tx, error) {
	db.metaLock.Lock()
	if db.closed {
		db.metaLock.Unlock()
		return nil, ErrDatabaseNotOpen
	}
	m := db.meta
	db.metaLock.Unlock()

	db.mmapLock.RLock()
	atomic.AddInt64(&db.openTxCount, 1)
	return &Tx{db: db, id: m.TxIdField, meta: m, reader: db.reader, live: 1}, nil
}

// View runs fn inside a Tx, closing it on return regardless of error.
func (db *DB) View(fn func(*Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Close()
	return fn(tx)
}

func (db *DB) txEnd() {
	db.mmapLock.RUnlock()
	atomic.AddInt64(&db.openTxCount, -1)
}

// Close releases the mapping, pool worker, and cache. All transactions
// must already be closed.
func (db *DB) Close() error {
	db.metaLock.Lock()
	defer db.metaLock.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	if db.mmapData != nil {
		if err := db.mmapData.Unmap(); err != nil {
			return fmt.Errorf("boltkv: unmap on close: %w", err)
		}
	}
	if db.cache != nil {
		db.cache.purge()
	}
	if db.pool != nil {
		db.pool.close()
	}
	return db.file.Close()
}

// Path returns the file path the database was opened from.
func (db *DB) Path() string { return db.path }

func (db *DB) String() string { return fmt.Sprintf("DB<%q>", db.path) }
