// Bucket is a named collection of key/value pairs, addressed either by
// a root page of its own or, for small buckets, inline inside the
// parent leaf's value slot. An inline bucket never touches the Reader
// at all: its entire B+tree (always just one leaf) is the bytes already
// in hand.
package boltkv

import (
	"bytes"
	"sync/atomic"
)

// checkLive reports ErrTxClosed once the issuing Tx has been closed. A
// Bucket with no live pointer (built directly via NewRootBucket, not
// through a Tx) has nothing to invalidate against.
func checkLive(live *int32) error {
	if live != nil && atomic.LoadInt32(live) == 0 {
		return ErrTxClosed
	}
	return nil
}

// Bucket is a read-only handle: open a Cursor or look up a single key.
type Bucket struct {
	reader     *Reader
	header     BucketHeader
	inlineLeaf LeafPage
	live       *int32 // non-nil when issued by a Tx; checked before every I/O
}

// NewRootBucket wraps the bucket header stored in a database's Meta.
func NewRootBucket(reader *Reader, header BucketHeader) Bucket {
	return Bucket{reader: reader, header: header}
}

// bucketFromValue decodes a leaf value known (via LeafElement.isBucket)
// to hold a BucketHeader, resolving an inline body in place if present.
// live is propagated from the parent Bucket so the nested Bucket is
// invalidated the same Tx.Close call invalidates its parent.
func bucketFromValue(reader *Reader, value []byte, live *int32) (Bucket, error) {
	if len(value) < bucketHeaderSize {
		return Bucket{}, &PageError{Kind: PageErrOutOfRange, Detail: "bucket value shorter than BucketHeader"}
	}
	h := decodeBucketHeader(value[:bucketHeaderSize])
	b := Bucket{reader: reader, header: h, live: live}
	if h.Root.Inline() {
		body := value[bucketHeaderSize:]
		b.inlineLeaf = LeafPage{bytes: newEmbeddedBytes(body)}
	}
	return b, nil
}

// Sequence is the bucket's monotonic counter, exposed for read parity
// even though mutation is out of scope.
func (b Bucket) Sequence() uint64 { return b.header.Sequence }

// Cursor opens an iterator over this bucket's key/value pairs. An
// inline bucket's cursor touches no I/O; a disk-rooted bucket's cursor
// fetches pages through the Reader as it descends.
func (b Bucket) Cursor() (*Cursor, error) {
	if err := checkLive(b.live); err != nil {
		return nil, err
	}
	var c *Cursor
	if b.header.Root.Inline() {
		c = newInlineCursor(b.inlineLeaf)
	} else {
		c = NewCursor(b.reader, b.header.Root.AsNodePageId())
	}
	c.live = b.live
	return c, nil
}

// Get returns the value stored under key, or (nil, nil) if absent.
func (b Bucket) Get(key []byte) ([]byte, error) {
	c, err := b.Cursor()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	k, v, err := c.Seek(key)
	if err != nil {
		return nil, err
	}
	if k == nil || !bytes.Equal(k, key) {
		return nil, nil
	}
	return v, nil
}

// Bucket returns the nested bucket stored under name, or
// ErrBucketNotFound if name is absent or is not itself a bucket.
func (b Bucket) Bucket(name []byte) (Bucket, error) {
	c, err := b.Cursor()
	if err != nil {
		return Bucket{}, err
	}
	defer c.Close()
	k, v, err := c.Seek(name)
	if err != nil {
		return Bucket{}, err
	}
	if k == nil || !bytes.Equal(k, name) {
		return Bucket{}, ErrBucketNotFound
	}
	isBucket, err := c.IsBucketValue()
	if err != nil {
		return Bucket{}, err
	}
	if !isBucket {
		return Bucket{}, ErrBucketNotFound
	}
	return bucketFromValue(b.reader, v, b.live)
}

// embeddedBytes is a PageBytes view over a leaf value's inline bucket
// body: no pool, no mmap, no overflow, nothing to release.
type embeddedBytes struct {
	data   []byte
	header PageHeader
}

func newEmbeddedBytes(data []byte) *embeddedBytes {
	return &embeddedBytes{data: data, header: decodePageHeader(data)}
}

func (e *embeddedBytes) Kind() PageBytesKind    { return KindEmbedded }
func (e *embeddedBytes) RootPageBytes() []byte  { return e.data }
func (e *embeddedBytes) PageHeader() PageHeader { return e.header }
func (e *embeddedBytes) Len() int               { return len(e.data) }

func (e *embeddedBytes) GetRefSlice(start, end int) ([]byte, error) {
	if err := checkRange(len(e.data), start, end); err != nil {
		return nil, err
	}
	return e.data[start:end], nil
}

func (e *embeddedBytes) GetTxSlice(start, end int) (TxSlice, error) {
	b, err := e.GetRefSlice(start, end)
	if err != nil {
		return TxSlice{}, err
	}
	return TxSlice{data: b}, nil
}

func (e *embeddedBytes) Retain() PageBytes { return e }
func (e *embeddedBytes) Release()          {}
