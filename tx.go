// Tx is a read-only view of the database as of the moment it was
// opened: a fixed Meta snapshot plus the shared Reader used to resolve
// every page it touches. There is no write path here, so Tx is just the
// Meta snapshot plus the bucket/cursor entry points.
package boltkv

import "sync/atomic"

// Tx is a snapshot transaction. It must be closed (via Close or the
// defer in DB.View) to release the database's mmap read lock; DB.Close
// does not wait for open transactions. live backs every Bucket/Cursor this Tx issues:
// Close flips it to 0 so a caller holding onto one past Close gets
// ErrTxClosed instead of reading through a stale reader.
type Tx struct {
	db     *DB
	id     TxId
	meta   Meta
	reader *Reader
	live   int32
}

// ID returns the transaction's snapshot TxId.
func (t *Tx) ID() TxId { return t.id }

// Writable reports whether this Tx can mutate the database. Always
// false: this package has no write/commit path.
func (t *Tx) Writable() bool { return false }

// Size reports the logical size of the database as of this snapshot, in
// bytes.
func (t *Tx) Size() int64 { return int64(t.meta.EOFId) * int64(t.reader.pageSize) }

func (t *Tx) checkOpen() error {
	if atomic.LoadInt32(&t.live) == 0 {
		return ErrTxClosed
	}
	return nil
}

// RootBucket returns the top-level bucket this snapshot's Meta points
// at.
func (t *Tx) RootBucket() (Bucket, error) {
	if err := t.checkOpen(); err != nil {
		return Bucket{}, err
	}
	b := NewRootBucket(t.reader, t.meta.Root)
	b.live = &t.live
	return b, nil
}

// Bucket walks path from the root, returning ErrBucketNotFound if any
// component is absent or is not itself a bucket. An empty path returns
// the root bucket.
func (t *Tx) Bucket(path ...[]byte) (Bucket, error) {
	b, err := t.RootBucket()
	if err != nil {
		return Bucket{}, err
	}
	for _, name := range path {
		b, err = b.Bucket(name)
		if err != nil {
			return Bucket{}, err
		}
	}
	return b, nil
}

// Cursor opens a Cursor over the bucket named by path (or the root
// bucket, if path is empty).
func (t *Tx) Cursor(path ...[]byte) (*Cursor, error) {
	b, err := t.Bucket(path...)
	if err != nil {
		return nil, err
	}
	return b.Cursor()
}

// Get is a convenience wrapper: Bucket(path...).Get(key).
func (t *Tx) Get(key []byte, path ...[]byte) ([]byte, error) {
	b, err := t.Bucket(path...)
	if err != nil {
		return nil, err
	}
	return b.Get(key)
}

// Close releases the transaction's hold on the database's read lock. It
// is safe to call more than once.
func (t *Tx) Close() error {
	if !atomic.CompareAndSwapInt32(&t.live, 1, 0) {
		return nil
	}
	t.db.txEnd()
	return nil
}
