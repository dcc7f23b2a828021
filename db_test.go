package boltkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenCreatesEmptyValidDatabase(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path, DefaultOptions())
	assert.NoError(t, err)
	defer db.Close()

	tx, err := db.Begin()
	assert.NoError(t, err)
	defer tx.Close()

	b, err := tx.RootBucket()
	assert.NoError(t, err)
	c, err := b.Cursor()
	assert.NoError(t, err)
	defer c.Close()

	k, _, err := c.First()
	assert.NoError(t, err)
	assert.Nil(t, k)
}

func TestOpenReadOnlyMissingFileFails(t *testing.T) {
	path := tempDBPath(t)
	opts := DefaultOptions()
	opts.ReadOnly = true
	_, err := Open(path, opts)
	assert.Error(t, err)
}

func TestReopenExistingDatabasePreservesMeta(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path, DefaultOptions())
	assert.NoError(t, err)
	firstTxID := db.meta.TxIdField
	assert.NoError(t, db.Close())

	db2, err := Open(path, DefaultOptions())
	assert.NoError(t, err)
	defer db2.Close()
	assert.Equal(t, firstTxID, db2.meta.TxIdField)
}

func TestViewClosesTxEvenOnError(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path, DefaultOptions())
	assert.NoError(t, err)
	defer db.Close()

	sentinel := ErrBucketNotFound
	err = db.View(func(tx *Tx) error {
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, int64(0), db.openTxCount)
}

func TestFileBackedLazyModeReadsRootBucket(t *testing.T) {
	path := tempDBPath(t)
	opts := Options{Mode: ModeLazyFile, PageCacheSize: 16, BufferPoolInit: 1 << 16, BufferPoolMax: 1 << 20}
	db, err := Open(path, opts)
	assert.NoError(t, err)
	defer db.Close()

	err = db.View(func(tx *Tx) error {
		_, err := tx.RootBucket()
		return err
	})
	assert.NoError(t, err)
}
