package boltkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildTwoLevelTree lays out a root branch page (id 2) with two leaf
// children (ids 3 and 4) across a single contiguous buffer addressed by
// DiskPageId*pageSize, suitable for a mapped Reader. Pages 0 and 1 (the
// meta slots) are left zeroed; the root is not at page 0 because a
// BucketPageId of 0 means "inline".
func buildTwoLevelTree() []byte {
	buf := newTestBuf(5)
	leaf1 := buildLeafBuf(3, [][2]string{{"a", "1"}, {"b", "2"}})
	leaf2 := buildLeafBuf(4, [][2]string{{"c", "3"}, {"d", "4"}})
	branch := buildBranchBuf(2, [][2]interface{}{
		{"a", NodePageId(3)},
		{"c", NodePageId(4)},
	})
	copy(buf[2*testPageSize:3*testPageSize], branch)
	copy(buf[3*testPageSize:4*testPageSize], leaf1)
	copy(buf[4*testPageSize:5*testPageSize], leaf2)
	return buf
}

func TestCursorFirstLastOverTwoLevels(t *testing.T) {
	r := newTestMappedReader(buildTwoLevelTree())
	c := NewCursor(r, NodePageId(2))
	defer c.Close()

	k, v, err := c.First()
	assert.NoError(t, err)
	assert.Equal(t, []byte("a"), k)
	assert.Equal(t, []byte("1"), v)

	k, v, err = c.Last()
	assert.NoError(t, err)
	assert.Equal(t, []byte("d"), k)
	assert.Equal(t, []byte("4"), v)
}

func TestCursorNextWalksInOrder(t *testing.T) {
	r := newTestMappedReader(buildTwoLevelTree())
	c := NewCursor(r, NodePageId(2))
	defer c.Close()

	var got []string
	k, v, err := c.First()
	assert.NoError(t, err)
	for k != nil {
		got = append(got, string(k)+"="+string(v))
		k, v, err = c.Next()
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"a=1", "b=2", "c=3", "d=4"}, got)
}

func TestCursorNextAtEndReturnsNilWithoutReseating(t *testing.T) {
	r := newTestMappedReader(buildTwoLevelTree())
	c := NewCursor(r, NodePageId(2))
	defer c.Close()

	_, _, err := c.Last()
	assert.NoError(t, err)
	k, _, err := c.Next()
	assert.NoError(t, err)
	assert.Nil(t, k)
}

func TestCursorPrevPastStartReseatsToFirst(t *testing.T) {
	r := newTestMappedReader(buildTwoLevelTree())
	c := NewCursor(r, NodePageId(2))
	defer c.Close()

	_, _, err := c.First()
	assert.NoError(t, err)
	k, v, err := c.Prev()
	assert.NoError(t, err)
	assert.Nil(t, k)
	assert.Nil(t, v)

	// The cursor is reseated at First(), not left stranded.
	k, v, err = c.KeyValue()
	assert.NoError(t, err)
	assert.Equal(t, []byte("a"), k)
	assert.Equal(t, []byte("1"), v)
}

func TestCursorLastOnEmptyRootDoesNotReseat(t *testing.T) {
	buf := buildLeafBuf(0, nil)
	r := newTestMappedReader(buf)
	c := NewCursor(r, NodePageId(0))
	defer c.Close()

	k, v, err := c.Last()
	assert.NoError(t, err)
	assert.Nil(t, k)
	assert.Nil(t, v)
}

func TestCursorSeekExactAndBetween(t *testing.T) {
	r := newTestMappedReader(buildTwoLevelTree())
	c := NewCursor(r, NodePageId(2))
	defer c.Close()

	k, v, err := c.Seek([]byte("c"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("c"), k)
	assert.Equal(t, []byte("3"), v)

	k, v, err = c.Seek([]byte("bb"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("c"), k)
	assert.Equal(t, []byte("3"), v)

	k, _, err = c.Seek([]byte("z"))
	assert.NoError(t, err)
	assert.Nil(t, k)
}

func TestCursorKeyValueReflectsPosition(t *testing.T) {
	r := newTestMappedReader(buildTwoLevelTree())
	c := NewCursor(r, NodePageId(2))
	defer c.Close()

	k, _, err := c.KeyValue()
	assert.NoError(t, err)
	assert.Nil(t, k)

	_, _, err = c.First()
	assert.NoError(t, err)
	k, v, err := c.KeyValue()
	assert.NoError(t, err)
	assert.Equal(t, []byte("a"), k)
	assert.Equal(t, []byte("1"), v)
}
