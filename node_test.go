package boltkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeafPageSearchAndAccess(t *testing.T) {
	buf := buildLeafBuf(7, [][2]string{{"bar", "1"}, {"baz", "2"}, {"foo", "3"}})
	r := newTestMappedReader(buf)
	node, err := r.ReadNode(NodePageId(0))
	assert.NoError(t, err)
	assert.True(t, node.IsLeaf())

	leaf, err := node.AsLeaf()
	assert.NoError(t, err)
	assert.Equal(t, 3, leaf.Count())

	k, err := leaf.Key(1)
	assert.NoError(t, err)
	assert.Equal(t, []byte("baz"), k)

	v, err := leaf.Value(2)
	assert.NoError(t, err)
	assert.Equal(t, []byte("3"), v)

	idx, ok, err := leaf.Search([]byte("baz"))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok, err = leaf.Search([]byte("bap"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok, err = leaf.Search([]byte("zzz"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, idx)
}

func TestLeafPageBucketValue(t *testing.T) {
	buf := make([]byte, testPageSize)
	encodePageHeader(buf, PageHeader{Id: 1, Flags: leafPageFlag, Count: 1})
	elemOff := pageHeaderSize
	dataOff := pageHeaderSize + leafElementSize
	key := []byte("sub")
	bh := BucketHeader{Root: BucketPageId(9), Sequence: 42}
	encodeLeafElement(buf[elemOff:], LeafElement{Flags: leafFlagBucket, KeyDist: uint32(dataOff - elemOff), KeyLen: uint32(len(key)), ValueLen: bucketHeaderSize})
	copy(buf[dataOff:], key)
	encodeBucketHeader(buf[dataOff+len(key):], bh)

	r := newTestMappedReader(buf)
	node, err := r.ReadNode(NodePageId(0))
	assert.NoError(t, err)
	leaf, err := node.AsLeaf()
	assert.NoError(t, err)

	isBucket, err := leaf.IsBucket(0)
	assert.NoError(t, err)
	assert.True(t, isBucket)

	got, err := leaf.BucketValue(0)
	assert.NoError(t, err)
	assert.Equal(t, bh, got)
}

func TestBranchPageSearch(t *testing.T) {
	buf := buildBranchBuf(3, [][2]interface{}{
		{"bar", NodePageId(10)},
		{"foo", NodePageId(11)},
		{"zoo", NodePageId(12)},
	})
	r := newTestMappedReader(buf)
	node, err := r.ReadNode(NodePageId(0))
	assert.NoError(t, err)
	assert.True(t, node.IsBranch())

	branch, err := node.AsBranch()
	assert.NoError(t, err)

	idx, err := branch.Search([]byte("aaa"))
	assert.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = branch.Search([]byte("foo"))
	assert.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = branch.Search([]byte("goo"))
	assert.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = branch.Search([]byte("zzz"))
	assert.NoError(t, err)
	assert.Equal(t, 2, idx)

	child, err := branch.Child(2)
	assert.NoError(t, err)
	assert.Equal(t, NodePageId(12), child)
}

func TestNodePageWrongKindRejected(t *testing.T) {
	buf := buildLeafBuf(0, [][2]string{{"a", "b"}})
	r := newTestMappedReader(buf)
	node, err := r.ReadNode(NodePageId(0))
	assert.NoError(t, err)
	_, err = node.AsBranch()
	assert.Error(t, err)
}
