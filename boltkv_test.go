package boltkv

import (
	"os"
	"testing"
)

// testPageSize is used throughout the test suite; small enough to make
// overflow/multi-page scenarios easy to construct by hand.
const testPageSize = 4096

// buildLeafBuf encodes a single-page leaf record with the given sorted
// key/value pairs and returns the full page-sized buffer.
func buildLeafBuf(id DiskPageId, kvs [][2]string) []byte {
	buf := make([]byte, testPageSize)
	n := len(kvs)
	encodePageHeader(buf, PageHeader{Id: id, Flags: leafPageFlag, Count: uint16(n)})
	dataOff := pageHeaderSize + n*leafElementSize
	for i, kv := range kvs {
		k, v := []byte(kv[0]), []byte(kv[1])
		elemOff := pageHeaderSize + i*leafElementSize
		dist := dataOff - elemOff
		encodeLeafElement(buf[elemOff:], LeafElement{KeyDist: uint32(dist), KeyLen: uint32(len(k)), ValueLen: uint32(len(v))})
		copy(buf[dataOff:], k)
		dataOff += len(k)
		copy(buf[dataOff:], v)
		dataOff += len(v)
	}
	return buf
}

// buildBranchBuf encodes a single-page branch record with the given
// sorted (key, childPageId) entries.
func buildBranchBuf(id DiskPageId, entries [][2]interface{}) []byte {
	buf := make([]byte, testPageSize)
	n := len(entries)
	encodePageHeader(buf, PageHeader{Id: id, Flags: branchPageFlag, Count: uint16(n)})
	dataOff := pageHeaderSize + n*branchElementSize
	for i, e := range entries {
		k := []byte(e[0].(string))
		child := e[1].(NodePageId)
		elemOff := pageHeaderSize + i*branchElementSize
		dist := dataOff - elemOff
		encodeBranchElement(buf[elemOff:], BranchElement{KeyDist: uint32(dist), KeyLen: uint32(len(k)), PageId: child})
		copy(buf[dataOff:], k)
		dataOff += len(k)
	}
	return buf
}

// newTestMappedReader builds a Reader over an in-memory mmap-shaped
// buffer, letting tests exercise ReadNode/ReadMeta/ReadFreelist without
// a real file.
func newTestMappedReader(data []byte) *Reader {
	pool := newBufferPool(testPageSize, 0, 0, int64(len(data)))
	return NewMappedReader(testPageSize, data, pool, nil, IdentityTranslator{})
}

func newTestBuf(pages int) []byte { return make([]byte, pages*testPageSize) }

func tempDBPath(t *testing.T) string {
	f, err := os.CreateTemp("", "boltkv-*.db")
	if err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })
	return path
}
