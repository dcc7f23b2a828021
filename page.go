// Page layout mirrors boltdb's: a fixed header, then a kind-specific body.
//
// |M|M|F|D| | | | | |
//
// metadata pages (M), free pages (F), data (D), unallocated ( )
//
// See PageHeader / Meta / BranchElement / LeafElement below for the
// exact byte layout: all multi-byte integers little-endian, struct
// fields in the order listed, no implicit padding.
package boltkv

import (
	"encoding/binary"
	"hash/fnv"
)

// pageHeaderSize is the fixed 16-byte header present on every page:
// id(8) flags(2) count(2) overflow(4).
const pageHeaderSize = 16

const (
	branchPageFlag   = uint16(0x01)
	leafPageFlag     = uint16(0x02)
	metaPageFlag     = uint16(0x04)
	freelistPageFlag = uint16(0x10)
)

const leafFlagBucket = uint32(0x01)

// Recognized on-disk magic numbers: the original bbolt format and its
// bbolt-rs successor. Both are accepted on open; anything else is
// ErrInvalid.
const (
	MagicBBolt   = uint32(0xED0CDAED)
	MagicBBoltRS = uint32(0x5CAFF01D)
)

// Recognized meta versions.
const (
	VersionCompatible = uint32(2)
	VersionExtended   = uint32(777)
)

// PageHeader is the 16-byte prefix common to every page.
type PageHeader struct {
	Id       DiskPageId
	Flags    uint16
	Count    uint16
	Overflow uint32
}

func decodePageHeader(buf []byte) PageHeader {
	return PageHeader{
		Id:       DiskPageId(binary.LittleEndian.Uint64(buf[0:8])),
		Flags:    binary.LittleEndian.Uint16(buf[8:10]),
		Count:    binary.LittleEndian.Uint16(buf[10:12]),
		Overflow: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

func encodePageHeader(buf []byte, h PageHeader) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.Id))
	binary.LittleEndian.PutUint16(buf[8:10], h.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], h.Count)
	binary.LittleEndian.PutUint32(buf[12:16], h.Overflow)
}

// typ returns a human-readable page kind, used in error messages.
func (h PageHeader) typ() string {
	switch {
	case h.Flags&branchPageFlag != 0:
		return "branch"
	case h.Flags&leafPageFlag != 0:
		return "leaf"
	case h.Flags&metaPageFlag != 0:
		return "meta"
	case h.Flags&freelistPageFlag != 0:
		return "freelist"
	default:
		return "unknown"
	}
}

// BucketHeader is the 16-byte record stored inside a leaf value whenever
// LeafElement.Flags has leafFlagBucket set: root(8) sequence(8).
type BucketHeader struct {
	Root     BucketPageId
	Sequence uint64
}

const bucketHeaderSize = 16

func decodeBucketHeader(buf []byte) BucketHeader {
	return BucketHeader{
		Root:     BucketPageId(binary.LittleEndian.Uint64(buf[0:8])),
		Sequence: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

func encodeBucketHeader(buf []byte, h BucketHeader) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.Root))
	binary.LittleEndian.PutUint64(buf[8:16], h.Sequence)
}

// Meta is the record a meta page (page 0 or 1) holds after its
// PageHeader. Checksum is FNV-1a/64 over every preceding byte of Meta.
type Meta struct {
	Magic     uint32
	Version   uint32
	PageSize  uint32
	Flags     uint32
	Root      BucketHeader
	FreeList  FreelistPageId
	EOFId     EOFPageId
	TxIdField TxId
	Checksum  uint64
}

// metaBodySize is the byte length of Meta up to (not including) Checksum:
// magic(4) version(4) page_size(4) flags(4) root(16) free_list(8)
// eof_id(8) tx_id(8) = 56.
const metaBodySize = 56
const metaSize = metaBodySize + 8

func decodeMeta(buf []byte) Meta {
	return Meta{
		Magic:     binary.LittleEndian.Uint32(buf[0:4]),
		Version:   binary.LittleEndian.Uint32(buf[4:8]),
		PageSize:  binary.LittleEndian.Uint32(buf[8:12]),
		Flags:     binary.LittleEndian.Uint32(buf[12:16]),
		Root:      decodeBucketHeader(buf[16:32]),
		FreeList:  FreelistPageId(binary.LittleEndian.Uint64(buf[32:40])),
		EOFId:     EOFPageId(binary.LittleEndian.Uint64(buf[40:48])),
		TxIdField: TxId(binary.LittleEndian.Uint64(buf[48:56])),
		Checksum:  binary.LittleEndian.Uint64(buf[56:64]),
	}
}

func encodeMetaBody(buf []byte, m Meta) {
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], m.Version)
	binary.LittleEndian.PutUint32(buf[8:12], m.PageSize)
	binary.LittleEndian.PutUint32(buf[12:16], m.Flags)
	encodeBucketHeader(buf[16:32], m.Root)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(m.FreeList))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(m.EOFId))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(m.TxIdField))
}

// EncodeMeta writes the full Meta (header at buf[0:16], body+checksum at
// buf[16:16+metaSize]) to buf, computing the checksum itself.
func EncodeMeta(buf []byte, id MetaPageId, m Meta) {
	encodePageHeader(buf, PageHeader{Id: DiskPageId(id), Flags: metaPageFlag})
	body := buf[pageHeaderSize : pageHeaderSize+metaSize]
	encodeMetaBody(body, m)
	sum := fnvChecksum(body[:metaBodySize])
	binary.LittleEndian.PutUint64(body[metaBodySize:metaSize], sum)
}

// fnvChecksum is the 64-bit FNV-1a hash used for meta validation.
func fnvChecksum(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// validate checks a Meta's magic and version. The checksum is not
// checked here: Reader.ReadMeta compares it against the raw page bytes.
// It never panics; callers combine the result across both meta pages
// per the two-meta recovery policy (see selectMeta).
func (m Meta) validate() error {
	if m.Magic != MagicBBolt && m.Magic != MagicBBoltRS {
		return ErrInvalid
	}
	if m.Version != VersionCompatible && m.Version != VersionExtended {
		return ErrVersionMismatch
	}
	return nil
}

func (m Meta) checksumOf(body []byte) uint64 {
	return fnvChecksum(body[:metaBodySize])
}

// BranchElement is one entry of a branch page's element array:
// key_dist(4) key_len(4) page_id(8) = 16 bytes. KeyDist is the byte
// offset from this element's own address to the start of its key.
type BranchElement struct {
	KeyDist uint32
	KeyLen  uint32
	PageId  NodePageId
}

const branchElementSize = 16

func decodeBranchElement(buf []byte) BranchElement {
	return BranchElement{
		KeyDist: binary.LittleEndian.Uint32(buf[0:4]),
		KeyLen:  binary.LittleEndian.Uint32(buf[4:8]),
		PageId:  NodePageId(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

func encodeBranchElement(buf []byte, e BranchElement) {
	binary.LittleEndian.PutUint32(buf[0:4], e.KeyDist)
	binary.LittleEndian.PutUint32(buf[4:8], e.KeyLen)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.PageId))
}

// LeafElement is one entry of a leaf page's element array:
// flags(4) key_dist(4) key_len(4) value_len(4) = 16 bytes.
type LeafElement struct {
	Flags    uint32
	KeyDist  uint32
	KeyLen   uint32
	ValueLen uint32
}

const leafElementSize = 16

func decodeLeafElement(buf []byte) LeafElement {
	return LeafElement{
		Flags:    binary.LittleEndian.Uint32(buf[0:4]),
		KeyDist:  binary.LittleEndian.Uint32(buf[4:8]),
		KeyLen:   binary.LittleEndian.Uint32(buf[8:12]),
		ValueLen: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

func encodeLeafElement(buf []byte, e LeafElement) {
	binary.LittleEndian.PutUint32(buf[0:4], e.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], e.KeyDist)
	binary.LittleEndian.PutUint32(buf[8:12], e.KeyLen)
	binary.LittleEndian.PutUint32(buf[12:16], e.ValueLen)
}

func (e LeafElement) isBucket() bool { return e.Flags&leafFlagBucket != 0 }
