// FreelistPage is the typed, read-only view over a serialized freelist
// record: a dense one-bit-per-page bitmap, rather than an explicit
// page-id list. The bitmap body has no list to decode, only a byte run
// addressed by FreeIndex's masks.go/bm.go search code.
package boltkv

import "encoding/binary"

// freelistExtendedCountMarker is the header.Count sentinel meaning "the
// real bitmap length does not fit in 16 bits; read it as a uint64
// immediately after the header instead", mirroring the overflow escape
// classic bbolt uses for its page-id list.
const freelistExtendedCountMarker = uint16(0xFFFF)

// FreelistPage is a freelist record: PageHeader followed by the bitmap
// body, possibly prefixed by an 8-byte extended count.
type FreelistPage struct {
	bytes PageBytes
}

func (f FreelistPage) Release() { f.bytes.Release() }

func (f FreelistPage) Header() PageHeader { return f.bytes.PageHeader() }

// Bitmap returns the raw bitmap bytes, one bit per disk page
// (LotIndex/LotOffset addressing, see ids.go), transparently resolving
// the extended-count escape.
func (f FreelistPage) Bitmap() ([]byte, error) {
	h := f.bytes.PageHeader()
	if h.Count != freelistExtendedCountMarker {
		return f.bytes.GetRefSlice(pageHeaderSize, pageHeaderSize+int(h.Count))
	}
	countBuf, err := f.bytes.GetRefSlice(pageHeaderSize, pageHeaderSize+8)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(countBuf)
	return f.bytes.GetRefSlice(pageHeaderSize+8, pageHeaderSize+8+int(n))
}

// encodeFreelistPage writes a freelist record's header and body into
// buf, choosing the extended-count form automatically when bitmap is
// too long for a plain 16-bit count. pageSize is needed to set the
// header's Overflow field correctly whenever the record spans more than
// one page, since Reader.loadMapped/loadEager trust Overflow (not the
// buffer length) to know how much of the file belongs to this record.
func encodeFreelistPage(buf []byte, id FreelistPageId, bitmap []byte, pageSize int) {
	total := freelistPageLen(len(bitmap))
	overflow := uint32(0)
	if pageSize > 0 && total > pageSize {
		overflow = uint32((total+pageSize-1)/pageSize) - 1
	}
	if len(bitmap) < int(freelistExtendedCountMarker) {
		encodePageHeader(buf, PageHeader{Id: id.Disk(), Flags: freelistPageFlag, Count: uint16(len(bitmap)), Overflow: overflow})
		copy(buf[pageHeaderSize:], bitmap)
		return
	}
	encodePageHeader(buf, PageHeader{Id: id.Disk(), Flags: freelistPageFlag, Count: freelistExtendedCountMarker, Overflow: overflow})
	binary.LittleEndian.PutUint64(buf[pageHeaderSize:pageHeaderSize+8], uint64(len(bitmap)))
	copy(buf[pageHeaderSize+8:], bitmap)
}

// freelistPageLen returns the total byte length (header + optional
// extended count + bitmap) a freelist record of the given bitmap size
// would occupy, useful for computing its page-count before writing.
func freelistPageLen(bitmapLen int) int {
	if bitmapLen < int(freelistExtendedCountMarker) {
		return pageHeaderSize + bitmapLen
	}
	return pageHeaderSize + 8 + bitmapLen
}
