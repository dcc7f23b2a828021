package boltkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeIndexNeedleSearchSingleLot(t *testing.T) {
	// lot 0 fully allocated, lot 1 fully free, lot 2 fully allocated.
	bitmap := []byte{0x00, 0xFF, 0x00}
	fi := NewFreeIndex(bitmap)

	id := fi.Assign(3, LotIndex(1))
	lot, off := SplitPageId(id)
	assert.Equal(t, LotIndex(1), lot)
	assert.Equal(t, LotOffset(0), off)
	assert.Equal(t, 5, fi.runLengthAt(id+3))
}

func TestFreeIndexPairSearchSpansTwoLots(t *testing.T) {
	// bits 4..15 free (spans lot0's top half and all of lot1): 12 bits.
	bitmap := []byte{0xF0, 0xFF, 0x00}
	fi := NewFreeIndex(bitmap)

	id := fi.Assign(10, LotIndex(0))
	lot, off := SplitPageId(id)
	assert.Equal(t, LotIndex(0), lot)
	assert.Equal(t, LotOffset(4), off)
}

func TestFreeIndexBoyerMooreLongRun(t *testing.T) {
	bitmap := make([]byte, 10)
	for i := range bitmap {
		bitmap[i] = 0xFF
	}
	fi := NewFreeIndex(bitmap)

	id := fi.Assign(20, LotIndex(0))
	assert.Equal(t, DiskPageId(0), id)
	assert.Equal(t, 60, fi.runLengthAt(id+20))
}

func TestFreeIndexAssignClosestToDesired(t *testing.T) {
	// Two separate 8-bit-free lots: 0 and 7. Desired lot 7 should win.
	bitmap := []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}
	fi := NewFreeIndex(bitmap)

	id := fi.Assign(8, LotIndex(7))
	lot, _ := SplitPageId(id)
	assert.Equal(t, LotIndex(7), lot)
}

func TestFreeIndexExtendsOnMiss(t *testing.T) {
	bitmap := []byte{0x00, 0x00}
	fi := NewFreeIndex(bitmap)

	id := fi.Assign(4, LotIndex(0))
	lot, off := SplitPageId(id)
	assert.Equal(t, LotIndex(2), lot)
	assert.Equal(t, LotOffset(0), off)
	assert.Equal(t, 3, len(fi.Bitmap()))
}

func TestFreeIndexFreeRoundTrip(t *testing.T) {
	bitmap := []byte{0xFF}
	fi := NewFreeIndex(bitmap)

	id := fi.Assign(4, LotIndex(0))
	assert.Equal(t, 4, fi.runLengthAt(id+4))

	fi.Free(id, 4)
	assert.Equal(t, 8, fi.runLengthAt(id))
}

func TestFreeIndexFreePastCurrentBitmapGrows(t *testing.T) {
	bitmap := []byte{0x00}
	fi := NewFreeIndex(bitmap)

	fi.Free(DiskPageId(10), 2)
	assert.True(t, len(fi.Bitmap()) >= 2)
	assert.Equal(t, 2, fi.runLengthAt(DiskPageId(10)))
}
