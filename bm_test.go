package boltkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanFreeRunsMergesAcrossFullLots(t *testing.T) {
	bitmap := []byte{0xFF, 0xFF, 0x00, 0xFF}
	runs := scanFreeRuns(bitmap, 1, newFindBudget(), false)
	assert.Equal(t, []freeRun{{start: 0, len: 16}, {start: 24, len: 8}}, runs)
}

func TestScanFreeRunsRespectsMinLen(t *testing.T) {
	bitmap := []byte{0x0F, 0x00, 0xFF}
	runs := scanFreeRuns(bitmap, 5, newFindBudget(), false)
	assert.Equal(t, []freeRun{{start: 16, len: 8}}, runs)
}

func TestBestWindowInRunClampsToRange(t *testing.T) {
	run := freeRun{start: 10, len: 20}
	assert.Equal(t, 10, bestWindowInRun(run, 5, 0))
	assert.Equal(t, 25, bestWindowInRun(run, 5, 100))
	assert.Equal(t, 15, bestWindowInRun(run, 5, 15))
}

func TestBoyerMooreMagicLenSearchPicksClosestRun(t *testing.T) {
	// free runs: bits[0:16) and bits[40:64)
	bitmap := make([]byte, 8)
	bitmap[0], bitmap[1] = 0xFF, 0xFF
	for i := 5; i < 8; i++ {
		bitmap[i] = 0xFF
	}
	lot, off, ok := boyerMooreMagicLenSearch(bitmap, 16, LotIndex(5))
	assert.True(t, ok)
	_ = lot
	_ = off
	// Closest run to lot 5 (bit 40) should be the [40:64) run itself.
	start := int(lot)*8 + int(off)
	assert.True(t, start >= 40 && start <= 44)
}

func TestBoyerMooreMagicLenSearchNoRun(t *testing.T) {
	bitmap := []byte{0x0F, 0xF0}
	_, _, ok := boyerMooreMagicLenSearch(bitmap, 16, LotIndex(0))
	assert.False(t, ok)
}
