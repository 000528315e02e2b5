package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGapTable_CarvesFromTop(t *testing.T) {
	var g gapTable
	off, ok := g.take(64, 256)
	require.True(t, ok)
	assert.Equal(t, 0, off)
	off, ok = g.take(128, 256)
	require.True(t, ok)
	assert.Equal(t, 64, off)
	assert.Equal(t, 192, g.reserved)
}

func TestGapTable_OverflowLeavesStateUntouched(t *testing.T) {
	var g gapTable
	_, ok := g.take(200, 256)
	require.True(t, ok)
	_, ok = g.take(64, 256)
	assert.False(t, ok)
	assert.Equal(t, 200, g.reserved)
}

func TestGapTable_LastFit(t *testing.T) {
	var g gapTable
	a, _ := g.take(64, 1024)
	_, _ = g.take(8, 1024)
	b, _ := g.take(64, 1024)
	_, _ = g.take(8, 1024)
	g.give(a, 64)
	g.give(b, 64)
	require.Len(t, g.gaps, 2)

	off, ok := g.take(32, 1024)
	require.True(t, ok)
	assert.Equal(t, b, off, "the last qualifying gap wins")
	assert.Equal(t, Gap{Pos: b + 32, Size: 32}, g.gaps[1])
}

func TestGapTable_LastFitSkipsSmallTrailingGap(t *testing.T) {
	var g gapTable
	a, _ := g.take(64, 1024)
	_, _ = g.take(8, 1024)
	b, _ := g.take(16, 1024)
	_, _ = g.take(8, 1024)
	g.give(a, 64)
	g.give(b, 16)

	off, ok := g.take(48, 1024)
	require.True(t, ok)
	assert.Equal(t, a, off)
}

func TestGapTable_ExactFitRemovesGap(t *testing.T) {
	var g gapTable
	a, _ := g.take(64, 1024)
	_, _ = g.take(8, 1024)
	b, _ := g.take(64, 1024)
	_, _ = g.take(8, 1024)
	g.give(a, 64)
	g.give(b, 64)

	off, ok := g.take(64, 1024)
	require.True(t, ok)
	assert.Equal(t, b, off)
	assert.Equal(t, []Gap{{Pos: a, Size: 64}}, g.gaps)
}

func TestGapTable_TopReleaseShrinksReserved(t *testing.T) {
	var g gapTable
	_, _ = g.take(64, 1024)
	b, _ := g.take(128, 1024)
	g.give(b, 128)
	assert.Empty(t, g.gaps)
	assert.Equal(t, 64, g.reserved)
}

func TestGapTable_AdjacentGapsAreNotMerged(t *testing.T) {
	var g gapTable
	a, _ := g.take(32, 1024)
	b, _ := g.take(32, 1024)
	_, _ = g.take(32, 1024)
	g.give(a, 32)
	g.give(b, 32)
	assert.Len(t, g.gaps, 2)
	assert.Equal(t, 96-64, g.carved())
}

func TestGapTable_GrowsGeometrically(t *testing.T) {
	var g gapTable
	offs := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		off, ok := g.take(8, 1<<20)
		require.True(t, ok)
		offs = append(offs, off)
	}
	// Free every other span so none of them touches the reserved edge.
	for i := 0; i < 98; i += 2 {
		g.give(offs[i], 8)
	}
	assert.Len(t, g.gaps, 49)
	assert.Equal(t, 800-49*8, g.carved())
}
