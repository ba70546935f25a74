package osg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriangleIndicesTrianglesPassThrough(t *testing.T) {
	ps := &DrawElements{Mode: ModeTriangles, Indices: []uint32{0, 1, 2, 2, 1, 3}, Width: IndexUInt}
	assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, TriangleIndices(ps))
}

func TestTriangleIndicesTrianglesDropsTrailing(t *testing.T) {
	ps := &DrawElements{Mode: ModeTriangles, Indices: []uint32{0, 1, 2, 3, 4}, Width: IndexUInt}
	assert.Equal(t, []uint32{0, 1, 2}, TriangleIndices(ps))
}

func TestTriangleIndicesStripWinding(t *testing.T) {
	ps := &DrawElements{Mode: ModeTriangleStrip, Indices: []uint32{0, 1, 2, 3}, Width: IndexUInt}
	assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, TriangleIndices(ps))
}

func TestTriangleIndicesStripTooShort(t *testing.T) {
	ps := &DrawElements{Mode: ModeTriangleStrip, Indices: []uint32{0, 1}, Width: IndexUInt}
	assert.Empty(t, TriangleIndices(ps))
}

func TestTriangleIndicesFan(t *testing.T) {
	ps := &DrawElements{Mode: ModeTriangleFan, Indices: []uint32{5, 6, 7, 8}, Width: IndexUInt}
	assert.Equal(t, []uint32{5, 6, 7, 5, 7, 8}, TriangleIndices(ps))
}

func TestTriangleIndicesQuads(t *testing.T) {
	ps := &DrawElements{Mode: ModeQuads, Indices: []uint32{0, 1, 2, 3}, Width: IndexUInt}
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, TriangleIndices(ps))
}

func TestTriangleIndicesQuadsDiscardsPartial(t *testing.T) {
	ps := &DrawElements{Mode: ModeQuads, Indices: []uint32{0, 1, 2, 3, 4, 5}, Width: IndexUInt}
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, TriangleIndices(ps))
}

func TestTriangleIndicesQuadStripCanonical(t *testing.T) {
	// Quad over (v0, v1, v3, v2) becomes (v0,v1,v2) + (v1,v3,v2).
	ps := &DrawElements{Mode: ModeQuadStrip, Indices: []uint32{0, 1, 2, 3, 4, 5}, Width: IndexUInt}
	assert.Equal(t, []uint32{
		0, 1, 2, 1, 3, 2,
		2, 3, 4, 3, 5, 4,
	}, TriangleIndices(ps))
}

func TestTriangleIndicesStripRestart(t *testing.T) {
	// 0xffff splits the strip into two independent runs for USHORT indices.
	ps := &DrawElements{
		Mode:    ModeTriangleStrip,
		Indices: []uint32{0, 1, 2, 0xffff, 3, 4, 5},
		Width:   IndexUShort,
	}
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, TriangleIndices(ps))
}

func TestTriangleIndicesRestartOnlyForMatchingWidth(t *testing.T) {
	// For UINT storage 0xffff is a plain index, not a restart.
	ps := &DrawElements{
		Mode:    ModeTriangleStrip,
		Indices: []uint32{0, 1, 0xffff},
		Width:   IndexUInt,
	}
	assert.Equal(t, []uint32{0, 1, 0xffff}, TriangleIndices(ps))
}

func TestTriangleIndicesPolygonFan(t *testing.T) {
	ps := &DrawArrays{Mode: ModePolygon, First: 2, Count: 5}
	assert.Equal(t, []uint32{2, 3, 4, 2, 4, 5, 2, 5, 6}, TriangleIndices(ps))
}

func TestTriangleIndicesDrawArrayLengthsIndependentRuns(t *testing.T) {
	// Two sub-strips; the base offset advances by each length.
	ps := &DrawArrayLengths{Mode: ModeTriangleStrip, First: 0, Lengths: []int{3, 4}}
	assert.Equal(t, []uint32{
		0, 1, 2,
		3, 4, 5, 5, 4, 6,
	}, TriangleIndices(ps))
}

func TestTriangleIndicesNonSurfaceModes(t *testing.T) {
	assert.Nil(t, TriangleIndices(&DrawElements{Mode: ModeLines, Indices: []uint32{0, 1}, Width: IndexUInt}))
	assert.Nil(t, TriangleIndices(&DrawArrays{Mode: ModePoints, First: 0, Count: 3}))
}
