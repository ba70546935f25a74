package osg

// Mode mirrors the GL primitive modes found in OSGB primitive sets.
type Mode int

const (
	ModePoints        Mode = 0
	ModeLines         Mode = 1
	ModeLineLoop      Mode = 2
	ModeLineStrip     Mode = 3
	ModeTriangles     Mode = 4
	ModeTriangleStrip Mode = 5
	ModeTriangleFan   Mode = 6
	ModeQuads         Mode = 7
	ModeQuadStrip     Mode = 8
	ModePolygon       Mode = 9
)

// IndexWidth is the storage width of a DrawElements index array.
type IndexWidth int

const (
	IndexUByte  IndexWidth = 1
	IndexUShort IndexWidth = 2
	IndexUInt   IndexWidth = 4
)

// RestartIndex returns the primitive-restart sentinel for the width, i.e. the
// maximum representable index value.
func (w IndexWidth) RestartIndex() uint32 {
	switch w {
	case IndexUByte:
		return 0xff
	case IndexUShort:
		return 0xffff
	default:
		return 0xffffffff
	}
}

// PrimitiveSet is one rendering recipe over a drawable's vertex arrays.
type PrimitiveSet interface {
	PrimitiveMode() Mode
}

// DrawElements carries inline indices. Indices are widened to uint32 by the
// decoder; Width remembers the source storage so restart sentinels stay
// meaningful.
type DrawElements struct {
	Mode    Mode
	Indices []uint32
	Width   IndexWidth
}

func (d *DrawElements) PrimitiveMode() Mode { return d.Mode }

// DrawArrays renders the vertex range [First, First+Count).
type DrawArrays struct {
	Mode  Mode
	First int
	Count int
}

func (d *DrawArrays) PrimitiveMode() Mode { return d.Mode }

// DrawArrayLengths renders consecutive sub-ranges starting at First; each
// entry of Lengths is an independent strip/fan/quad batch.
type DrawArrayLengths struct {
	Mode    Mode
	First   int
	Lengths []int
}

func (d *DrawArrayLengths) PrimitiveMode() Mode { return d.Mode }
