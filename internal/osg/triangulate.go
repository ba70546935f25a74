package osg

import "log"

// IsSurfaceMode reports whether the mode rasterizes triangles once expanded.
func IsSurfaceMode(m Mode) bool {
	switch m {
	case ModeTriangles, ModeTriangleStrip, ModeTriangleFan, ModeQuads, ModeQuadStrip, ModePolygon:
		return true
	}
	return false
}

// TriangleIndices expands a primitive set into a plain triangle index list.
// Strip and fan runs reset at the primitive-restart sentinel of the source
// index width; draw-array-lengths sub-segments are independent runs and are
// expanded without restart handling. Non-surface modes return nil.
func TriangleIndices(ps PrimitiveSet) []uint32 {
	switch p := ps.(type) {
	case *DrawElements:
		if !IsSurfaceMode(p.Mode) {
			return nil
		}
		switch p.Mode {
		case ModeTriangleStrip, ModeTriangleFan, ModeQuadStrip, ModePolygon:
			// Only run-based modes interpret the restart sentinel.
			return expandRuns(p.Mode, p.Indices, p.Width.RestartIndex())
		}
		return triangulateRun(p.Mode, p.Indices, nil)
	case *DrawArrays:
		if !IsSurfaceMode(p.Mode) {
			return nil
		}
		run := sequentialRun(p.First, p.Count)
		return triangulateRun(p.Mode, run, nil)
	case *DrawArrayLengths:
		if !IsSurfaceMode(p.Mode) {
			return nil
		}
		var out []uint32
		first := p.First
		for _, n := range p.Lengths {
			out = triangulateRun(p.Mode, sequentialRun(first, n), out)
			first += n
		}
		return out
	}
	return nil
}

func sequentialRun(first, count int) []uint32 {
	run := make([]uint32, count)
	for i := range run {
		run[i] = uint32(first + i)
	}
	return run
}

// expandRuns splits indices at the restart sentinel and triangulates each run.
func expandRuns(mode Mode, indices []uint32, restart uint32) []uint32 {
	var out []uint32
	start := 0
	for i, idx := range indices {
		if idx == restart {
			out = triangulateRun(mode, indices[start:i], out)
			start = i + 1
		}
	}
	return triangulateRun(mode, indices[start:], out)
}

func triangulateRun(mode Mode, run []uint32, out []uint32) []uint32 {
	switch mode {
	case ModeTriangles:
		n := len(run) - len(run)%3
		out = append(out, run[:n]...)
	case ModeTriangleStrip:
		for i := 0; i+2 < len(run); i++ {
			if i%2 == 0 {
				out = append(out, run[i], run[i+1], run[i+2])
			} else {
				out = append(out, run[i+1], run[i], run[i+2])
			}
		}
	case ModeTriangleFan, ModePolygon:
		for i := 1; i+1 < len(run); i++ {
			out = append(out, run[0], run[i], run[i+1])
		}
	case ModeQuads:
		if rem := len(run) % 4; rem != 0 {
			log.Printf("discarding %d indices past the last full quad", rem)
		}
		for i := 0; i+3 < len(run); i += 4 {
			a, b, c, d := run[i], run[i+1], run[i+2], run[i+3]
			out = append(out, a, b, c, a, c, d)
		}
	case ModeQuadStrip:
		// Quad (2i, 2i+1, 2i+3, 2i+2) in GL winding.
		for i := 0; i+3 < len(run); i += 2 {
			v0, v1, v2, v3 := run[i], run[i+1], run[i+2], run[i+3]
			out = append(out, v0, v1, v2, v1, v3, v2)
		}
	}
	return out
}
