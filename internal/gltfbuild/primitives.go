package gltfbuild

import (
	"fmt"

	"github.com/qmuntal/gltf"

	"github.com/oblique-map/osgb_tiler/internal/meshopt"
	"github.com/oblique-map/osgb_tiler/internal/osg"
)

// primitiveState remembers the attribute accessors already emitted for a
// drawable so later primitive sets over the same arrays can reuse them.
// Reuse is disabled while a draw range is active.
type primitiveState struct {
	vertexAccessor int
	normalAccessor int
	texAccessor    int
}

// writeGeometry appends the drawable's glTF primitives and returns how many
// were added: one per primitive set in the plain layout, or a single primitive
// for the whole drawable when Draco compression succeeds. Unsupported primitive kinds
// surface as an error for the current file instead of aborting the process.
func (w *Writer) writeGeometry(s *buildState, g *osg.Geometry) (int, error) {
	if w.Opts.MeshOpt {
		applyMeshOpt(g, w.Opts.Simplify)
	}

	if w.Opts.Draco && w.dracoEncoder() != nil {
		if n, ok := w.writeDracoGeometry(s, g); ok {
			return n, nil
		}
		// Draco failures are not fatal; fall through to the plain layout.
	}

	mesh := s.doc.Meshes[0]
	pmt := &primitiveState{vertexAccessor: -1, normalAccessor: -1, texAccessor: -1}
	emitted := 0
	for _, ps := range g.PrimitiveSets {
		prims, err := w.writePrimitiveSet(s, g, ps, pmt)
		if err != nil {
			return emitted, err
		}
		mesh.Primitives = append(mesh.Primitives, prims...)
		emitted += len(prims)
	}
	return emitted, nil
}

func (w *Writer) writePrimitiveSet(s *buildState, g *osg.Geometry, ps osg.PrimitiveSet, pmt *primitiveState) ([]*gltf.Primitive, error) {
	prim := &gltf.Primitive{}
	s.drawFirst = -1

	switch p := ps.(type) {
	case *osg.DrawElements:
		mode, indices, err := expandElementIndices(p)
		if err != nil {
			return nil, err
		}
		if len(indices) == 0 {
			// A run too short to form any face emits nothing.
			return nil, nil
		}
		prim.Mode = mode
		prim.Indices = gltf.Index(s.emitIndices(indices))

	case *osg.DrawArrays:
		mode, indices, usesRange, err := expandDrawArrays(p)
		if err != nil {
			return nil, err
		}
		prim.Mode = mode
		if usesRange {
			s.drawFirst = p.First
			s.drawCount = p.Count
		}
		if indices != nil {
			prim.Indices = gltf.Index(s.emitIndices(indices))
		}

	case *osg.DrawArrayLengths:
		mode, indices, err := expandDrawArrayLengths(p)
		if err != nil {
			return nil, err
		}
		if len(indices) == 0 {
			return nil, nil
		}
		prim.Mode = mode
		prim.Indices = gltf.Index(s.emitIndices(indices))

	default:
		return nil, fmt.Errorf("unsupported primitive set %T", ps)
	}

	prim.Attributes = map[string]uint32{}

	if pmt.vertexAccessor > -1 && s.drawFirst == -1 {
		prim.Attributes[gltf.POSITION] = uint32(pmt.vertexAccessor)
	} else {
		acc := s.emitVec3(g.Vertices, true)
		prim.Attributes[gltf.POSITION] = acc
		if pmt.vertexAccessor == -1 && s.drawFirst == -1 {
			pmt.vertexAccessor = int(acc)
		}
	}

	if len(g.Normals) == len(g.Vertices) && len(g.Normals) > 0 {
		if pmt.normalAccessor > -1 && s.drawFirst == -1 {
			prim.Attributes[gltf.NORMAL] = uint32(pmt.normalAccessor)
		} else {
			acc := s.emitVec3(g.Normals, false)
			prim.Attributes[gltf.NORMAL] = acc
			if pmt.normalAccessor == -1 && s.drawFirst == -1 {
				pmt.normalAccessor = int(acc)
			}
		}
	}

	if len(g.TexCoords) == len(g.Vertices) && len(g.TexCoords) > 0 {
		if pmt.texAccessor > -1 && s.drawFirst == -1 {
			prim.Attributes[gltf.TEXCOORD_0] = uint32(pmt.texAccessor)
		} else {
			acc := s.emitVec2(g.TexCoords)
			prim.Attributes[gltf.TEXCOORD_0] = acc
			if pmt.texAccessor == -1 && s.drawFirst == -1 {
				pmt.texAccessor = int(acc)
			}
		}
	}

	s.drawFirst = -1
	return []*gltf.Primitive{prim}, nil
}

// expandElementIndices maps a DrawElements set onto a glTF mode plus index
// list. Triangles, strips, fans, points and lines copy 1:1; quads and quad
// strips are triangulated; polygons emit as fans. Surface runs too short to
// form one triangle yield no indices at all.
func expandElementIndices(p *osg.DrawElements) (gltf.PrimitiveMode, []uint32, error) {
	if osg.IsSurfaceMode(p.Mode) && len(p.Indices) < 3 {
		return gltf.PrimitiveTriangles, nil, nil
	}
	switch p.Mode {
	case osg.ModeTriangles:
		return gltf.PrimitiveTriangles, p.Indices, nil
	case osg.ModeTriangleStrip:
		return gltf.PrimitiveTriangleStrip, p.Indices, nil
	case osg.ModeTriangleFan, osg.ModePolygon:
		return gltf.PrimitiveTriangleFan, p.Indices, nil
	case osg.ModePoints:
		return gltf.PrimitivePoints, p.Indices, nil
	case osg.ModeLines:
		return gltf.PrimitiveLines, p.Indices, nil
	case osg.ModeLineLoop:
		return gltf.PrimitiveLineLoop, p.Indices, nil
	case osg.ModeLineStrip:
		return gltf.PrimitiveLineStrip, p.Indices, nil
	case osg.ModeQuads, osg.ModeQuadStrip:
		return gltf.PrimitiveTriangles, osg.TriangleIndices(p), nil
	}
	return 0, nil, fmt.Errorf("unsupported primitive mode %d", p.Mode)
}

// expandDrawArrays maps a DrawArrays set onto either a pure draw range (no
// indices, attributes restricted to [first, first+count)) or, for quad
// modes, a triangulated index list rebased into the emitted range.
func expandDrawArrays(p *osg.DrawArrays) (gltf.PrimitiveMode, []uint32, bool, error) {
	var mode gltf.PrimitiveMode
	switch p.Mode {
	case osg.ModeTriangles:
		mode = gltf.PrimitiveTriangles
	case osg.ModeTriangleStrip:
		mode = gltf.PrimitiveTriangleStrip
	case osg.ModeTriangleFan, osg.ModePolygon:
		mode = gltf.PrimitiveTriangleFan
	case osg.ModePoints:
		mode = gltf.PrimitivePoints
	case osg.ModeLines:
		mode = gltf.PrimitiveLines
	case osg.ModeLineLoop:
		mode = gltf.PrimitiveLineLoop
	case osg.ModeLineStrip:
		mode = gltf.PrimitiveLineStrip
	case osg.ModeQuads, osg.ModeQuadStrip:
		indices := osg.TriangleIndices(p)
		for i := range indices {
			indices[i] -= uint32(p.First)
		}
		return gltf.PrimitiveTriangles, indices, true, nil
	default:
		return 0, nil, false, fmt.Errorf("unsupported primitive mode %d", p.Mode)
	}
	return mode, nil, true, nil
}

// expandDrawArrayLengths expands every sub-segment independently: surface
// modes triangulate, points and lines concatenate their sequential runs.
func expandDrawArrayLengths(p *osg.DrawArrayLengths) (gltf.PrimitiveMode, []uint32, error) {
	if osg.IsSurfaceMode(p.Mode) {
		return gltf.PrimitiveTriangles, osg.TriangleIndices(p), nil
	}
	switch p.Mode {
	case osg.ModePoints, osg.ModeLines:
		var indices []uint32
		first := p.First
		for _, n := range p.Lengths {
			for i := 0; i < n; i++ {
				indices = append(indices, uint32(first+i))
			}
			first += n
		}
		mode := gltf.PrimitivePoints
		if p.Mode == osg.ModeLines {
			mode = gltf.PrimitiveLines
		}
		return mode, indices, nil
	}
	return 0, nil, fmt.Errorf("unsupported primitive mode %d in draw-array-lengths", p.Mode)
}

// applyMeshOpt runs the optimize/simplify pipeline in place. Only drawables
// with a single primitive set are touched: the pipeline rewrites the vertex
// buffer, which would break sibling sets referencing the old layout.
func applyMeshOpt(g *osg.Geometry, params meshopt.SimplifyParams) {
	if len(g.PrimitiveSets) != 1 {
		return
	}
	de, ok := g.PrimitiveSets[0].(*osg.DrawElements)
	var indices []uint32
	mode := g.PrimitiveSets[0].PrimitiveMode()
	if ok {
		indices = append([]uint32(nil), de.Indices...)
	} else if da, isDA := g.PrimitiveSets[0].(*osg.DrawArrays); isDA {
		indices = make([]uint32, da.Count)
		for i := range indices {
			indices[i] = uint32(da.First + i)
		}
	} else {
		return
	}

	vertices := packVertices(g)
	newVertices, newIndices := meshopt.OptimizeAndSimplify(vertices, indices, params)
	if len(newIndices) == 0 {
		return
	}
	unpackVertices(g, newVertices)
	g.PrimitiveSets = []osg.PrimitiveSet{&osg.DrawElements{
		Mode:    mode,
		Indices: newIndices,
		Width:   osg.IndexUInt,
	}}
}
