package osg

import (
	vec3 "github.com/flywave/go3d/float64/vec3"
)

// SmoothingVisitor fills in per-vertex normals for drawables that carry none,
// by area-weighted averaging of the face normals of every surface primitive
// set. Drawables that already have normals are left untouched.
type SmoothingVisitor struct{}

func (s *SmoothingVisitor) ApplyGroup(g *Group)                     { g.Traverse(s) }
func (s *SmoothingVisitor) ApplyMatrixTransform(m *MatrixTransform) { m.Traverse(s) }
func (s *SmoothingVisitor) ApplyPagedLOD(p *PagedLOD)               { p.Traverse(s) }

func (s *SmoothingVisitor) ApplyGeometry(g *Geometry) {
	if len(g.Vertices) == 0 || len(g.Normals) > 0 {
		return
	}
	normals := make([]vec3.T, len(g.Vertices))
	for _, ps := range g.PrimitiveSets {
		tris := TriangleIndices(ps)
		for i := 0; i+2 < len(tris); i += 3 {
			a, b, c := tris[i], tris[i+1], tris[i+2]
			if int(a) >= len(g.Vertices) || int(b) >= len(g.Vertices) || int(c) >= len(g.Vertices) {
				continue
			}
			n := faceNormal(g.Vertices[a], g.Vertices[b], g.Vertices[c])
			accumulate(&normals[a], n)
			accumulate(&normals[b], n)
			accumulate(&normals[c], n)
		}
	}
	for i := range normals {
		normalize(&normals[i])
	}
	g.Normals = normals
	g.NormalBinding = BindPerVertex
}

// faceNormal returns the unnormalized cross product, so larger faces weigh
// more in the accumulated vertex normal.
func faceNormal(a, b, c vec3.T) vec3.T {
	u := vec3.T{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := vec3.T{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	return vec3.T{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
}

func accumulate(dst *vec3.T, n vec3.T) {
	dst[0] += n[0]
	dst[1] += n[1]
	dst[2] += n[2]
}

func normalize(n *vec3.T) {
	l := n.Length()
	if l > 0 {
		n[0] /= l
		n[1] /= l
		n[2] /= l
	} else {
		*n = vec3.T{0, 0, 1}
	}
}
