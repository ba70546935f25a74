package meshopt

import (
	"container/heap"
	"math"
)

// simplify reduces the index buffer to roughly targetIndexCount by iterative
// edge collapse with per-vertex error quadrics. Collapses stop when the
// target is met or the next collapse would exceed the error budget, measured
// relative to the mesh extent.
func simplify(vertices []Vertex, indices []uint32, targetIndexCount int, targetError float64) []uint32 {
	return simplifyImpl(vertices, indices, targetIndexCount, targetError, 0)
}

// simplifyWithAttributes adds a normal-difference penalty so collapses across
// creases cost more; weights are per normal component.
func simplifyWithAttributes(vertices []Vertex, indices []uint32, targetIndexCount int, targetError float64, weights [3]float32) []uint32 {
	w := (float64(weights[0]) + float64(weights[1]) + float64(weights[2])) / 3
	return simplifyImpl(vertices, indices, targetIndexCount, targetError, w)
}

type collapse struct {
	a, b    uint32
	error   float64
	version uint64
}

type collapseHeap []collapse

func (h collapseHeap) Len() int            { return len(h) }
func (h collapseHeap) Less(i, j int) bool  { return h[i].error < h[j].error }
func (h collapseHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x interface{}) { *h = append(*h, x.(collapse)) }
func (h *collapseHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// quadric is the symmetric 4x4 error quadric stored as its upper triangle.
type quadric [10]float64

func (q *quadric) addPlane(a, b, c, d float64) {
	q[0] += a * a
	q[1] += a * b
	q[2] += a * c
	q[3] += a * d
	q[4] += b * b
	q[5] += b * c
	q[6] += b * d
	q[7] += c * c
	q[8] += c * d
	q[9] += d * d
}

func (q *quadric) add(o *quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

func (q *quadric) eval(x, y, z float64) float64 {
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

func simplifyImpl(vertices []Vertex, indices []uint32, targetIndexCount int, targetError float64, normalWeight float64) []uint32 {
	if targetIndexCount < 3 || len(indices) <= targetIndexCount {
		return indices
	}

	scale := meshExtent(vertices)
	if scale == 0 {
		return indices
	}
	errorLimit := targetError * targetError * scale * scale

	quadrics := make([]quadric, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		nx, ny, nz, d, ok := facePlane(&vertices[a], &vertices[b], &vertices[c])
		if !ok {
			continue
		}
		quadrics[a].addPlane(nx, ny, nz, d)
		quadrics[b].addPlane(nx, ny, nz, d)
		quadrics[c].addPlane(nx, ny, nz, d)
	}

	remap := make([]uint32, len(vertices))
	version := make([]uint64, len(vertices))
	for i := range remap {
		remap[i] = uint32(i)
	}

	h := &collapseHeap{}
	pushEdge := func(a, b uint32) {
		if a == b {
			return
		}
		heap.Push(h, collapse{a: a, b: b, error: collapseError(vertices, quadrics, a, b, normalWeight), version: version[a] + version[b]})
	}
	for i := 0; i+2 < len(indices); i += 3 {
		pushEdge(indices[i], indices[i+1])
		pushEdge(indices[i+1], indices[i+2])
		pushEdge(indices[i+2], indices[i])
	}

	// Each collapse kills at least one triangle, so the live count is only
	// recounted once the optimistic estimate reaches the target.
	liveTris := countLiveTriangles(indices, remap)
	estimate := liveTris
	for h.Len() > 0 && liveTris*3 > targetIndexCount {
		c := heap.Pop(h).(collapse)
		a, b := resolve(remap, c.a), resolve(remap, c.b)
		if a == b {
			continue
		}
		if c.version != version[c.a]+version[c.b] {
			// Stale entry; recompute against the surviving representatives.
			pushEdge(a, b)
			continue
		}
		if c.error > errorLimit {
			break
		}

		// Collapse b into a.
		quadrics[a].add(&quadrics[b])
		remap[b] = a
		version[a]++
		version[b]++
		estimate--
		if estimate*3 <= targetIndexCount {
			liveTris = countLiveTriangles(indices, remap)
			estimate = liveTris
		}
	}

	out := make([]uint32, 0, len(indices))
	for i := 0; i+2 < len(indices); i += 3 {
		a := resolve(remap, indices[i])
		b := resolve(remap, indices[i+1])
		c := resolve(remap, indices[i+2])
		if a == b || b == c || a == c {
			continue
		}
		out = append(out, a, b, c)
	}
	if len(out) >= len(indices) {
		return indices
	}
	return out
}

func resolve(remap []uint32, v uint32) uint32 {
	for remap[v] != v {
		remap[v] = remap[remap[v]]
		v = remap[v]
	}
	return v
}

func countLiveTriangles(indices, remap []uint32) int {
	live := 0
	for i := 0; i+2 < len(indices); i += 3 {
		a := resolve(remap, indices[i])
		b := resolve(remap, indices[i+1])
		c := resolve(remap, indices[i+2])
		if a != b && b != c && a != c {
			live++
		}
	}
	return live
}

func collapseError(vertices []Vertex, quadrics []quadric, a, b uint32, normalWeight float64) float64 {
	var q quadric
	q = quadrics[a]
	q.add(&quadrics[b])

	va, vb := &vertices[a], &vertices[b]
	err := math.Min(
		q.eval(float64(va.X), float64(va.Y), float64(va.Z)),
		q.eval(float64(vb.X), float64(vb.Y), float64(vb.Z)),
	)

	if normalWeight > 0 {
		dx := float64(va.NX - vb.NX)
		dy := float64(va.NY - vb.NY)
		dz := float64(va.NZ - vb.NZ)
		err += normalWeight * (dx*dx + dy*dy + dz*dz)
	}
	return err
}

func facePlane(a, b, c *Vertex) (nx, ny, nz, d float64, ok bool) {
	ux, uy, uz := float64(b.X-a.X), float64(b.Y-a.Y), float64(b.Z-a.Z)
	vx, vy, vz := float64(c.X-a.X), float64(c.Y-a.Y), float64(c.Z-a.Z)
	nx = uy*vz - uz*vy
	ny = uz*vx - ux*vz
	nz = ux*vy - uy*vx
	l := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if l == 0 {
		return 0, 0, 0, 0, false
	}
	nx, ny, nz = nx/l, ny/l, nz/l
	d = -(nx*float64(a.X) + ny*float64(a.Y) + nz*float64(a.Z))
	return nx, ny, nz, d, true
}

func meshExtent(vertices []Vertex) float64 {
	if len(vertices) == 0 {
		return 0
	}
	min := [3]float32{vertices[0].X, vertices[0].Y, vertices[0].Z}
	max := min
	for i := range vertices {
		p := [3]float32{vertices[i].X, vertices[i].Y, vertices[i].Z}
		for a := 0; a < 3; a++ {
			if p[a] < min[a] {
				min[a] = p[a]
			}
			if p[a] > max[a] {
				max[a] = p[a]
			}
		}
	}
	e := 0.0
	for a := 0; a < 3; a++ {
		if d := float64(max[a] - min[a]); d > e {
			e = d
		}
	}
	return e
}
