// Package meshopt optimizes and simplifies indexed triangle meshes. The
// pipeline follows the usual order: deduplicate vertices, reorder for
// post-transform cache locality, reorder for overdraw, reorder for fetch
// locality, then simplify towards a target index count.
package meshopt

import (
	"encoding/binary"
	"math"
)

// Vertex is the packed 32-byte record handed to the optimizer and to the
// Draco encoder: position, normal, uv as eight float32s.
type Vertex struct {
	X, Y, Z    float32
	NX, NY, NZ float32
	U, V       float32
}

// SimplifyParams controls OptimizeAndSimplify.
type SimplifyParams struct {
	Enable            bool
	TargetRatio       float64
	TargetError       float64
	PreserveNormals   bool
	PreserveTexCoords bool
}

// DefaultSimplifyParams returns the stock settings used by the tiler.
func DefaultSimplifyParams() SimplifyParams {
	return SimplifyParams{
		Enable:            true,
		TargetRatio:       0.5,
		TargetError:       0.01,
		PreserveNormals:   true,
		PreserveTexCoords: true,
	}
}

const overdrawThreshold = 1.05

// OptimizeAndSimplify runs the full pipeline. When simplification cannot
// reduce the mesh the original (deduplicated, reordered) mesh is returned;
// failure to reduce never fails the conversion.
func OptimizeAndSimplify(vertices []Vertex, indices []uint32, p SimplifyParams) ([]Vertex, []uint32) {
	if !p.Enable || len(vertices) == 0 || len(indices) < 3 {
		return vertices, indices
	}

	remap, uniqueCount := generateVertexRemap(vertices, indices)
	indices = remapIndexBuffer(indices, remap)
	vertices = remapVertexBuffer(vertices, remap, uniqueCount)

	indices = optimizeVertexCache(indices, len(vertices))
	indices = optimizeOverdraw(vertices, indices, overdrawThreshold)
	vertices, indices = optimizeVertexFetch(vertices, indices)

	hasNormals := false
	if p.PreserveNormals {
		for i := range vertices {
			if vertices[i].NX != 0 || vertices[i].NY != 0 || vertices[i].NZ != 0 {
				hasNormals = true
				break
			}
		}
	}

	target := int(float64(len(indices)) * p.TargetRatio)
	var simplified []uint32
	if hasNormals {
		simplified = simplifyWithAttributes(vertices, indices, target, p.TargetError, [3]float32{0.5, 0.5, 0.5})
	} else {
		simplified = simplify(vertices, indices, target, p.TargetError)
	}
	if len(simplified) == 0 || len(simplified) >= len(indices) {
		return vertices, indices
	}
	return vertices, simplified
}

// generateVertexRemap builds a table mapping every original vertex to its
// slot in the deduplicated buffer. Duplicates are bitwise-equal 32-byte
// records.
func generateVertexRemap(vertices []Vertex, indices []uint32) ([]uint32, int) {
	remap := make([]uint32, len(vertices))
	for i := range remap {
		remap[i] = ^uint32(0)
	}

	seen := make(map[string]uint32, len(vertices))
	next := uint32(0)
	var key [32]byte
	for _, idx := range indices {
		if remap[idx] != ^uint32(0) {
			continue
		}
		packVertex(&key, &vertices[idx])
		if slot, ok := seen[string(key[:])]; ok {
			remap[idx] = slot
			continue
		}
		seen[string(key[:])] = next
		remap[idx] = next
		next++
	}
	return remap, int(next)
}

func packVertex(dst *[32]byte, v *Vertex) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(v.Z))
	binary.LittleEndian.PutUint32(dst[12:], math.Float32bits(v.NX))
	binary.LittleEndian.PutUint32(dst[16:], math.Float32bits(v.NY))
	binary.LittleEndian.PutUint32(dst[20:], math.Float32bits(v.NZ))
	binary.LittleEndian.PutUint32(dst[24:], math.Float32bits(v.U))
	binary.LittleEndian.PutUint32(dst[28:], math.Float32bits(v.V))
}

func remapIndexBuffer(indices, remap []uint32) []uint32 {
	out := make([]uint32, len(indices))
	for i, idx := range indices {
		out[i] = remap[idx]
	}
	return out
}

func remapVertexBuffer(vertices []Vertex, remap []uint32, uniqueCount int) []Vertex {
	out := make([]Vertex, uniqueCount)
	for i, slot := range remap {
		if slot != ^uint32(0) {
			out[slot] = vertices[i]
		}
	}
	return out
}
