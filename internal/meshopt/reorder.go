package meshopt

import "sort"

const cacheSize = 32

// optimizeVertexCache reorders triangles so recently used vertices are reused
// soon, a greedy variant of the tipsify scheme driven by per-vertex cache
// timestamps and remaining valence.
func optimizeVertexCache(indices []uint32, vertexCount int) []uint32 {
	triCount := len(indices) / 3
	if triCount == 0 {
		return indices
	}

	valence := make([]int, vertexCount)
	for _, idx := range indices {
		valence[idx]++
	}

	// Per-vertex adjacency: triangle ids.
	offsets := make([]int, vertexCount+1)
	for v, n := range valence {
		offsets[v+1] = offsets[v] + n
	}
	adjacency := make([]int, len(indices))
	cursor := append([]int(nil), offsets[:vertexCount]...)
	for t := 0; t < triCount; t++ {
		for k := 0; k < 3; k++ {
			v := indices[t*3+k]
			adjacency[cursor[v]] = t
			cursor[v]++
		}
	}

	emitted := make([]bool, triCount)
	timestamp := make([]int, vertexCount)
	live := append([]int(nil), valence...)
	clock := cacheSize + 1

	out := make([]uint32, 0, len(indices))
	deadEnd := make([]uint32, 0, 64)
	scan := uint32(0)

	fanning := indices[0]
	for emittedTris := 0; emittedTris < triCount; {
		// Emit every live triangle around the fanning vertex.
		for _, t := range adjacency[offsets[fanning]:offsets[fanning+1]] {
			if emitted[t] {
				continue
			}
			emitted[t] = true
			emittedTris++
			for k := 0; k < 3; k++ {
				v := indices[t*3+k]
				out = append(out, v)
				deadEnd = append(deadEnd, v)
				timestamp[v] = clock
				clock++
				live[v]--
			}
		}

		// Next fanning vertex: the warmest recently touched vertex that still
		// has live triangles; otherwise pop the dead-end stack; otherwise scan.
		next := ^uint32(0)
		bestAge := cacheSize + 1
		for i := len(deadEnd) - 1; i >= 0 && i >= len(deadEnd)-2*cacheSize; i-- {
			v := deadEnd[i]
			if live[v] == 0 {
				continue
			}
			if age := clock - timestamp[v]; age < bestAge {
				bestAge = age
				next = v
			}
		}
		if next == ^uint32(0) {
			for len(deadEnd) > 0 {
				v := deadEnd[len(deadEnd)-1]
				deadEnd = deadEnd[:len(deadEnd)-1]
				if live[v] > 0 {
					next = v
					break
				}
			}
		}
		if next == ^uint32(0) {
			for scan < uint32(vertexCount) && live[scan] == 0 {
				scan++
			}
			if scan >= uint32(vertexCount) {
				break
			}
			next = scan
		}
		fanning = next
	}
	return out
}

// optimizeOverdraw splits the cache-ordered triangles into clusters and sorts
// clusters along the dominant mesh axis. Reordering is skipped when the
// expected gain is below the threshold, preserving the cache order.
func optimizeOverdraw(vertices []Vertex, indices []uint32, threshold float64) []uint32 {
	const clusterTris = 128
	triCount := len(indices) / 3
	if triCount <= clusterTris {
		return indices
	}

	axis := dominantAxis(vertices)

	type cluster struct {
		start, count int
		depth        float32
	}
	var clusters []cluster
	for t := 0; t < triCount; t += clusterTris {
		count := clusterTris
		if t+count > triCount {
			count = triCount - t
		}
		var sum float32
		for i := t * 3; i < (t+count)*3; i++ {
			sum += axisValue(&vertices[indices[i]], axis)
		}
		clusters = append(clusters, cluster{start: t, count: count, depth: sum / float32(count*3)})
	}

	sorted := append([]cluster(nil), clusters...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].depth < sorted[j].depth })

	moved := 0
	for i := range sorted {
		if sorted[i].start != clusters[i].start {
			moved++
		}
	}
	if float64(len(clusters))/float64(len(clusters)-moved+1) < threshold {
		return indices
	}

	out := make([]uint32, 0, len(indices))
	for _, c := range sorted {
		out = append(out, indices[c.start*3:(c.start+c.count)*3]...)
	}
	return out
}

// optimizeVertexFetch renumbers vertices by first use so the vertex buffer is
// read front to back during rendering.
func optimizeVertexFetch(vertices []Vertex, indices []uint32) ([]Vertex, []uint32) {
	order := make([]uint32, len(vertices))
	for i := range order {
		order[i] = ^uint32(0)
	}
	outVertices := make([]Vertex, 0, len(vertices))
	outIndices := make([]uint32, len(indices))
	for i, idx := range indices {
		if order[idx] == ^uint32(0) {
			order[idx] = uint32(len(outVertices))
			outVertices = append(outVertices, vertices[idx])
		}
		outIndices[i] = order[idx]
	}
	// Keep vertices never referenced by indices at the tail.
	for v := range vertices {
		if order[v] == ^uint32(0) {
			outVertices = append(outVertices, vertices[v])
		}
	}
	return outVertices, outIndices
}

func dominantAxis(vertices []Vertex) int {
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
	axis := 0
	for a := 1; a < 3; a++ {
		if max[a]-min[a] > max[axis]-min[axis] {
			axis = a
		}
	}
	return axis
}

func axisValue(v *Vertex, axis int) float32 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
