package geometry

import (
	"math"

	vec3 "github.com/flywave/go3d/float64/vec3"
)

// TileBox is an axis aligned bounding box that starts out empty and grows by
// point expansion or union. An empty box never contributes to a union.
type TileBox struct {
	Min vec3.T
	Max vec3.T

	set bool
}

func NewTileBox(min, max vec3.T) TileBox {
	return TileBox{Min: min, Max: max, set: true}
}

func (b *TileBox) IsEmpty() bool {
	return !b.set
}

// ExpandPoint grows the box to contain p.
func (b *TileBox) ExpandPoint(p vec3.T) {
	if !b.set {
		b.Min = p
		b.Max = p
		b.set = true
		return
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union grows the box to contain other. Empty operands are ignored.
func (b *TileBox) Union(other TileBox) {
	if other.IsEmpty() {
		return
	}
	if !b.set {
		*b = other
		return
	}
	for i := 0; i < 3; i++ {
		if other.Min[i] < b.Min[i] {
			b.Min[i] = other.Min[i]
		}
		if other.Max[i] > b.Max[i] {
			b.Max[i] = other.Max[i]
		}
	}
}

// Extend grows each half extent by ratio about the box center.
func (b *TileBox) Extend(ratio float64) {
	if !b.set {
		return
	}
	for i := 0; i < 3; i++ {
		c := (b.Max[i] + b.Min[i]) / 2
		h := (b.Max[i] - b.Min[i]) / 2 * (1 + ratio)
		b.Min[i] = c - h
		b.Max[i] = c + h
	}
}

func (b *TileBox) Center() vec3.T {
	return vec3.T{
		(b.Max[0] + b.Min[0]) / 2,
		(b.Max[1] + b.Min[1]) / 2,
		(b.Max[2] + b.Min[2]) / 2,
	}
}

func (b *TileBox) HalfExtents() vec3.T {
	return vec3.T{
		(b.Max[0] - b.Min[0]) / 2,
		(b.Max[1] - b.Min[1]) / 2,
		(b.Max[2] - b.Min[2]) / 2,
	}
}

// MaxEdge returns the longest full edge length of the box, 0 for an empty box.
func (b *TileBox) MaxEdge() float64 {
	if !b.set {
		return 0
	}
	return math.Max(b.Max[0]-b.Min[0], math.Max(b.Max[1]-b.Min[1], b.Max[2]-b.Min[2]))
}

// Contains reports whether other lies fully inside b (empty boxes are contained).
func (b *TileBox) Contains(other TileBox) bool {
	if other.IsEmpty() {
		return true
	}
	if !b.set {
		return false
	}
	for i := 0; i < 3; i++ {
		if other.Min[i] < b.Min[i] || other.Max[i] > b.Max[i] {
			return false
		}
	}
	return true
}
