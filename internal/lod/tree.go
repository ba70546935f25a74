// Package lod builds and annotates the level-of-detail tree of a root tile:
// recursive discovery over paged scene-graph references, post-order bounding
// box unions and geometric error propagation.
package lod

import (
	"math"

	"github.com/oblique-map/osgb_tiler/internal/geometry"
)

// Kind discriminates the node flavors of the LOD tree.
type Kind int

const (
	// KindRoot is a synthetic grouping node with no content of its own.
	KindRoot Kind = 0
	// KindPaged is a regular paged LOD tile.
	KindPaged Kind = 1
	// KindLeafOther carries the non-paged drawables of a file that also has
	// paged content; its tile is written with the "o.b3dm" suffix.
	KindLeafOther Kind = 2
)

// Node is one LOD tree entry. Path doubles as the identity key; an empty
// path marks a failed load.
type Node struct {
	Path           string
	Kind           Kind
	BBox           geometry.TileBox
	GeometricError float64
	Children       []*Node
}

// IsEmpty reports whether the node represents a failed or empty read.
func (n *Node) IsEmpty() bool { return n.Path == "" }

// ExtendBBox unions every subtree bbox into its parent, post-order, and
// returns the root's resulting box.
func ExtendBBox(n *Node) geometry.TileBox {
	box := n.BBox
	for _, child := range n.Children {
		sub := ExtendBBox(child)
		box.Union(sub)
	}
	n.BBox = box
	return box
}

const geometricErrorEps = 1e-12

// CalcGeometricError fills in geometric errors post-order: leaves are exact
// (0); a parent doubles the error of any child that already has one, and
// otherwise falls back to a twentieth of its longest bbox edge.
func CalcGeometricError(n *Node) {
	for _, child := range n.Children {
		CalcGeometricError(child)
	}

	if len(n.Children) == 0 {
		n.GeometricError = 0
		return
	}

	var carrier *Node
	for _, child := range n.Children {
		if math.Abs(child.GeometricError) > geometricErrorEps {
			carrier = child
		}
	}
	if carrier != nil {
		n.GeometricError = carrier.GeometricError * 2
		return
	}
	n.GeometricError = n.BBox.MaxEdge() / 20
}
