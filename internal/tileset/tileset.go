// Package tileset composes 3D Tiles manifest trees: bounding volumes,
// geometric errors, root transforms and child content references.
package tileset

import (
	"encoding/json"
	"path/filepath"
	"strings"

	vec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/oblique-map/osgb_tiler/internal/geometry"
	"github.com/oblique-map/osgb_tiler/internal/geotrans"
	"github.com/oblique-map/osgb_tiler/internal/lod"
)

type Asset struct {
	Version    string `json:"version"`
	GltfUpAxis string `json:"gltfUpAxis,omitempty"`
}

type BoundingVolume struct {
	Box    []float64 `json:"box,omitempty"`
	Region []float64 `json:"region,omitempty"`
}

type Content struct {
	URI string `json:"uri"`
}

type Node struct {
	Transform      []float64      `json:"transform,omitempty"`
	BoundingVolume BoundingVolume `json:"boundingVolume"`
	GeometricError float64        `json:"geometricError"`
	Refine         string         `json:"refine,omitempty"`
	Content        *Content       `json:"content,omitempty"`
	Children       []Node         `json:"children,omitempty"`
}

type Tileset struct {
	Asset          Asset   `json:"asset"`
	GeometricError float64 `json:"geometricError"`
	Root           Node    `json:"root"`
}

// Per-axis half extents below this floor are bumped to avoid degenerate
// bounding boxes.
const minHalfExtent = 0.005

// BoxFromTileBox converts a bbox to the 12-element 3D Tiles box form:
// center plus three axis-aligned half-extent vectors.
func BoxFromTileBox(box geometry.TileBox) BoundingVolume {
	center := box.Center()
	half := box.HalfExtents()
	for i := 0; i < 3; i++ {
		if half[i] < minHalfExtent {
			half[i] = minHalfExtent
		}
	}
	return BoundingVolume{Box: []float64{
		center[0], center[1], center[2],
		half[0], 0, 0,
		0, half[1], 0,
		0, 0, half[2],
	}}
}

// FromLodTree converts an LOD tree into a tileset node tree. Paged nodes
// reference "<stem>.b3dm", leaf-other nodes "<stem>o.b3dm"; grouping nodes
// carry no content.
func FromLodTree(n *lod.Node) Node {
	out := Node{
		GeometricError: n.GeometricError,
		BoundingVolume: BoxFromTileBox(n.BBox),
	}
	if n.Kind != lod.KindRoot {
		out.Content = &Content{URI: "./" + ContentFileName(n.Path, n.Kind)}
	}
	if len(n.Children) > 0 {
		out.Refine = "REPLACE"
		for _, child := range n.Children {
			if child.BBox.IsEmpty() {
				continue
			}
			out.Children = append(out.Children, FromLodTree(child))
		}
	}
	return out
}

// ContentFileName maps a scene-graph file path to its tile file name.
func ContentFileName(path string, kind lod.Kind) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if kind == lod.KindLeafOther {
		return stem + "o.b3dm"
	}
	return stem + ".b3dm"
}

// WrapTileRoot builds the per-tile tileset document around a tile root node.
func WrapTileRoot(root Node) Tileset {
	return Tileset{
		Asset:          Asset{Version: "1.0", GltfUpAxis: "Z"},
		GeometricError: 1000,
		Root:           root,
	}
}

// RootTransform builds the 16-element column-major ECEF placement for the
// dataset root. When the source metadata declared an ENU SRS with a non-zero
// origin offset, the offset is interpreted in the local ENU frame and rotated
// into ECEF before shifting the translation.
func RootTransform(lonDeg, latDeg, heightMin float64, enuOffset *vec3.T) []float64 {
	m := geotrans.CalcEnuToEcefMatrix(lonDeg, latDeg, heightMin)
	if enuOffset != nil {
		shift := geotrans.RotateEnuOffsetToEcef(lonDeg, latDeg, *enuOffset)
		m[3][0] += shift[0]
		m[3][1] += shift[1]
		m[3][2] += shift[2]
	}
	out := make([]float64, 16)
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out[col*4+row] = m[col][row]
		}
	}
	return out
}

// Encode renders a tileset document as indented JSON.
func Encode(ts Tileset) ([]byte, error) {
	return json.MarshalIndent(ts, "", "\t")
}
