package lod

import (
	"log"
	"path/filepath"

	"github.com/oblique-map/osgb_tiler/internal/osg"
	"github.com/oblique-map/osgb_tiler/internal/scene"
)

// Walker discovers the LOD hierarchy rooted at one scene-graph file.
type Walker struct {
	Registry *osg.Registry
}

// Read builds the LOD tree depth first. A file that fails to load yields an
// empty node and the parent keeps going with its remaining siblings.
//
// When a file carries both paged and non-paged drawables the node is split: a
// synthetic root wraps the paged subtree plus a leaf-other sibling for the
// remaining drawables, so both end up in distinct tiles.
func (w *Walker) Read(path string) *Node {
	root, err := w.Registry.ReadNodeFile(path)
	if err != nil {
		log.Printf("read node file %q failed: %v", path, err)
		return &Node{}
	}

	node := &Node{Path: path, Kind: KindPaged}

	collector := scene.NewCollector(filepath.Dir(path), false, nil)
	root.Accept(collector)

	for _, sub := range collector.SubNodeNames {
		child := w.Read(sub)
		if child.IsEmpty() {
			continue
		}
		if child.Kind == KindRoot {
			node.Children = append(node.Children, child.Children...)
		} else {
			node.Children = append(node.Children, child)
		}
	}

	if len(collector.OtherGeometries) > 0 && len(collector.Geometries) > 0 {
		split := &Node{Path: path, Kind: KindRoot}
		split.Children = append(split.Children, node, &Node{Path: path, Kind: KindLeafOther})
		return split
	}
	return node
}
