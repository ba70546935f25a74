// Package gltfbuild assembles one glTF 2.0 model per scene-graph file — a
// single shared buffer addressed by buffer views and accessors — and
// serializes it to the binary GLB container. The model layout mirrors the
// 3D Tiles producer conventions: one mesh, one node, one scene, one sampler,
// unlit textured materials.
package gltfbuild

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/qmuntal/gltf"

	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/geometry"
	"github.com/oblique-map/osgb_tiler/internal/geotrans"
	"github.com/oblique-map/osgb_tiler/internal/meshopt"
	"github.com/oblique-map/osgb_tiler/internal/osg"
	"github.com/oblique-map/osgb_tiler/internal/scene"
)

const (
	extUnlit  = "KHR_materials_unlit"
	extBasisu = "KHR_texture_basisu"
	extDraco  = "KHR_draco_mesh_compression"

	generatorName = "osgb_tiler"
)

// Node type selectors for GlbBuffer, matching the LOD tree node kinds.
const (
	NodeTypeAll   = -1
	NodeTypePaged = 1
	NodeTypeOther = 2
)

// Options selects the optional codec stages of a build.
type Options struct {
	TextureCompress bool
	MeshOpt         bool
	Draco           bool

	Simplify    meshopt.SimplifyParams
	DracoParams codec.DracoParams

	Ktx2Encoder  codec.Ktx2Encoder
	DracoEncoder codec.DracoEncoder
}

// Writer converts scene-graph files into GLB payloads.
type Writer struct {
	Registry *osg.Registry
	Geo      *geotrans.GeoTransform
	Opts     Options
}

func (w *Writer) dracoEncoder() codec.DracoEncoder { return w.Opts.DracoEncoder }

// ErrNoGeometry is reported (wrapped) when a file holds nothing convertible;
// callers treat it as "skip", not as a failure.
var ErrNoGeometry = fmt.Errorf("no geometry")

// BuildDocument loads a scene-graph file and assembles its glTF document.
// nodeType selects which drawable bucket becomes the payload.
func (w *Writer) BuildDocument(path string, nodeType int) (*gltf.Document, geometry.TileBox, error) {
	root, err := w.Registry.ReadNodeFile(path)
	if err != nil {
		return nil, geometry.TileBox{}, fmt.Errorf("read %s: %w", path, err)
	}
	return w.BuildDocumentFromNode(root, filepath.Dir(path), nodeType)
}

// BuildDocumentFromNode assembles the glTF document for an already loaded
// node tree; basePath resolves relative paged references.
func (w *Writer) BuildDocumentFromNode(root osg.Node, basePath string, nodeType int) (*gltf.Document, geometry.TileBox, error) {
	collector := scene.NewCollector(basePath, nodeType == NodeTypeAll, w.Geo)
	root.Accept(collector)

	if nodeType == NodeTypeOther || len(collector.Geometries) == 0 {
		collector.FallbackToOther()
	}
	if len(collector.Geometries) == 0 {
		return nil, geometry.TileBox{}, ErrNoGeometry
	}

	smoother := &osg.SmoothingVisitor{}
	root.Accept(smoother)

	s := newBuildState()
	s.doc.Meshes = []*gltf.Mesh{{}}

	for _, g := range collector.Geometries {
		if len(g.Vertices) == 0 {
			continue
		}
		before := len(s.doc.Meshes[0].Primitives)
		if _, err := w.writeGeometry(s, g); err != nil {
			log.Printf("skipping drawable: %v", err)
			continue
		}
		// Material index: the slot of the drawable's texture in the file's
		// texture table; untextured primitives carry no material.
		if len(collector.Textures) > 0 {
			if tex := collector.TextureOf[g]; tex != nil {
				slot := collector.TextureSlot(tex)
				if slot >= 0 {
					for _, prim := range s.doc.Meshes[0].Primitives[before:] {
						prim.Material = gltf.Index(uint32(slot))
					}
				}
			}
		}
	}

	if len(s.doc.Meshes[0].Primitives) == 0 {
		return nil, geometry.TileBox{}, ErrNoGeometry
	}

	w.writeImages(s, collector.Textures)
	w.writeMaterials(s, len(collector.Textures))
	w.writeTextures(s, len(collector.Textures))
	w.writeSceneGraph(s)
	w.writeExtensionDeclarations(s)

	return s.doc, s.bbox, nil
}

// GlbBuffer builds the file and serializes it to GLB bytes.
func (w *Writer) GlbBuffer(path string, nodeType int) ([]byte, geometry.TileBox, error) {
	doc, box, err := w.BuildDocument(path, nodeType)
	if err != nil {
		return nil, box, err
	}
	data, err := EncodeGlb(doc)
	return data, box, err
}

// EncodeGlb serializes a document into the binary GLB container.
func EncodeGlb(doc *gltf.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode glb: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeGltfJSON serializes a document as text glTF for the stand-alone
// export path.
func EncodeGltfJSON(doc *gltf.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = false
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode gltf: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Writer) writeImages(s *buildState, textures []*osg.Texture) {
	for _, tex := range textures {
		data, mime := codec.ProcessTexture(tex, w.Opts.TextureCompress, w.Opts.Ktx2Encoder)
		if len(data) == 0 {
			continue
		}
		offset, length := s.appendBytes(data)
		view := s.addBufferView(offset, length, 0)
		s.doc.Images = append(s.doc.Images, &gltf.Image{
			MimeType:   mime,
			BufferView: gltf.Index(view),
		})
	}
}

func (w *Writer) writeMaterials(s *buildState, textureCount int) {
	for i := 0; i < textureCount; i++ {
		s.doc.Materials = append(s.doc.Materials, &gltf.Material{
			Name: "default",
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float32{1, 1, 1, 1},
				MetallicFactor:  gltf.Float(0),
				RoughnessFactor: gltf.Float(1),
				BaseColorTexture: &gltf.TextureInfo{
					Index: uint32(i),
				},
			},
			Extensions: gltf.Extensions{extUnlit: json.RawMessage("{}")},
		})
	}
}

func (w *Writer) writeTextures(s *buildState, textureCount int) {
	for i := 0; i < textureCount; i++ {
		tex := &gltf.Texture{Sampler: gltf.Index(0)}
		if w.Opts.TextureCompress {
			tex.Extensions = gltf.Extensions{
				extBasisu: map[string]uint32{"source": uint32(i)},
			}
		} else {
			tex.Source = gltf.Index(uint32(i))
		}
		s.doc.Textures = append(s.doc.Textures, tex)
	}
}

func (w *Writer) writeSceneGraph(s *buildState) {
	s.doc.Samplers = []*gltf.Sampler{{
		MagFilter: gltf.MagLinear,
		MinFilter: gltf.MinNearestMipMapLinear,
		WrapS:     gltf.WrapRepeat,
		WrapT:     gltf.WrapRepeat,
	}}
	s.doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	s.doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	s.doc.Scene = gltf.Index(0)
	s.doc.Asset.Version = "2.0"
	s.doc.Asset.Generator = generatorName
}

func (w *Writer) writeExtensionDeclarations(s *buildState) {
	used := []string{extUnlit}
	if w.Opts.TextureCompress {
		used = append(used, extBasisu)
	}
	if dracoUsed(s.doc) {
		used = append(used, extDraco)
	}
	s.doc.ExtensionsUsed = used
	s.doc.ExtensionsRequired = append([]string(nil), used...)
}

// dracoUsed reports whether any primitive ended up Draco compressed; a
// codec-level failure can leave a draco-enabled build without compressed
// primitives, and then the extension must not be declared.
func dracoUsed(doc *gltf.Document) bool {
	for _, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			if _, ok := prim.Extensions[extDraco]; ok {
				return true
			}
		}
	}
	return false
}
