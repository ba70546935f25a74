// Package pkg exposes the conversion pipeline: single root tiles to B3DM
// trees, whole datasets to 3D Tiles, and plain GLB export.
package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oblique-map/osgb_tiler/internal/b3dm"
	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/geometry"
	"github.com/oblique-map/osgb_tiler/internal/geotrans"
	"github.com/oblique-map/osgb_tiler/internal/gltfbuild"
	"github.com/oblique-map/osgb_tiler/internal/lod"
	"github.com/oblique-map/osgb_tiler/internal/meshopt"
	"github.com/oblique-map/osgb_tiler/internal/osg"
	"github.com/oblique-map/osgb_tiler/internal/tiler"
	"github.com/oblique-map/osgb_tiler/internal/tileset"
	"github.com/oblique-map/osgb_tiler/tools"
)

// B3dmResult is the outcome of converting one root tile.
type B3dmResult struct {
	Root        tileset.Node
	TilesetJSON []byte
	// Extended bounding box as [maxX, maxY, maxZ, minX, minY, minZ].
	BBox [6]float64

	box geometry.TileBox
}

// Tiler drives conversions. It is safe for concurrent use by the batch pool;
// the geo transform is initialized once per dataset before tasks start.
type Tiler struct {
	fileFinder tools.FileFinder
	registry   *osg.Registry
	geo        *geotrans.GeoTransform

	ktx2  codec.Ktx2Encoder
	draco codec.DracoEncoder

	mu        sync.Mutex
	lastError string
}

func NewTiler(fileFinder tools.FileFinder, registry *osg.Registry) *Tiler {
	return &Tiler{
		fileFinder: fileFinder,
		registry:   registry,
		geo:        geotrans.New(),
		ktx2:       &codec.BasisuCliEncoder{},
		draco:      &codec.DracoCliEncoder{},
	}
}

// SetEncoders swaps the texture and mesh compressors, mainly for tests.
func (t *Tiler) SetEncoders(ktx2 codec.Ktx2Encoder, draco codec.DracoEncoder) {
	t.ktx2 = ktx2
	t.draco = draco
}

// GeoTransform exposes the dataset geo context.
func (t *Tiler) GeoTransform() *geotrans.GeoTransform { return t.geo }

// LastError returns the most recent failure message, mirroring the
// last-error accessor of the native library.
func (t *Tiler) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

func (t *Tiler) setLastError(err error) {
	t.mu.Lock()
	t.lastError = err.Error()
	t.mu.Unlock()
}

func (t *Tiler) newWriter(opts *tiler.TilerOptions) *gltfbuild.Writer {
	simplify := opts.Simplify
	if simplify == (meshopt.SimplifyParams{}) {
		simplify = meshopt.DefaultSimplifyParams()
	}
	simplify.Enable = opts.EnableMeshOpt

	return &gltfbuild.Writer{
		Registry: t.registry,
		Geo:      t.geo,
		Opts: gltfbuild.Options{
			TextureCompress: opts.EnableKtx2,
			MeshOpt:         opts.EnableMeshOpt,
			Draco:           opts.EnableDraco,
			Simplify:        simplify,
			DracoParams:     opts.Draco,
			Ktx2Encoder:     t.ktx2,
			DracoEncoder:    t.draco,
		},
	}
}

// resolveRootOsgb accepts either a scene-graph file or a directory holding
// one and returns the root file path.
func (t *Tiler) resolveRootOsgb(in string) (string, error) {
	info, err := os.Stat(in)
	if err != nil {
		return "", tiler.Wrap(tiler.ErrIo, err, "input not found")
	}
	if !info.IsDir() {
		return in, nil
	}
	if root := t.fileFinder.FindRootOsgb(in); root != "" {
		return root, nil
	}
	if files := t.fileFinder.ScanOsgbFiles(in, false); len(files) > 0 {
		return files[0], nil
	}
	return "", tiler.Errorf(tiler.ErrIo, "no root OSGB file found in %s", in)
}

// ConvertB3dmSingle converts one root tile into a tree of b3dm files under
// outDir and returns its tileset root node plus the extended bounding box.
func (t *Tiler) ConvertB3dmSingle(in, outDir string, centerX, centerY float64, maxLevel int, opts *tiler.TilerOptions) (*B3dmResult, error) {
	result, err := t.convertB3dmSingle(in, outDir, maxLevel, opts)
	if err != nil {
		t.setLastError(err)
	}
	return result, err
}

func (t *Tiler) convertB3dmSingle(in, outDir string, maxLevel int, opts *tiler.TilerOptions) (*B3dmResult, error) {
	rootPath, err := t.resolveRootOsgb(tools.NativePath(in))
	if err != nil {
		return nil, err
	}

	walker := &lod.Walker{Registry: t.registry}
	tree := walker.Read(rootPath)
	if tree.IsEmpty() {
		return nil, tiler.Errorf(tiler.ErrParse, "open file %s failed", in)
	}

	writer := t.newWriter(opts)
	if err := t.doTileJob(writer, tree, outDir, maxLevel); err != nil {
		return nil, err
	}

	lod.ExtendBBox(tree)
	if tree.BBox.IsEmpty() {
		return nil, tiler.Errorf(tiler.ErrGeometry, "%s produced an empty bounding box", in)
	}

	lod.CalcGeometricError(tree)
	tree.GeometricError = 1000

	root := tileset.FromLodTree(tree)
	rootJSON, err := tileset.Encode(tileset.WrapTileRoot(root))
	if err != nil {
		return nil, tiler.Wrap(tiler.ErrIo, err, "encode tileset")
	}

	box := tree.BBox
	box.Extend(0.2)
	return &B3dmResult{
		Root:        root,
		TilesetJSON: rootJSON,
		BBox: [6]float64{
			box.Max[0], box.Max[1], box.Max[2],
			box.Min[0], box.Min[1], box.Min[2],
		},
		box: box,
	}, nil
}

// doTileJob writes the b3dm payload of every content-bearing node whose LOD
// level does not exceed maxLevel, filling node bounding boxes on the way.
func (t *Tiler) doTileJob(writer *gltfbuild.Writer, node *lod.Node, outDir string, maxLevel int) error {
	if node.IsEmpty() {
		return nil
	}
	if lvl := tools.LevelFromFileName(node.Path); lvl > maxLevel {
		return nil
	}

	if node.Kind != lod.KindRoot {
		glb, box, err := writer.GlbBuffer(node.Path, int(node.Kind))
		switch {
		case err == nil:
			node.BBox = box
			payload, err := b3dm.Wrap(glb)
			if err != nil {
				return tiler.Wrap(tiler.ErrCodec, err, "b3dm framing")
			}
			outFile := filepath.Join(outDir, tileset.ContentFileName(node.Path, node.Kind))
			if err := tools.WriteFile(outFile, payload); err != nil {
				return tiler.Wrap(tiler.ErrIo, err, "write "+outFile)
			}
		case isNoGeometry(err):
			// Empty files produce no content but their subtree still counts.
		default:
			tools.LogOutput(fmt.Sprintf("tile content %s failed: %v", node.Path, err))
		}
	}

	for _, child := range node.Children {
		if err := t.doTileJob(writer, child, outDir, maxLevel); err != nil {
			return err
		}
	}
	return nil
}

func isNoGeometry(err error) bool {
	return err != nil && err == gltfbuild.ErrNoGeometry
}

// ConvertGlb converts one scene-graph file (or the root file of a directory)
// into a stand-alone GLB or text glTF file.
func (t *Tiler) ConvertGlb(in, out string, opts *tiler.TilerOptions) error {
	err := t.convertGlb(in, out, opts)
	if err != nil {
		t.setLastError(err)
	}
	return err
}

func (t *Tiler) convertGlb(in, out string, opts *tiler.TilerOptions) error {
	rootPath, err := t.resolveRootOsgb(tools.NativePath(in))
	if err != nil {
		return err
	}

	writer := t.newWriter(opts)
	doc, _, err := writer.BuildDocument(rootPath, gltfbuild.NodeTypeAll)
	if err != nil {
		return tiler.Wrap(tiler.ErrParse, err, "convert to glb failed")
	}

	binary := true
	if opts.TilerGlbOptions != nil {
		binary = opts.TilerGlbOptions.Binary
	}

	var data []byte
	if binary {
		data, err = gltfbuild.EncodeGlb(doc)
	} else {
		data, err = gltfbuild.EncodeGltfJSON(doc)
	}
	if err != nil {
		return tiler.Wrap(tiler.ErrCodec, err, "serialize gltf")
	}
	if err := tools.WriteFile(out, data); err != nil {
		return tiler.Wrap(tiler.ErrIo, err, "write glb file")
	}
	return nil
}

// ConvertGlbBuffer builds the GLB bytes for one scene-graph file without
// touching disk. nodeType selects the drawable bucket (-1 all, 1 paged,
// 2 other).
func (t *Tiler) ConvertGlbBuffer(in string, nodeType int, opts *tiler.TilerOptions) ([]byte, error) {
	writer := t.newWriter(opts)
	data, _, err := writer.GlbBuffer(tools.NativePath(in), nodeType)
	if err != nil {
		t.setLastError(err)
		return nil, err
	}
	return data, nil
}
