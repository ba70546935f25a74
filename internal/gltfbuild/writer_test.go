package gltfbuild

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	vec2 "github.com/flywave/go3d/float64/vec2"
	vec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/osg"
)

func triangleGeometry() *osg.Geometry {
	return &osg.Geometry{
		Vertices: []vec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		PrimitiveSets: []osg.PrimitiveSet{
			&osg.DrawElements{Mode: osg.ModeTriangles, Indices: []uint32{0, 1, 2}, Width: osg.IndexUByte},
		},
	}
}

func singleGeometryRoot(g *osg.Geometry) osg.Node {
	return &osg.Group{Children: []osg.Node{g}}
}

func newTestWriter() *Writer {
	return &Writer{Registry: osg.NewRegistry()}
}

func registryWith(trees map[string]osg.Node) *osg.Registry {
	r := osg.NewRegistry()
	r.Register(".osgb", osg.LoaderFunc(func(path string) (osg.Node, error) {
		n, ok := trees[filepath.Base(path)]
		if !ok {
			return nil, fmt.Errorf("no such file %s", path)
		}
		return n, nil
	}))
	return r
}

func checkModelInvariants(t *testing.T, doc *gltf.Document) {
	t.Helper()
	require.Len(t, doc.Buffers, 1)
	bufLen := uint32(len(doc.Buffers[0].Data))
	assert.Equal(t, bufLen, doc.Buffers[0].ByteLength)

	for i, view := range doc.BufferViews {
		assert.LessOrEqual(t, view.ByteOffset+view.ByteLength, bufLen, "view %d in bounds", i)
		assert.Equal(t, uint32(0), view.ByteOffset%4, "view %d aligned", i)
	}
	for i, acc := range doc.Accessors {
		if acc.BufferView != nil {
			assert.Less(t, int(*acc.BufferView), len(doc.BufferViews), "accessor %d view valid", i)
		}
	}
}

func TestBuildDocumentSingleTriangle(t *testing.T) {
	w := newTestWriter()
	doc, box, err := w.BuildDocumentFromNode(singleGeometryRoot(triangleGeometry()), "", NodeTypeAll)
	require.NoError(t, err)
	checkModelInvariants(t, doc)

	require.Len(t, doc.Meshes, 1)
	require.Len(t, doc.Meshes[0].Primitives, 1)
	prim := doc.Meshes[0].Primitives[0]
	assert.Equal(t, gltf.PrimitiveTriangles, prim.Mode)

	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	assert.Equal(t, uint32(3), pos.Count)
	assert.Equal(t, gltf.ComponentFloat, pos.ComponentType)
	assert.Equal(t, gltf.AccessorVec3, pos.Type)
	assert.Equal(t, []float32{0, 0, 0}, pos.Min)
	assert.Equal(t, []float32{1, 1, 0}, pos.Max)

	require.NotNil(t, prim.Indices)
	idx := doc.Accessors[*prim.Indices]
	assert.Equal(t, uint32(3), idx.Count)
	assert.Equal(t, gltf.ComponentUbyte, idx.ComponentType)

	// Missing normals are smoothed in before packing.
	_, hasNormals := prim.Attributes[gltf.NORMAL]
	assert.True(t, hasNormals)

	assert.Equal(t, []string{extUnlit}, doc.ExtensionsUsed)
	assert.Equal(t, []string{extUnlit}, doc.ExtensionsRequired)

	assert.Equal(t, vec3.T{0, 0, 0}, box.Min)
	assert.Equal(t, vec3.T{1, 1, 0}, box.Max)

	// One mesh, one node, one scene.
	require.Len(t, doc.Nodes, 1)
	require.NotNil(t, doc.Nodes[0].Mesh)
	assert.Equal(t, uint32(0), *doc.Nodes[0].Mesh)
	require.Len(t, doc.Scenes, 1)
	assert.Equal(t, []uint32{0}, doc.Scenes[0].Nodes)
	assert.Equal(t, "2.0", doc.Asset.Version)
}

func TestBuildDocumentEmptyFile(t *testing.T) {
	w := newTestWriter()
	_, _, err := w.BuildDocumentFromNode(&osg.Group{}, "", NodeTypeAll)
	assert.ErrorIs(t, err, ErrNoGeometry)
}

func TestAttributeSharingAcrossPrimitiveSets(t *testing.T) {
	g := triangleGeometry()
	g.PrimitiveSets = append(g.PrimitiveSets,
		&osg.DrawElements{Mode: osg.ModeTriangles, Indices: []uint32{2, 1, 0}, Width: osg.IndexUByte})

	w := newTestWriter()
	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(g), "", NodeTypeAll)
	require.NoError(t, err)
	checkModelInvariants(t, doc)

	prims := doc.Meshes[0].Primitives
	require.Len(t, prims, 2)
	assert.Equal(t, prims[0].Attributes[gltf.POSITION], prims[1].Attributes[gltf.POSITION])
	assert.Equal(t, prims[0].Attributes[gltf.NORMAL], prims[1].Attributes[gltf.NORMAL])
	assert.NotEqual(t, *prims[0].Indices, *prims[1].Indices)
}

func TestDrawRangeEmitsFreshAccessor(t *testing.T) {
	g := &osg.Geometry{
		Vertices: []vec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {5, 5, 5}, {6, 5, 5}, {5, 6, 5}},
		PrimitiveSets: []osg.PrimitiveSet{
			&osg.DrawElements{Mode: osg.ModeTriangles, Indices: []uint32{0, 1, 2}, Width: osg.IndexUByte},
			&osg.DrawArrays{Mode: osg.ModeTriangles, First: 3, Count: 3},
		},
	}

	w := newTestWriter()
	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(g), "", NodeTypeAll)
	require.NoError(t, err)
	checkModelInvariants(t, doc)

	prims := doc.Meshes[0].Primitives
	require.Len(t, prims, 2)
	assert.NotEqual(t, prims[0].Attributes[gltf.POSITION], prims[1].Attributes[gltf.POSITION])

	ranged := doc.Accessors[prims[1].Attributes[gltf.POSITION]]
	assert.Equal(t, uint32(3), ranged.Count)
	assert.Equal(t, []float32{5, 5, 5}, ranged.Min)
	assert.Nil(t, prims[1].Indices)
}

func TestQuadsAreTriangulated(t *testing.T) {
	g := &osg.Geometry{
		Vertices: []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		PrimitiveSets: []osg.PrimitiveSet{
			&osg.DrawElements{Mode: osg.ModeQuads, Indices: []uint32{0, 1, 2, 3}, Width: osg.IndexUByte},
		},
	}

	w := newTestWriter()
	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(g), "", NodeTypeAll)
	require.NoError(t, err)

	prim := doc.Meshes[0].Primitives[0]
	assert.Equal(t, gltf.PrimitiveTriangles, prim.Mode)
	idx := doc.Accessors[*prim.Indices]
	assert.Equal(t, uint32(6), idx.Count)
}

func TestShortStripEmitsNothing(t *testing.T) {
	g := &osg.Geometry{
		Vertices: []vec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		PrimitiveSets: []osg.PrimitiveSet{
			&osg.DrawElements{Mode: osg.ModeTriangleStrip, Indices: []uint32{0, 1}, Width: osg.IndexUByte},
		},
	}

	w := newTestWriter()
	_, _, err := w.BuildDocumentFromNode(singleGeometryRoot(g), "", NodeTypeAll)
	assert.ErrorIs(t, err, ErrNoGeometry)
}

func TestIndexComponentTypeBumpsAtSentinels(t *testing.T) {
	assert.Equal(t, gltf.ComponentUbyte, indexComponentType(254))
	assert.Equal(t, gltf.ComponentUshort, indexComponentType(255))
	assert.Equal(t, gltf.ComponentUshort, indexComponentType(65534))
	// 65535 is the USHORT restart sentinel and must widen to UINT.
	assert.Equal(t, gltf.ComponentUint, indexComponentType(65535))
}

func TestTexturedGeometryGetsMaterialChain(t *testing.T) {
	g := triangleGeometry()
	g.TexCoords = []vec2.T{{0, 0}, {1, 0}, {0, 1}}
	g.States = &osg.StateSet{Texture: &osg.Texture{
		Width: 2, Height: 2, Format: osg.PixelRGB, RowStep: 6, RowSize: 6,
		Pixels: make([]byte, 12),
	}}

	w := newTestWriter()
	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(g), "", NodeTypeAll)
	require.NoError(t, err)
	checkModelInvariants(t, doc)

	require.Len(t, doc.Images, 1)
	assert.Equal(t, "image/jpeg", doc.Images[0].MimeType)
	require.NotNil(t, doc.Images[0].BufferView)

	require.Len(t, doc.Textures, 1)
	require.NotNil(t, doc.Textures[0].Source)
	assert.Equal(t, uint32(0), *doc.Textures[0].Source)

	require.Len(t, doc.Materials, 1)
	mat := doc.Materials[0]
	require.NotNil(t, mat.PBRMetallicRoughness.BaseColorTexture)
	assert.Equal(t, uint32(0), mat.PBRMetallicRoughness.BaseColorTexture.Index)
	_, unlit := mat.Extensions[extUnlit]
	assert.True(t, unlit)

	require.Len(t, doc.Samplers, 1)
	assert.Equal(t, gltf.MagLinear, doc.Samplers[0].MagFilter)
	assert.Equal(t, gltf.MinNearestMipMapLinear, doc.Samplers[0].MinFilter)

	prim := doc.Meshes[0].Primitives[0]
	require.NotNil(t, prim.Material)
	assert.Equal(t, uint32(0), *prim.Material)
	_, hasUV := prim.Attributes[gltf.TEXCOORD_0]
	assert.True(t, hasUV)
}

type stubDraco struct {
	blob []byte
	err  error
}

func (s *stubDraco) EncodeMesh(m *codec.DracoMesh, params codec.DracoParams) ([]byte, codec.DracoAttributeIDs, error) {
	ids := codec.DracoAttributeIDs{Position: 0, Normal: 1, TexCoord: -1, BatchID: -1}
	return s.blob, ids, s.err
}

func TestDracoPrimitiveVariant(t *testing.T) {
	w := newTestWriter()
	w.Opts.Draco = true
	w.Opts.DracoEncoder = &stubDraco{blob: []byte("draco-compressed-bytes")}

	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(triangleGeometry()), "", NodeTypeAll)
	require.NoError(t, err)
	checkModelInvariants(t, doc)

	require.Len(t, doc.Meshes[0].Primitives, 1)
	prim := doc.Meshes[0].Primitives[0]

	ext, ok := prim.Extensions[extDraco].(dracoExtension)
	require.True(t, ok)
	assert.Equal(t, uint32(0), ext.Attributes[gltf.POSITION])

	// The compressed accessors carry no buffer view but keep counts/bounds.
	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	assert.Nil(t, pos.BufferView)
	assert.Equal(t, uint32(3), pos.Count)
	assert.Equal(t, []float32{0, 0, 0}, pos.Min)

	idx := doc.Accessors[*prim.Indices]
	assert.Nil(t, idx.BufferView)

	// The blob's buffer view has no target.
	blobView := doc.BufferViews[ext.BufferView]
	assert.Equal(t, gltf.Target(0), blobView.Target)

	assert.Contains(t, doc.ExtensionsUsed, extDraco)
	assert.Contains(t, doc.ExtensionsRequired, extDraco)
}

func TestDracoFailureFallsBackUncompressed(t *testing.T) {
	w := newTestWriter()
	w.Opts.Draco = true
	w.Opts.DracoEncoder = &stubDraco{err: errors.New("encoder missing")}

	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(triangleGeometry()), "", NodeTypeAll)
	require.NoError(t, err)

	prim := doc.Meshes[0].Primitives[0]
	_, hasExt := prim.Extensions[extDraco]
	assert.False(t, hasExt)
	assert.NotContains(t, doc.ExtensionsUsed, extDraco)
	assert.NotContains(t, doc.ExtensionsRequired, extDraco)

	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	assert.NotNil(t, pos.BufferView)
}

func TestEncodeGlbMagic(t *testing.T) {
	w := newTestWriter()
	doc, _, err := w.BuildDocumentFromNode(singleGeometryRoot(triangleGeometry()), "", NodeTypeAll)
	require.NoError(t, err)

	data, err := EncodeGlb(doc)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "glTF", string(data[0:4]))
}

func TestGlbBufferReadsThroughRegistry(t *testing.T) {
	w := newTestWriter()
	w.Registry = registryWith(map[string]osg.Node{
		"tile.osgb": singleGeometryRoot(triangleGeometry()),
	})

	data, box, err := w.GlbBuffer("/any/tile.osgb", NodeTypeAll)
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[0:4]))
	assert.False(t, box.IsEmpty())

	_, _, err = w.GlbBuffer("/any/missing.osgb", NodeTypeAll)
	assert.Error(t, err)
}

func TestNodeTypeOtherSelectsOtherBucket(t *testing.T) {
	paged := &osg.PagedLOD{FileNames: []string{""}}
	paged.Children = []osg.Node{triangleGeometry()}
	other := &osg.Geometry{
		Vertices: []vec3.T{{9, 9, 9}, {10, 9, 9}, {9, 10, 9}},
		PrimitiveSets: []osg.PrimitiveSet{
			&osg.DrawElements{Mode: osg.ModeTriangles, Indices: []uint32{0, 1, 2}, Width: osg.IndexUByte},
		},
	}
	root := &osg.Group{Children: []osg.Node{other, paged}}

	w := newTestWriter()
	doc, box, err := w.BuildDocumentFromNode(root, "", NodeTypeOther)
	require.NoError(t, err)
	require.Len(t, doc.Meshes[0].Primitives, 1)
	assert.Equal(t, vec3.T{9, 9, 9}, box.Min)

	_, box, err = w.BuildDocumentFromNode(root, "", NodeTypePaged)
	require.NoError(t, err)
	assert.Equal(t, vec3.T{0, 0, 0}, box.Min)
}
