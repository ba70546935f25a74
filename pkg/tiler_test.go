package pkg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	vec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblique-map/osgb_tiler/internal/b3dm"
	"github.com/oblique-map/osgb_tiler/internal/geotrans"
	"github.com/oblique-map/osgb_tiler/internal/osg"
	"github.com/oblique-map/osgb_tiler/internal/tiler"
	"github.com/oblique-map/osgb_tiler/internal/tileset"
	"github.com/oblique-map/osgb_tiler/tools"
)

func triangleAt(offset float64) *osg.Geometry {
	return &osg.Geometry{
		Vertices: []vec3.T{
			{offset, 0, 0}, {offset + 1, 0, 0}, {offset, 1, 0},
		},
		PrimitiveSets: []osg.PrimitiveSet{
			&osg.DrawElements{Mode: osg.ModeTriangles, Indices: []uint32{0, 1, 2}, Width: osg.IndexUByte},
		},
	}
}

func pagedWithRefs(offset float64, refs ...string) *osg.PagedLOD {
	p := &osg.PagedLOD{FileNames: append([]string{""}, refs...)}
	p.Children = []osg.Node{triangleAt(offset)}
	return p
}

// testRegistry builds node trees on demand so every conversion sees fresh,
// unmutated geometry.
func testRegistry(trees map[string]func() osg.Node) *osg.Registry {
	r := osg.NewRegistry()
	r.Register(".osgb", osg.LoaderFunc(func(path string) (osg.Node, error) {
		build, ok := trees[filepath.Base(path)]
		if !ok {
			return nil, fmt.Errorf("no such file %s", path)
		}
		return build(), nil
	}))
	return r
}

// datasetTrees models one root tile with three LOD children.
func datasetTrees() map[string]func() osg.Node {
	return map[string]func() osg.Node{
		"Tile_+005_+006.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{
				pagedWithRefs(0, "Tile_+005_+006_L10_0.osgb"),
			}}
		},
		"Tile_+005_+006_L10_0.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{
				pagedWithRefs(1, "Tile_+005_+006_L14_0.osgb"),
			}}
		},
		"Tile_+005_+006_L14_0.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{
				pagedWithRefs(2, "Tile_+005_+006_L17_0.osgb"),
			}}
		},
		"Tile_+005_+006_L17_0.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{pagedWithRefs(3)}}
		},
	}
}

func writeOsgbPlaceholders(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0777))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("osgb"), 0666))
	}
}

func TestConvertB3dmSingleWritesTiles(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	tileDir := filepath.Join(in, "Data", "Tile_+005_+006")
	writeOsgbPlaceholders(t, tileDir,
		"Tile_+005_+006.osgb",
		"Tile_+005_+006_L10_0.osgb",
		"Tile_+005_+006_L14_0.osgb",
		"Tile_+005_+006_L17_0.osgb",
	)

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(datasetTrees()))
	opts := &tiler.TilerOptions{}
	result, err := tl.ConvertB3dmSingle(filepath.Join(tileDir, "Tile_+005_+006.osgb"), out, 0, 0, 100, opts)
	require.NoError(t, err)

	// One b3dm per LOD level.
	for _, name := range []string{
		"Tile_+005_+006.b3dm",
		"Tile_+005_+006_L10_0.b3dm",
		"Tile_+005_+006_L14_0.b3dm",
		"Tile_+005_+006_L17_0.b3dm",
	} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err, name)
		h, err := b3dm.ParseHeader(data)
		require.NoError(t, err, name)
		assert.Equal(t, uint32(len(data)), h.ByteLength, name)
	}

	assert.Equal(t, 1000.0, result.Root.GeometricError)
	require.NotNil(t, result.Root.Content)
	assert.Equal(t, "./Tile_+005_+006.b3dm", result.Root.Content.URI)

	// Extended bbox is max-first then min.
	assert.Greater(t, result.BBox[0], result.BBox[3])

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(result.TilesetJSON, &doc))
	assert.Equal(t, 1000.0, doc["geometricError"])
}

func TestConvertB3dmSingleMaxLevelGate(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	tileDir := filepath.Join(in, "Data", "Tile_+005_+006")
	writeOsgbPlaceholders(t, tileDir, "Tile_+005_+006.osgb")

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(datasetTrees()))
	_, err := tl.ConvertB3dmSingle(filepath.Join(tileDir, "Tile_+005_+006.osgb"), out, 0, 0, 12, &tiler.TilerOptions{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "Tile_+005_+006_L10_0.b3dm"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "Tile_+005_+006_L14_0.b3dm"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertB3dmSingleUnreadableRoot(t *testing.T) {
	in := t.TempDir()
	writeOsgbPlaceholders(t, in, "broken.osgb")

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(nil))
	_, err := tl.ConvertB3dmSingle(filepath.Join(in, "broken.osgb"), t.TempDir(), 0, 0, 100, &tiler.TilerOptions{})
	require.Error(t, err)
	assert.NotEmpty(t, tl.LastError())
}

func enuMetadata() string {
	return `<ModelMetadata version="1">
	<SRS>ENU:36.09953,120.34445</SRS>
	<SRSOrigin>0,0,0</SRSOrigin>
</ModelMetadata>`
}

func TestConvertBatchObliqueDataset(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "metadata.xml"), []byte(enuMetadata()), 0666))
	tileDir := filepath.Join(in, "Data", "Tile_+005_+006")
	writeOsgbPlaceholders(t, tileDir,
		"Tile_+005_+006.osgb",
		"Tile_+005_+006_L10_0.osgb",
		"Tile_+005_+006_L14_0.osgb",
		"Tile_+005_+006_L17_0.osgb",
	)

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(datasetTrees()))
	err := tl.ConvertBatch(in, out, 0, 0, 100, &tiler.TilerOptions{})
	require.NoError(t, err)

	// Per-tile manifest.
	tileJSON, err := os.ReadFile(filepath.Join(out, "Data", "Tile_+005_+006", "tileset.json"))
	require.NoError(t, err)
	var tileDoc tileset.Tileset
	require.NoError(t, json.Unmarshal(tileJSON, &tileDoc))
	assert.Equal(t, 1000.0, tileDoc.Root.GeometricError)

	// Dataset root manifest.
	rootJSON, err := os.ReadFile(filepath.Join(out, "tileset.json"))
	require.NoError(t, err)
	var rootDoc tileset.Tileset
	require.NoError(t, json.Unmarshal(rootJSON, &rootDoc))

	assert.Equal(t, "1.0", rootDoc.Asset.Version)
	assert.Equal(t, "Z", rootDoc.Asset.GltfUpAxis)
	assert.Equal(t, 2000.0, rootDoc.GeometricError)
	assert.Equal(t, "REPLACE", rootDoc.Root.Refine)
	require.Len(t, rootDoc.Root.Children, 1)
	assert.Equal(t, "./Data/Tile_+005_+006/tileset.json", rootDoc.Root.Children[0].Content.URI)
	assert.Equal(t, 1000.0, rootDoc.Root.Children[0].GeometricError)

	// The root transform translates to the ECEF of the dataset origin at the
	// minimum tile elevation.
	require.Len(t, rootDoc.Root.Transform, 16)
	hMin := rootDoc.Root.BoundingVolume.Box[2] - rootDoc.Root.BoundingVolume.Box[11]
	ecef := geotrans.CartographicToEcef(120.34445, 36.09953, hMin)
	assert.InDelta(t, ecef[0], rootDoc.Root.Transform[12], 5e-2)
	assert.InDelta(t, ecef[1], rootDoc.Root.Transform[13], 5e-2)
	assert.InDelta(t, ecef[2], rootDoc.Root.Transform[14], 5e-2)

	// Every half extent respects the degenerate floor.
	box := rootDoc.Root.BoundingVolume.Box
	for _, idx := range []int{3, 7, 11} {
		assert.GreaterOrEqual(t, box[idx], 0.005)
	}
}

func TestConvertBatchFailedTilesAreOmitted(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "metadata.xml"), []byte(enuMetadata()), 0666))
	writeOsgbPlaceholders(t, filepath.Join(in, "Data", "Tile_good"), "Tile_good.osgb")
	writeOsgbPlaceholders(t, filepath.Join(in, "Data", "Tile_bad"), "Tile_bad.osgb")

	trees := map[string]func() osg.Node{
		"Tile_good.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{pagedWithRefs(0)}}
		},
	}

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(trees))
	err := tl.ConvertBatch(in, out, 0, 0, 100, &tiler.TilerOptions{})
	require.NoError(t, err)

	rootJSON, err := os.ReadFile(filepath.Join(out, "tileset.json"))
	require.NoError(t, err)
	var rootDoc tileset.Tileset
	require.NoError(t, json.Unmarshal(rootJSON, &rootDoc))
	require.Len(t, rootDoc.Root.Children, 1)
	assert.Contains(t, rootDoc.Root.Children[0].Content.URI, "Tile_good")
}

func TestConvertBatchAllTilesFailing(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "metadata.xml"), []byte(enuMetadata()), 0666))
	writeOsgbPlaceholders(t, filepath.Join(in, "Data", "Tile_bad"), "Tile_bad.osgb")

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(nil))
	err := tl.ConvertBatch(in, out, 0, 0, 100, &tiler.TilerOptions{})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(out, "tileset.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConvertBatchFlatFolder(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeOsgbPlaceholders(t, in, "model.osgb")

	trees := map[string]func() osg.Node{
		"model.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{pagedWithRefs(0)}}
		},
	}

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(trees))
	err := tl.ConvertBatch(in, out, 116.38, 39.9, 100, &tiler.TilerOptions{})
	require.NoError(t, err)

	rootJSON, err := os.ReadFile(filepath.Join(out, "tileset.json"))
	require.NoError(t, err)
	var rootDoc tileset.Tileset
	require.NoError(t, json.Unmarshal(rootJSON, &rootDoc))
	require.Len(t, rootDoc.Root.Children, 1)

	name := filepath.Base(in)
	assert.Equal(t, "./"+name+"/tileset.json", rootDoc.Root.Children[0].Content.URI)
	_, err = os.Stat(filepath.Join(out, name, "tileset.json"))
	assert.NoError(t, err)
}

func TestConvertGlbBinaryAndText(t *testing.T) {
	in := t.TempDir()
	writeOsgbPlaceholders(t, in, "model.osgb")
	trees := map[string]func() osg.Node{
		"model.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{triangleAt(0)}}
		},
	}

	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(trees))

	glbPath := filepath.Join(t.TempDir(), "out.glb")
	opts := &tiler.TilerOptions{TilerGlbOptions: &tiler.TilerGlbOptions{Binary: true}}
	require.NoError(t, tl.ConvertGlb(filepath.Join(in, "model.osgb"), glbPath, opts))
	data, err := os.ReadFile(glbPath)
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[0:4]))

	gltfPath := filepath.Join(t.TempDir(), "out.gltf")
	opts = &tiler.TilerOptions{TilerGlbOptions: &tiler.TilerGlbOptions{Binary: false}}
	require.NoError(t, tl.ConvertGlb(filepath.Join(in, "model.osgb"), gltfPath, opts))
	text, err := os.ReadFile(gltfPath)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(text, &doc))
	asset := doc["asset"].(map[string]interface{})
	assert.Equal(t, "2.0", asset["version"])
}

func TestConvertGlbBuffer(t *testing.T) {
	trees := map[string]func() osg.Node{
		"model.osgb": func() osg.Node {
			return &osg.Group{Children: []osg.Node{triangleAt(0)}}
		},
	}
	tl := NewTiler(tools.NewStandardFileFinder(), testRegistry(trees))

	data, err := tl.ConvertGlbBuffer("/x/model.osgb", -1, &tiler.TilerOptions{})
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[0:4]))

	_, err = tl.ConvertGlbBuffer("/x/missing.osgb", -1, &tiler.TilerOptions{})
	require.Error(t, err)
	assert.NotEmpty(t, tl.LastError())
}
