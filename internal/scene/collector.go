// Package scene flattens one loaded scene-graph file: drawables are bucketed
// into paged-LOD and other geometry, textures and materials are deduplicated,
// paged child file references are gathered for the tile walker, and vertices
// receive the geodetic correction when a forward CRS transform is active.
package scene

import (
	"log"
	"path"

	mat4 "github.com/flywave/go3d/float64/mat4"
	vec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/oblique-map/osgb_tiler/internal/geometry"
	"github.com/oblique-map/osgb_tiler/internal/geotrans"
	"github.com/oblique-map/osgb_tiler/internal/osg"
)

// Geometry above this vertex count is dropped rather than converted.
const maxVertexCount = 10_000_000

// Collector walks a node tree and accumulates the flattened scene. When
// loadAll is set every drawable lands in the paged bucket regardless of its
// position relative to PagedLOD nodes, as the GLB writer uses for NodeTypeAll.
type Collector struct {
	Geo *geotrans.GeoTransform

	basePath   string
	loadAll    bool
	isPagedLOD bool

	matrixStack []mat4.T

	Geometries      []*osg.Geometry
	OtherGeometries []*osg.Geometry

	Textures      []*osg.Texture
	OtherTextures []*osg.Texture
	texIndex      map[*osg.Texture]int
	otherTexIndex map[*osg.Texture]int

	TextureOf  map[*osg.Geometry]*osg.Texture
	MaterialOf map[*osg.Geometry]*osg.Material

	SubNodeNames []string
}

func NewCollector(basePath string, loadAll bool, geo *geotrans.GeoTransform) *Collector {
	return &Collector{
		Geo:           geo,
		basePath:      basePath,
		loadAll:       loadAll,
		isPagedLOD:    loadAll,
		texIndex:      map[*osg.Texture]int{},
		otherTexIndex: map[*osg.Texture]int{},
		TextureOf:     map[*osg.Geometry]*osg.Texture{},
		MaterialOf:    map[*osg.Geometry]*osg.Material{},
	}
}

func (c *Collector) ApplyGroup(g *osg.Group) { g.Traverse(c) }

func (c *Collector) ApplyMatrixTransform(m *osg.MatrixTransform) {
	var top mat4.T
	if len(c.matrixStack) == 0 {
		top = m.Matrix
	} else {
		top.AssignMul(&c.matrixStack[len(c.matrixStack)-1], &m.Matrix)
	}
	c.matrixStack = append(c.matrixStack, top)
	m.Traverse(c)
	c.matrixStack = c.matrixStack[:len(c.matrixStack)-1]
}

func (c *Collector) ApplyPagedLOD(p *osg.PagedLOD) {
	base := p.DatabasePath
	if base == "" {
		base = c.basePath
	}
	for i := 1; i < len(p.FileNames); i++ {
		c.SubNodeNames = append(c.SubNodeNames, path.Join(base, p.FileNames[i]))
	}

	if !c.loadAll {
		c.isPagedLOD = true
	}
	p.Traverse(c)
	if !c.loadAll {
		c.isPagedLOD = false
	}
}

func (c *Collector) ApplyGeometry(g *osg.Geometry) {
	if len(g.Vertices) == 0 || len(g.PrimitiveSets) == 0 {
		return
	}
	if len(g.Vertices) > maxVertexCount {
		log.Printf("dropping drawable with %d vertices (budget is %d)", len(g.Vertices), maxVertexCount)
		return
	}

	if len(c.matrixStack) > 0 {
		applyMatrix(&c.matrixStack[len(c.matrixStack)-1], g.Vertices)
	}

	if c.Geo != nil && c.Geo.IsInitialized() {
		c.correctGeometry(g)
	}

	normalizeGeometry(g)

	if c.isPagedLOD {
		c.Geometries = append(c.Geometries, g)
	} else {
		c.OtherGeometries = append(c.OtherGeometries, g)
	}

	if g.States != nil {
		if tex := g.States.Texture; tex != nil {
			if c.isPagedLOD {
				if _, seen := c.texIndex[tex]; !seen {
					c.texIndex[tex] = len(c.Textures)
					c.Textures = append(c.Textures, tex)
				}
			} else {
				if _, seen := c.otherTexIndex[tex]; !seen {
					c.otherTexIndex[tex] = len(c.OtherTextures)
					c.OtherTextures = append(c.OtherTextures, tex)
				}
			}
			c.TextureOf[g] = tex
		}
		if mtl := g.States.Material; mtl != nil {
			c.MaterialOf[g] = mtl
		}
	}
}

// correctGeometry reprojects the drawable's vertices into the dataset ENU
// frame through an affine fit over its bounding-box corners, falling back to
// per-vertex reprojection when the fit is unusable.
func (c *Collector) correctGeometry(g *osg.Geometry) {
	var box geometry.TileBox
	for _, v := range g.Vertices {
		box.ExpandPoint(v)
	}

	m, usable, err := c.Geo.CorrectionMatrix(box.Min, box.Max)
	if err != nil {
		log.Printf("geodetic correction failed, leaving drawable in source coordinates: %v", err)
		return
	}

	if usable {
		for i := range g.Vertices {
			g.Vertices[i] = geotrans.TransformPoint(&m, g.Vertices[i])
		}
		return
	}

	for i := range g.Vertices {
		corrected, err := c.Geo.CorrectPoint(g.Vertices[i])
		if err != nil {
			log.Printf("per-vertex correction failed: %v", err)
			return
		}
		g.Vertices[i] = corrected
	}
}

// FallbackToOther replaces the paged buckets with the other buckets; used when
// a file is converted as a leaf-other tile or has no paged drawables at all.
func (c *Collector) FallbackToOther() {
	c.Geometries = c.OtherGeometries
	c.Textures = c.OtherTextures
}

// TextureSlot returns the index of tex in the active texture table, -1 when
// absent.
func (c *Collector) TextureSlot(tex *osg.Texture) int {
	for i, t := range c.Textures {
		if t == tex {
			return i
		}
	}
	return -1
}

func applyMatrix(m *mat4.T, vertices []vec3.T) {
	for i := range vertices {
		vertices[i] = geotrans.TransformPoint(m, vertices[i])
	}
}
