package gltfbuild

import (
	"log"
	"math"

	vec2 "github.com/flywave/go3d/float64/vec2"
	vec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"

	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/meshopt"
	"github.com/oblique-map/osgb_tiler/internal/osg"
)

// dracoExtension is the KHR_draco_mesh_compression payload of a primitive.
type dracoExtension struct {
	BufferView uint32            `json:"bufferView"`
	Attributes map[string]uint32 `json:"attributes"`
}

// writeDracoGeometry compresses the whole drawable into one Draco primitive.
// All primitive sets are triangulated into a single face list first. Returns
// false when nothing could be compressed; the caller then emits the plain
// layout.
func (w *Writer) writeDracoGeometry(s *buildState, g *osg.Geometry) (int, bool) {
	var tris []uint32
	for _, ps := range g.PrimitiveSets {
		tris = append(tris, osg.TriangleIndices(ps)...)
	}
	if len(tris) < 3 {
		return 0, false
	}

	mesh := &codec.DracoMesh{
		Positions: flattenVec3(g.Vertices),
		Indices:   tris,
	}
	if len(g.Normals) == len(g.Vertices) {
		mesh.Normals = flattenVec3(g.Normals)
	}
	if len(g.TexCoords) == len(g.Vertices) {
		mesh.TexCoords = flattenVec2(g.TexCoords)
	}

	blob, ids, err := w.dracoEncoder().EncodeMesh(mesh, w.Opts.DracoParams)
	if err != nil {
		log.Printf("draco compression failed, keeping uncompressed primitive: %v", err)
		return 0, false
	}

	offset, length := s.appendBytes(blob)
	blobView := s.addBufferView(offset, length, 0)

	// Draco-backed accessors carry counts and bounds but no buffer view; the
	// loader rematerializes the streams from the compressed blob.
	min, max := positionBounds(g.Vertices)
	s.bbox.ExpandPoint(vec3.T{float64(min[0]), float64(min[1]), float64(min[2])})
	s.bbox.ExpandPoint(vec3.T{float64(max[0]), float64(max[1]), float64(max[2])})

	attributes := map[string]uint32{}
	extAttributes := map[string]uint32{}

	posAcc := s.addAccessor(&gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(len(g.Vertices)),
		Max:           []float32{max[0], max[1], max[2]},
		Min:           []float32{min[0], min[1], min[2]},
	})
	attributes[gltf.POSITION] = posAcc
	extAttributes[gltf.POSITION] = uint32(ids.Position)

	if mesh.Normals != nil {
		acc := s.addAccessor(&gltf.Accessor{
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(g.Normals)),
		})
		attributes[gltf.NORMAL] = acc
		if ids.Normal >= 0 {
			extAttributes[gltf.NORMAL] = uint32(ids.Normal)
		}
	}
	if mesh.TexCoords != nil {
		acc := s.addAccessor(&gltf.Accessor{
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec2,
			Count:         uint32(len(g.TexCoords)),
		})
		attributes[gltf.TEXCOORD_0] = acc
		if ids.TexCoord >= 0 {
			extAttributes[gltf.TEXCOORD_0] = uint32(ids.TexCoord)
		}
	}
	if ids.BatchID >= 0 {
		extAttributes["_BATCHID"] = uint32(ids.BatchID)
	}

	var maxIdx uint32
	for _, idx := range tris {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	idxAcc := s.addAccessor(&gltf.Accessor{
		ComponentType: indexComponentType(maxIdx),
		Type:          gltf.AccessorScalar,
		Count:         uint32(len(tris)),
		Max:           []float32{float32(maxIdx)},
		Min:           []float32{0},
	})

	prim := &gltf.Primitive{
		Mode:       gltf.PrimitiveTriangles,
		Attributes: attributes,
		Indices:    gltf.Index(idxAcc),
		Extensions: gltf.Extensions{
			extDraco: dracoExtension{BufferView: blobView, Attributes: extAttributes},
		},
	}
	s.doc.Meshes[0].Primitives = append(s.doc.Meshes[0].Primitives, prim)
	return 1, true
}

func flattenVec3(arr []vec3.T) []float32 {
	out := make([]float32, len(arr)*3)
	for i, v := range arr {
		out[i*3] = float32(v[0])
		out[i*3+1] = float32(v[1])
		out[i*3+2] = float32(v[2])
	}
	return out
}

func flattenVec2(arr []vec2.T) []float32 {
	out := make([]float32, len(arr)*2)
	for i, v := range arr {
		out[i*2] = float32(v[0])
		out[i*2+1] = float32(v[1])
	}
	return out
}

func positionBounds(arr []vec3.T) (min, max [3]float32) {
	min = [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max = [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, v := range arr {
		p := [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
		for a := 0; a < 3; a++ {
			if p[a] < min[a] {
				min[a] = p[a]
			}
			if p[a] > max[a] {
				max[a] = p[a]
			}
		}
	}
	return min, max
}

// packVertices interleaves the drawable's streams into codec vertices.
func packVertices(g *osg.Geometry) []meshopt.Vertex {
	out := make([]meshopt.Vertex, len(g.Vertices))
	hasNormals := len(g.Normals) == len(g.Vertices)
	hasUV := len(g.TexCoords) == len(g.Vertices)
	for i := range g.Vertices {
		v := &out[i]
		v.X = float32(g.Vertices[i][0])
		v.Y = float32(g.Vertices[i][1])
		v.Z = float32(g.Vertices[i][2])
		if hasNormals {
			v.NX = float32(g.Normals[i][0])
			v.NY = float32(g.Normals[i][1])
			v.NZ = float32(g.Normals[i][2])
		}
		if hasUV {
			v.U = float32(g.TexCoords[i][0])
			v.V = float32(g.TexCoords[i][1])
		}
	}
	return out
}

// unpackVertices writes codec vertices back into the drawable's streams,
// keeping only the streams it had before.
func unpackVertices(g *osg.Geometry, vertices []meshopt.Vertex) {
	hadNormals := len(g.Normals) == len(g.Vertices)
	hadUV := len(g.TexCoords) == len(g.Vertices)

	g.Vertices = make([]vec3.T, len(vertices))
	if hadNormals {
		g.Normals = make([]vec3.T, len(vertices))
	} else {
		g.Normals = nil
	}
	if hadUV {
		g.TexCoords = make([]vec2.T, len(vertices))
	} else {
		g.TexCoords = nil
	}

	for i := range vertices {
		v := &vertices[i]
		g.Vertices[i] = vec3.T{float64(v.X), float64(v.Y), float64(v.Z)}
		if hadNormals {
			g.Normals[i] = vec3.T{float64(v.NX), float64(v.NY), float64(v.NZ)}
		}
		if hadUV {
			g.TexCoords[i] = vec2.T{float64(v.U), float64(v.V)}
		}
	}
}
