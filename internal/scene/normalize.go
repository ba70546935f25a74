package scene

import (
	vec2 "github.com/flywave/go3d/float64/vec2"
	vec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/oblique-map/osgb_tiler/internal/osg"
)

// normalizeGeometry reconciles attribute arrays with the vertex count so the
// canonical mesh invariant holds: every per-vertex stream has exactly one
// entry per vertex.
//
// Normals follow the binding mode: per-vertex arrays are padded when
// undersized, an overall normal is expanded to every vertex, and any other
// binding collapses to the first normal for every vertex. Drawables without
// normals are left alone; the smoothing pass fills those in later. UVs are
// truncated or padded with (0,0); a drawable without UVs stays without UVs.
func normalizeGeometry(g *osg.Geometry) {
	count := len(g.Vertices)

	if len(g.Normals) > 0 {
		switch g.NormalBinding {
		case osg.BindPerVertex:
			pad := g.Normals[len(g.Normals)-1]
			for len(g.Normals) < count {
				g.Normals = append(g.Normals, pad)
			}
			g.Normals = g.Normals[:count]
		case osg.BindOverall:
			g.Normals = repeatNormal(g.Normals[0], count)
		default:
			g.Normals = repeatNormal(g.Normals[0], count)
		}
		g.NormalBinding = osg.BindPerVertex
	}

	if len(g.TexCoords) > 0 {
		for len(g.TexCoords) < count {
			g.TexCoords = append(g.TexCoords, vec2.T{})
		}
		g.TexCoords = g.TexCoords[:count]
	}
}

func repeatNormal(n vec3.T, count int) []vec3.T {
	out := make([]vec3.T, count)
	for i := range out {
		out[i] = n
	}
	return out
}
