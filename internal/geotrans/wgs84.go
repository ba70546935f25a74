package geotrans

import (
	"math"

	mat4 "github.com/flywave/go3d/float64/mat4"
	vec3 "github.com/flywave/go3d/float64/vec3"
)

// WGS84 ellipsoid constants.
const (
	wgs84SemiMajor  = 6378137.0
	wgs84Flattening = 1.0 / 298.257223563
)

var wgs84Ecc2 = wgs84Flattening * (2.0 - wgs84Flattening)

// CartographicToEcef converts geodetic degrees plus height to ECEF meters.
func CartographicToEcef(lonDeg, latDeg, height float64) vec3.T {
	lon := lonDeg * math.Pi / 180
	phi := latDeg * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	// Prime vertical radius of curvature.
	n := wgs84SemiMajor / math.Sqrt(1-wgs84Ecc2*sinPhi*sinPhi)

	return vec3.T{
		(n + height) * cosPhi * cosLon,
		(n + height) * cosPhi * sinLon,
		(n*(1-wgs84Ecc2) + height) * sinPhi,
	}
}

// CalcEnuToEcefMatrix builds the column-major ENU->ECEF frame at the given
// geodetic origin: columns are east, north, up, and the origin's ECEF.
func CalcEnuToEcefMatrix(lonDeg, latDeg, height float64) mat4.T {
	lon := lonDeg * math.Pi / 180
	phi := latDeg * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	origin := CartographicToEcef(lonDeg, latDeg, height)

	var t mat4.T
	t[0] = [4]float64{-sinLon, cosLon, 0, 0}
	t[1] = [4]float64{-sinPhi * cosLon, -sinPhi * sinLon, cosPhi, 0}
	t[2] = [4]float64{cosPhi * cosLon, cosPhi * sinLon, sinPhi, 0}
	t[3] = [4]float64{origin[0], origin[1], origin[2], 1}
	return t
}

// invertRigid inverts a rotation-plus-translation matrix by transposing the
// rotation block, which is exact for the orthonormal ENU frames built above.
func invertRigid(m *mat4.T) mat4.T {
	var inv mat4.T
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			inv[col][row] = m[row][col]
		}
		inv[col][3] = 0
	}
	for row := 0; row < 3; row++ {
		inv[3][row] = -(inv[0][row]*m[3][0] + inv[1][row]*m[3][1] + inv[2][row]*m[3][2])
	}
	inv[3][3] = 1
	return inv
}

// transformPoint applies a column-major affine matrix to a point.
func transformPoint(m *mat4.T, p vec3.T) vec3.T {
	return vec3.T{
		m[0][0]*p[0] + m[1][0]*p[1] + m[2][0]*p[2] + m[3][0],
		m[0][1]*p[0] + m[1][1]*p[1] + m[2][1]*p[2] + m[3][1],
		m[0][2]*p[0] + m[1][2]*p[1] + m[2][2]*p[2] + m[3][2],
	}
}

// RotateEnuOffsetToEcef rotates a local ENU offset into the ECEF frame at the
// given geodetic origin, without translation.
func RotateEnuOffsetToEcef(lonDeg, latDeg float64, offset vec3.T) vec3.T {
	lon := lonDeg * math.Pi / 180
	phi := latDeg * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	return vec3.T{
		-sinLon*offset[0] - sinPhi*cosLon*offset[1] + cosPhi*cosLon*offset[2],
		cosLon*offset[0] - sinPhi*sinLon*offset[1] + cosPhi*sinLon*offset[2],
		cosPhi*offset[1] + sinPhi*offset[2],
	}
}
