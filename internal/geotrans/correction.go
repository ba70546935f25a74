package geotrans

import (
	"math"

	mat4 "github.com/flywave/go3d/float64/mat4"
	vec3 "github.com/flywave/go3d/float64/vec3"
	"gonum.org/v1/gonum/mat"
)

// Relative residual above which the affine fit is considered unusable and the
// caller must reproject vertices one by one.
const correctionResidualLimit = 1e-6

// CorrectionMatrix fits an affine transform that maps the eight corners of the
// primitive's local bounding box onto their geodetically corrected positions.
// The least-squares fit absorbs the local curvature of the geographic
// transform, so vertices inside the box need no per-vertex CRS calls.
//
// The returned bool is false when the fit is too poor (near-degenerate corner
// configurations) and per-vertex correction should be used instead.
func (g *GeoTransform) CorrectionMatrix(min, max vec3.T) (mat4.T, bool, error) {
	corners := [8]vec3.T{
		{min[0], min[1], min[2]},
		{max[0], min[1], min[2]},
		{min[0], max[1], min[2]},
		{min[0], min[1], max[2]},
		{max[0], max[1], min[2]},
		{min[0], max[1], max[2]},
		{max[0], min[1], max[2]},
		{max[0], max[1], max[2]},
	}

	a := mat.NewDense(8, 4, nil)
	b := mat.NewDense(8, 4, nil)
	for row, c := range corners {
		corrected, err := g.CorrectPoint(c)
		if err != nil {
			return mat4.Ident, false, err
		}
		a.SetRow(row, []float64{c[0], c[1], c[2], 1})
		b.SetRow(row, []float64{corrected[0], corrected[1], corrected[2], 1})
	}

	x, ok := solveLeastSquares(a, b)
	if !ok {
		return mat4.Ident, false, nil
	}

	// Relative residual ||A·X − B|| / ||B||.
	var residual mat.Dense
	residual.Mul(a, x)
	residual.Sub(&residual, b)
	if norm := mat.Norm(b, 2); norm > 0 && mat.Norm(&residual, 2)/norm > correctionResidualLimit {
		return mat4.Ident, false, nil
	}

	// X maps row vectors; column i of the affine matrix is row i of X.
	var out mat4.T
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = x.At(i, j)
		}
	}
	return out, true, nil
}

// solveLeastSquares solves min ||A·X − B|| via a thin SVD with an explicit
// rank cut. QR is not enough here: the corner stacks go numerically
// rank-deficient whenever a primitive is planar or needle shaped.
func solveLeastSquares(a, b *mat.Dense) (*mat.Dense, bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, false
	}

	values := svd.Values(nil)
	tol := 1e-12 * values[0]
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	if rank == 0 {
		return nil, false
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// X = V · diag(1/s) · Uᵀ · B, truncated to the numerical rank.
	var utb mat.Dense
	utb.Mul(u.T(), b)
	rows, cols := utb.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r < rank {
				utb.Set(r, c, utb.At(r, c)/values[r])
			} else {
				utb.Set(r, c, 0)
			}
		}
	}

	var x mat.Dense
	x.Mul(&v, &utb)
	return &x, true
}

// CorrectionResidual returns the max distance between matrix-corrected and
// directly reprojected corners, a cheap sanity probe used by tests.
func (g *GeoTransform) CorrectionResidual(m *mat4.T, points []vec3.T) (float64, error) {
	worst := 0.0
	for _, p := range points {
		direct, err := g.CorrectPoint(p)
		if err != nil {
			return 0, err
		}
		fitted := transformPoint(m, p)
		d := math.Sqrt((direct[0]-fitted[0])*(direct[0]-fitted[0]) +
			(direct[1]-fitted[1])*(direct[1]-fitted[1]) +
			(direct[2]-fitted[2])*(direct[2]-fitted[2]))
		if d > worst {
			worst = d
		}
	}
	return worst, nil
}

// TransformPoint applies a column-major affine matrix to a point.
func TransformPoint(m *mat4.T, p vec3.T) vec3.T {
	return transformPoint(m, p)
}
