// Package proj4_crs_transformer backs the CrsTransformer interface with the
// proj.4 library. Source CRS definitions are resolved from an EPSG code or
// from WKT text; the target is always geodetic WGS84 with longitude first.
package proj4_crs_transformer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	proj "github.com/xeonx/proj4"

	"github.com/oblique-map/osgb_tiler/internal/geometry"
)

const wgs84Definition = "+proj=longlat +datum=WGS84 +no_defs"

type Proj4CrsTransformer struct {
	source *proj.Proj
	target *proj.Proj
}

// NewFromEpsg builds a forward transform EPSG:<code> -> EPSG:4326.
func NewFromEpsg(code int) (*Proj4CrsTransformer, error) {
	if code == 4326 {
		return newFromDefinition(wgs84Definition)
	}
	return newFromDefinition(fmt.Sprintf("+init=epsg:%d", code))
}

// NewFromWkt builds a forward transform from a WKT CRS description. The proj.4
// runtime does not parse WKT itself, so the AUTHORITY code of the outermost
// clause is used to resolve the definition from the EPSG database.
func NewFromWkt(wkt string) (*Proj4CrsTransformer, error) {
	code, ok := epsgFromWkt(wkt)
	if !ok {
		return nil, fmt.Errorf("failed to resolve an EPSG authority from WKT")
	}
	return NewFromEpsg(code)
}

func newFromDefinition(definition string) (*Proj4CrsTransformer, error) {
	source, err := proj.InitPlus(definition)
	if err != nil {
		return nil, fmt.Errorf("init source CRS %q: %w", definition, err)
	}
	target, err := proj.InitPlus(wgs84Definition)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("init WGS84 CRS: %w", err)
	}
	return &Proj4CrsTransformer{source: source, target: target}, nil
}

func (t *Proj4CrsTransformer) Forward(coord geometry.Coordinate) (geometry.Coordinate, error) {
	x := []float64{coord.X}
	y := []float64{coord.Y}
	z := []float64{coord.Z}

	if t.source.IsLatLong() {
		x[0] = degToRad(x[0])
		y[0] = degToRad(y[0])
	}

	if err := proj.TransformRaw(t.source, t.target, x, y, z); err != nil {
		return geometry.Coordinate{}, fmt.Errorf("forward transform: %w", err)
	}

	// The target is geodetic, so proj.4 hands back radians.
	return geometry.Coordinate{
		X: radToDeg(x[0]),
		Y: radToDeg(y[0]),
		Z: z[0],
	}, nil
}

func (t *Proj4CrsTransformer) Cleanup() {
	if t.source != nil {
		t.source.Close()
		t.source = nil
	}
	if t.target != nil {
		t.target.Close()
		t.target = nil
	}
}

var wktAuthorityPattern = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// epsgFromWkt returns the last EPSG authority code in the WKT text, which by
// convention belongs to the outermost CRS clause.
func epsgFromWkt(wkt string) (int, bool) {
	matches := wktAuthorityPattern.FindAllStringSubmatch(strings.ToUpper(wkt), -1)
	if len(matches) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return code, true
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
