// Package geotrans owns the forward SRS transform of a running conversion and
// the ENU<->ECEF frames derived from the dataset origin. One instance is built
// per pipeline and is read-only once initialized.
package geotrans

import (
	"errors"
	"fmt"
	"log"

	mat4 "github.com/flywave/go3d/float64/mat4"
	vec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/oblique-map/osgb_tiler/internal/converters"
	"github.com/oblique-map/osgb_tiler/internal/converters/proj4_crs_transformer"
	"github.com/oblique-map/osgb_tiler/internal/geometry"
)

type GeoTransform struct {
	forward converters.CrsTransformer

	origin vec3.T

	geoOriginLon    float64
	geoOriginLat    float64
	geoOriginHeight float64

	isENU     bool
	ecefToEnu mat4.T

	lastError string
}

func New() *GeoTransform {
	return &GeoTransform{ecefToEnu: mat4.Ident}
}

// InitFromEpsg builds a forward transform EPSG:<code> -> EPSG:4326 normalized
// for visualization and anchors the ENU frame at the transformed origin.
func (g *GeoTransform) InitFromEpsg(code int, origin *vec3.T) error {
	g.Cleanup()
	if origin == nil {
		return g.fail("origin is null")
	}
	transform, err := proj4_crs_transformer.NewFromEpsg(code)
	if err != nil {
		return g.fail(fmt.Sprintf("Failed to create transformation from EPSG:%d to EPSG:4326: %v", code, err))
	}
	g.init(transform, *origin)
	return nil
}

// InitFromEnu uses an identity forward transform with the given geographic
// origin; origin is an ENU offset in meters.
func (g *GeoTransform) InitFromEnu(lon, lat float64, origin *vec3.T) error {
	g.Cleanup()
	if origin == nil {
		return g.fail("origin_enu is null")
	}
	g.init(converters.IdentityTransformer{}, *origin)
	g.SetGeographicOrigin(lon, lat, 0)
	return nil
}

// InitFromWkt parses the source CRS from WKT and builds a forward transform to
// EPSG:4326.
func (g *GeoTransform) InitFromWkt(wkt string, origin *vec3.T) error {
	g.Cleanup()
	if wkt == "" || origin == nil {
		return g.fail("wkt or origin is null")
	}
	transform, err := proj4_crs_transformer.NewFromWkt(wkt)
	if err != nil {
		return g.fail(fmt.Sprintf("Failed to create transformation: %v", err))
	}
	g.init(transform, *origin)
	return nil
}

func (g *GeoTransform) init(transform converters.CrsTransformer, origin vec3.T) {
	g.forward = transform
	g.origin = origin
	g.isENU = false

	cartographic := geometry.Coordinate{X: origin[0], Y: origin[1], Z: origin[2]}
	out, err := transform.Forward(cartographic)
	if err != nil {
		log.Printf("origin transform failed, keeping source coordinates: %v", err)
	} else {
		cartographic = out
	}

	g.geoOriginLon = cartographic.X
	g.geoOriginLat = cartographic.Y
	g.geoOriginHeight = cartographic.Z

	enuToEcef := CalcEnuToEcefMatrix(cartographic.X, cartographic.Y, cartographic.Z)
	g.ecefToEnu = invertRigid(&enuToEcef)
}

// SetGeographicOrigin pins the ENU frame to an explicit geodetic origin and
// switches the transform into ENU mode.
func (g *GeoTransform) SetGeographicOrigin(lon, lat, height float64) {
	g.geoOriginLon = lon
	g.geoOriginLat = lat
	g.geoOriginHeight = height
	g.isENU = true

	enuToEcef := CalcEnuToEcefMatrix(lon, lat, height)
	g.ecefToEnu = invertRigid(&enuToEcef)
}

// Cleanup releases the CRS transform. Safe to call repeatedly.
func (g *GeoTransform) Cleanup() {
	if g.forward != nil {
		g.forward.Cleanup()
		g.forward = nil
	}
}

func (g *GeoTransform) IsInitialized() bool { return g.forward != nil }
func (g *GeoTransform) IsEnu() bool         { return g.isENU }
func (g *GeoTransform) LastError() string   { return g.lastError }

// GeographicOrigin returns the dataset origin as geodetic lon, lat, height.
func (g *GeoTransform) GeographicOrigin() (lon, lat, height float64) {
	return g.geoOriginLon, g.geoOriginLat, g.geoOriginHeight
}

// Origin returns the stored source-coordinate origin offset.
func (g *GeoTransform) Origin() vec3.T { return g.origin }

func (g *GeoTransform) fail(msg string) error {
	g.lastError = msg
	return errors.New(msg)
}

// CorrectPoint maps one source-coordinate point into the dataset ENU frame.
//
// ENU mode: the point is already local ENU; shift by the origin offset, rotate
// into ECEF at the geographic origin and come back through the stored
// ECEF->ENU frame. Projected mode: shift by the origin offset, run the forward
// CRS transform to geodetic, then ECEF and ECEF->ENU.
func (g *GeoTransform) CorrectPoint(p vec3.T) (vec3.T, error) {
	if g.isENU {
		absolute := vec3.T{p[0] + g.origin[0], p[1] + g.origin[1], p[2] + g.origin[2]}
		ecef := CartographicToEcef(g.geoOriginLon, g.geoOriginLat, g.geoOriginHeight)
		offset := RotateEnuOffsetToEcef(g.geoOriginLon, g.geoOriginLat, absolute)
		ecef[0] += offset[0]
		ecef[1] += offset[1]
		ecef[2] += offset[2]
		return transformPoint(&g.ecefToEnu, ecef), nil
	}

	cartographic := geometry.Coordinate{X: p[0] + g.origin[0], Y: p[1] + g.origin[1], Z: p[2] + g.origin[2]}
	out, err := g.forward.Forward(cartographic)
	if err != nil {
		return vec3.T{}, err
	}
	ecef := CartographicToEcef(out.X, out.Y, out.Z)
	return transformPoint(&g.ecefToEnu, ecef), nil
}
