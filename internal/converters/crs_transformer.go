package converters

import (
	"github.com/oblique-map/osgb_tiler/internal/geometry"
)

// CrsTransformer is a forward transform from a source CRS into geodetic
// longitude/latitude degrees plus ellipsoidal height in meters.
type CrsTransformer interface {
	Forward(coord geometry.Coordinate) (geometry.Coordinate, error)
	Cleanup()
}

// IdentityTransformer passes coordinates through untouched; used when the
// source data is already in the target frame (the ENU case).
type IdentityTransformer struct{}

func (IdentityTransformer) Forward(coord geometry.Coordinate) (geometry.Coordinate, error) {
	return coord, nil
}

func (IdentityTransformer) Cleanup() {}
