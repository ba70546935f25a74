package io

import (
	"github.com/oblique-map/osgb_tiler/internal/geometry"
	"github.com/oblique-map/osgb_tiler/internal/tiler"
	"github.com/oblique-map/osgb_tiler/internal/tileset"
)

// WorkUnit is one root tile to convert: the root scene-graph file, the
// directory its tiles are written to, and the options of the run.
type WorkUnit struct {
	TileName   string
	OsgbPath   string
	OutputPath string
	// URI of the per-tile tileset.json relative to the dataset root.
	TilesetURI string
	Opts       *tiler.TilerOptions
}

// TileResult is what a successfully converted root tile contributes to the
// dataset root manifest.
type TileResult struct {
	TileName   string
	TilesetURI string
	Root       tileset.Node
	BBox       geometry.TileBox
}

// TileConverter converts one root tile; implemented by the pipeline in pkg.
type TileConverter interface {
	ConvertTile(unit *WorkUnit) (TileResult, error)
}
