package tiler

import (
	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/meshopt"
)

// LodLevelSettings configures one exported precision level.
type LodLevelSettings struct {
	TargetRatio float64
	TargetError float64
	EnableDraco bool

	Simplify meshopt.SimplifyParams
	Draco    codec.DracoParams
}

// BuildLodLevels derives per-level settings from a ratio ladder. LOD0 stays
// uncompressed unless dracoForLod0 is set, so the first level of the ladder
// loads without a decoder round trip.
func BuildLodLevels(ratios []float64, baseError float64, simplifyTemplate meshopt.SimplifyParams, dracoTemplate codec.DracoParams, dracoEnabled, dracoForLod0 bool) []LodLevelSettings {
	levels := make([]LodLevelSettings, 0, len(ratios))
	for i, ratio := range ratios {
		lvl := LodLevelSettings{
			TargetRatio: ratio,
			TargetError: baseError,
			EnableDraco: dracoEnabled,
			Simplify:    simplifyTemplate,
			Draco:       dracoTemplate,
		}
		lvl.Simplify.TargetRatio = ratio
		lvl.Simplify.TargetError = baseError
		if i == 0 && !dracoForLod0 {
			lvl.EnableDraco = false
		}
		levels = append(levels, lvl)
	}
	return levels
}
