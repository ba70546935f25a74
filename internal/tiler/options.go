package tiler

import (
	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/meshopt"
)

// TilerOptions carries everything a conversion run needs.
type TilerOptions struct {
	Input  string // Input OSGB file/folder
	Output string // Output tileset folder

	// Dataset center fallback, used when metadata.xml is absent.
	CenterX float64
	CenterY float64

	// Tiles above this LOD level (parsed from the file name) are skipped.
	MaxLevel int

	EnableKtx2    bool // Compress textures to KTX2 via Basis Universal
	EnableMeshOpt bool // Optimize and simplify meshes before packing
	EnableDraco   bool // Draco-compress primitive attribute streams

	Simplify meshopt.SimplifyParams
	Draco    codec.DracoParams

	Command           string
	TilerB3dmOptions  *TilerB3dmOptions
	TilerBatchOptions *TilerBatchOptions
	TilerGlbOptions   *TilerGlbOptions
}

type TilerB3dmOptions struct{}

type TilerBatchOptions struct {
	// Worker count for the root-tile pool; 0 means one per CPU.
	Parallelism int
}

type TilerGlbOptions struct {
	// Emit the binary GLB container; false writes text glTF JSON.
	Binary bool
}

func (opt *TilerOptions) Copy() *TilerOptions {
	newOpt := &TilerOptions{
		Input:         opt.Input,
		Output:        opt.Output,
		CenterX:       opt.CenterX,
		CenterY:       opt.CenterY,
		MaxLevel:      opt.MaxLevel,
		EnableKtx2:    opt.EnableKtx2,
		EnableMeshOpt: opt.EnableMeshOpt,
		EnableDraco:   opt.EnableDraco,
		Simplify:      opt.Simplify,
		Draco:         opt.Draco,
		Command:       opt.Command,
	}
	if opt.TilerB3dmOptions != nil {
		o := *opt.TilerB3dmOptions
		newOpt.TilerB3dmOptions = &o
	}
	if opt.TilerBatchOptions != nil {
		o := *opt.TilerBatchOptions
		newOpt.TilerBatchOptions = &o
	}
	if opt.TilerGlbOptions != nil {
		o := *opt.TilerGlbOptions
		newOpt.TilerGlbOptions = &o
	}
	return newOpt
}
