package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/oblique-map/osgb_tiler/internal/codec"
	"github.com/oblique-map/osgb_tiler/internal/meshopt"
	"github.com/oblique-map/osgb_tiler/internal/osg"
	"github.com/oblique-map/osgb_tiler/internal/tiler"
	"github.com/oblique-map/osgb_tiler/pkg"
	"github.com/oblique-map/osgb_tiler/tools"
)

const VERSION = "1.0.0"

func main() {
	log.SetPrefix("[osgb_tiler] ")
	log.SetFlags(log.LUTC | log.Ldate | log.Lmicroseconds | log.Lshortfile)

	flagsGlobal := tools.ParseFlagsGlobal()
	log.Println(tools.FmtJSONString(flagsGlobal))

	args := flag.Args()
	if len(args) == 0 {
		if *flagsGlobal.Help {
			showHelp()
			return
		}
		if *flagsGlobal.Version {
			printVersion()
			return
		}
		log.Fatal("Please specify a subcommand [b3dm|batch|glb].")
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case tools.CommandB3dm:
		mainCommandB3dm(args)
	case tools.CommandBatch:
		mainCommandBatch(args)
	case tools.CommandGlb:
		mainCommandGlb(args)
	default:
		log.Fatalf("Unrecognized command [%q]. Command must be one of [b3dm|batch|glb]", cmd)
	}
}

func newTiler() *pkg.Tiler {
	return pkg.NewTiler(tools.NewStandardFileFinder(), osg.DefaultRegistry())
}

func optionsFromFlags(f tools.TilerFlags) *tiler.TilerOptions {
	return &tiler.TilerOptions{
		Input:         *f.Input,
		Output:        *f.Output,
		CenterX:       *f.CenterX,
		CenterY:       *f.CenterY,
		MaxLevel:      *f.MaxLevel,
		EnableKtx2:    *f.Ktx2,
		EnableMeshOpt: *f.MeshOpt,
		EnableDraco:   *f.Draco,
		Simplify: meshopt.SimplifyParams{
			Enable:            *f.MeshOpt,
			TargetRatio:       *f.SimplifyRatio,
			TargetError:       *f.SimplifyError,
			PreserveNormals:   true,
			PreserveTexCoords: true,
		},
		Draco: codec.DracoParams{
			PositionBits: *f.PositionBits,
			TexCoordBits: *f.TexCoordBits,
			NormalBits:   *f.NormalBits,
		},
	}
}

func mainCommandB3dm(args []string) {
	flags := tools.ParseFlagsForCommandB3dm(args)

	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Version {
		printVersion()
		return
	}
	if *flags.Silent {
		tools.DisableLogger()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	opts := optionsFromFlags(flags.TilerFlags)
	opts.Command = tools.CommandB3dm
	opts.TilerB3dmOptions = &tiler.TilerB3dmOptions{}

	if msg, ok := validateInOut(opts); !ok {
		log.Fatal("Error parsing input parameters: " + msg)
	}

	t := newTiler()
	result, err := t.ConvertB3dmSingle(opts.Input, opts.Output, opts.CenterX, opts.CenterY, opts.MaxLevel, opts)
	if err != nil {
		log.Fatal("Error while tiling: ", err)
	}
	if err := tools.WriteFile(filepath.Join(opts.Output, "tileset.json"), result.TilesetJSON); err != nil {
		log.Fatal("Error writing tileset.json: ", err)
	}
	tools.LogOutput("Conversion Completed")
}

func mainCommandBatch(args []string) {
	flags := tools.ParseFlagsForCommandBatch(args)

	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Version {
		printVersion()
		return
	}
	if *flags.Silent {
		tools.DisableLogger()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	opts := optionsFromFlags(flags.TilerFlags)
	opts.Command = tools.CommandBatch
	opts.TilerBatchOptions = &tiler.TilerBatchOptions{Parallelism: *flags.Parallelism}

	if msg, ok := validateInOut(opts); !ok {
		log.Fatal("Error parsing input parameters: " + msg)
	}

	t := newTiler()
	if err := t.ConvertBatch(opts.Input, opts.Output, opts.CenterX, opts.CenterY, opts.MaxLevel, opts); err != nil {
		log.Fatal("Error while tiling: ", err)
	}
	tools.LogOutput("Conversion Completed")
}

func mainCommandGlb(args []string) {
	flags := tools.ParseFlagsForCommandGlb(args)

	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Version {
		printVersion()
		return
	}

	opts := optionsFromFlags(flags.TilerFlags)
	opts.Command = tools.CommandGlb
	opts.TilerGlbOptions = &tiler.TilerGlbOptions{Binary: !*flags.Text}

	if msg, ok := validateInOut(opts); !ok {
		log.Fatal("Error parsing input parameters: " + msg)
	}

	t := newTiler()
	if err := t.ConvertGlb(opts.Input, opts.Output, opts); err != nil {
		log.Fatal("Error while converting: ", err)
	}
	tools.LogOutput("Conversion Completed")
}

func validateInOut(opts *tiler.TilerOptions) (string, bool) {
	if opts.Input == "" {
		return "input is required", false
	}
	if opts.Output == "" {
		return "output is required", false
	}
	if _, err := os.Stat(opts.Input); os.IsNotExist(err) {
		return "Input file/folder not found", false
	}
	return "", true
}

func showHelp() {
	fmt.Println("***")
	fmt.Println("osgb_tiler converts paged-LOD OSGB datasets into 3D Tiles (b3dm + tileset.json) or GLB.")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Command line flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
