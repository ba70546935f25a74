package tools

import (
	"flag"
	"log"
)

const (
	CommandB3dm  = "b3dm"
	CommandBatch = "batch"
	CommandGlb   = "glb"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

type TilerFlags struct {
	Input    *string `json:"input"`
	Output   *string `json:"output"`
	CenterX  *float64
	CenterY  *float64
	MaxLevel *int

	Ktx2    *bool
	MeshOpt *bool
	Draco   *bool

	SimplifyRatio *float64
	SimplifyError *float64

	PositionBits *int
	TexCoordBits *int
	NormalBits   *int
}

type FlagsForCommandB3dm struct {
	TilerFlags
	Silent       *bool
	LogTimestamp *bool
	Help         *bool
	Version      *bool
}

type FlagsForCommandBatch struct {
	TilerFlags
	Parallelism  *int
	Silent       *bool
	LogTimestamp *bool
	Help         *bool
	Version      *bool
}

type FlagsForCommandGlb struct {
	TilerFlags
	Text    *bool
	Help    *bool
	Version *bool
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	version := defineBoolFlag("version", "v", false, "Displays the version of osgb_tiler.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func defineTilerFlags(flagCommand *flag.FlagSet) TilerFlags {
	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the input OSGB file/folder.")
	output := defineStringFlagCommand(flagCommand, "output", "o", "", "Specifies the output folder where to write the tileset data.")
	centerX := defineFloat64FlagCommand(flagCommand, "center-x", "x", 0, "Dataset center longitude in degrees, used when metadata.xml is absent.")
	centerY := defineFloat64FlagCommand(flagCommand, "center-y", "y", 0, "Dataset center latitude in degrees, used when metadata.xml is absent.")
	maxLevel := defineIntFlagCommand(flagCommand, "max-level", "l", 100, "Maximum LOD level to convert; tiles above it are skipped.")
	ktx2 := defineBoolFlagCommand(flagCommand, "ktx2", "", false, "Compress textures to KTX2 via Basis Universal instead of JPEG.")
	meshopt := defineBoolFlagCommand(flagCommand, "meshopt", "", false, "Optimize and simplify meshes before packing.")
	draco := defineBoolFlagCommand(flagCommand, "draco", "", false, "Use Draco to compress primitive attribute streams.")
	simplifyRatio := defineFloat64FlagCommand(flagCommand, "simplify-ratio", "", 0.5, "Target index count ratio for mesh simplification.")
	simplifyError := defineFloat64FlagCommand(flagCommand, "simplify-error", "", 0.01, "Relative error budget for mesh simplification.")
	positionBits := defineIntFlagCommand(flagCommand, "qp", "", 11, "Draco position quantization bits (10-16).")
	texCoordBits := defineIntFlagCommand(flagCommand, "qt", "", 12, "Draco texture coordinate quantization bits (8-16).")
	normalBits := defineIntFlagCommand(flagCommand, "qn", "", 10, "Draco normal quantization bits (8-16).")

	return TilerFlags{
		Input:         input,
		Output:        output,
		CenterX:       centerX,
		CenterY:       centerY,
		MaxLevel:      maxLevel,
		Ktx2:          ktx2,
		MeshOpt:       meshopt,
		Draco:         draco,
		SimplifyRatio: simplifyRatio,
		SimplifyError: simplifyError,
		PositionBits:  positionBits,
		TexCoordBits:  texCoordBits,
		NormalBits:    normalBits,
	}
}

func ParseFlagsForCommandB3dm(args []string) FlagsForCommandB3dm {
	log.Println(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-b3dm", flag.ExitOnError)

	tilerFlags := defineTilerFlags(flagCommand)
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")
	version := defineBoolFlagCommand(flagCommand, "version", "v", false, "Displays the version of osgb_tiler.")

	flagCommand.Parse(args)

	return FlagsForCommandB3dm{
		TilerFlags:   tilerFlags,
		Silent:       silent,
		LogTimestamp: logTimestamp,
		Help:         help,
		Version:      version,
	}
}

func ParseFlagsForCommandBatch(args []string) FlagsForCommandBatch {
	log.Println(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-batch", flag.ExitOnError)

	tilerFlags := defineTilerFlags(flagCommand)
	parallelism := defineIntFlagCommand(flagCommand, "parallelism", "p", 0, "Number of parallel tile conversions; 0 uses one per CPU.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")
	version := defineBoolFlagCommand(flagCommand, "version", "v", false, "Displays the version of osgb_tiler.")

	flagCommand.Parse(args)

	return FlagsForCommandBatch{
		TilerFlags:   tilerFlags,
		Parallelism:  parallelism,
		Silent:       silent,
		LogTimestamp: logTimestamp,
		Help:         help,
		Version:      version,
	}
}

func ParseFlagsForCommandGlb(args []string) FlagsForCommandGlb {
	log.Println(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-glb", flag.ExitOnError)

	tilerFlags := defineTilerFlags(flagCommand)
	text := defineBoolFlagCommand(flagCommand, "text", "", false, "Write text glTF JSON instead of the binary GLB container.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")
	version := defineBoolFlagCommand(flagCommand, "version", "v", false, "Displays the version of osgb_tiler.")

	flagCommand.Parse(args)

	return FlagsForCommandGlb{
		TilerFlags: tilerFlags,
		Text:       text,
		Help:       help,
		Version:    version,
	}
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
