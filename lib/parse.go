package lib

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"gopkg.in/gcfg.v1"

	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/format"
)

// RawArgs stores the unprocessed values which the user assigned to each config
// variable. It is read from a gcfg file with a single [Tracers] section.
type RawArgs struct {
	Tracers TracersSection

	// set holds the lower-case names of the variables given on the command
	// line. It is nil for RawArgs read from a file.
	set map[string]bool
}

// TracersSection holds the variables of the [Tracers] section.
type TracersSection struct {
	Workers int

	NX, NY, NZ       int
	BoxX, BoxY, BoxZ float64
	Axis             int

	Particles  int64
	Components int

	IntegrationOrder int
	Basis            string
	HalfWidth        int
	Dt               float64
	Iterations       int
	TrajectoryStride int

	CheckpointDir string
	Name          string
	Restart       int
	RHSOutputs    string

	InitialCondition string
	Seed             int64

	Field      string
	UX, UY, UZ float64
	Amplitude  float64
	Precision  string

	StatsFile string
	Threads   int
	LogLevel  string
	LogFormat string
}

// DefaultRawArgs returns the values used for variables that aren't set.
func DefaultRawArgs() *RawArgs {
	return &RawArgs{
		Tracers: TracersSection{
			Workers: 1,
			BoxX: 2*math.Pi, BoxY: 2*math.Pi, BoxZ: 2*math.Pi,
			Axis: 2,
			Components: 3,
			IntegrationOrder: 4,
			Basis: "lagrange",
			HalfWidth: 1,
			TrajectoryStride: 1,
			Name: "tracers0",
			InitialCondition: "lattice",
			Field: "uniform",
			Amplitude: 1,
			Precision: "double",
			LogLevel: "info",
			LogFormat: "text",
		},
	}
}

// Args stores configuration information. It is a post-processed version of
// RawArgs.
type Args struct {
	Workers int
	RunMode RunMode

	Dims [3]int
	Box  [3]float64
	Axis int

	Particles  int64
	Components int

	IntegrationOrder int
	Basis            BasisKind
	HalfWidth        int
	Dt               float64
	Iterations       int
	TrajectoryStride int

	CheckpointDir string
	Name          string
	Restart       int
	RHSOutputs    format.Sequence

	InitialCondition InitialCondition
	Seed             uint64

	Field     FieldPreset
	Velocity  [3]float64
	Amplitude float64
	Precision Precision

	StatsFile string
	Threads   int
	LogLevel  slog.Level
	LogFormat string
}

// ParseCommandLine parses the command line arguments and returns the mode
// tracers is being run in, the name of the config file, and any arguments
// which were set. Expects that the arguments (without the program name) are
// presented in the order:
// $ tracers <mode> <config file> [--<Arg1> <Value1>] [--<Arg2> <Value2>]
// The "help" mode doesn't need a config file.
func ParseCommandLine(argv []string) (
	mode, configFile string, args *RawArgs, err error,
) {
	args = &RawArgs{ set: map[string]bool{} }
	if len(argv) == 0 {
		return "", "", nil, g_error.Config("No mode was given. Run "+
			"'tracers help' for usage.")
	}
	mode = argv[0]
	if mode == "help" { return mode, "", args, nil }

	if len(argv) < 2 {
		return "", "", nil, g_error.Config("Mode '%s' needs a config file.",
			mode)
	}
	configFile, flags := argv[1], argv[2:]
	if len(flags) % 2 != 0 {
		return "", "", nil, g_error.Config("Command line arguments after the "+
			"config file must come in '--<Arg> <Value>' pairs, but %d "+
			"arguments were given.", len(flags))
	}

	sb := &strings.Builder{}
	sb.WriteString("[Tracers]\n")
	for i := 0; i < len(flags); i += 2 {
		key := flags[i]
		if !strings.HasPrefix(key, "--") || len(key) == 2 {
			return "", "", nil, g_error.Config("Expected a '--<Arg>' on the "+
				"command line, but got '%s'.", key)
		}
		key = key[2:]
		args.set[strings.ToLower(key)] = true
		fmt.Fprintf(sb, "%s = %s\n", key, quote(flags[i+1]))
	}

	if err := gcfg.ReadStringInto(args, sb.String()); err != nil {
		return "", "", nil, g_error.Config("Could not parse command line "+
			"arguments: %w", err)
	}
	return mode, configFile, args, nil
}

// quote turns a command line value into a quoted gcfg value.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// ParseConfigFile parses arguments from a config file. Variables the file
// doesn't set keep their default values.
func ParseConfigFile(fileName string) (*RawArgs, error) {
	args := DefaultRawArgs()
	if err := gcfg.ReadFileInto(args, fileName); err != nil {
		return nil, g_error.Config("Could not parse config file %s: %w",
			fileName, err)
	}
	return args, nil
}

// Overwrite overwrites the variables in arg1 which were set on the command
// line that produced arg2.
func (arg1 *RawArgs) Overwrite(arg2 *RawArgs) {
	dst := reflect.ValueOf(&arg1.Tracers).Elem()
	src := reflect.ValueOf(&arg2.Tracers).Elem()
	typ := dst.Type()
	for i := 0; i < typ.NumField(); i++ {
		if arg2.set[strings.ToLower(typ.Field(i).Name)] {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// Process converts the raw user input to a format which is more useful for
// internal functions. Very simple validation will be done here, but nothing
// which requires interacting with external files. Range checks are left to
// Check.
func (args *RawArgs) Process() (*Args, error) {
	t := &args.Tracers
	out := &Args{
		Workers: t.Workers,
		Dims: [3]int{ t.NX, t.NY, t.NZ },
		Box: [3]float64{ t.BoxX, t.BoxY, t.BoxZ },
		Axis: t.Axis,
		Particles: t.Particles, Components: t.Components,
		IntegrationOrder: t.IntegrationOrder, HalfWidth: t.HalfWidth,
		Dt: t.Dt, Iterations: t.Iterations,
		TrajectoryStride: t.TrajectoryStride,
		CheckpointDir: t.CheckpointDir, Name: t.Name, Restart: t.Restart,
		Seed: uint64(t.Seed),
		Velocity: [3]float64{ t.UX, t.UY, t.UZ },
		Amplitude: t.Amplitude,
		StatsFile: t.StatsFile, Threads: t.Threads,
		LogFormat: strings.ToLower(t.LogFormat),
	}

	var err error
	out.RHSOutputs, err = format.ParseSequence("RHSOutputs", t.RHSOutputs)
	if err != nil { return nil, err }

	out.Basis, err = parseBasis(t.Basis)
	if err != nil { return nil, err }
	out.InitialCondition, err = parseInitialCondition(t.InitialCondition)
	if err != nil { return nil, err }
	out.Field, err = parseFieldPreset(t.Field)
	if err != nil { return nil, err }
	out.Precision, err = parsePrecision(t.Precision)
	if err != nil { return nil, err }
	if err := out.LogLevel.UnmarshalText([]byte(t.LogLevel)); err != nil {
		return nil, g_error.Config("LogLevel must be one of 'debug', "+
			"'info', 'warn', or 'error', but is '%s'.", t.LogLevel)
	}

	return out, nil
}
