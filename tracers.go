package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/phil-mansfield/tracers/lib"
	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/mpi"
)

func main() {
	// Parse arguments.
	mode, configFile, cmdArgs, err := lib.ParseCommandLine(os.Args[1:])
	g_error.Fatal(err)
	if mode == "help" {
		lib.PrintHelp(os.Stdout)
		return
	}

	rawArgs, err := lib.ParseConfigFile(configFile)
	g_error.Fatal(err)
	rawArgs.Overwrite(cmdArgs)

	// Do processing that doesn't need external validation.
	args, err := rawArgs.Process()
	g_error.Fatal(err)
	args.RunMode = runMode

	log := lib.NewLogger(os.Stderr, args.LogFormat, args.LogLevel)
	slog.SetDefault(log)

	// Run the chosen mode.
	switch mode {
	case "check":
		Check(args)
	case "init":
		checkArgs(args, lib.CrashOnError)
		g_error.Fatal(lib.SetThreads(args.Threads))
		g_error.Fatal(runWorkers(args, func(c mpi.Comm) error {
			return lib.Init(c, args, log)
		}))
	case "run":
		checkArgs(args, lib.CrashOnError)
		g_error.Fatal(lib.SetThreads(args.Threads))
		g_error.Fatal(runWorkers(args, func(c mpi.Comm) error {
			return lib.Run(c, args, log)
		}))
	default:
		g_error.External(
			"You attempted to run tracers in the mode '%s', but the only "+
				"valid modes are 'help', 'check', 'init', and 'run'.", mode,
		)
	}
}

// Check runs the "check" mode, which tests for errors in the configuration
// arguments.
func Check(args *lib.Args) {
	if checkArgs(args, lib.WarnOnError) {
		fmt.Println("No errors detected.")
	} else {
		os.Exit(1)
	}
}

// checkArgs validates args. With CrashOnError it exits after reporting every
// problem; with WarnOnError it logs them and returns false.
func checkArgs(args *lib.Args, strictness lib.CheckStrictness) bool {
	errs := lib.Check(args.RunMode, args)
	if len(errs) == 0 { return true }

	msg := fmt.Sprintf("Found %d problem(s) with the configuration:", len(errs))
	for _, err := range errs {
		msg += "\n  " + err.Error()
	}
	if strictness == lib.CrashOnError {
		g_error.External("%s", msg)
	}
	slog.Warn(msg)
	return false
}
