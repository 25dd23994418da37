package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

/******************************************************************************
This file is the entry point for the alara command line tool. Argument
parsing and the app definition live here via "github.com/urfave/cli/v2"
(docs: https://github.com/urfave/cli/blob/master/docs/v2/manual.md); the
actual solve is wired up in run.go so this file stays a thin template of
everything available to the user.
******************************************************************************/

const version = "0.1.0"

func init() {
	// The library's default version flag is "--version, -v"; "-v" is
	// already this app's verbosity flag, so the version flag is rebound
	// to "-V".
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "V",
		Aliases: []string{"version"},
		Usage:   "print the version and exit",
	}
}

func main() {
	os.Exit(main2(os.Args))
}

// main2 is separated from main so it can be exercised without os.Exit.
// It is the single top-level error boundary: every error the
// app returns is mapped to a stable, distinct exit code here rather than
// through exit(n) calls scattered across the solve.
func main2(args []string) int {
	app := application()
	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, "alara:", err)
		return exitCodeFor(err)
	}
	return exitOK
}

// application defines the app's global flags and its single default
// action (alara has no subcommands: it is a single-purpose solver).
func application() *cli.App {
	return &cli.App{
		Name:    "alara",
		Usage:   "Computes time-dependent nuclide inventory under neutron flux and irradiation schedules.",
		Version: version,

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "v",
				Value: 0,
				Usage: "Verbosity threshold for diagnostic output.",
			},
			&cli.BoolFlag{
				Name:  "r",
				Value: false,
				Usage: "Reuse an existing dump file, skipping the solve phase.",
			},
			&cli.StringFlag{
				Name:  "t",
				Value: "",
				Usage: "Write a chain-tree trace to PATH.",
			},
		},

		Action: run,
	}
}
