package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alaraproject/alara/chain"
	"github.com/alaraproject/alara/datalib"
	"github.com/alaraproject/alara/internal/alog"
	"github.com/alaraproject/alara/internal/problem"
	"github.com/alaraproject/alara/internal/report"
	"github.com/alaraproject/alara/result"
	"github.com/alaraproject/alara/schedule"
	"github.com/alaraproject/alara/solve"
	"github.com/urfave/cli/v2"
)

// Exit codes: 0 on success, and a distinct non-zero code per failure kind
// so a caller can tell a bad input file from a missing library from a
// numerical blow-up without parsing stderr.
const (
	exitOK              = 0
	exitBadInput        = 1
	exitLibraryNotFound = 2
	exitNumerical       = 3
	exitDumpIO          = 4
)

// exitCodeFor maps a returned error to one of the exit codes above, the
// top-level error boundary, in place of scattered exit(n)
// calls.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var badInput *badInputError
	var libErr *datalib.LibraryError
	var numErr *solve.NumericalError
	var negConc *chain.ErrNegativeConcentration
	var dumpErr *result.DumpError
	var schedErr *schedule.ScheduleError
	switch {
	case errors.As(err, &libErr):
		return exitLibraryNotFound
	case errors.As(err, &numErr):
		return exitNumerical
	case errors.As(err, &negConc):
		return exitNumerical
	case errors.As(err, &dumpErr):
		return exitDumpIO
	case errors.As(err, &schedErr):
		return exitBadInput
	case errors.As(err, &badInput):
		return exitBadInput
	}
	return exitBadInput
}

// run is the CLI's single top-level action: it performs the full
// solve-or-reuse-dump, optional trace dump, and postprocess streaming.
// Any error it returns carries enough type information for exitCodeFor to
// pick the right exit code back in main.
func run(c *cli.Context) error {
	verbosity := c.Int("v")
	reuseDump := c.Bool("r")
	tracePath := c.String("t")

	if c.NArg() < 1 {
		return &badInputError{Msg: "missing input file", Inner: fmt.Errorf("usage: alara <input-file>")}
	}
	inputPath := c.Args().Get(0)

	cfg, err := loadConfig(inputPath)
	if err != nil {
		return err
	}

	dumpPath := inputPath + ".dump"

	if reuseDump {
		return postprocessOnly(dumpPath)
	}

	lib, err := resolveLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	ctx := problem.Default(cfg.NumGroups)
	ctx.Log = alog.New(verbosity)
	if cfg.Reverse {
		ctx.Direction = problem.ModeReverse
	}

	registry, err := buildSchedules(cfg)
	if err != nil {
		return err
	}

	tasks, err := buildTasks(cfg, registry, ctx, lib)
	if err != nil {
		return err
	}

	nCoolingTimes := len(cfg.CoolingTimes)
	p := solve.NewProblem(lib, ctx, nCoolingTimes)

	var tracer *report.Tracer
	if tracePath != "" {
		tracer = report.NewTracer()
	}

	for _, task := range tasks {
		var solveErr error
		if tracer != nil {
			solveErr = p.SolveTraced(task, tracer)
		} else {
			solveErr = p.Solve(task)
		}
		if solveErr != nil {
			return solveErr
		}
	}

	if tracer != nil {
		if err := writeTrace(tracePath, tracer); err != nil {
			return err
		}
	}

	if err := writeDump(dumpPath, p); err != nil {
		return err
	}

	return postprocessOnly(dumpPath)
}

// writeDump persists the accumulator's per-root output vectors as the
// durable handoff the result package describes.
func writeDump(path string, p *solve.Problem) error {
	acc := p.Accumulator()
	dump, err := result.CreateDump(path, acc.NResults())
	if err != nil {
		return err
	}
	for _, root := range acc.Roots() {
		if err := dump.WriteRoot(acc.Outputs(root)); err != nil {
			dump.Close()
			return &result.DumpError{Path: path, Msg: "writing root block", Inner: err}
		}
	}
	return dump.Close()
}

func writeTrace(path string, tracer *report.Tracer) error {
	f, err := os.Create(path)
	if err != nil {
		return &result.DumpError{Path: path, Msg: "creating trace file", Inner: err}
	}
	defer f.Close()
	if err := tracer.WriteTo(f); err != nil {
		return &result.DumpError{Path: path, Msg: "writing trace file", Inner: err}
	}
	return nil
}

// postprocessOnly implements `-r`'s reuse-dump mode: it opens and streams
// the existing dump, handing every root block to the out-of-scope
// downstream collaborator (here, one printed line per output-nuclide
// record of each root block) without
// re-running the solve.
func postprocessOnly(dumpPath string) error {
	reader, err := result.OpenReader(dumpPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		records, err := reader.ReadRootBlock()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return &result.DumpError{Path: dumpPath, Msg: "streaming root block", Inner: err}
		}
		for _, rec := range records {
			fmt.Printf("%s -> %v\n", rec.KZA, rec.N)
		}
	}
	return nil
}
