// Package main provides the aetheric CLI entrypoint.
//
// Usage:
//
//	aetheric <command> [subcommand] [options]
//
// Exit codes for collect, replay and validate:
//   - 0: success
//   - 1: transport error (socket failure, timeout, unreadable input)
//   - 2: internal failure (invariant violation, invalid configuration)
//   - 3: storage failure (a completed frame could not be persisted)
//   - 4: validation failed
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/cmd"
	"github.com/justapithecus/aetheric/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "aetheric",
		Usage:          "Aetheric Engine stream collector",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.CollectCommand(),
			cmd.ReplayCommand(),
			cmd.ValidateCommand(),
			cmd.StatsCommand(),
			cmd.ListCommand(),
			cmd.InspectCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(report(os.Stderr, err))
}

// report prints err when it carries a real message and returns the exit code.
func report(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
