package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/config"
	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/store"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// ListCommand returns the list command with subcommands.
// List returns thin rows, one per entity.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List entities (sessions)",
		Subcommands: []*cli.Command{
			listSessionsCommand(),
		},
	}
}

func listSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List collector sessions, newest first",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "SQLite database path",
				Value:   config.DefaultDBPath,
				EnvVars: []string{"SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Filter by outcome: completed, remote_closed, transport_error, parse_error, storage_error, canceled",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of sessions to return (0 = no limit)",
			},
		),
		Action: listSessionsAction,
	}
}

func listSessionsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	db, err := store.OpenReadOnly(c.Context, c.String("db-path"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("open database: %v", err), exitStorageFailure)
	}
	defer iox.DiscardClose(db)

	limit := c.Int("limit")
	outcome := c.String("outcome")
	if outcome != "" {
		// Filter before truncating.
		limit = 0
	}
	sessions, err := db.Sessions(c.Context, limit)
	if err != nil {
		return cli.Exit(err.Error(), exitStorageFailure)
	}
	if outcome != "" {
		sessions = filterSessions(sessions, outcome, c.Int("limit"))
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(sessions) > listWarningThreshold && c.Int("limit") == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(sessions))
	}

	if sessions == nil {
		sessions = []store.Session{}
	}
	return r.Render(sessions)
}

func filterSessions(in []store.Session, outcome string, limit int) []store.Session {
	var out []store.Session
	for _, s := range in {
		if s.Outcome != outcome {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
