package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/config"
	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/session"
	"github.com/justapithecus/aetheric/store"
	"github.com/justapithecus/aetheric/validator"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single entity (session, report)",
		Subcommands: []*cli.Command{
			inspectSessionCommand(),
			inspectReportCommand(),
		},
	}
}

func inspectSessionCommand() *cli.Command {
	return &cli.Command{
		Name:      "session",
		Usage:     "Inspect a stored session by ID",
		ArgsUsage: "<session-id>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "SQLite database path",
				Value:   config.DefaultDBPath,
				EnvVars: []string{"SQLITE_PATH"},
			},
		),
		Action: inspectSessionAction,
	}
}

func inspectSessionAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session-id required", 1)
	}
	sessionID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	db, err := store.OpenReadOnly(c.Context, c.String("db-path"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("open database: %v", err), exitStorageFailure)
	}
	defer iox.DiscardClose(db)

	sessions, err := db.Sessions(c.Context, 0)
	if err != nil {
		return cli.Exit(err.Error(), exitStorageFailure)
	}
	for _, s := range sessions {
		if s.ID != sessionID {
			continue
		}
		res := resultFromRow(s)
		if c.Bool("tui") {
			return r.RenderTUI("inspect_session", res)
		}
		return r.Render(res)
	}
	return cli.Exit(fmt.Sprintf("session %s not found", sessionID), 1)
}

// resultFromRow rebuilds the session summary recorded in the sessions table.
// Per-session metrics are not stored there and stay zero.
func resultFromRow(s store.Session) *session.Result {
	res := &session.Result{
		SessionID:    s.ID,
		Remote:       s.Remote,
		Outcome:      session.Outcome(s.Outcome),
		ASCII:        s.ASCII,
		Binary:       s.Binary,
		Discarded:    s.Discarded,
		BytesSpooled: s.BytesSpooled,
		StartedAt:    s.StartedAt,
	}
	if s.EndedAt != nil {
		res.Duration = s.EndedAt.Sub(s.StartedAt)
	}
	return res
}

func inspectReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Inspect a saved validation report (validate --json-out)",
		ArgsUsage: "<report.json>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectReportAction,
	}
}

func inspectReportAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("report path required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("read report: %v", err), 1)
	}
	var rep validator.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return cli.Exit(fmt.Sprintf("decode report: %v", err), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_report", &rep)
	}
	return r.Render(&rep)
}
