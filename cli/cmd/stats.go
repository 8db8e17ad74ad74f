package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/config"
	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/lode"
	"github.com/justapithecus/aetheric/store"
)

// archiveReadTimeout bounds archive queries.
const archiveReadTimeout = 30 * time.Second

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts and never writes.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated statistics (store, archive)",
		Subcommands: []*cli.Command{
			statsStoreCommand(),
			statsArchiveCommand(),
		},
	}
}

func statsStoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Show message counts, lengths and recent sessions from the database",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "SQLite database path",
				Value:   config.DefaultDBPath,
				EnvVars: []string{"SQLITE_PATH"},
			},
			&cli.IntFlag{
				Name:  "sessions",
				Usage: "Number of recent sessions to include",
				Value: 10,
			},
		),
		Action: statsStoreAction,
	}
}

func statsStoreAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	db, err := store.OpenReadOnly(c.Context, c.String("db-path"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("open database: %v", err), exitStorageFailure)
	}
	defer iox.DiscardClose(db)

	stats, err := db.Stats(c.Context, c.Int("sessions"))
	if err != nil {
		return cli.Exit(err.Error(), exitStorageFailure)
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_store", stats)
	}
	return r.Render(stats)
}

func statsArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Show the latest archived session summary, or a session's records",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "archive-dataset", Usage: "Lode dataset ID", Value: lode.DefaultDataset},
			&cli.StringFlag{Name: "archive-backend", Usage: "Archive backend: fs or s3", Required: true},
			&cli.StringFlag{Name: "archive-path", Usage: "Archive location (fs: directory, s3: bucket/prefix)", Required: true},
			&cli.StringFlag{Name: "archive-s3-region", Usage: "AWS region for the s3 archive"},
			&cli.StringFlag{Name: "archive-s3-endpoint", Usage: "Custom S3 endpoint"},
			&cli.BoolFlag{Name: "archive-s3-path-style", Usage: "Use path-style S3 addressing"},
			&cli.StringFlag{Name: "session-id", Usage: "Restrict to one session (default: latest)"},
			&cli.StringFlag{
				Name:  "records",
				Usage: "List the session's records of this kind (ascii_message, binary_message, discard, session_summary) instead of the summary",
			},
		),
		Action: statsArchiveAction,
	}
}

func statsArchiveAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, archiveReadTimeout)
	defer cancel()

	ds, err := buildReadDataset(ctx, c.String("archive-dataset"), config.ArchiveConfig{
		Backend:     c.String("archive-backend"),
		Path:        c.String("archive-path"),
		Region:      c.String("archive-s3-region"),
		Endpoint:    c.String("archive-s3-endpoint"),
		S3PathStyle: c.Bool("archive-s3-path-style"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize archive reader: %w", err)
	}

	if kind := c.String("records"); kind != "" {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported with --records", 1)
		}
		if c.String("session-id") == "" {
			return cli.Exit("--records requires --session-id", 1)
		}
		records, err := lode.ReadSessionRecords(ctx, ds, c.String("session-id"), kind)
		if err != nil {
			return fmt.Errorf("failed to read archive records: %w", err)
		}
		return r.Render(records)
	}

	summary, err := lode.QueryLatestSummary(ctx, ds, c.String("session-id"))
	if errors.Is(err, lode.ErrNoSummaryFound) {
		return cli.Exit(err.Error(), 1)
	}
	if err != nil {
		return fmt.Errorf("failed to read archive summary: %w", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_archive", summary)
	}
	return r.Render(summary)
}

// buildReadDataset creates a Lode Dataset for reading from archive settings.
func buildReadDataset(ctx context.Context, dataset string, ac config.ArchiveConfig) (lodelibrary.Dataset, error) {
	return lode.OpenReadDataset(ctx, dataset, archiveLocation(ac))
}
