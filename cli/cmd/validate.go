package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/config"
	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/log"
	"github.com/justapithecus/aetheric/validator"
)

// ValidateCommand returns the validate command.
// Validate is read-only: it never modifies the database or the spool.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Cross-check the database against spooled payloads",
		Flags: append(ReadOnlyFlags(),
			LogLevelFlag,
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "SQLite database path",
				Value:   config.DefaultDBPath,
				EnvVars: []string{"SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Spool directory to scan for leftover .part files",
				EnvVars: []string{"BINARY_SPOOL_DIR"},
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Binary checksum coverage: full or fast",
				Value: string(validator.ModeFull),
			},
			&cli.StringFlag{
				Name:  "sha",
				Usage: "Checksum verification: verify or skip",
				Value: string(validator.ShaVerify),
			},
			&cli.IntFlag{
				Name:  "sample",
				Usage: "In fast mode, checksum this many binary payloads",
			},
			&cli.Int64Flag{
				Name:    "min",
				Usage:   "Expected minimum total messages (0 disables the check)",
				Value:   config.DefaultMinMessages,
				EnvVars: []string{"MIN_MESSAGES"},
			},
			&cli.StringFlag{
				Name:  "json-out",
				Usage: "Also write the JSON report to this file",
			},
		),
		Action: validateAction,
	}
}

func validateAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	logger := log.NewLogger(log.SessionMeta{}, c.String("log-level"))
	defer func() { _ = logger.Sync() }()

	rep, err := validator.Run(c.Context, validator.Options{
		DBPath:      c.String("db-path"),
		DataDir:     c.String("data-dir"),
		Mode:        validator.Mode(c.String("mode")),
		Sha:         validator.ShaMode(c.String("sha")),
		Sample:      c.Int("sample"),
		ExpectedMin: c.Int64("min"),
		Logger:      logger,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("validator error: %v", err), exitInternalError)
	}

	if path := c.String("json-out"); path != "" {
		if err := writeJSONReport(path, rep); err != nil {
			return cli.Exit(fmt.Sprintf("write report: %v", err), exitInternalError)
		}
	}

	if c.Bool("tui") {
		err = r.RenderTUI("inspect_report", rep)
	} else {
		err = r.Render(rep)
	}
	if err != nil {
		return err
	}

	if !rep.Pass {
		return cli.Exit("", exitValidationFailed)
	}
	return nil
}

func writeJSONReport(path string, rep *validator.Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
