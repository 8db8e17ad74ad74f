// Package cmd provides CLI commands for the aetheric binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
	}

	// ConfigFlag points at a YAML or TOML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (.yaml, .yml or .toml)",
		EnvVars: []string{"AE_CONFIG"},
	}

	// LogLevelFlag sets the minimum log level.
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level: debug, info, warn, error",
		EnvVars: []string{"AE_LOG_LEVEL"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// pipelineFlags are shared by collect and replay. Each one overrides the
// matching config file key when set.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		LogLevelFlag,
		&cli.StringFlag{
			Name:    "db-path",
			Usage:   "SQLite database path",
			EnvVars: []string{"SQLITE_PATH"},
		},
		&cli.StringFlag{
			Name:    "spool-dir",
			Usage:   "Directory for binary payload files",
			EnvVars: []string{"BINARY_SPOOL_DIR"},
		},
		&cli.Uint64Flag{
			Name:  "safety-margin",
			Usage: "Free bytes to keep on the spool volume when admitting binary frames",
		},
		&cli.IntFlag{
			Name:  "max-ascii-bytes",
			Usage: "Discard ASCII frames longer than this (0 = unbounded)",
		},
		&cli.BoolFlag{
			Name:  "sidecars",
			Usage: "Write a manifest sidecar next to each binary payload",
		},
		&cli.StringFlag{
			Name:  "archive-backend",
			Usage: "Archive backend: fs or s3 (empty disables the archive)",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Archive location (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "archive-s3-region",
			Usage: "AWS region for the s3 archive (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "archive-s3-endpoint",
			Usage: "Custom S3 endpoint (MinIO, LocalStack)",
		},
		&cli.BoolFlag{
			Name:  "archive-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
		&cli.BoolFlag{
			Name:  "archive-payloads",
			Usage: "Copy binary payloads into the archive",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or Redis URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis channel, or stream key in stream mode",
		},
		&cli.StringFlag{
			Name:  "adapter-mode",
			Usage: "Redis delivery mode (pubsub, stream)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress result output",
		},
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}
