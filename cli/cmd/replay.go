package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/session"
)

// ReplayCommand returns the replay command.
// Replay runs a captured raw stream through the collector pipeline offline.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Ingest a captured stream file (- for stdin)",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Path to the captured stream",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "read-size",
				Usage: "Bytes per read (exercises chunk boundaries)",
			},
		}, pipelineFlags()...),
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInternalError)
	}

	var in io.Reader = os.Stdin
	if path := c.String("input"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("open input: %v", err), exitTransportError)
		}
		defer iox.DiscardClose(f)
		in = f
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	p, err := openPipeline(ctx, cfg, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitStorageFailure)
	}
	defer func() { _ = p.Close() }()

	opts := p.opts
	opts.Remote = "replay:" + c.String("input")
	opts.ReadSize = c.Int("read-size")

	res, err := session.Ingest(ctx, in, opts)
	if res == nil {
		return cli.Exit(fmt.Sprintf("replay failed: %v", err), startErrorExitCode(err))
	}
	if err := showResult(c, r, res); err != nil {
		return err
	}
	return cli.Exit("", outcomeToExitCode(res.Outcome))
}
