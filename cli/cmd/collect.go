package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/config"
	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/session"
)

// CollectCommand returns the collect command.
// Collect is the only command that talks to the engine.
func CollectCommand() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Connect to the engine and collect one session",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Engine host",
				EnvVars: []string{"AE_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Engine port",
				EnvVars: []string{"AE_PORT"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Authentication token sent in the greeting",
				EnvVars: []string{"AE_JWT"},
			},
			&cli.Int64Flag{
				Name:    "min-messages",
				Usage:   "Completed messages to collect before requesting STATUS",
				EnvVars: []string{"MIN_MESSAGES"},
			},
			&cli.Int64Flag{
				Name:    "read-timeout-ms",
				Usage:   "Per-read timeout in milliseconds",
				EnvVars: []string{"READ_TIMEOUT_MS"},
			},
			&cli.DurationFlag{
				Name:  "dial-timeout",
				Usage: "Connect timeout",
			},
		}, pipelineFlags()...),
		Action: collectAction,
	}
}

func collectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInternalError)
	}
	if err := config.ValidateToken(cfg.Token); err != nil {
		return cli.Exit(fmt.Sprintf("invalid token: %v (set --token or AE_JWT)", err), exitInternalError)
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

	res, err := session.Run(ctx, p.opts)
	if res == nil {
		return cli.Exit(fmt.Sprintf("collect failed: %v", err), startErrorExitCode(err))
	}
	if err := showResult(c, r, res); err != nil {
		return err
	}
	return cli.Exit("", outcomeToExitCode(res.Outcome))
}

// showResult renders a session result unless --quiet is set.
func showResult(c *cli.Context, r *render.Renderer, res *session.Result) error {
	if c.Bool("quiet") {
		return nil
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_session", res)
	}
	return r.Render(res)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
