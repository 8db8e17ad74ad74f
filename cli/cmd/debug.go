package cmd

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/render"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/proto"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are offline diagnostic tools; none of them touch the
// database or connect to the engine.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (encode frames, decode headers)",
		Subcommands: []*cli.Command{
			debugEncodeCommand(),
			debugHeaderCommand(),
		},
	}
}

func debugEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Write a synthetic stream for replay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Output file (- for stdout)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "ascii",
				Usage: "ASCII payload to frame (repeatable, written first)",
			},
			&cli.Uint64SliceFlag{
				Name:  "binary",
				Usage: "Size of a random binary payload to frame (repeatable)",
			},
			&cli.StringFlag{
				Name:  "noise",
				Usage: "Hex bytes written before the frames to exercise resync",
			},
		},
		Action: debugEncodeAction,
	}
}

func debugEncodeAction(c *cli.Context) error {
	noise, err := hex.DecodeString(c.String("noise"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid --noise: %v", err), 1)
	}

	var out io.Writer = os.Stdout
	if path := c.String("out"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer iox.DiscardClose(f)
		out = f
	}

	w := bufio.NewWriter(out)
	if _, err := w.Write(noise); err != nil {
		return err
	}
	enc := proto.NewEncoder(w)
	for _, text := range c.StringSlice("ascii") {
		if err := enc.WriteASCII(text); err != nil {
			return err
		}
	}
	for _, n := range c.Uint64Slice("binary") {
		if err := enc.WriteBinaryFrom(io.LimitReader(rand.Reader, int64(n)), n); err != nil {
			return err
		}
	}
	return w.Flush()
}

// HeaderResponse describes a decoded binary frame header.
type HeaderResponse struct {
	Hex           string `json:"hex"`
	Marker        bool   `json:"marker"`
	DeclaredBytes uint64 `json:"declared_bytes"`
}

func debugHeaderCommand() *cli.Command {
	return &cli.Command{
		Name:      "header",
		Usage:     "Decode a 6-byte binary frame header given as hex",
		ArgsUsage: "<hex>",
		Flags:     ReadOnlyFlags(),
		Action:    debugHeaderAction,
	}
}

func debugHeaderAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("header hex required", 1)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug header", 1)
	}

	raw := strings.ReplaceAll(c.Args().First(), " ", "")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid hex: %v", err), 1)
	}
	if len(b) != proto.HeaderSize {
		return cli.Exit(fmt.Sprintf("header must be %d bytes, got %d", proto.HeaderSize, len(b)), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(HeaderResponse{
		Hex:           hex.EncodeToString(b),
		Marker:        b[0] == proto.BinaryHeader,
		DeclaredBytes: proto.DecodeLength(b[1:]),
	})
}
