package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/aetheric/cli/config"
)

// resolveConfig loads --config (if any), applies flags that were set
// explicitly or through their environment variable, then fills defaults.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyFlags(c, cfg)
	cfg.Merge(config.Default())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	setString("host", &cfg.Host)
	setString("token", &cfg.Token)
	setString("db-path", &cfg.DBPath)
	setString("spool-dir", &cfg.SpoolDir)
	setString("log-level", &cfg.LogLevel)
	setBool("sidecars", &cfg.Sidecars)

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("min-messages") {
		n := c.Int64("min-messages")
		cfg.MinMessages = &n
	}
	if c.IsSet("read-timeout-ms") {
		cfg.ReadTimeout = config.Duration{Duration: time.Duration(c.Int64("read-timeout-ms")) * time.Millisecond}
	}
	if c.IsSet("dial-timeout") {
		cfg.DialTimeout = config.Duration{Duration: c.Duration("dial-timeout")}
	}
	if c.IsSet("safety-margin") {
		n := c.Uint64("safety-margin")
		cfg.SafetyMarginBytes = &n
	}
	if c.IsSet("max-ascii-bytes") {
		cfg.MaxASCIIBytes = c.Int("max-ascii-bytes")
	}

	setString("archive-backend", &cfg.Archive.Backend)
	setString("archive-path", &cfg.Archive.Path)
	setString("archive-s3-region", &cfg.Archive.Region)
	setString("archive-s3-endpoint", &cfg.Archive.Endpoint)
	setBool("archive-s3-path-style", &cfg.Archive.S3PathStyle)
	setBool("archive-payloads", &cfg.Archive.MirrorPayloads)

	setString("adapter", &cfg.Adapter.Type)
	setString("adapter-url", &cfg.Adapter.URL)
	setString("adapter-channel", &cfg.Adapter.Channel)
	setString("adapter-mode", &cfg.Adapter.Mode)
}
