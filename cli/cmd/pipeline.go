package cmd

import (
	"context"
	"fmt"

	"github.com/justapithecus/aetheric/adapter"
	"github.com/justapithecus/aetheric/adapter/redis"
	"github.com/justapithecus/aetheric/adapter/webhook"
	"github.com/justapithecus/aetheric/admission"
	"github.com/justapithecus/aetheric/cli/config"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/lode"
	"github.com/justapithecus/aetheric/log"
	"github.com/justapithecus/aetheric/session"
	"github.com/justapithecus/aetheric/store"
)

// pipeline holds the collaborators a session needs, opened from config.
type pipeline struct {
	opts    session.Options
	store   *store.Store
	adapter adapter.Adapter
}

// openPipeline opens the store and builds admission, archive and adapter
// from cfg. The caller must Close the pipeline.
func openPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline, error) {
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	checker := admission.NewDiskChecker(cfg.SpoolDir, logger)
	if cfg.SafetyMarginBytes != nil {
		checker.Margin = *cfg.SafetyMarginBytes
	}

	p := &pipeline{store: db}
	p.opts = session.Options{
		Addr:              cfg.Addr(),
		Token:             cfg.Token,
		DialTimeout:       cfg.DialTimeout.Duration,
		ReadTimeout:       cfg.ReadTimeout.Duration,
		SpoolDir:          cfg.SpoolDir,
		Store:             db,
		Admitter:          checker,
		MaxASCIILength:    cfg.MaxASCIIBytes,
		Sidecars:          cfg.Sidecars,
		ArchiveDataset:    cfg.Archive.Dataset,
		ArchiveFlushCount: cfg.Archive.FlushCount,
		ArchiveBackend:    cfg.Archive.Backend,
		ArchivePath:       cfg.Archive.Path,
		MirrorPayloads:    cfg.Archive.MirrorPayloads,
		Logger:            logger,
		LogLevel:          cfg.LogLevel,
	}
	if cfg.MinMessages != nil {
		p.opts.MinMessages = *cfg.MinMessages
	}

	opener, err := archiveOpener(ctx, cfg.Archive)
	if err != nil {
		iox.DiscardClose(db)
		return nil, err
	}
	p.opts.OpenArchive = opener

	a, err := buildAdapter(cfg.Adapter)
	if err != nil {
		iox.DiscardClose(db)
		return nil, err
	}
	if a != nil {
		p.adapter = a
		p.opts.Adapter = a
	}
	return p, nil
}

// Close releases the adapter and the store.
func (p *pipeline) Close() error {
	if p.adapter != nil {
		iox.DiscardClose(p.adapter)
	}
	return p.store.Close()
}

// archiveOpener returns nil when the archive is disabled.
func archiveOpener(ctx context.Context, ac config.ArchiveConfig) (session.ArchiveOpener, error) {
	if ac.Backend == "" {
		return nil, nil
	}
	loc := archiveLocation(ac)
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return func(cfg lode.Config) (lode.Client, error) {
		return lode.OpenClient(ctx, cfg, loc)
	}, nil
}

func archiveLocation(ac config.ArchiveConfig) lode.Location {
	return lode.Location{
		Backend:      ac.Backend,
		Path:         ac.Path,
		Region:       ac.Region,
		Endpoint:     ac.Endpoint,
		UsePathStyle: ac.S3PathStyle,
	}
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	retries := webhook.DefaultRetries
	if ac.Retries != nil {
		retries = *ac.Retries
	}
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		cfg := webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Secret:  ac.Secret,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		}
		return webhook.New(cfg)
	case "redis":
		cfg := redis.Config{
			URL:     ac.URL,
			Mode:    ac.Mode,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
			KeyTTL:  ac.KeyTTL.Duration,
		}
		return redis.New(cfg)
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", ac.Type)
	}
}

// newLogger builds the CLI logger. Sessions add their own context fields.
func newLogger(cfg *config.Config) *log.Logger {
	return log.NewLogger(log.SessionMeta{}, cfg.LogLevel)
}
