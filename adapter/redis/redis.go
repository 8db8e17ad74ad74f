// Package redis delivers session completion events through Redis.
//
// Two modes are supported. In pubsub mode each event is PUBLISHed as JSON;
// subscribers that are offline miss it, so KeyTTL can additionally keep the
// last event per session under an expiring key. In stream mode each event is
// appended with XADD to a capped stream, which consumers read at their own
// pace.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/aetheric/adapter"
)

// Delivery modes.
const (
	ModePubSub = "pubsub"
	ModeStream = "stream"
)

// Defaults applied by New.
const (
	DefaultChannel      = "aetheric:session_completed"
	DefaultKeyPrefix    = "aetheric:session:"
	DefaultStreamMaxLen = 10000
	DefaultTimeout      = 5 * time.Second
	DefaultRetries      = 3
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL string
	// Mode is ModePubSub (default) or ModeStream.
	Mode string
	// Channel is the pub/sub channel, or the stream key in stream mode.
	Channel string
	// Timeout bounds each delivery attempt.
	Timeout time.Duration
	// Retries after the first attempt.
	Retries int
	// KeyTTL, when positive in pubsub mode, also stores the event under
	// KeyPrefix+session_id with this expiry.
	KeyTTL    time.Duration
	KeyPrefix string
	// StreamMaxLen caps the stream length (approximate trimming).
	StreamMaxLen int64
}

// Adapter publishes session completion events to Redis.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates cfg, applies defaults and returns an Adapter. No connection
// is made until the first Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = ModePubSub
	case ModePubSub, ModeStream:
	default:
		return nil, fmt.Errorf("redis adapter: unknown mode %q (must be pubsub or stream)", cfg.Mode)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = DefaultStreamMaxLen
	}

	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish delivers the event, retrying with adapter.Backoff on failure.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	var lastErr error
	for i := range attempts {
		if err := adapter.Wait(ctx, adapter.Backoff(i)); err != nil {
			if lastErr != nil {
				return fmt.Errorf("redis: canceled after %d attempts: %w", i, lastErr)
			}
			return fmt.Errorf("redis: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		lastErr = a.deliver(attemptCtx, event, body)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

func (a *Adapter) deliver(ctx context.Context, event *adapter.SessionCompletedEvent, body []byte) error {
	if a.config.Mode == ModeStream {
		return a.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: a.config.Channel,
			MaxLen: a.config.StreamMaxLen,
			Approx: true,
			Values: map[string]any{
				"session_id": event.SessionID,
				"outcome":    event.Outcome,
				"event":      body,
			},
		}).Err()
	}

	if a.config.KeyTTL <= 0 || event.SessionID == "" {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}
	// SET and PUBLISH share a MULTI so a subscriber never sees an event
	// whose key is missing.
	_, err := a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, a.config.KeyPrefix+event.SessionID, body, a.config.KeyTTL)
		pipe.Publish(ctx, a.config.Channel, body)
		return nil
	})
	return err
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
