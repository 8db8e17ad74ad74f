// Package config loads aetheric.yaml / aetheric.toml collector settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Defaults for collector settings.
const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 9000
	DefaultMinMessages       = 600
	DefaultReadTimeout       = 5 * time.Second
	DefaultDBPath            = "./sqlite-db/ae.db"
	DefaultSpoolDir          = "./data/bin"
	DefaultSafetyMarginBytes = 100 * 1024 * 1024
	MinTokenLength           = 10
)

// ErrTokenTooShort is returned for authentication tokens under MinTokenLength.
var ErrTokenTooShort = fmt.Errorf("token must be at least %d characters", MinTokenLength)

// Config represents an aetheric config file.
// All values are optional and act as defaults for CLI flags.
// CLI flags always override config values.
type Config struct {
	Host              string        `yaml:"host" toml:"host"`
	Port              int           `yaml:"port" toml:"port"`
	Token             string        `yaml:"token" toml:"token"`
	ReadTimeout       Duration      `yaml:"read_timeout" toml:"read_timeout"`
	DialTimeout       Duration      `yaml:"dial_timeout" toml:"dial_timeout"`
	MinMessages       *int64        `yaml:"min_messages" toml:"min_messages"`
	SpoolDir          string        `yaml:"spool_dir" toml:"spool_dir"`
	DBPath            string        `yaml:"db_path" toml:"db_path"`
	SafetyMarginBytes *uint64       `yaml:"safety_margin_bytes" toml:"safety_margin_bytes"`
	MaxASCIIBytes     int           `yaml:"max_ascii_bytes" toml:"max_ascii_bytes"`
	Sidecars          bool          `yaml:"sidecars" toml:"sidecars"`
	LogLevel          string        `yaml:"log_level" toml:"log_level"`
	Archive           ArchiveConfig `yaml:"archive" toml:"archive"`
	Adapter           AdapterConfig `yaml:"adapter" toml:"adapter"`
}

// ArchiveConfig holds Lode archive settings.
type ArchiveConfig struct {
	Backend        string `yaml:"backend" toml:"backend"` // fs, s3, or empty for none
	Path           string `yaml:"path" toml:"path"`
	Dataset        string `yaml:"dataset" toml:"dataset"`
	Region         string `yaml:"region" toml:"region"`
	Endpoint       string `yaml:"endpoint" toml:"endpoint"`
	S3PathStyle    bool   `yaml:"s3_path_style" toml:"s3_path_style"`
	FlushCount     int    `yaml:"flush_count" toml:"flush_count"`
	MirrorPayloads bool   `yaml:"mirror_payloads" toml:"mirror_payloads"`
}

// AdapterConfig holds notification adapter settings.
type AdapterConfig struct {
	Type    string            `yaml:"type" toml:"type"`           // webhook, redis, or empty
	Mode    string            `yaml:"mode,omitempty" toml:"mode"` // redis: pubsub or stream
	URL     string            `yaml:"url" toml:"url"`
	Channel string            `yaml:"channel,omitempty" toml:"channel"`
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers"`
	Secret  string            `yaml:"secret,omitempty" toml:"secret"`
	Timeout Duration          `yaml:"timeout,omitempty" toml:"timeout"`
	Retries *int              `yaml:"retries,omitempty" toml:"retries"`
	KeyTTL  Duration          `yaml:"key_ttl,omitempty" toml:"key_ttl"`
}

// Default returns a Config populated with collector defaults.
func Default() *Config {
	minMessages := int64(DefaultMinMessages)
	margin := uint64(DefaultSafetyMarginBytes)
	return &Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		ReadTimeout:       Duration{DefaultReadTimeout},
		MinMessages:       &minMessages,
		SpoolDir:          DefaultSpoolDir,
		DBPath:            DefaultDBPath,
		SafetyMarginBytes: &margin,
	}
}

// Merge fills unset fields of c from defaults.
func (c *Config) Merge(defaults *Config) {
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.ReadTimeout.Duration == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.DialTimeout.Duration == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.MinMessages == nil {
		c.MinMessages = defaults.MinMessages
	}
	if c.SpoolDir == "" {
		c.SpoolDir = defaults.SpoolDir
	}
	if c.DBPath == "" {
		c.DBPath = defaults.DBPath
	}
	if c.SafetyMarginBytes == nil {
		c.SafetyMarginBytes = defaults.SafetyMarginBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks collector settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MinMessages != nil && *c.MinMessages < 0 {
		errs = append(errs, errors.New("min_messages must be >= 0"))
	}
	if c.MaxASCIIBytes < 0 {
		errs = append(errs, errors.New("max_ascii_bytes must be >= 0"))
	}
	if c.Token != "" {
		if err := ValidateToken(c.Token); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("unknown archive backend %q", c.Archive.Backend))
	}
	if c.Archive.Backend != "" && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive.path is required when archive.backend is set"))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown adapter type %q", c.Adapter.Type))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, errors.New("adapter.url is required when adapter.type is set"))
	}
	if c.Adapter.Mode != "" && c.Adapter.Type != "redis" {
		errs = append(errs, errors.New("adapter.mode applies only to the redis adapter"))
	}
	return errors.Join(errs...)
}

// ValidateToken checks an authentication token.
func ValidateToken(token string) error {
	if len(strings.TrimSpace(token)) < MinTokenLength {
		return ErrTokenTooShort
	}
	return nil
}

// Duration wraps time.Duration for string parsing (e.g. "10s", "5m")
// in both YAML and TOML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses a duration string. TOML decoding uses it.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
