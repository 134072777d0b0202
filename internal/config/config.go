// Package config loads the optional autoreply settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/teemow/autoreply/internal/logging"
)

// Defaults for every setting.
const (
	DefaultListenAddr      = ":3000"
	DefaultMetricsAddr     = ":9090"
	DefaultCredentialsFile = "credentials.json"
	DefaultLabel           = "AutoReplied"
	DefaultSubject         = "Auto Reply"
	DefaultBody            = "Thank you for your email. This is an automated reply."
	DefaultRequestsPerSec  = 5.0
	DefaultBurst           = 5
	DefaultLogLevel        = "info"
)

// Config represents the autoreply configuration.
type Config struct {
	CredentialsFile string       `toml:"credentials_file"`
	Server          ServerConfig `toml:"server"`
	Reply           ReplyConfig  `toml:"reply"`
	Gmail           GmailConfig  `toml:"gmail"`
	Log             LogConfig    `toml:"log"`
}

// ServerConfig holds the callback and metrics listeners.
type ServerConfig struct {
	Listen         string `toml:"listen"`          // callback server address (default: :3000)
	MetricsAddr    string `toml:"metrics_addr"`    // metrics server address (default: :9090)
	MetricsEnabled bool   `toml:"metrics_enabled"` // serve /metrics on MetricsAddr
}

// ReplyConfig holds the canned reply and the marker label.
type ReplyConfig struct {
	Subject string `toml:"subject"`
	Body    string `toml:"body"`
	Label   string `toml:"label"`
}

// GmailConfig holds client-side throttling for Gmail API calls.
type GmailConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no settings file is given.
func Default() *Config {
	return &Config{
		CredentialsFile: DefaultCredentialsFile,
		Server: ServerConfig{
			Listen:         DefaultListenAddr,
			MetricsAddr:    DefaultMetricsAddr,
			MetricsEnabled: true,
		},
		Reply: ReplyConfig{
			Subject: DefaultSubject,
			Body:    DefaultBody,
			Label:   DefaultLabel,
		},
		Gmail: GmailConfig{
			RequestsPerSecond: DefaultRequestsPerSec,
			Burst:             DefaultBurst,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads the settings file at path over the defaults.
// An empty path returns the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	path = expandPath(path)
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	cfg.CredentialsFile = expandPath(cfg.CredentialsFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("credentials_file must not be empty"))
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	if c.Server.MetricsEnabled && c.Server.MetricsAddr == "" {
		errs = append(errs, errors.New("server.metrics_addr must be set when metrics are enabled"))
	}
	if strings.TrimSpace(c.Reply.Label) == "" {
		errs = append(errs, errors.New("reply.label must not be empty"))
	}
	if strings.TrimSpace(c.Reply.Subject) == "" {
		errs = append(errs, errors.New("reply.subject must not be empty"))
	}
	if c.Gmail.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("gmail.requests_per_second must be positive, got %v", c.Gmail.RequestsPerSecond))
	}
	if c.Gmail.Burst < 1 {
		errs = append(errs, fmt.Errorf("gmail.burst must be at least 1, got %d", c.Gmail.Burst))
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
