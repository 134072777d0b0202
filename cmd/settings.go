package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/autoreply/internal/config"
	"github.com/teemow/autoreply/internal/google"
	"github.com/teemow/autoreply/internal/logging"
)

// loadSettings reads the settings file and applies the flags the user set
// explicitly on top of it.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("credentials") {
		cfg.CredentialsFile = credentialsPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if f := flags.Lookup("listen"); f != nil && f.Changed {
		cfg.Server.Listen = f.Value.String()
	}
	if f := flags.Lookup("metrics-addr"); f != nil && f.Changed {
		cfg.Server.MetricsAddr = f.Value.String()
	}
	if f := flags.Lookup("no-metrics"); f != nil && f.Changed {
		cfg.Server.MetricsEnabled = f.Value.String() != "true"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// setupLogger installs a text handler on stderr as the default logger.
func setupLogger(level string) *slog.Logger {
	lvl, ok := logging.ParseLevel(level)
	if !ok {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func loadAuthenticator(cfg *config.Config, opts ...google.AuthOption) (*google.Authenticator, error) {
	creds, err := google.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return google.NewAuthenticator(creds, opts...), nil
}
