package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/autoreply/internal/autoreply"
	"github.com/teemow/autoreply/internal/config"
	"github.com/teemow/autoreply/internal/gmail"
	"github.com/teemow/autoreply/internal/google"
	"github.com/teemow/autoreply/internal/instrumentation"
	"github.com/teemow/autoreply/internal/logging"
	"github.com/teemow/autoreply/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		listen      string
		metricsAddr string
		noMetrics   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OAuth callback server and the inbox poller",
		Long: `Start the HTTP server that receives the Google OAuth callback.

After the consent URL printed at startup has been visited, the server
exchanges the authorization code, resolves the mailbox owner and scans the
inbox every 45 to 120 seconds. Tokens are kept in memory only, so every
restart needs a new consent.

Endpoints:
  /auth/callback     OAuth redirect target
  /healthz, /readyz  liveness and readiness probes

Prometheus metrics are served on a separate address (default :9090).
OpenTelemetry is configured through the usual environment variables
(METRICS_EXPORTER, TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", config.DefaultListenAddr, "Address of the OAuth callback server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Address of the Prometheus metrics server")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Do not start the metrics server")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := setupLogger(cfg.Log.Level)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		// last: exporters flush what the servers recorded while stopping
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	auth, err := loadAuthenticator(cfg,
		google.WithAuthMetrics(metrics),
		google.WithAuthLogger(logger))
	if err != nil {
		return err
	}
	if redirect := auth.RedirectURL(); !isCallbackURL(redirect) {
		logger.Warn("redirect URI does not point at the callback endpoint",
			slog.String("redirect_uri", redirect),
			slog.String("expected_path", server.CallbackPath))
	}

	service := autoreply.NewService(autoreply.Options{
		Subject: cfg.Reply.Subject,
		Body:    cfg.Reply.Body,
		Label:   cfg.Reply.Label,
		Metrics: metrics,
		Audit:   auditLogger(logger, instrConfig),
		Logger:  logger,
	})

	serverContext := server.NewServerContext(shutdownCtx)
	oauthServer, err := server.NewOAuthHTTPServer(serverContext, server.Config{
		Authorizer: auth,
		Service:    service,
		NewSession: server.GmailSessionFactory(logger,
			gmail.WithRateLimit(cfg.Gmail.RequestsPerSecond, cfg.Gmail.Burst),
			gmail.WithMetrics(metrics),
			gmail.WithLogger(logger)),
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create callback server: %w", err)
	}

	metricsServer := startMetricsServer(cfg, provider, logger)

	fmt.Printf("Server running at %s\n", localURL(cfg.Server.Listen))
	fmt.Printf("  Callback endpoint: %s\n", server.CallbackPath)
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if metricsServer != nil {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsServer.Addr())
	}
	fmt.Printf("\nAuthorize this app by visiting this url:\n%s\n\n", auth.AuthURL())

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	var runErr error
	select {
	case <-shutdownCtx.Done():
		fmt.Println("Shutdown signal received, stopping poller and HTTP server...")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	// poll loop, then the callback server, then the metrics server
	stopCtx, stopCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer stopCancel()
	if err := oauthServer.Shutdown(stopCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			logger.Error("Error during metrics server shutdown", logging.Err(err))
		}
	}

	if runErr == nil {
		fmt.Println("HTTP server gracefully stopped")
	}
	return runErr
}

func auditLogger(logger *slog.Logger, instrConfig instrumentation.Config) *instrumentation.AuditLogger {
	if !instrConfig.AuditLogging.Enabled {
		return nil
	}
	return instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)
}

// startMetricsServer starts the Prometheus endpoint when metrics are enabled
// and the provider exports to Prometheus. It returns nil otherwise.
func startMetricsServer(cfg *config.Config, provider *instrumentation.Provider, logger *slog.Logger) *server.MetricsServer {
	if !cfg.Server.MetricsEnabled || !provider.Enabled() {
		return nil
	}
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Server.MetricsAddr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		logger.Warn("metrics server disabled", logging.Err(err))
		return nil
	}

	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	return metricsServer
}

// localURL turns a listen address such as ":3000" into a browsable URL.
func localURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// isCallbackURL reports whether a redirect URI targets the callback endpoint.
func isCallbackURL(redirect string) bool {
	u, err := url.Parse(redirect)
	if err != nil {
		return false
	}
	return u.Path == server.CallbackPath
}
