package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/autoreply/internal/autoreply"
	"github.com/teemow/autoreply/internal/gmail"
	"github.com/teemow/autoreply/internal/google"
	"github.com/teemow/autoreply/internal/instrumentation"
	"github.com/teemow/autoreply/internal/logging"
	"github.com/teemow/autoreply/internal/poller"
)

// CallbackPath is where Google redirects after consent.
const CallbackPath = "/auth/callback"

// Response bodies of the callback endpoint.
const (
	msgAuthSucceeded = "Authentication successful. Email application is running."
	msgAuthFailed    = "Authentication failed."
)

// Authorizer validates the callback and exchanges the authorization code.
// *google.Authenticator implements it.
type Authorizer interface {
	CheckState(state string) error
	Exchange(ctx context.Context, code string) (*google.Grant, error)
}

// SessionFactory builds the mailbox session for a fresh grant.
type SessionFactory func(ctx context.Context, grant *google.Grant) (*autoreply.Session, error)

// GmailSessionFactory returns a SessionFactory that creates a Gmail client on
// the grant's authorized HTTP client and resolves the owner address. A failed
// profile lookup is not fatal: the session then replies as "me" and detects
// earlier replies by the SENT label only.
func GmailSessionFactory(logger *slog.Logger, opts ...gmail.Option) SessionFactory {
	return func(ctx context.Context, grant *google.Grant) (*autoreply.Session, error) {
		client, err := gmail.NewClient(ctx, grant.HTTPClient(), opts)
		if err != nil {
			return nil, err
		}

		owner, err := autoreply.ResolveOwner(ctx, client)
		if err != nil {
			logger.Warn("could not resolve mailbox owner, falling back to SENT label detection", logging.Err(err))
			owner = ""
		}
		return &autoreply.Session{API: client, Owner: owner, AuthorizedAt: grant.GrantedAt()}, nil
	}
}

// Config configures an OAuthHTTPServer.
type Config struct {
	Authorizer Authorizer
	Service    *autoreply.Service
	NewSession SessionFactory

	// LoopOptions are passed to every poll loop, after the logger option.
	LoopOptions []poller.Option

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// OAuthHTTPServer serves the OAuth callback and health probes. A successful
// callback starts the poll loop for the authorized mailbox.
type OAuthHTTPServer struct {
	serverContext *ServerContext
	auth          Authorizer
	service       *autoreply.Service
	newSession    SessionFactory
	loopOpts      []poller.Option
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
	health        *HealthChecker
	httpServer    *http.Server
}

// NewOAuthHTTPServer creates the callback server.
func NewOAuthHTTPServer(sc *ServerContext, cfg Config) (*OAuthHTTPServer, error) {
	if sc == nil {
		return nil, errors.New("server context is required")
	}
	if cfg.Authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	if cfg.Service == nil {
		return nil, errors.New("autoreply service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewSession == nil {
		cfg.NewSession = GmailSessionFactory(cfg.Logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}

	return &OAuthHTTPServer{
		serverContext: sc,
		auth:          cfg.Authorizer,
		service:       cfg.Service,
		newSession:    cfg.NewSession,
		loopOpts:      cfg.LoopOptions,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		health:        NewHealthChecker(sc),
	}, nil
}

// Handler returns the routed and instrumented handler.
func (s *OAuthHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+CallbackPath, instrumentHTTP(s.metrics, CallbackPath, http.HandlerFunc(s.handleCallback)))
	s.health.RegisterHealthEndpoints(mux)
	return securityHeaders(mux)
}

// Start serves on addr until Shutdown.
func (s *OAuthHTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// the callback blocks on the token exchange and the profile lookup
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the poll loop and then gracefully shuts down the HTTP server.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.serverContext.Sessions().State() == StateRunning {
		s.metrics.DecrementActiveSessions(ctx)
	}
	errs := []error{s.serverContext.Shutdown()}
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (s *OAuthHTTPServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logger := logging.WithOperation(s.logger, "oauth.callback")

	if reason := q.Get("error"); reason != "" {
		logger.Warn("authorization denied", slog.String("reason", reason))
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Authorization denied: %s", reason))
		return
	}
	code := q.Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "Missing authorization code.")
		return
	}
	if err := s.auth.CheckState(q.Get("state")); err != nil {
		logger.Warn("rejected callback", logging.Err(err))
		writeText(w, http.StatusBadRequest, "Invalid state parameter.")
		return
	}

	sessions := s.serverContext.Sessions()
	if err := sessions.Begin(); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		logger.Info("callback ignored", logging.Err(err))
		writeText(w, status, err.Error())
		return
	}

	sess, err := s.authorize(r.Context(), code)
	if err != nil {
		sessions.Abort()
		logger.Error("Error during authentication", logging.Err(err))
		writeText(w, http.StatusInternalServerError, msgAuthFailed)
		return
	}

	loopOpts := append([]poller.Option{poller.WithLogger(s.logger)}, s.loopOpts...)
	loop := poller.New(func(ctx context.Context) {
		sessions.RecordScan(s.service.Scan(ctx, sess))
	}, loopOpts...)

	if err := sessions.Activate(s.serverContext.Context(), sess, loop); err != nil {
		logger.Error("could not start poll loop", logging.Err(err))
		writeText(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.metrics.IncrementActiveSessions(r.Context())

	logger.Info("Authentication successful", logging.UserHash(sess.Owner), logging.Label(s.service.Label()))
	writeText(w, http.StatusOK, msgAuthSucceeded)
}

// authorize exchanges the code and builds the session on the server lifetime
// context, so the Gmail client outlives the request.
func (s *OAuthHTTPServer) authorize(ctx context.Context, code string) (*autoreply.Session, error) {
	grant, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	sess, err := s.newSession(s.serverContext.Context(), grant)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox session: %w", err)
	}
	return sess, nil
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
