package google

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/autoreply/internal/instrumentation"
	"github.com/teemow/autoreply/internal/logging"
)

// ErrStateMismatch is returned when the callback carries a foreign state value.
var ErrStateMismatch = errors.New("oauth state mismatch")

// Authenticator drives the authorization-code flow for one OAuth client.
type Authenticator struct {
	config     *oauth2.Config
	state      string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithState fixes the state value instead of generating one. An empty state
// leaves the parameter out of the URL; CheckState accepts such callbacks on
// any Authenticator.
func WithState(state string) AuthOption {
	return func(a *Authenticator) { a.state = state }
}

// WithHTTPClient sets the client used for token exchange and refresh, and as
// the base transport of authorized clients.
func WithHTTPClient(c *http.Client) AuthOption {
	return func(a *Authenticator) { a.httpClient = c }
}

// WithEndpoint overrides the OAuth endpoint taken from the credentials.
func WithEndpoint(ep oauth2.Endpoint) AuthOption {
	return func(a *Authenticator) { a.config.Endpoint = ep }
}

// WithAuthMetrics records exchanges and refreshes on m.
func WithAuthMetrics(m *instrumentation.Metrics) AuthOption {
	return func(a *Authenticator) { a.metrics = m }
}

// WithAuthLogger sets the logger. The default is slog.Default().
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(a *Authenticator) { a.logger = logger }
}

// NewAuthenticator builds the OAuth client from creds. Nothing is validated
// here; bad values surface on the first exchange.
func NewAuthenticator(creds *Credentials, opts ...AuthOption) *Authenticator {
	endpoint := google.Endpoint
	if creds.AuthURI != "" {
		endpoint.AuthURL = creds.AuthURI
	}
	if creds.TokenURI != "" {
		endpoint.TokenURL = creds.TokenURI
	}

	a := &Authenticator{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL(),
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		state:   uuid.NewString(),
		metrics: &instrumentation.Metrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuthURL returns the consent page URL requesting offline access.
func (a *Authenticator) AuthURL() string {
	return a.config.AuthCodeURL(a.state, oauth2.AccessTypeOffline)
}

// RedirectURL returns the configured redirect URI.
func (a *Authenticator) RedirectURL() string {
	return a.config.RedirectURL
}

// CheckState accepts an empty state (code pasted by hand) or the one issued by AuthURL.
func (a *Authenticator) CheckState(state string) error {
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(a.state)) == 1 {
		return nil
	}
	return ErrStateMismatch
}

func (a *Authenticator) withHTTPClient(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// Exchange trades an authorization code for tokens and returns the resulting
// Grant. Tokens live only in memory.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*Grant, error) {
	ctx, span := instrumentation.StartSpan(ctx, "oauth.exchange")
	defer span.End()

	tok, err := a.config.Exchange(a.withHTTPClient(ctx), code)
	if err != nil {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)

	if tok.RefreshToken == "" {
		a.logger.Warn("token response has no refresh token, session ends when the access token expires")
	}
	a.logger.Debug("authorization code exchanged",
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)),
		slog.Time("expiry", tok.Expiry))

	// refreshes must outlive the callback request
	refreshCtx := a.withHTTPClient(context.WithoutCancel(ctx))
	src := &refreshRecorder{
		src:     a.config.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: tok.RefreshToken}),
		metrics: a.metrics,
		logger:  a.logger,
	}
	ts := oauth2.ReuseTokenSource(tok, src)

	return &Grant{
		tokenSource: ts,
		httpClient:  a.authorizedClient(ts),
		grantedAt:   time.Now(),
	}, nil
}

// authorizedClient forces HTTP/1.1 to avoid HTTP/2 stream errors seen with the Gmail API.
func (a *Authenticator) authorizedClient(ts oauth2.TokenSource) *http.Client {
	var base http.RoundTripper = &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	}
	if a.httpClient != nil && a.httpClient.Transport != nil {
		base = a.httpClient.Transport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}
}

// Grant is the in-memory result of a successful authorization.
type Grant struct {
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	grantedAt   time.Time
}

// HTTPClient returns a client that authorizes every request.
func (g *Grant) HTTPClient() *http.Client {
	return g.httpClient
}

// GrantedAt returns when the code was exchanged.
func (g *Grant) GrantedAt() time.Time {
	return g.grantedAt
}

// refreshRecorder counts refresh attempts. It is only called by the outer
// ReuseTokenSource once the cached token has expired.
type refreshRecorder struct {
	src     oauth2.TokenSource
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

func (r *refreshRecorder) Token() (*oauth2.Token, error) {
	ctx := context.Background()
	tok, err := r.src.Token()
	if err != nil {
		r.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		r.logger.Warn("token refresh failed", logging.Err(err))
		return nil, err
	}
	r.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	return tok, nil
}
