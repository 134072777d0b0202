// Package server hosts the OAuth callback endpoint and owns the single
// mailbox session.
//
// OAuthHTTPServer handles GET /auth/callback. A one-shot latch in
// SessionManager admits exactly one successful authorization: the code is
// exchanged, a Gmail session is built and a poll loop is started on the
// ServerContext lifetime context. Later callbacks get 409 Conflict. A failed
// exchange releases the latch so the operator can retry.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed; readiness
// turns green once the poll loop runs. MetricsServer exposes the Prometheus
// registry of the instrumentation provider on a separate port.
package server
