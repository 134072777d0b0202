package server

import (
	"context"
	"sync"
)

// ServerContext owns the lifetime context shared by the callback server and
// the poll loop. Cancelling it stops every outstanding Gmail call.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	sessions *SessionManager
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context derived from ctx.
func NewServerContext(ctx context.Context) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		sessions: NewSessionManager(),
	}
}

// Context returns the server lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Sessions returns the session manager.
func (sc *ServerContext) Sessions() *SessionManager {
	return sc.sessions
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the poll loop, waiting for an in-flight scan, and cancels
// the lifetime context. Calling it again is a no-op.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.sessions.Stop()
	sc.cancel()
	return nil
}
