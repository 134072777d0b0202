package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teemow/autoreply/internal/autoreply"
	"github.com/teemow/autoreply/internal/poller"
)

var (
	// ErrAlreadyAuthorized is returned once a session is running.
	ErrAlreadyAuthorized = errors.New("already authorized, email application is running")
	// ErrAuthInProgress is returned while another code exchange is in flight.
	ErrAuthInProgress = errors.New("authorization already in progress")
	// ErrShuttingDown is returned after Stop.
	ErrShuttingDown = errors.New("server is shutting down")
)

// SessionState is the position of the one-shot authorization latch.
type SessionState int

const (
	StateIdle SessionState = iota
	StateExchanging
	StateRunning
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExchanging:
		return "exchanging"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionManager holds the single mailbox session and the poll loop scanning
// it. The session is written once, by Activate, and only read afterwards.
type SessionManager struct {
	mu        sync.Mutex
	state     SessionState
	session   *autoreply.Session
	loop      *poller.Loop
	startedAt time.Time
	lastScan  *autoreply.ScanResult
}

// NewSessionManager creates an idle SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// Begin moves the latch from idle to exchanging. Any other state is an error
// and leaves the manager untouched.
func (m *SessionManager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		m.state = StateExchanging
		return nil
	case StateExchanging:
		return ErrAuthInProgress
	case StateRunning:
		return ErrAlreadyAuthorized
	default:
		return ErrShuttingDown
	}
}

// Abort returns an exchanging latch to idle so the operator can retry.
func (m *SessionManager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExchanging {
		m.state = StateIdle
	}
}

// Activate installs the session and starts its loop on ctx. It must follow a
// successful Begin; after Stop it returns ErrShuttingDown and starts nothing.
func (m *SessionManager) Activate(ctx context.Context, sess *autoreply.Session, loop *poller.Loop) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateExchanging {
		return ErrShuttingDown
	}
	if err := loop.Start(ctx); err != nil {
		m.state = StateIdle
		return err
	}
	m.session = sess
	m.loop = loop
	m.startedAt = time.Now()
	m.state = StateRunning
	return nil
}

// State returns the latch position.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the running session, or nil.
func (m *SessionManager) Session() *autoreply.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Uptime returns how long the session has been running.
func (m *SessionManager) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning {
		return 0
	}
	return time.Since(m.startedAt)
}

// RecordScan keeps res as the most recent scan result.
func (m *SessionManager) RecordScan(res *autoreply.ScanResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScan = res
}

// LastScan returns the most recent scan result, or nil before the first scan.
func (m *SessionManager) LastScan() *autoreply.ScanResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastScan
}

// Scans returns how many scans the poll loop has completed.
func (m *SessionManager) Scans() int {
	m.mu.Lock()
	loop := m.loop
	m.mu.Unlock()

	if loop == nil {
		return 0
	}
	return loop.Runs()
}

// Stop stops the poll loop and refuses further sessions.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	loop := m.loop
	m.state = StateStopped
	m.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
}
