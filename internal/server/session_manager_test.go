package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/autoreply/internal/autoreply"
	"github.com/teemow/autoreply/internal/poller"
)

func newIdleLoop(clock *fakeClock) *poller.Loop {
	return poller.New(func(ctx context.Context) {},
		poller.WithAfter(clock.After),
		poller.WithLogger(discardLogger()))
}

func TestSessionManager_Latch(t *testing.T) {
	m := NewSessionManager()
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Begin())
	assert.Equal(t, StateExchanging, m.State())
	assert.ErrorIs(t, m.Begin(), ErrAuthInProgress)

	m.Abort()
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Begin())
	clock := newFakeClock()
	sess := &autoreply.Session{API: newMailbox()}
	require.NoError(t, m.Activate(context.Background(), sess, newIdleLoop(clock)))
	clock.nextWait(t)

	assert.Equal(t, StateRunning, m.State())
	assert.Same(t, sess, m.Session())
	assert.ErrorIs(t, m.Begin(), ErrAlreadyAuthorized)

	m.Abort()
	assert.Equal(t, StateRunning, m.State(), "abort must not reset a running session")

	m.Stop()
	assert.Equal(t, StateStopped, m.State())
	assert.ErrorIs(t, m.Begin(), ErrShuttingDown)
}

func TestSessionManager_ActivateAfterStop(t *testing.T) {
	m := NewSessionManager()
	require.NoError(t, m.Begin())
	m.Stop()

	clock := newFakeClock()
	err := m.Activate(context.Background(), &autoreply.Session{}, newIdleLoop(clock))
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Nil(t, m.Session())
	assert.Empty(t, clock.waits)
}

func TestSessionManager_StopIdle(t *testing.T) {
	m := NewSessionManager()
	m.Stop()
	m.Stop()
	assert.Equal(t, StateStopped, m.State())
	assert.Zero(t, m.Uptime())
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "exchanging", StateExchanging.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestSessionManager_RecordScan(t *testing.T) {
	m := NewSessionManager()
	assert.Nil(t, m.LastScan())
	assert.Zero(t, m.Scans())

	first := &autoreply.ScanResult{RunID: "run-1"}
	second := &autoreply.ScanResult{RunID: "run-2", ListErr: errors.New("boom")}
	m.RecordScan(first)
	assert.Same(t, first, m.LastScan())
	m.RecordScan(second)
	assert.Same(t, second, m.LastScan())
}

func TestSessionManager_ScansFollowLoop(t *testing.T) {
	m := NewSessionManager()
	require.NoError(t, m.Begin())

	clock := newFakeClock()
	loop := poller.New(func(ctx context.Context) {
		m.RecordScan(&autoreply.ScanResult{RunID: "run", FinishedAt: time.Now()})
	}, poller.WithAfter(clock.After), poller.WithLogger(discardLogger()))
	require.NoError(t, m.Activate(context.Background(), &autoreply.Session{}, loop))
	t.Cleanup(m.Stop)

	clock.nextWait(t)
	assert.Zero(t, m.Scans())

	clock.advance(t)
	clock.nextWait(t)
	clock.advance(t)
	clock.nextWait(t)
	assert.Equal(t, 2, m.Scans())
	require.NotNil(t, m.LastScan())
	assert.Equal(t, "run", m.LastScan().RunID)
}
