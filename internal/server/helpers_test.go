package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	gm "google.golang.org/api/gmail/v1"

	"github.com/teemow/autoreply/internal/gmail"
	"github.com/teemow/autoreply/internal/google"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubAuthorizer counts exchanges and fails or blocks on demand.
type stubAuthorizer struct {
	mu        sync.Mutex
	exchanges int
	err       error
	block     chan struct{}
	entered   chan struct{}
}

func (a *stubAuthorizer) CheckState(state string) error {
	if state == "" || state == "state-1" {
		return nil
	}
	return google.ErrStateMismatch
}

func (a *stubAuthorizer) Exchange(ctx context.Context, code string) (*google.Grant, error) {
	a.mu.Lock()
	a.exchanges++
	err := a.err
	a.mu.Unlock()

	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.block != nil {
		<-a.block
	}
	if err != nil {
		return nil, err
	}
	return &google.Grant{}, nil
}

func (a *stubAuthorizer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exchanges
}

// mailbox is a minimal Gmail API with an empty inbox.
type mailbox struct {
	mu    sync.Mutex
	calls map[string]int
}

var _ gmail.API = (*mailbox)(nil)

func newMailbox() *mailbox {
	return &mailbox{calls: map[string]int{}}
}

func (m *mailbox) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
}

func (m *mailbox) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mailbox) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mailbox) ListInboxMessages(ctx context.Context) ([]*gm.Message, error) {
	m.record("list")
	return nil, nil
}

func (m *mailbox) GetThread(ctx context.Context, threadID string) (*gm.Thread, error) {
	m.record("thread")
	return &gm.Thread{Id: threadID}, nil
}

func (m *mailbox) ListLabels(ctx context.Context) ([]*gm.Label, error) {
	m.record("labels.list")
	return nil, nil
}

func (m *mailbox) CreateLabel(ctx context.Context, name string) (*gm.Label, error) {
	m.record("labels.create")
	return &gm.Label{Id: "Label_1", Name: name}, nil
}

func (m *mailbox) AddThreadLabels(ctx context.Context, threadID string, labelIDs ...string) error {
	m.record("modify")
	return nil
}

func (m *mailbox) SendRaw(ctx context.Context, threadID, raw string) (*gm.Message, error) {
	m.record("send")
	return &gm.Message{Id: "sent-1", ThreadId: threadID}, nil
}

func (m *mailbox) GetProfile(ctx context.Context) (*gm.Profile, error) {
	m.record("profile")
	return nil, errors.New("profile not available")
}

// fakeClock hands every poll wait to the test, which decides when it fires.
type fakeClock struct {
	waits chan time.Duration
	fire  chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		waits: make(chan time.Duration, 16),
		fire:  make(chan time.Time),
	}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits <- d
	return c.fire
}

func (c *fakeClock) nextWait(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-c.waits:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not start waiting")
		return 0
	}
}

func (c *fakeClock) advance(t *testing.T) {
	t.Helper()
	select {
	case c.fire <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop is not waiting on the clock")
	}
}
