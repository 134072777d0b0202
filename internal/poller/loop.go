package poller

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start when the loop has been started before.
var ErrAlreadyRunning = errors.New("poll loop already running")

// Task is one unit of polling work. It runs to completion before the next
// wait begins, so two runs never overlap.
type Task func(ctx context.Context)

// AfterFunc waits for d and then sends the current time, like time.After.
type AfterFunc func(d time.Duration) <-chan time.Time

// Option configures a Loop.
type Option func(*Loop)

// WithAfter replaces the clock used to wait between runs.
func WithAfter(after AfterFunc) Option {
	return func(l *Loop) {
		l.after = after
	}
}

// WithRand sets the source of the random waits.
func WithRand(r *rand.Rand) Option {
	return func(l *Loop) {
		l.rnd = r
	}
}

// WithBounds overrides MinInterval and MaxInterval. Bounds below one second
// are raised to one second so scans never run back to back.
func WithBounds(lo, hi time.Duration) Option {
	return func(l *Loop) {
		l.min, l.max = max(lo, time.Second), max(hi, time.Second)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// Loop waits a random interval, runs its task, and repeats until stopped.
// The interval is drawn again before every wait.
type Loop struct {
	task   Task
	after  AfterFunc
	rnd    *rand.Rand
	min    time.Duration
	max    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
}

// New creates a stopped Loop.
func New(task Task, opts ...Option) *Loop {
	l := &Loop{
		task:   task,
		after:  time.After,
		min:    MinInterval,
		max:    MaxInterval,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs the loop in a new goroutine until ctx is cancelled or Stop is
// called. A Loop can be started once.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return ErrAlreadyRunning
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		l.run(ctx)
	}()
	return nil
}

// Stop cancels the loop and waits for a running task to return.
// It is a no-op on a loop that was never started.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-l.done
}

// Runs returns how many times the task has completed.
func (l *Loop) Runs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs
}

func (l *Loop) run(ctx context.Context) {
	for {
		wait := l.nextInterval()
		l.logger.Debug("next inbox scan scheduled", slog.Duration("in", wait))

		select {
		case <-ctx.Done():
			l.logger.Debug("poll loop stopped")
			return
		case <-l.after(wait):
		}

		// a timer that fired together with cancellation must not start a run
		if ctx.Err() != nil {
			return
		}

		l.task(ctx)

		l.mu.Lock()
		l.runs++
		l.mu.Unlock()
	}
}

func (l *Loop) nextInterval() time.Duration {
	if l.rnd != nil {
		return RandomIntervalFrom(l.rnd, l.min, l.max)
	}
	return RandomInterval(l.min, l.max)
}
