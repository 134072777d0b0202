package autoreply

import (
	"errors"
	"time"
)

// Action is what the scanner did with one thread.
type Action string

const (
	// ActionSkipped means the owner had already replied.
	ActionSkipped Action = "skipped"
	// ActionReplied means the auto-reply was sent.
	ActionReplied Action = "replied"
	// ActionFailed means sending the auto-reply failed; no label was applied.
	ActionFailed Action = "failed"
)

// ThreadOutcome records every step taken for one thread.
type ThreadOutcome struct {
	ThreadID  string
	MessageID string
	Action    Action

	// CheckErr is set when the thread could not be fetched. The thread was
	// then treated as not replied.
	CheckErr error
	SendErr  error
	LabelErr error

	LabelID      string
	LabelCreated bool
}

// Labeled reports whether the marker label was applied.
func (o ThreadOutcome) Labeled() bool {
	return o.Action == ActionReplied && o.LabelErr == nil && o.LabelID != ""
}

// Err joins the step errors of the outcome.
func (o ThreadOutcome) Err() error {
	return errors.Join(o.CheckErr, o.SendErr, o.LabelErr)
}

// ScanResult is the aggregated outcome of one inbox scan.
type ScanResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Messages is the number of inbox messages listed.
	Messages int
	// ListErr is set when the inbox could not be listed; Threads is then empty.
	ListErr error
	Threads []ThreadOutcome
}

// Duration returns how long the scan took.
func (r *ScanResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of threads that ended with action a.
func (r *ScanResult) Count(a Action) int {
	n := 0
	for _, t := range r.Threads {
		if t.Action == a {
			n++
		}
	}
	return n
}

// Err joins the listing error and every per-thread error.
func (r *ScanResult) Err() error {
	errs := []error{r.ListErr}
	for _, t := range r.Threads {
		errs = append(errs, t.Err())
	}
	return errors.Join(errs...)
}
