package autoreply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/autoreply/internal/config"
	"github.com/teemow/autoreply/internal/gmail"
	"github.com/teemow/autoreply/internal/instrumentation"
	"github.com/teemow/autoreply/internal/logging"
)

// ErrSendFailed wraps every failure to send an auto-reply.
var ErrSendFailed = errors.New("auto-reply not sent")

// Session is an authorized mailbox: the API handle plus the owner's address.
// It is built once after authorization and passed to every scan.
type Session struct {
	API   gmail.API
	Owner string
	// AuthorizedAt is when the authorization code was exchanged.
	AuthorizedAt time.Time
}

// Address is the From/To address for replies, "me" when the owner is unknown.
func (s *Session) Address() string {
	if s.Owner == "" {
		return gmail.UserMe
	}
	return s.Owner
}

// ResolveOwner looks up the mailbox address through the profile endpoint.
func ResolveOwner(ctx context.Context, api gmail.API) (string, error) {
	profile, err := api.GetProfile(ctx)
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}

// Options configures a Service. Zero values fall back to the defaults in
// package config.
type Options struct {
	Subject string
	Body    string
	Label   string

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger

	// Now is the clock used for scan timestamps.
	Now func() time.Time
}

// Service scans the inbox and replies to threads the owner has not answered.
type Service struct {
	subject string
	body    string
	label   string

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	s := &Service{
		subject: opts.Subject,
		body:    opts.Body,
		label:   opts.Label,
		metrics: opts.Metrics,
		audit:   opts.Audit,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.subject == "" {
		s.subject = config.DefaultSubject
	}
	if s.body == "" {
		s.body = config.DefaultBody
	}
	if s.label == "" {
		s.label = config.DefaultLabel
	}
	if s.metrics == nil {
		s.metrics = &instrumentation.Metrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Label returns the marker label name.
func (s *Service) Label() string {
	return s.label
}

// Scan runs one pass over the first page of the inbox. Threads are handled in
// order of first appearance, each at most once per scan. Remote failures are
// recorded on the result and never abort the scan, except a failed listing,
// which ends it.
func (s *Service) Scan(ctx context.Context, sess *Session) *ScanResult {
	res := &ScanResult{RunID: uuid.NewString(), StartedAt: s.now()}
	logger := logging.WithRunID(s.logger, res.RunID)

	ctx, span := instrumentation.StartSpan(ctx, "autoreply.scan",
		instrumentation.NewSpanAttributeBuilder().WithRunID(res.RunID).Build()...)

	msgs, err := sess.API.ListInboxMessages(ctx)
	if err != nil {
		res.ListErr = err
		logger.Error("Error checking emails", logging.Err(err))
	} else {
		res.Messages = len(msgs)
		seen := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			if m.ThreadId == "" || seen[m.ThreadId] {
				continue
			}
			seen[m.ThreadId] = true
			if ctx.Err() != nil {
				break
			}
			res.Threads = append(res.Threads, s.processThread(ctx, logger, sess, res.RunID, m.ThreadId, m.Id))
		}
	}

	res.FinishedAt = s.now()

	status := instrumentation.StatusSuccess
	if res.ListErr != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordScan(ctx, status, res.Duration())
	instrumentation.EndSpan(span, res.ListErr)

	logger.Info("scan finished",
		slog.Int("messages", res.Messages),
		slog.Int("threads", len(res.Threads)),
		slog.Int("replied", res.Count(ActionReplied)),
		slog.Int("skipped", res.Count(ActionSkipped)),
		slog.Int("failed", res.Count(ActionFailed)),
		slog.Duration(logging.KeyDuration, res.Duration()))

	return res
}

func (s *Service) processThread(ctx context.Context, logger *slog.Logger, sess *Session, runID, threadID, messageID string) ThreadOutcome {
	out := ThreadOutcome{ThreadID: threadID, MessageID: messageID}
	logger = logging.WithThread(logger, threadID)

	ctx, span := instrumentation.StartSpan(ctx, "autoreply.thread",
		instrumentation.NewSpanAttributeBuilder().WithRunID(runID).WithThread(threadID).Build()...)
	defer func() {
		span.SetAttributes(attribute.String(instrumentation.SpanAttrOutcome, string(out.Action)))
		s.metrics.RecordThreadEvaluated(ctx, string(out.Action))
		instrumentation.EndSpan(span, out.Err())
	}()

	replied, err := s.threadReplied(ctx, sess, threadID)
	if err != nil {
		// a thread we cannot read is answered rather than skipped
		out.CheckErr = err
		logger.Error("Error checking thread", logging.Err(err))
	}
	if replied {
		out.Action = ActionSkipped
		logger.Debug("thread already answered", logging.Status(logging.StatusSkipped))
		return out
	}

	attempt := instrumentation.NewReplyAttempt(runID, threadID, sess.Owner).WithSpanContext(ctx)

	if err := s.SendReply(ctx, sess, threadID); err != nil {
		out.Action = ActionFailed
		out.SendErr = err
		s.metrics.RecordReply(ctx, instrumentation.StatusError)
		s.audit.LogReply(attempt.Complete(false, err))
		logger.Error("Error sending reply", logging.Err(err))
		return out
	}
	out.Action = ActionReplied
	s.metrics.RecordReply(ctx, instrumentation.StatusSuccess)

	out.LabelID, out.LabelCreated, out.LabelErr = s.applyLabel(ctx, sess, threadID)
	if out.LabelCreated {
		s.metrics.RecordLabelCreated(ctx)
		logger.Info("label created", logging.Label(s.label))
	}
	if out.LabelErr != nil {
		logger.Error("Error adding label to email", logging.Label(s.label), logging.Err(out.LabelErr))
	}

	s.audit.LogReply(attempt.Complete(out.LabelErr == nil, nil))
	logger.Info("Replied to email thread", logging.MessageID(messageID), logging.Status(logging.StatusSuccess))
	return out
}

// threadReplied fetches the thread and applies HasRepliedToThread.
func (s *Service) threadReplied(ctx context.Context, sess *Session, threadID string) (bool, error) {
	thread, err := sess.API.GetThread(ctx, threadID)
	if err != nil {
		return false, err
	}
	return HasRepliedToThread(thread, sess.Owner), nil
}

// SendReply sends the canned reply into threadID, addressed from and to the owner.
func (s *Service) SendReply(ctx context.Context, sess *Session, threadID string) error {
	addr := sess.Address()
	raw := gmail.CreateRawEmail(addr, addr, s.subject, s.body)
	if _, err := sess.API.SendRaw(ctx, threadID, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// applyLabel resolves the marker label and adds it to the thread.
func (s *Service) applyLabel(ctx context.Context, sess *Session, threadID string) (string, bool, error) {
	ctx, span := instrumentation.StartSpan(ctx, "autoreply.label",
		instrumentation.NewSpanAttributeBuilder().WithThread(threadID).WithLabel(s.label).Build()...)

	id, created, err := EnsureLabel(ctx, sess.API, s.label)
	if err == nil {
		err = LabelThread(ctx, sess.API, threadID, id)
	}
	instrumentation.EndSpan(span, err)
	return id, created, err
}
