package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/autoreply/internal/logging"
)

// ReplyAttempt captures one auto-reply for the audit trail.
//
// # Privacy Considerations
//
// Owner is the mailbox address and therefore PII. Unless the audit logger is
// configured with IncludePII only its hash and domain are written.
type ReplyAttempt struct {
	RunID    string
	ThreadID string
	Owner    string

	StartTime    time.Time
	Duration     time.Duration
	Success      bool
	LabelApplied bool
	Error        string

	TraceID string
	SpanID  string
}

// NewReplyAttempt starts timing a reply into threadID.
func NewReplyAttempt(runID, threadID, owner string) *ReplyAttempt {
	return &ReplyAttempt{
		RunID:     runID,
		ThreadID:  threadID,
		Owner:     owner,
		StartTime: time.Now(),
	}
}

// WithSpanContext copies the trace identifiers of the active span.
func (ra *ReplyAttempt) WithSpanContext(ctx context.Context) *ReplyAttempt {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		ra.TraceID = sc.TraceID().String()
		ra.SpanID = sc.SpanID().String()
	}
	return ra
}

// Complete stops the timer and records the result.
func (ra *ReplyAttempt) Complete(labelApplied bool, err error) *ReplyAttempt {
	ra.Duration = time.Since(ra.StartTime)
	ra.Success = err == nil
	ra.LabelApplied = labelApplied
	if err != nil {
		ra.Error = err.Error()
	}
	return ra
}

// Status returns "success" or "error".
func (ra *ReplyAttempt) Status() string {
	if ra.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ra *ReplyAttempt) attrs(includePII bool) []any {
	args := []any{
		slog.String(logging.KeyRunID, ra.RunID),
		slog.String(logging.KeyThreadID, ra.ThreadID),
		slog.Duration(logging.KeyDuration, ra.Duration),
		slog.Bool("label_applied", ra.LabelApplied),
	}
	if includePII {
		args = append(args, slog.String("owner", ra.Owner))
	} else {
		args = append(args,
			logging.UserHash(ra.Owner),
			slog.String("user_domain", ExtractUserDomain(ra.Owner)),
		)
	}
	if ra.TraceID != "" {
		args = append(args, slog.String("trace_id", ra.TraceID), slog.String("span_id", ra.SpanID))
	}
	if ra.Error != "" {
		args = append(args, slog.String(logging.KeyError, ra.Error))
	}
	return args
}

// AuditLogger writes reply attempts as structured audit events.
// SECURITY: with IncludePII set the owner's address is written in clear.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger from config. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogReply writes reply_sent or reply_failed for the attempt.
func (al *AuditLogger) LogReply(ra *ReplyAttempt) {
	if al == nil || !al.enabled || ra == nil {
		return
	}

	if ra.Success {
		al.logger.Info("reply_sent", ra.attrs(al.includePII)...)
	} else {
		al.logger.Warn("reply_failed", ra.attrs(al.includePII)...)
	}
}
