package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/autoreply/internal/instrumentation"
	"github.com/teemow/autoreply/internal/logging"
)

// Well-known Gmail identifiers.
const (
	UserMe     = "me"
	LabelInbox = "INBOX"
	LabelSent  = "SENT"
)

// API is the part of the Gmail API the auto-replier depends on.
// Client implements it; tests substitute fakes.
type API interface {
	ListInboxMessages(ctx context.Context) ([]*gmail.Message, error)
	GetThread(ctx context.Context, threadID string) (*gmail.Thread, error)
	ListLabels(ctx context.Context) ([]*gmail.Label, error)
	CreateLabel(ctx context.Context, name string) (*gmail.Label, error)
	AddThreadLabels(ctx context.Context, threadID string, labelIDs ...string) error
	SendRaw(ctx context.Context, threadID, raw string) (*gmail.Message, error)
	GetProfile(ctx context.Context) (*gmail.Profile, error)
}

// Client wraps the Gmail Users service with throttling and instrumentation.
type Client struct {
	svc     *gmail.UsersService
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	// owner is learned from GetProfile and only feeds metric labels
	owner atomic.Value
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithRateLimit throttles calls to rps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records every call on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Gmail client that authenticates through httpClient.
// Extra clientOpts are passed to the Google API client, for example an endpoint override.
func NewClient(ctx context.Context, httpClient *http.Client, opts []Option, clientOpts ...option.ClientOption) (*Client, error) {
	clientOpts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, clientOpts...)
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	c := &Client{
		svc:     svc.Users,
		limiter: rate.NewLimiter(rate.Inf, 1),
		metrics: &instrumentation.Metrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ownerAddress() string {
	if v, ok := c.owner.Load().(string); ok {
		return v
	}
	return ""
}

// call waits for the limiter, runs fn inside a client span and records the outcome.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation)
	start := time.Now()

	err := c.limiter.Wait(ctx)
	if err == nil {
		err = fn(ctx)
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, c.ownerAddress(), time.Since(start))
	instrumentation.EndSpan(span, err)
	return err
}

// ListInboxMessages returns the first page of messages carrying the INBOX label.
// Later pages are not fetched.
func (c *Client) ListInboxMessages(ctx context.Context) ([]*gmail.Message, error) {
	var res *gmail.ListMessagesResponse
	err := c.call(ctx, instrumentation.OperationListMessages, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Messages.List(UserMe).LabelIds(LabelInbox).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	if res.NextPageToken != "" {
		c.logger.Debug("inbox listing truncated to first page",
			logging.Operation(instrumentation.OperationListMessages),
			slog.Int("messages", len(res.Messages)))
	}
	return res.Messages, nil
}

// GetThread fetches a thread with the From header and label ids of every message.
func (c *Client) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	var thread *gmail.Thread
	err := c.call(ctx, instrumentation.OperationGetThread, func(ctx context.Context) error {
		var err error
		thread, err = c.svc.Threads.Get(UserMe, threadID).
			Format("metadata").
			MetadataHeaders("From").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// ListLabels returns every label of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	var res *gmail.ListLabelsResponse
	err := c.call(ctx, instrumentation.OperationListLabels, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Labels.List(UserMe).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return res.Labels, nil
}

// CreateLabel creates a user label shown in both the label and message lists.
func (c *Client) CreateLabel(ctx context.Context, name string) (*gmail.Label, error) {
	var label *gmail.Label
	err := c.call(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) error {
		var err error
		label, err = c.svc.Labels.Create(UserMe, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}
	return label, nil
}

// AddThreadLabels adds labelIDs to every message of the thread.
func (c *Client) AddThreadLabels(ctx context.Context, threadID string, labelIDs ...string) error {
	err := c.call(ctx, instrumentation.OperationModifyThread, func(ctx context.Context) error {
		_, err := c.svc.Threads.Modify(UserMe, threadID, &gmail.ModifyThreadRequest{
			AddLabelIds: labelIDs,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to label thread %s: %w", threadID, err)
	}
	return nil
}

// SendRaw sends an already encoded message into threadID.
func (c *Client) SendRaw(ctx context.Context, threadID, raw string) (*gmail.Message, error) {
	var sent *gmail.Message
	err := c.call(ctx, instrumentation.OperationSendMessage, func(ctx context.Context) error {
		var err error
		sent, err = c.svc.Messages.Send(UserMe, &gmail.Message{
			Raw:      raw,
			ThreadId: threadID,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send reply: %w", err)
	}
	return sent, nil
}

// GetProfile returns the mailbox profile and remembers its address.
func (c *Client) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	var profile *gmail.Profile
	err := c.call(ctx, instrumentation.OperationGetProfile, func(ctx context.Context) error {
		var err error
		profile, err = c.svc.GetProfile(UserMe).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	c.owner.Store(profile.EmailAddress)
	return profile, nil
}
