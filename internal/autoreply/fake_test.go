package autoreply

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	gm "google.golang.org/api/gmail/v1"

	"github.com/teemow/autoreply/internal/gmail"
)

type sentMessage struct {
	ThreadID string
	Raw      string
}

type modifyCall struct {
	ThreadID string
	LabelIDs []string
}

// fakeAPI is an in-memory mailbox recording every call.
type fakeAPI struct {
	mu sync.Mutex

	inbox   []*gm.Message
	threads map[string]*gm.Thread
	labels  []*gm.Label
	owner   string

	listErr       error
	threadErr     map[string]error
	listLabelsErr error
	createErr     error
	modifyErr     error
	sendErr       error
	profileErr    error

	calls    map[string]int
	sent     []sentMessage
	modified []modifyCall
	created  []string
}

var _ gmail.API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		threads:   map[string]*gm.Thread{},
		threadErr: map[string]error{},
		calls:     map[string]int{},
		owner:     "owner@example.com",
	}
}

func (f *fakeAPI) record(op string) {
	f.calls[op]++
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) ListInboxMessages(ctx context.Context) ([]*gm.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.inbox, nil
}

func (f *fakeAPI) GetThread(ctx context.Context, threadID string) (*gm.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("thread")
	if err := f.threadErr[threadID]; err != nil {
		return nil, err
	}
	if t, ok := f.threads[threadID]; ok {
		return t, nil
	}
	return &gm.Thread{Id: threadID}, nil
}

func (f *fakeAPI) ListLabels(ctx context.Context) ([]*gm.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("labels.list")
	if f.listLabelsErr != nil {
		return nil, f.listLabelsErr
	}
	return append([]*gm.Label(nil), f.labels...), nil
}

func (f *fakeAPI) CreateLabel(ctx context.Context, name string) (*gm.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("labels.create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	label := &gm.Label{Id: fmt.Sprintf("Label_%d", len(f.labels)+100), Name: name}
	f.labels = append(f.labels, label)
	f.created = append(f.created, name)
	return label, nil
}

func (f *fakeAPI) AddThreadLabels(ctx context.Context, threadID string, labelIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("modify")
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.modified = append(f.modified, modifyCall{ThreadID: threadID, LabelIDs: labelIDs})
	return nil
}

func (f *fakeAPI) SendRaw(ctx context.Context, threadID, raw string) (*gm.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("send")
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{ThreadID: threadID, Raw: raw})
	return &gm.Message{Id: fmt.Sprintf("sent-%d", len(f.sent)), ThreadId: threadID}, nil
}

func (f *fakeAPI) GetProfile(ctx context.Context) (*gm.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &gm.Profile{EmailAddress: f.owner}, nil
}

func inboxMessage(id, threadID string) *gm.Message {
	return &gm.Message{Id: id, ThreadId: threadID, LabelIds: []string{gmail.LabelInbox}}
}

func message(from string, labels ...string) *gm.Message {
	return &gm.Message{
		LabelIds: labels,
		Payload: &gm.MessagePart{
			Headers: []*gm.MessagePartHeader{{Name: "From", Value: from}},
		},
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
