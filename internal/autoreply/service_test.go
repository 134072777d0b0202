package autoreply

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"

	"github.com/teemow/autoreply/internal/gmail"
)

func newTestService() *Service {
	return NewService(Options{Logger: slogDiscard()})
}

func newSession(api *fakeAPI) *Session {
	return &Session{API: api, Owner: owner}
}

func TestScan_UnrepliedThreadGetsReplyAndLabel(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}
	api.threads["T1"] = &gm.Thread{Id: "T1", Messages: []*gm.Message{message("Jane <jane@example.org>", gmail.LabelInbox)}}
	api.labels = []*gm.Label{{Id: "Label_7", Name: "AutoReplied"}}

	res := newTestService().Scan(context.Background(), newSession(api))

	require.NoError(t, res.Err())
	require.Len(t, api.sent, 1)
	assert.Equal(t, "T1", api.sent[0].ThreadID)
	assert.Equal(t, []modifyCall{{ThreadID: "T1", LabelIDs: []string{"Label_7"}}}, api.modified)
	assert.Zero(t, api.count("labels.create"))

	want := []ThreadOutcome{{ThreadID: "T1", MessageID: "m1", Action: ActionReplied, LabelID: "Label_7"}}
	if diff := cmp.Diff(want, res.Threads, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, res.Threads[0].Labeled())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Messages)
}

func TestScan_AlreadyRepliedThreadIsSkipped(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m2", "T2")}
	api.threads["T2"] = &gm.Thread{Id: "T2", Messages: []*gm.Message{
		message("Jane <jane@example.org>", gmail.LabelInbox),
		message("Owner <owner@example.com>"),
	}}

	res := newTestService().Scan(context.Background(), newSession(api))

	require.NoError(t, res.Err())
	assert.Zero(t, api.count("send"))
	assert.Zero(t, api.count("modify"))
	assert.Equal(t, 1, res.Count(ActionSkipped))
}

func TestScan_MissingLabelIsCreatedOnce(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}

	res := newTestService().Scan(context.Background(), newSession(api))

	require.NoError(t, res.Err())
	assert.Equal(t, []string{"AutoReplied"}, api.created)
	require.Len(t, api.labels, 1)
	newID := api.labels[0].Id
	assert.Equal(t, []modifyCall{{ThreadID: "T1", LabelIDs: []string{newID}}}, api.modified)
	assert.True(t, res.Threads[0].LabelCreated)
}

func TestScan_ReplyContent(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}

	svc := NewService(Options{Subject: "Out of office", Body: "Back on Monday.", Logger: slogDiscard()})
	svc.Scan(context.Background(), newSession(api))

	require.Len(t, api.sent, 1)
	raw, err := base64.URLEncoding.DecodeString(api.sent[0].Raw)
	require.NoError(t, err)

	msg := string(raw)
	assert.Contains(t, msg, "From: owner@example.com\r\n")
	assert.Contains(t, msg, "To: owner@example.com\r\n")
	assert.Contains(t, msg, "Subject: Out of office\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nBack on Monday."))
}

func TestScan_UnknownOwnerRepliesToMe(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}

	newTestService().Scan(context.Background(), &Session{API: api})

	require.Len(t, api.sent, 1)
	raw, err := base64.URLEncoding.DecodeString(api.sent[0].Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "From: me\r\nTo: me\r\n")
}

func TestScan_ListFailureEndsScan(t *testing.T) {
	api := newFakeAPI()
	api.listErr = errors.New("503 backend error")

	res := newTestService().Scan(context.Background(), newSession(api))

	require.Error(t, res.ListErr)
	assert.ErrorIs(t, res.Err(), api.listErr)
	assert.Empty(t, res.Threads)
	assert.Zero(t, api.count("thread"))
	assert.Zero(t, api.count("send"))
}

func TestScan_ThreadCheckFailureCountsAsNotReplied(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}
	api.threadErr["T1"] = errors.New("thread fetch timed out")

	res := newTestService().Scan(context.Background(), newSession(api))

	require.Len(t, res.Threads, 1)
	out := res.Threads[0]
	assert.Equal(t, ActionReplied, out.Action)
	assert.ErrorIs(t, out.CheckErr, api.threadErr["T1"])
	assert.Equal(t, 1, api.count("send"))
	assert.Equal(t, 1, api.count("modify"))
}

func TestScan_SendFailureSkipsLabel(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}
	api.sendErr = errors.New("quota exceeded")

	res := newTestService().Scan(context.Background(), newSession(api))

	require.Len(t, res.Threads, 1)
	out := res.Threads[0]
	assert.Equal(t, ActionFailed, out.Action)
	assert.ErrorIs(t, out.SendErr, ErrSendFailed)
	assert.ErrorIs(t, out.SendErr, api.sendErr)
	assert.False(t, out.Labeled())
	assert.Zero(t, api.count("labels.list"))
	assert.Zero(t, api.count("modify"))
}

func TestScan_LabelFailureIsRecorded(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1")}
	api.modifyErr = errors.New("modify rejected")

	res := newTestService().Scan(context.Background(), newSession(api))

	out := res.Threads[0]
	assert.Equal(t, ActionReplied, out.Action)
	assert.ErrorIs(t, out.LabelErr, api.modifyErr)
	assert.False(t, out.Labeled())
	assert.ErrorIs(t, res.Err(), api.modifyErr)
}

func TestScan_ThreadsDeduplicated(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{
		inboxMessage("m1", "T1"),
		inboxMessage("m2", "T1"),
		inboxMessage("m3", "T3"),
		inboxMessage("m4", "T1"),
	}

	res := newTestService().Scan(context.Background(), newSession(api))

	assert.Equal(t, 4, res.Messages)
	require.Len(t, res.Threads, 2)
	assert.Equal(t, "T1", res.Threads[0].ThreadID)
	assert.Equal(t, "m1", res.Threads[0].MessageID)
	assert.Equal(t, "T3", res.Threads[1].ThreadID)
	assert.Equal(t, 2, api.count("thread"))
	assert.Equal(t, 2, api.count("send"))
}

func TestScan_CancelledContextStopsBetweenThreads(t *testing.T) {
	api := newFakeAPI()
	api.inbox = []*gm.Message{inboxMessage("m1", "T1"), inboxMessage("m2", "T2")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestService().Scan(ctx, newSession(api))
	assert.Empty(t, res.Threads)
	assert.Zero(t, api.count("send"))
}

func TestScan_Timestamps(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := []time.Time{start, start.Add(3 * time.Second)}
	svc := NewService(Options{Logger: slogDiscard(), Now: func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}})

	res := svc.Scan(context.Background(), newSession(newFakeAPI()))
	assert.Equal(t, start, res.StartedAt)
	assert.Equal(t, 3*time.Second, res.Duration())
}

func TestResolveOwner(t *testing.T) {
	api := newFakeAPI()
	got, err := ResolveOwner(context.Background(), api)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", got)

	api.profileErr = errors.New("forbidden")
	_, err = ResolveOwner(context.Background(), api)
	assert.ErrorIs(t, err, api.profileErr)
}

func TestSessionAddress(t *testing.T) {
	assert.Equal(t, "me", (&Session{}).Address())
	assert.Equal(t, owner, (&Session{Owner: owner}).Address())
}
