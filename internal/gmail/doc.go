// Package gmail provides the Gmail API client used by autoreply.
//
// The client covers exactly the calls the auto-replier makes:
//   - listing the first page of INBOX messages
//   - fetching a thread with sender metadata
//   - listing and creating labels, and adding a label to a thread
//   - sending a raw message into an existing thread
//   - reading the mailbox profile to learn the owner's address
//
// Every call is throttled by a token bucket (golang.org/x/time/rate), runs in
// a client span named google.gmail.<operation> and is counted in the Google API
// metrics.
//
// Authentication is supplied by the caller as an *http.Client, normally the
// one held by an authorized google.Session.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, session.HTTPClient(),
//	    []gmail.Option{gmail.WithRateLimit(5, 5)})
//	if err != nil {
//	    return err
//	}
//
//	raw := gmail.CreateRawEmail("me", "me", "Auto Reply", "Thanks!")
//	_, err = client.SendRaw(ctx, threadID, raw)
package gmail
