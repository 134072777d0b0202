package autoreply

import (
	"strings"

	gm "google.golang.org/api/gmail/v1"

	"github.com/teemow/autoreply/internal/gmail"
)

// HasRepliedToThread reports whether the owner authored any message in the
// thread. A message counts when Gmail labelled it SENT or when its From
// address equals owner, ignoring case. With owner empty or "me" only the SENT
// label is consulted. Message order does not matter.
func HasRepliedToThread(thread *gm.Thread, owner string) bool {
	if thread == nil {
		return false
	}
	matchFrom := owner != "" && owner != gmail.UserMe
	for _, msg := range thread.Messages {
		if gmail.HasLabel(msg, gmail.LabelSent) {
			return true
		}
		if matchFrom && strings.EqualFold(gmail.SenderAddress(msg), owner) {
			return true
		}
	}
	return false
}
