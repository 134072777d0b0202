package instrumentation

import "strings"

// ExtractUserDomain reduces an email address to its domain so it can be used
// as a metric label without one series per mailbox.
//
//	ExtractUserDomain("owner@example.com")  // "example.com"
//	ExtractUserDomain("me")                 // "unknown"
func ExtractUserDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return "unknown"
}

// Gmail operation names used for metrics and span names.
const (
	OperationListMessages = "messages.list"
	OperationGetThread    = "threads.get"
	OperationListLabels   = "labels.list"
	OperationCreateLabel  = "labels.create"
	OperationModifyThread = "threads.modify"
	OperationSendMessage  = "messages.send"
	OperationGetProfile   = "users.getProfile"
)
