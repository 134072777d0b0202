package google

import gmail "google.golang.org/api/gmail/v1"

// Scopes are the OAuth scopes requested at consent time. gmail.modify covers
// reading threads, sending, and creating and applying labels.
var Scopes = []string{gmail.GmailModifyScope}
