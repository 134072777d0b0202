// Package google implements the OAuth2 authorization-code flow against Google.
//
// LoadCredentials reads the client registration. An Authenticator built from
// it produces the consent URL and exchanges the returned code for a Grant,
// which carries a refreshing token source and an authorized *http.Client.
// Tokens are kept in memory only; a restarted process must be authorized again.
package google
