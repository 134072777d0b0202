// Package cmd implements the command-line interface for autoreply.
//
// This package provides the following commands:
//   - serve: Start the callback server and, after consent, the inbox poller
//   - auth-url: Print the Google consent URL
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
