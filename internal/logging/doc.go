// Package logging provides structured logging helpers for autoreply.
//
// All logging goes through the standard library's slog package. This package
// only fixes the attribute names and keeps personal data out of the logs.
//
// # Usage Patterns
//
// Scope a logger to one scan and one thread:
//
//	logger := logging.WithRunID(slog.Default(), runID)
//	logger = logging.WithThread(logger, threadID)
//	logger.Info("reply sent", logging.Status(logging.StatusSuccess))
//
// Never log the owner's address directly:
//
//	logger.Info("session started", logging.UserHash(owner))
//
// # Security Considerations
//
//   - Email addresses are hashed so entries can be correlated without PII
//   - Tokens are never logged, only their length via SanitizeToken
package logging
