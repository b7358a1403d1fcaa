// Package logging provides structured logging for the Gray Logic routines service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Security
//
// Never log device tokens or the vault key. Use Redact for hints:
//
//	logger.Info("source updated", "token", logging.Redact(token))
package logging
