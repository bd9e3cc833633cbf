// Package logger builds *slog.Logger values with functional options and
// provides attribute helpers so log keys stay consistent across packages.
//
// New picks a JSON or text handler, attaches static attributes and wraps
// the handler so ContextExtractor callbacks can add request-scoped values
// (such as a request id) on every record. NewFromConfig reads the same
// settings from environment variables.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(logger.EnvDevelopment, "sessiond"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "session started", logger.SessionID(id))
//
// Attribute helpers return an empty slog.Attr for empty input, which slog
// drops from the output.
package logger
