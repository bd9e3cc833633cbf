// Package requestid attaches a correlation ID to every HTTP request so that
// session load and commit log records can be tied back to the request that
// produced them.
//
// Middleware reuses a well-formed X-Request-ID header or generates a UUIDv7.
// LoggerExtractor feeds the ID into the structured logger:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
