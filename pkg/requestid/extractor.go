package requestid

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/sessionstate/pkg/logger"
)

// LoggerExtractor adds the request ID to every record logged with a request
// context. Register it with logger.WithContextExtractors.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id := FromContext(ctx)
		if id == "" {
			return slog.Attr{}, false
		}
		return logger.RequestID(id), true
	}
}
