package session

import (
	"net/http"

	"github.com/dmitrymomot/sessionstate/pkg/logger"
)

// Middleware makes a Session available to next through the request
// context and commits it once next returns.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.config.BypassHeadRequests && r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		response, tw := trackResponse(w)

		sess, err := m.resolve(w, r, response)
		if err != nil {
			m.logger.ErrorContext(r.Context(), "session could not be created", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		defer func() {
			m.commit(r, sess)
			// A handler that never wrote still gets its cookie.
			response.start()
		}()

		next.ServeHTTP(tw, r.WithContext(WithSession(r.Context(), sess)))
	})
}
