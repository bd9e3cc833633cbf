package commands

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/sessionstate/pkg/httpserver"
	"github.com/dmitrymomot/sessionstate/pkg/logger"
	"github.com/dmitrymomot/sessionstate/pkg/requestid"
	"github.com/dmitrymomot/sessionstate/pkg/session"
)

const (
	keyVisits   = "visits"
	keyLoggedIn = "logged_in"
)

type visitsResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Visits    int32  `json:"visits"`
	LoggedIn  bool   `json:"logged_in"`
}

func newRouter(manager *session.Manager, log *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second, manager.Healthcheck))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(manager.Middleware)
		r.Get("/", showVisits(log))
		r.Get("/session", countVisit(log))
		r.Post("/logout", logout(manager, log))
	})

	return r
}

// showVisits reports the visit count. It only reads, so a client without a
// session cookie is not issued one.
func showVisits(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := session.MustFromContext(ctx)

		visits, _ := sess.GetInt32(ctx, keyVisits)
		loggedIn, _, err := session.GetValue[bool](ctx, sess, keyLoggedIn, session.BoolFormatter{})
		if err != nil {
			log.WarnContext(ctx, "logged_in flag unreadable", logger.Error(err))
		}

		resp := visitsResponse{Visits: visits, LoggedIn: loggedIn}
		if !sess.IsNew() {
			resp.SessionID = sess.ID()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// countVisit increments the visit counter and marks the client logged in.
func countVisit(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := session.MustFromContext(ctx)

		visits, _ := sess.GetInt32(ctx, keyVisits)
		visits++

		err := errors.Join(
			sess.SetInt32(ctx, keyVisits, visits),
			session.SetValue(ctx, sess, keyLoggedIn, true, session.BoolFormatter{}),
		)
		if err != nil {
			log.ErrorContext(ctx, "session update failed", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		writeJSON(w, http.StatusOK, visitsResponse{SessionID: sess.ID(), Visits: visits, LoggedIn: true})
	}
}

// logout ends the session and expires its cookie.
func logout(manager *session.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Abandon(w, r); err != nil {
			log.ErrorContext(r.Context(), "session abandon failed", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
