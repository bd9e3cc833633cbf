package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sessionstate/pkg/config"
	"github.com/dmitrymomot/sessionstate/pkg/cookie"
	"github.com/dmitrymomot/sessionstate/pkg/httpserver"
	"github.com/dmitrymomot/sessionstate/pkg/logger"
	"github.com/dmitrymomot/sessionstate/pkg/requestid"
	"github.com/dmitrymomot/sessionstate/pkg/session"
)

type serveConfig struct {
	Backend string `env:"SESSION_BACKEND" envDefault:"memory"`
}

var backendFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the demo HTTP server.

Routes:
  GET /          report the visit count without starting a session
  GET /session   count a visit, issuing the session cookie on first use
  GET /healthz   liveness probe
  GET /readyz    readiness probe, fails while the session cache is unreachable
  GET /metrics   Prometheus metrics

Examples:
  # In-process cache
  COOKIE_SECRETS=$(openssl rand -hex 32) sessiond serve

  # Redis
  REDIS_URL=redis://localhost:6379/0 sessiond serve --backend redis`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&backendFlag, "backend", "", "session cache backend (overrides SESSION_BACKEND)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		logCfg    logger.Config
		serveCfg  serveConfig
		cookieCfg cookie.Config
		sessCfg   session.Config
		httpCfg   httpserver.Config
	)
	if err := errors.Join(
		config.Load(&logCfg),
		config.Load(&serveCfg),
		config.Load(&cookieCfg),
		config.Load(&sessCfg),
		config.Load(&httpCfg),
	); err != nil {
		return err
	}
	if backendFlag != "" {
		serveCfg.Backend = backendFlag
	}

	log := logger.NewFromConfig(logCfg, logger.WithContextExtractors(requestid.LoggerExtractor()))
	logger.SetAsDefault(log)

	cookies, err := cookie.NewFromConfig(cookieCfg)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, serveCfg.Backend, log)
	if err != nil {
		return err
	}
	defer be.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	manager := session.NewFromConfig(sessCfg,
		session.WithCookieManager(cookies),
		session.WithCache(be.cache),
		session.WithLogger(log.With(logger.Component("session"))),
		session.WithMetrics(session.NewMetrics(reg)),
		session.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err := manager.Connect(ctx); err != nil {
		return err
	}

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log.With(logger.Component("http"))))
	router := newRouter(manager, log, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, router)
	})
	if be.background != nil {
		g.Go(func() error {
			return be.background(gctx)
		})
	}

	log.InfoContext(ctx, "sessiond started",
		logger.Backend(serveCfg.Backend),
		logger.Duration(manager.Config().IdleTimeout),
	)
	return g.Wait()
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the Postgres session table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		var logCfg logger.Config
		if err := config.Load(&logCfg); err != nil {
			return err
		}
		be, err := openBackend(ctx, backendPostgres, logger.NewFromConfig(logCfg))
		if err != nil {
			return err
		}
		be.close()
		return nil
	},
}
