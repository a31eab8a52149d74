// Package main provides the entry point for the Resep QA web frontend.
// The frontend serves the HTMX pages and forwards questions to the recipe
// question-answering service.
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/resepqa/web/internal/application/ask"
	"github.com/resepqa/web/internal/infrastructure/config"
	"github.com/resepqa/web/internal/infrastructure/http/webserver"
	"github.com/resepqa/web/internal/infrastructure/monitoring"
	"github.com/resepqa/web/internal/ports/inbound"
	"github.com/resepqa/web/pkg/healthcheck"
	"github.com/resepqa/web/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.NopLogger,

		// Configuration
		fx.Provide(func() (*config.Config, error) {
			return config.Load("")
		}),

		// Logger, with a level the config watcher can change
		fx.Provide(func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
			return logger.NewWithLevel(logger.Config{
				Level:       cfg.App.LogLevel,
				Format:      cfg.App.LogFormat,
				Development: cfg.App.Debug,
				Fields: map[string]string{
					"service": "resepqa-web",
					"version": cfg.App.Version,
				},
			})
		}),

		// Metrics and tracing
		fx.Provide(monitoring.NewMetricsCollector),
		fx.Provide(func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
			t := cfg.Monitoring.Tracing
			return monitoring.NewTracingProvider(monitoring.TracingConfig{
				ServiceName:    "resepqa-web",
				ServiceVersion: cfg.App.Version,
				Environment:    cfg.App.Environment,
				Endpoint:       t.Endpoint,
				Insecure:       t.Insecure,
				SamplingRate:   t.SamplingRate,
				Enabled:        t.Enable,
			}, log)
		}),

		// Client for the question-answering service
		fx.Provide(webserver.NewAPIClient),

		// Ask orchestration
		fx.Provide(func(client *webserver.APIClient, metrics *monitoring.MetricsCollector, log *zap.Logger) inbound.AskService {
			return ask.NewService(client, metrics, log)
		}),

		// Sessions and rendering
		fx.Provide(webserver.NewSessionStore),
		fx.Provide(webserver.NewMarkdownRenderer),

		// Health Check
		fx.Provide(func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
			hc := healthcheck.New(cfg.App.Version, log)
			hc.SetCacheTTL(cfg.Monitoring.HealthCacheTTL)
			return hc
		}),

		// Web Server
		fx.Provide(webserver.NewWebServer),

		// Lifecycle
		fx.Invoke(initializeWebHealthChecks),
		fx.Invoke(watchConfig),
		fx.Invoke(registerLifecycleHooks),
	)

	app.Run()
}

func registerLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	server *webserver.WebServer,
	sessions *webserver.SessionStore,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingProvider,
	apiClient *webserver.APIClient,
) {
	uptimeCtx, stopUptime := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting web frontend",
				zap.String("address", cfg.Address()),
				zap.String("environment", cfg.App.Environment),
				zap.String("api_base", cfg.API.BaseURL),
			)

			// An unreachable service is not fatal: every question reports it
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := apiClient.VerifyConnection(probeCtx); err != nil {
				log.Warn("Ask service not reachable at startup",
					zap.String("api_base", cfg.API.BaseURL),
					zap.Error(err),
				)
			}

			sessions.Start()
			go metrics.StartUptimeCounter(uptimeCtx)

			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Web server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopUptime()
			sessions.Stop()

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			err := server.Shutdown(shutdownCtx)
			if tErr := tracing.Shutdown(shutdownCtx); err == nil {
				err = tErr
			}
			_ = log.Sync()
			return err
		},
	})
}

// initializeWebHealthChecks registers health checks for the web service
func initializeWebHealthChecks(
	cfg *config.Config,
	log *zap.Logger,
	hc *healthcheck.HealthCheck,
	apiClient *webserver.APIClient,
	sessions *webserver.SessionStore,
) {
	hc.Register("ask_service", healthcheck.NewExternalServiceChecker(
		"ask_service",
		apiClient.BaseURL()+"/",
		cfg.API.Timeout,
		apiClient.HTTPClient(),
	))

	hc.Register("sessions", healthcheck.NewCustomChecker("sessions", func(ctx context.Context) (healthcheck.Status, string, interface{}) {
		return healthcheck.StatusHealthy, "", map[string]interface{}{
			"active": sessions.Count(),
		}
	}))

	log.Info("Web service health checks initialized",
		zap.String("ask_service", apiClient.BaseURL()),
	)
}

// watchConfig applies log level edits to the config file without a restart.
// Everything else still needs one.
func watchConfig(log *zap.Logger, level zap.AtomicLevel) {
	err := config.Watch("", log, func(cfg *config.Config) {
		next := logger.ParseLevel(cfg.App.LogLevel)
		if next != level.Level() {
			log.Info("Log level changed",
				zap.Stringer("from", level.Level()),
				zap.Stringer("to", next),
			)
			level.SetLevel(next)
		}
	})
	switch {
	case errors.Is(err, config.ErrNoConfigFile):
		log.Debug("No configuration file to watch")
	case err != nil:
		log.Warn("Configuration watch disabled", zap.Error(err))
	}
}
