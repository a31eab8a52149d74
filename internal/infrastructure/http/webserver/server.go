// Package webserver provides the web frontend HTTP server implementation
package webserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/resepqa/web/internal/domain/answer"
	"github.com/resepqa/web/internal/infrastructure/config"
	"github.com/resepqa/web/internal/infrastructure/http/middleware"
	"github.com/resepqa/web/internal/infrastructure/monitoring"
	"github.com/resepqa/web/internal/ports/inbound"
	"github.com/resepqa/web/pkg/errors"
	"github.com/resepqa/web/pkg/healthcheck"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// WebServer represents the web frontend HTTP server
type WebServer struct {
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
	router      *chi.Mux
	askService  inbound.AskService
	sessions    *SessionStore
	renderer    *MarkdownRenderer
	templates   *template.Template
	healthCheck *healthcheck.HealthCheck
	metrics     *monitoring.MetricsCollector
	limiter     *middleware.RateLimiter
}

// NewWebServer creates a new web frontend server instance
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	askService inbound.AskService,
	sessions *SessionStore,
	renderer *MarkdownRenderer,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) (*WebServer, error) {
	templates, err := parseTemplates()
	if err != nil {
		log.Error("Failed to parse templates", zap.Error(err))
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	log.Debug("Templates parsed", zap.String("templates", templates.DefinedTemplates()))

	s := &WebServer{
		config:      cfg,
		logger:      log.Named("web"),
		askService:  askService,
		sessions:    sessions,
		renderer:    renderer,
		templates:   templates,
		healthCheck: healthCheck,
		metrics:     metrics,
	}
	if cfg.RateLimit.Enable {
		s.limiter = middleware.NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstSize,
			s.handleRateLimited,
			s.logger,
		)
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:           cfg.Address(),
		Handler:        otelhttp.NewHandler(s.router, "resepqa-web"),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

// Handler exposes the router (tests drive it with httptest)
func (s *WebServer) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the web frontend routes
func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger, "/health", "/ready", "/live", s.config.Monitoring.MetricsPath))
	r.Use(chimw.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}
	r.Use(middleware.Security(s.config.IsProduction()))
	if level := s.config.Server.CompressionLevel; level > 0 {
		r.Use(middleware.Compress(level))
	}

	// Static assets
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Health check endpoints
	r.Get("/health", s.healthCheck.Handler())
	r.Get("/ready", s.healthCheck.ReadinessHandler())
	r.Get("/live", s.healthCheck.LivenessHandler())

	if s.metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler())
	}

	// Pages
	r.Get("/about", s.handleAbout)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleHome)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Handler)
			}
			r.Post("/ask", s.handleAsk)
		})
	})

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Handler)
		}
		r.Post("/api/ask", s.handleAPIAsk)
	})

	r.NotFound(s.handleNotFound)

	return r
}

// Start starts the web frontend HTTP server
func (s *WebServer) Start() error {
	s.logger.Info("Starting web frontend server",
		zap.String("address", s.server.Addr),
		zap.String("api_base", s.config.API.BaseURL),
	)

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the web server
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web frontend server...")
	return s.server.Shutdown(ctx)
}

// parseTemplates parses all HTML templates from the embedded filesystem.
// A template is named by its path under templates/ without the extension.
func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"score": func(score *float64) string {
			if score == nil {
				return ""
			}
			return fmt.Sprintf("%.3f", *score)
		},
		"year": func() int {
			return time.Now().Year()
		},
	}

	tmpl := template.New("").Funcs(funcMap)

	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := strings.TrimPrefix(path, "templates/")
		name = strings.TrimSuffix(name, ".html")

		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk templates: %w", err)
	}

	return tmpl, nil
}

type sessionKey struct{}

func (s *WebServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := s.sessions.Load(w, r)
		ctx := context.WithValue(r.Context(), sessionKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *Session {
	session, _ := r.Context().Value(sessionKey{}).(*Session)
	return session
}

// renderTemplate executes into a buffer so a failing template never leaves
// a half-written page behind.
func (s *WebServer) renderTemplate(w http.ResponseWriter, status int, name string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	if data["Title"] == nil {
		data["Title"] = s.config.App.Name
	}
	if data["Nav"] == nil {
		data["Nav"] = ""
	}
	data["MaxQuestion"] = answer.MaxQuestionLength
	data["AppName"] = s.config.App.Name
	data["Version"] = s.config.App.Version

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to execute template",
			zap.String("template", name),
			zap.Error(err),
		)
		http.Error(w, errors.MessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("Failed to write response", zap.String("template", name), zap.Error(err))
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
