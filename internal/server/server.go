// Package server wires the store, scheduler, dead man's switch controller,
// and HTTP API together into one runnable service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigil-switch/vigil/internal/briar"
	"github.com/vigil-switch/vigil/internal/server/dms"
	"github.com/vigil-switch/vigil/internal/server/handlers"
	"github.com/vigil-switch/vigil/internal/server/middleware"
	"github.com/vigil-switch/vigil/internal/server/notify"
	"github.com/vigil-switch/vigil/internal/server/scheduler"
	"github.com/vigil-switch/vigil/internal/server/store"
)

const (
	defaultLogLevel   = "info"
	defaultStorageDir = "./data"
)

// Server runs the scheduler and exposes its operations over HTTP.
type Server struct {
	Config

	ctx         context.Context
	cancel      context.CancelFunc
	mux         http.Handler
	logger      *slog.Logger
	middlewares []func(http.Handler) http.Handler

	Scheduler  *scheduler.Scheduler
	Controller *dms.Controller
}

// Config holds configuration for creating a Server.
type Config struct {
	APIToken          string
	AlertURLs         []string
	AutoTLS           bool
	BriarToken        string
	BriarURL          string
	DemoMode          bool
	DemoResetInterval time.Duration
	Domains           []string
	LogFormat         string
	LogLevel          string
	Metrics           bool
	Port              int
	StorageDir        string
	TLSCert           string
	TLSKey            string
	Validation        bool
}

// New returns a new server configured from cfg. The scheduler loop starts
// immediately.
func New(cfg *Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		Config: *cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if server.LogLevel == "" {
		server.LogLevel = defaultLogLevel
	}

	if server.StorageDir == "" {
		server.StorageDir = defaultStorageDir
	}

	if server.BriarURL == "" {
		server.BriarURL = briar.DefaultBaseURL
	}

	server.LogFormat = strings.ToLower(server.LogFormat)

	router := chi.NewRouter()
	server.mux = router

	// Ensure configuration options are valid/compatible
	err := server.validate()
	if err != nil {
		cancel()
		return nil, err
	}

	// Logging
	logLevel, err := log.ParseLevel(server.LogLevel)
	if err != nil {
		cancel()
		return nil, err
	}

	logHandler := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       getLogFormatter(server.LogFormat),
		Level:           logLevel,
	})
	server.logger = slog.New(logHandler)

	// Storage
	fileStore, err := store.NewFileStore(server.StorageDir, server.logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize message store: %w", err)
	}

	// Notifier transport
	briarClient := briar.New(server.BriarURL, server.BriarToken)

	// Operator alerts
	var alerter *notify.Alerter
	if len(server.AlertURLs) > 0 {
		alerter = &notify.Alerter{
			URLs:   server.AlertURLs,
			Logger: server.logger.With("component", "alerter"),
		}
	}

	// Scheduler + dead man's switch controller
	server.Scheduler = scheduler.New(fileStore, briarClient, alerter, server.logger)
	server.Controller = dms.New(server.Scheduler, briarClient, server.logger)
	server.Scheduler.Start()

	// Features
	if server.Metrics {
		router.Handle("/metrics", promhttp.Handler())
		server.middlewares = append(server.middlewares, middleware.Prometheus)
	}

	// Default middlewares
	server.mux = middleware.SecurityHeaders(server.mux)
	server.mux = middleware.Logging(server.logger, server.mux)

	// Add middlewares via http.Handler chaining
	for _, mw := range server.middlewares {
		server.mux = mw(server.mux)
	}

	v := validator.New()

	// Health check
	healthHandler := &handlers.Health{
		Notifier: briarClient,
	}
	router.Get("/health", healthHandler.GetHandleFunc)

	// API routes, optionally behind bearer token auth
	messageHandler := &handlers.Messages{
		Scheduler: server.Scheduler,
		Validator: v,
		Logger:    server.logger,
	}
	switchHandler := &handlers.Switch{
		Controller: server.Controller,
		Scheduler:  server.Scheduler,
		Logger:     server.logger,
	}
	inboundHandler := &handlers.Inbound{
		Controller: server.Controller,
		Validator:  v,
		Logger:     server.logger,
	}

	router.Route("/v1", func(r chi.Router) {
		if server.APIToken != "" {
			r.Use(middleware.BearerAuth(server.APIToken))
		}

		r.With(middleware.MessageValidator(v)).Post("/message", messageHandler.PostHandleFunc)
		r.Get("/messages", messageHandler.GetHandleFunc)
		r.Delete("/messages", messageHandler.DeleteHandleFunc)

		r.With(middleware.ArmValidator(v)).Post("/switch", switchHandler.PostHandleFunc)
		r.Delete("/switch/{word}", switchHandler.DeleteHandleFunc)

		r.Post("/inbound", inboundHandler.PostHandleFunc)
	})

	if server.DemoMode {
		err = server.initDemoMode()
		if err != nil {
			cancel()
			return nil, err
		}
	}

	return server, nil
}

// Start starts the listener of the server.
func (s *Server) Start() error {
	log := s.logger.With("component", "server")

	// Auto TLS will create listeners on port 80 and 443
	if s.AutoTLS {
		s.printBanner(":80 :443")
		log.Info("Starting server on :80 and :443")
		certmagic.DefaultACME.Agreed = true
		return certmagic.HTTPS(s.Domains, s.mux)
	}

	// If no auto TLS, use specified server port
	// :{port}
	addr := fmt.Sprintf(":%d", s.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       5 * time.Second,
	}

	s.printBanner(addr)
	log.Info("Starting server on " + addr)

	// If custom cert and key provided, listen on specified server port via https
	if s.TLSCert != "" && s.TLSKey != "" {
		return httpServer.ListenAndServeTLS(s.TLSCert, s.TLSKey)
	}

	// No TLS requirements specified, listen on specified server port via http
	return httpServer.ListenAndServe()
}

// Stop stops the server and the scheduler loop.
func (s *Server) Stop() {
	s.logger.Info("shutting down server")
	s.cancel()

	err := s.Scheduler.Stop()
	if err != nil {
		s.logger.Error("scheduler did not stop cleanly", "error", err)
	}
}

// validate validates the server configuration and checks for conflicting parameters.
func (s *Server) validate() error {
	if !s.Validation {
		return nil
	}

	if s.AutoTLS && (s.TLSCert != "" || s.TLSKey != "") {
		return errors.New("AutoTLS cannot be set along with TLS cert or TLS key")
	}

	if s.AutoTLS && len(s.Domains) == 0 {
		return errors.New("AutoTLS requires a domain to also be configured")
	}

	if s.TLSCert != "" && s.TLSKey == "" {
		return errors.New("TLS certificate is missing TLS key")
	}

	if s.TLSCert == "" && s.TLSKey != "" {
		return errors.New("TLS key is missing TLS certificate")
	}

	validLogFormats := []string{"json", "text", ""}
	if !slices.Contains(validLogFormats, s.LogFormat) {
		return fmt.Errorf("invalid log format. Valid log formats are: %v", validLogFormats)
	}

	if s.LogLevel != "" {
		_, err := log.ParseLevel(s.LogLevel)
		if err != nil {
			return err
		}
	}

	return nil
}

// getLogFormatter converts a log format string to usable log formatter
func getLogFormatter(logformat string) log.Formatter {
	switch logformat {
	case "json":
		return log.JSONFormatter
	}
	return log.TextFormatter
}
