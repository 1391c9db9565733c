// Package api exposes the reconciliation operations over HTTP. Imports are
// accepted as uploads and queued; retries run inline because they touch a
// single line.
package api

import (
	"church-finance-service/internal/jobs"
	"church-finance-service/internal/reconciler"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Config bounds the HTTP server.
type Config struct {
	Addr      string `json:"addr" mapstructure:"addr"`
	BodyLimit int    `json:"body_limit" mapstructure:"body_limit"`
}

// DefaultConfig returns server defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:      ":8080",
		BodyLimit: 8 * 1024 * 1024,
	}
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "addr", c.Addr, nil)
	}
	if c.BodyLimit < 1024 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "body_limit", c.BodyLimit, nil)
	}
	return nil
}

// Server hosts the reconciliation API.
type Server struct {
	app     *fiber.App
	config  *Config
	service *reconciler.Service
	queue   jobs.Broker
	logger  logger.Logger
}

// NewServer wires the routes over the reconciliation service and import
// queue.
func NewServer(config *Config, service *reconciler.Service, queue jobs.Broker) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:     app,
		config:  config,
		service: service,
		queue:   queue,
		logger:  logger.GetGlobalLogger().WithComponent("api"),
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/health", s.handleHealth)
	api.Get("/jobs/:jobId", s.handleJobStatus)

	church := api.Group("/churches/:churchId")
	church.Post("/bank-statements/imports", s.handleImport)
	church.Get("/bank-statements", s.handleList)
	church.Get("/bank-statements/summary", s.handleSummary)
	church.Post("/bank-statements/:statementId/retry", s.handleRetry)
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	s.logger.WithField("addr", s.config.Addr).Info("HTTP server listening")
	return s.app.Listen(s.config.Addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
