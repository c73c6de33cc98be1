// Package backend is a small catalogue server speaking the protocol the
// shelf client expects. It keeps products and users in memory and is used
// for local development and end-to-end tests.
package backend

import (
	"context"
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/telemetry"
)

// Server wires the fiber app to its stores
type Server struct {
	app       *fiber.App
	config    *Config
	catalogue *Catalogue
	users     *Users
	logger    logrus.FieldLogger
}

// New builds a server. A nil metrics gets a private registry.
func New(cfg *Config, metrics *telemetry.Metrics, log logrus.FieldLogger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	tokens, err := NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	catalogue := NewCatalogue()
	if cfg.SeedProducts {
		catalogue.Seed()
	}
	metrics.UpdateCatalogueSize(catalogue.Len())
	users := NewUsers()

	app := fiber.New(fiber.Config{
		AppName:               "shelf-backend",
		DisableStartupMessage: true,
		BodyLimit:             maxImportSize + 1<<20,
	})

	SetupMiddleware(app, cfg, metrics, log)
	handler := NewHandler(cfg, catalogue, users, tokens, metrics, log)
	SetupRoutes(app, cfg, handler, metrics)

	return &Server{
		app:       app,
		config:    cfg,
		catalogue: catalogue,
		users:     users,
		logger:    log,
	}, nil
}

// App returns the fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Catalogue returns the product store
func (s *Server) Catalogue() *Catalogue {
	return s.catalogue
}

// Users returns the user store
func (s *Server) Users() *Users {
	return s.users
}

// Listen serves on the configured address until Shutdown
func (s *Server) Listen() error {
	s.logger.WithField("addr", s.config.Addr()).Info("Starting catalogue backend")
	return s.app.Listen(s.config.Addr())
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
