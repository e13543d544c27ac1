package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	apimcp "github.com/papercomputeco/chatstream/api/mcp"
)

// Server is the API server for assembling chat streams on demand.
type Server struct {
	config   Config
	enqueuer apimcp.Enqueuer
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The enqueuer is optional and is
// injected to allow sharing a worker pool with the proxy.
func NewServer(config Config, enqueuer apimcp.Enqueuer, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})

	s := &Server{
		config:   config,
		enqueuer: enqueuer,
		logger:   logger,
		app:      app,
	}

	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Enqueuer:     enqueuer,
		MaxLineBytes: config.MaxLineBytes,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/assemble", s.handleAssemble)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
