package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/medibot/api/mcp"
	"github.com/papercomputeco/medibot/pkg/pipeline"
)

// Server is the API server for asking questions and managing sessions.
type Server struct {
	config   Config
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	app      *fiber.App
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server around an assembled pipeline.
func NewServer(config Config, p *pipeline.Pipeline, logger *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	// Handler panics become 500s instead of taking the process down.
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			logger.Error("handler panic", "method", c.Method(), "path", c.Path(), "panic", e)
		},
	}))

	s := &Server{
		config:   config,
		pipeline: p,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)

	chat := app.Group("/api")
	chat.Post("/chat", s.handleChat)
	chat.Post("/sessions", s.handleCreateSession)
	chat.Get("/sessions/:id", s.handleGetSession)
	chat.Get("/sessions/:id/status", s.handleSessionStatus)
	chat.Post("/sessions/:id/clear", s.handleClearSession)
	chat.Delete("/sessions/:id", s.handleDeleteSession)

	chat.Get("/rag/status", s.handleRAGStatus)
	chat.Post("/rag/ingest", s.handleIngest)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Pipeline: p,
		Noop:     config.NoMCP,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// errorHandler renders errors that escape handlers as an ErrorResponse.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
	}
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
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
