package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/medibot/pkg/pipeline"
	"github.com/papercomputeco/medibot/pkg/session"
)

// HealthResponse reports server and session storage health.
type HealthResponse struct {
	Status         string    `json:"status"`
	SessionStorage string    `json:"session_storage"`
	ActiveSessions int       `json:"active_sessions"`
	Timestamp      time.Time `json:"timestamp"`
}

// SessionActionResponse acknowledges a clear or delete.
type SessionActionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// handlePing returns a simple liveness response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth probes the durable session mirror. A failing probe reports
// 503 with status "degraded".
func (s *Server) handleHealth(c *fiber.Ctx) error {
	store := s.pipeline.Sessions()
	resp := HealthResponse{
		Status:         "healthy",
		SessionStorage: "ok",
		ActiveSessions: store.ActiveCount(),
		Timestamp:      time.Now().UTC(),
	}

	if err := store.HealthCheck(c.UserContext()); err != nil {
		s.logger.Warn("session storage health check failed", "error", err)
		resp.Status = "degraded"
		resp.SessionStorage = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// handleChat answers one question. Pipeline failures still return 200 with
// success=false and a fallback response; only invalid input is a 400.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req pipeline.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.pipeline.Ask(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidQuery) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("chat failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to answer"})
	}

	return c.JSON(res)
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	id, err := s.pipeline.CreateSession(c.UserContext())
	if err != nil {
		s.logger.Error("creating session failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to create session"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": id,
		"message":    "Session created",
	})
}

// handleGetSession returns the full message history of a session.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.pipeline.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(sess)
}

func (s *Server) handleSessionStatus(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Status(c.UserContext(), c.Params("id")))
}

func (s *Server) handleClearSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.pipeline.Clear(c.UserContext(), id); err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(SessionActionResponse{
		Success:   true,
		SessionID: id,
		Message:   "Session history cleared",
	})
}

// handleDeleteSession is idempotent: unknown ids answer 200 with
// success=false.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	existed, err := s.pipeline.Delete(c.UserContext(), id)
	if err != nil {
		return s.sessionError(c, err)
	}

	msg := "Session deleted"
	if !existed {
		msg = "Session not found"
	}
	return c.JSON(SessionActionResponse{
		Success:   existed,
		SessionID: id,
		Message:   msg,
	})
}

func (s *Server) sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	s.logger.Error("session operation failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "session storage failure"})
}
