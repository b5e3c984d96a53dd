package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/medibot/pkg/ingest"
)

// RAGStatusResponse describes the retrieval backend.
type RAGStatusResponse struct {
	VectorStore   string `json:"vector_store"`
	Reachable     bool   `json:"reachable"`
	DocumentCount int    `json:"document_count"`
	Model         string `json:"model"`
	Error         string `json:"error,omitempty"`
}

// IngestRequest names server-side files to load, or carries documents inline.
type IngestRequest struct {
	Files     []string          `json:"files,omitempty"`
	Documents []ingest.Document `json:"documents,omitempty"`
}

func (s *Server) handleRAGStatus(c *fiber.Ctx) error {
	resp := RAGStatusResponse{
		VectorStore: s.config.VectorProvider,
		Model:       s.pipeline.Model(),
	}

	if s.config.VectorDriver == nil {
		resp.Error = "vector store not configured"
		return c.JSON(resp)
	}

	n, err := s.config.VectorDriver.Count(c.UserContext())
	if err != nil {
		s.logger.Warn("vector store count failed", "error", err)
		resp.Error = err.Error()
		return c.JSON(resp)
	}
	resp.Reachable = true
	resp.DocumentCount = n
	return c.JSON(resp)
}

func (s *Server) handleIngest(c *fiber.Ctx) error {
	if s.config.Ingester == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "ingestion not configured"})
	}

	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Files) == 0 && len(req.Documents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "files or documents are required"})
	}

	ctx := c.UserContext()
	var (
		res *ingest.Result
		err error
	)
	if len(req.Files) > 0 {
		res, err = s.config.Ingester.IngestFiles(ctx, req.Files)
	} else {
		res, err = s.config.Ingester.IngestDocuments(ctx, req.Documents)
	}
	if err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("ingestion failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(res)
}
