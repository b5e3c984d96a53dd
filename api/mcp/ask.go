package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/medibot/pkg/pipeline"
)

var (
	askToolName    = "ask"
	askDescription = "Ask the medical assistant a health question. Pass the session_id from a previous answer to continue that conversation; omit it to start a new one. Answers are informational and always carry a medical disclaimer."

	sessionStatusToolName    = "session_status"
	sessionStatusDescription = "Report whether a medibot conversation session exists, how many messages it holds and when it was last active."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Query     string `json:"query" jsonschema:"the health question to answer"`
	SessionID string `json:"session_id,omitempty" jsonschema:"session to continue; omit to start a new conversation"`
	MaxChunks int    `json:"max_chunks,omitempty" jsonschema:"reference passages to retrieve, 1 to 10 (default: 3)"`
}

// AskOutput is the structured answer of the ask tool.
type AskOutput struct {
	Success           bool     `json:"success"`
	Response          string   `json:"response"`
	SessionID         string   `json:"session_id"`
	SessionStatus     string   `json:"session_status,omitempty"`
	ContextUsed       bool     `json:"conversation_context_used"`
	Sources           []string `json:"sources"`
	UrgencyLevel      string   `json:"urgency_level,omitempty"`
	EmergencyDetected bool     `json:"emergency_detected"`
	Error             string   `json:"error,omitempty"`
}

// SessionStatusInput represents the input arguments for the session_status tool.
type SessionStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"the session to inspect"`
}

// SessionStatusOutput is the structured output of the session_status tool.
type SessionStatusOutput struct {
	SessionID    string `json:"session_id"`
	Exists       bool   `json:"exists"`
	MessageCount int    `json:"message_count"`
	LastActivity string `json:"last_activity,omitempty"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger
	logger.Debug("MCP ask request", "session_id", input.SessionID, "max_chunks", input.MaxChunks)

	res, err := s.config.Pipeline.Ask(ctx, pipeline.AskRequest{
		Query:     input.Query,
		SessionID: input.SessionID,
		MaxChunks: input.MaxChunks,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidQuery) {
			return errorResult("%v", err), AskOutput{}, nil
		}
		logger.Error("MCP ask failed", "error", err)
		return errorResult("Ask failed: %v", err), AskOutput{}, nil
	}

	output := AskOutput{
		Success:           res.Success,
		Response:          res.Response,
		SessionID:         res.SessionID,
		SessionStatus:     string(res.SessionStatus),
		ContextUsed:       res.ContextUsed,
		Sources:           res.Sources,
		UrgencyLevel:      string(res.Urgency),
		EmergencyDetected: res.EmergencyDetected,
		Error:             res.Error,
	}
	if output.Sources == nil {
		output.Sources = []string{}
	}

	result, err := jsonResult(output)
	if err != nil {
		logger.Error("failed to marshal ask output", "error", err)
		return errorResult("Failed to serialize results: %v", err), AskOutput{}, nil
	}
	return result, output, nil
}

func (s *Server) handleSessionStatus(ctx context.Context, _ *mcp.CallToolRequest, input SessionStatusInput) (*mcp.CallToolResult, SessionStatusOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), SessionStatusOutput{}, nil
	}

	st := s.config.Pipeline.Status(ctx, input.SessionID)
	output := SessionStatusOutput{
		SessionID:    st.SessionID,
		Exists:       st.Exists,
		MessageCount: st.TurnCount,
	}
	if !st.LastActivity.IsZero() {
		output.LastActivity = st.LastActivity.Format(time.RFC3339)
	}

	result, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), SessionStatusOutput{}, nil
	}
	return result, output, nil
}
