// Package apiclient talks to a running "medibot serve" over its JSON API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/medibot/api"
	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/pipeline"
	"github.com/papercomputeco/medibot/pkg/utils"
)

// DefaultTimeout covers a full answer, generation included.
const DefaultTimeout = 2 * time.Minute

// ErrNotFound is returned when the server reports an unknown session.
var ErrNotFound = errors.New("session not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at target, e.g. http://localhost:8000.
func New(target string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target %q", target)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(target, "/"),
		httpClient: httpClient,
	}, nil
}

func (c *Client) Chat(ctx context.Context, req pipeline.AskRequest) (*pipeline.AskResult, error) {
	var out pipeline.AskResult
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *Client) Status(ctx context.Context, id string) (*pipeline.SessionStatus, error) {
	var out pipeline.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, id string) (*conversation.Session, error) {
	var out conversation.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Clear(ctx context.Context, id string) error {
	var out api.SessionActionResponse
	return c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/clear", nil, &out)
}

// Delete reports whether the session existed.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	var out api.SessionActionResponse
	if err := c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// Health returns the health report. A degraded server answers 503 with a
// well formed body, which is returned alongside the StatusError.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	var se *StatusError
	if err != nil && !(errors.As(err, &se) && se.Code == http.StatusServiceUnavailable) {
		return nil, err
	}
	return &out, err
}

func (c *Client) RAGStatus(ctx context.Context) (*api.RAGStatusResponse, error) {
	var out api.RAGStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/rag/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var statusErr error
	if resp.StatusCode >= http.StatusBadRequest {
		var e api.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		statusErr = &StatusError{Code: resp.StatusCode, Message: msg}
		if resp.StatusCode != http.StatusServiceUnavailable {
			return statusErr
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Join(statusErr, fmt.Errorf("decoding response: %w", err))
		}
	}
	return statusErr
}
