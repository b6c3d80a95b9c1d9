// Package dify talks to the hosted Dify workflow and chat endpoints.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	ResponseModeBlocking  = "blocking"
	ResponseModeStreaming = "streaming"

	// Body excerpts attached to StatusError.
	WorkflowErrorBodyLimit = 300
	ChatErrorBodyLimit     = 400
)

var (
	// ErrMissingCredentials is returned before any network call when a base URL or key is empty.
	ErrMissingCredentials = errors.New("gateway credentials are not configured")
	ErrProtocolMismatch   = errors.New("gateway did not return an event stream")
	ErrEmptyStream        = errors.New("gateway returned no response body")
)

// StatusError reports a non-2xx response from the gateway.
type StatusError struct {
	StatusCode int
	Body       string // truncated
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Dify API error (%d): %s", e.StatusCode, e.Body)
}

// Endpoint is one gateway application: a base URL and its API key.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

func (e Endpoint) configured() bool {
	return strings.TrimSpace(e.BaseURL) != "" && strings.TrimSpace(e.APIKey) != ""
}

func (e Endpoint) url(path string) string {
	return strings.TrimRight(strings.TrimSpace(e.BaseURL), "/") + path
}

// Client calls the workflow and chat applications. The workflow and chat apps may
// live behind different keys, so each call names its endpoint.
type Client struct {
	httpClient *http.Client
	user       string
	logger     *zap.Logger
}

// NewClient creates a gateway client. user is the fixed identifier sent with every request.
func NewClient(httpClient *http.Client, user string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		user:       user,
		logger:     logger.Named("DifyClient"),
	}
}

// --- Workflow ---

// WorkflowRequest is the body of POST /workflows/run.
type WorkflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

// WorkflowResponse is the part of the workflow reply we consume.
// Outputs is nil when the field is missing.
type WorkflowResponse struct {
	Data struct {
		Outputs json.RawMessage `json:"outputs"`
	} `json:"data"`
}

// RunWorkflow runs a blocking workflow with the given inputs.
func (c *Client) RunWorkflow(ctx context.Context, ep Endpoint, inputs map[string]string) (*WorkflowResponse, error) {
	if !ep.configured() {
		return nil, ErrMissingCredentials
	}

	body := WorkflowRequest{
		Inputs:       inputs,
		ResponseMode: ResponseModeBlocking,
		User:         c.user,
	}
	resp, err := c.post(ctx, ep, "/workflows/run", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp, WorkflowErrorBodyLimit)
	}

	var out WorkflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode workflow response: %w", err)
	}
	return &out, nil
}

// --- Chat ---

// ChatRequest is the body of POST /chat-messages.
type ChatRequest struct {
	Query          string            `json:"query"`
	User           string            `json:"user"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Inputs         map[string]string `json:"inputs,omitempty"`
}

// StreamChat opens a streaming chat completion and returns the raw event-stream body.
// The caller must close it. Cancelling ctx aborts the upstream read.
func (c *Client) StreamChat(ctx context.Context, ep Endpoint, req ChatRequest) (io.ReadCloser, error) {
	if !ep.configured() {
		return nil, ErrMissingCredentials
	}

	req.User = c.user
	req.ResponseMode = ResponseModeStreaming

	resp, err := c.post(ctx, ep, "/chat-messages", req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newStatusError(resp, ChatErrorBodyLimit)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		resp.Body.Close()
		return nil, ErrProtocolMismatch
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrEmptyStream
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, ep Endpoint, path string, payload any) (*http.Response, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.url(path), &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)

	c.logger.Debug("calling gateway", zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	return resp, nil
}

func newStatusError(resp *http.Response, limit int) *StatusError {
	// Read a little past the limit; the rest of the body is irrelevant.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, int64(limit*utf8.UTFMax)))
	return &StatusError{StatusCode: resp.StatusCode, Body: Truncate(string(raw), limit)}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
