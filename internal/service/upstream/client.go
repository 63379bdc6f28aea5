package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnreachable marks transport-level failures: connection refused,
// DNS, and timeouts. Only this class of failure is eligible for local
// fallback; an explicit upstream rejection is an *APIError instead.
var ErrUnreachable = errors.New("upstream unreachable")

// APIError is returned when the tier was reachable but rejected or
// failed the call. It is surfaced to the caller, never masked.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

// Timeouts holds the per-operation call budgets in effect. Message
// sends get the longest budget because the upstream performs
// generative work.
type Timeouts struct {
	Create  time.Duration
	Message time.Duration
	Mode    time.Duration
	Status  time.Duration
}

// DefaultTimeouts mirrors the budgets the agent API is provisioned for.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Create:  30 * time.Second,
		Message: 60 * time.Second,
		Mode:    10 * time.Second,
		Status:  10 * time.Second,
	}
}

// Client talks to the enhanced tier's session API.
type Client struct {
	baseURL  string
	httpc    *http.Client
	timeouts Timeouts
}

// NewClient builds a client for the given base URL. The per-request
// deadline comes from each call's context, not the http.Client.
func NewClient(baseURL string, timeouts Timeouts) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    &http.Client{},
		timeouts: timeouts,
	}
}

// CreateRequest is the creation payload the enhanced tier expects.
type CreateRequest struct {
	StartMode    string `json:"startMode"`
	QualityLevel string `json:"qualityLevel"`
	Description  string `json:"description,omitempty"`
}

// CreateResult is the enhanced tier's answer to a session creation.
type CreateResult struct {
	SessionID string `json:"sessionId"`
}

// MessageResult carries the agent's reply to one message.
type MessageResult struct {
	Content         string `json:"content"`
	ToolUsed        any    `json:"toolUsed,omitempty"`
	ExecutionResult any    `json:"executionResult,omitempty"`
}

// ModeResult is the enhanced tier's acknowledgement of a mode switch.
type ModeResult struct {
	Message string `json:"message"`
}

// CreateSession asks the enhanced tier to open a session.
func (c *Client) CreateSession(ctx context.Context, req CreateRequest) (CreateResult, error) {
	var out CreateResult
	err := c.call(ctx, c.timeouts.Create, http.MethodPost, "/api/sessions", req, &out)
	return out, err
}

// SendMessage forwards a user message to the enhanced session.
func (c *Client) SendMessage(ctx context.Context, upstreamRef, message, mode string) (MessageResult, error) {
	payload := map[string]any{
		"message": message,
		"options": map[string]string{"mode": mode},
	}
	var out MessageResult
	err := c.call(ctx, c.timeouts.Message, http.MethodPost, "/api/sessions/"+upstreamRef+"/messages", payload, &out)
	return out, err
}

// SwitchMode tells the enhanced session to change mode.
func (c *Client) SwitchMode(ctx context.Context, upstreamRef, mode string) (ModeResult, error) {
	var out ModeResult
	err := c.call(ctx, c.timeouts.Mode, http.MethodPost, "/api/sessions/"+upstreamRef+"/mode", map[string]string{"mode": mode}, &out)
	return out, err
}

// GetStatus reads the enhanced session's status fields.
func (c *Client) GetStatus(ctx context.Context, upstreamRef string) (map[string]any, error) {
	out := make(map[string]any)
	if err := c.call(ctx, c.timeouts.Status, http.MethodGet, "/api/sessions/"+upstreamRef, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call performs one bounded request and classifies the outcome:
// nil error on 200, *APIError on any other status, ErrUnreachable on
// transport failure or deadline expiry.
func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("malformed response body: %v", err)}
	}
	return nil
}
