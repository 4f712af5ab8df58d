package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/piwrite/studio/internal/domain"
)

var (
	// ErrUnreachable indicates the coaching service could not be contacted
	// at all, as opposed to answering with an error.
	ErrUnreachable = errors.New("coaching service unreachable")
	// ErrBadStatus indicates the coaching service answered with a
	// non-success status.
	ErrBadStatus = errors.New("coaching service returned error status")
)

// HTTPClient calls the coaching service over its JSON HTTP contract.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientConfig holds configuration for the coach client.
type ClientConfig struct {
	BaseURL string
	// Timeout bounds each invocation. The coaching service runs a full
	// agent graph per call, so this is generous by default.
	Timeout time.Duration
}

// NewHTTPClient creates a client for the coaching service.
func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("coach base URL cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Invoke sends the session state to the coaching service and decodes its
// reply. The call is synchronous request/response; there is no streaming.
func (c *HTTPClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal invoke request: %w", err)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agents/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build invoke request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isConnectivityError(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return nil, fmt.Errorf("invoke coaching service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("coach invocation failed",
			"status", resp.StatusCode,
			"trigger", req.TriggerKind,
			"document_id", req.DocumentID,
			"body", string(snippet))
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}

	c.logger.Info("coach invocation complete",
		"trigger", req.TriggerKind,
		"document_id", req.DocumentID,
		"stage", req.Stage,
		"duration", time.Since(start))

	return &out, nil
}

// History fetches the coaching service's own transcript for a document.
// Used as a fallback when no local conversation exists.
func (c *HTTPClient) History(ctx context.Context, documentID string) ([]domain.Message, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/agents/history/"+documentID, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isConnectivityError(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return nil, fmt.Errorf("fetch coach history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return out.Messages, nil
}

// isConnectivityError distinguishes "service is down" from other transport
// failures so the orchestrator can hint the user to check the service.
func isConnectivityError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
