// Package webserver provides the API client for the recipe question-answering service
package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/resepqa/web/internal/domain/answer"
	"github.com/resepqa/web/internal/infrastructure/config"
	"github.com/resepqa/web/internal/ports/outbound"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response body is logged
const maxErrorBody = 2048

// APIClient handles communication with the recipe question-answering service
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ outbound.AskClient = (*APIClient)(nil)

// NewAPIClient creates a new API client instance
func NewAPIClient(cfg *config.Config, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: cfg.API.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("api-client"),
	}
}

// BaseURL returns the service root the client talks to
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the instrumented client for reuse by health checks
func (c *APIClient) HTTPClient() *http.Client {
	return c.httpClient
}

// Ask posts one question to /ask. A 2xx body is decoded as-is; deciding
// whether it found anything is left to the caller.
func (c *APIClient) Ask(ctx context.Context, query answer.Query) (*answer.RawResponse, error) {
	var resp answer.RawResponse
	if err := c.post(ctx, "/ask", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyConnection checks that the service root answers with a 2xx status
func (c *APIClient) VerifyConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	var status map[string]interface{}
	return c.doRequest(req, &status)
}

func (c *APIClient) post(ctx context.Context, path string, body interface{}, response interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doRequest(req, response)
}

func (c *APIClient) doRequest(req *http.Request, response interface{}) error {
	c.logger.Debug("API request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logged := body
		if len(logged) > maxErrorBody {
			logged = logged[:maxErrorBody]
		}
		c.logger.Error("API error response",
			zap.Int("status", resp.StatusCode),
			zap.String("url", req.URL.String()),
			zap.ByteString("body", logged),
		)
		return fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
