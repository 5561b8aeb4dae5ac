// Package client talks to the docbridge HTTP API and retries calls the
// server reports as retryable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docbridge/internal/errs"
)

// Client communicates with the docbridge HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxRetries: MaxRetries,
		backoff:    Backoff,
	}
}

// WithRetries sets how many times a retryable failure is retried.
func (c *Client) WithRetries(n int) *Client {
	c.maxRetries = max(n, 0)
	return c
}

// ToolInfo describes one tool as listed by the server.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Mutates     bool   `json:"mutates"`
	Params      []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
		Required    bool   `json:"required"`
	} `json:"params"`
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Kind      errs.Kind `json:"kind"`
		Message   string    `json:"message"`
		Retryable bool      `json:"retryable"`
	} `json:"error"`
}

// Call invokes a tool and returns its raw JSON result. Retryable failures
// are retried with backoff up to the configured limit.
func (c *Client) Call(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: %w (last error: %v)", tool, ctx.Err(), lastErr)
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		result, err := c.callOnce(ctx, tool, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", tool, c.maxRetries+1, lastErr)
}

func (c *Client) callOnce(ctx context.Context, tool string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tools/"+url.PathEscape(tool), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Upload sends a local file to the server, which opens it as a document.
func (c *Client) Upload(ctx context.Context, path string) (json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

// Tools lists the tools the server exposes.
func (c *Client) Tools(ctx context.Context) ([]ToolInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("list tools: status %d: %s", resp.StatusCode, string(respBody))
	}
	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	return out.Tools, nil
}

// Health checks that the server is up and its host loop is running.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindHostUnavailable, "health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// do sends req and decodes the {"result"} / {"error"} envelope. Error
// bodies become *errs.Error with the server's kind and retryable flag.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
		}
		return nil, errs.Wrap(errs.KindHostUnavailable, err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil || (env.Error == nil && resp.StatusCode >= 300) {
		return nil, errs.New(statusKind(resp.StatusCode), "%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(respBody, 1024))
	}
	if env.Error != nil {
		return nil, &errs.Error{Kind: env.Error.Kind, Message: env.Error.Message, Retryable: env.Error.Retryable}
	}
	return env.Result, nil
}

// statusKind classifies responses that carry no error envelope, such as a
// proxy's 502 or an auth failure.
func statusKind(code int) errs.Kind {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return errs.KindHostUnavailable
	case http.StatusGatewayTimeout:
		return errs.KindTimeout
	case http.StatusTooManyRequests:
		return errs.KindBusy
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestEntityTooLarge:
		return errs.KindInvalidArgument
	}
	return errs.KindOperationFailed
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(bytes.TrimSpace(b))
}
