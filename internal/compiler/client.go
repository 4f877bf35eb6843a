// Package compiler talks to the LaTeX rendering service.
package compiler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coverletter-backend/internal/shared/faults"
	"coverletter-backend/internal/shared/metrics"
	"coverletter-backend/internal/shared/telemetry"
)

const (
	service  = "compiler"
	endpoint = "/latex-compiler"
	// maxResponseBytes caps the base64 body read from the service.
	maxResponseBytes = 64 << 20
)

// ErrEmptyResponse is returned when the service answers 2xx with no body.
var ErrEmptyResponse = errors.New("compiler returned empty body")

// StatusError carries a non-2xx response verbatim.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("compiler status %d: %s", e.StatusCode, body)
}

// Compiler renders LaTeX to PDF bytes.
type Compiler interface {
	Compile(ctx context.Context, latexSource string) ([]byte, error)
}

// Client is the HTTP Compiler.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the service rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("LATEX_COMPILER_API_URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: base, httpClient: &http.Client{Timeout: timeout}}, nil
}

type compileRequest struct {
	LatexSource string `json:"latex_source"`
}

// Compile sends latexSource as-is and decodes the base64 PDF in the reply.
// Every failure is an upstream error; non-2xx replies wrap *StatusError.
func (c *Client) Compile(ctx context.Context, latexSource string) ([]byte, error) {
	start := time.Now()
	pdf, err := c.compile(ctx, latexSource)
	metrics.ObserveCompile(time.Since(start))
	metrics.IncCompile(err != nil)
	if err != nil {
		telemetry.Error("compiler.failed", map[string]any{"err": err, "duration_ms": time.Since(start).Milliseconds()})
		return nil, faults.Upstream(service, err)
	}
	return pdf, nil
}

func (c *Client) compile(ctx context.Context, latexSource string) ([]byte, error) {
	payload, err := json.Marshal(compileRequest{LatexSource: latexSource})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("compiler request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("compiler read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return DecodeBody(body)
}

// DecodeBody decodes a base64 reply given as raw text or as a JSON string.
func DecodeBody(body []byte) ([]byte, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("compiler body: %w", err)
		}
		text = strings.TrimSpace(s)
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}
	text = strings.NewReplacer("\n", "", "\r", "").Replace(text)
	out, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("compiler body is not base64: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

var _ Compiler = (*Client)(nil)
